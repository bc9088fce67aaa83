// Package session issues and resolves login sessions.
//
// The session itself lives in the store under a random ID; the cookie only carries
// that ID inside a signed, expiring JWT.
package session

import (
	"collective/backend/internal/config"
	"collective/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSession means the token is missing, forged, expired or revoked.
var ErrNoSession = errors.New("session: not logged in")

// Store keeps session payloads with an expiry. GetSession returns (nil, nil) for unknown IDs.
type Store interface {
	SaveSession(ctx context.Context, sid string, identity models.Identity, ttl time.Duration) error
	GetSession(ctx context.Context, sid string) (*models.Identity, error)
	DeleteSession(ctx context.Context, sid string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

type Manager struct {
	Store  Store
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewManager(s Store, cfg config.SessionConfig) *Manager {
	return &Manager{Store: s, Secret: []byte(cfg.Secret), TTL: cfg.TTL, Now: time.Now}
}

// Issue stores a new session for identity and returns the signed cookie value.
func (m *Manager) Issue(ctx context.Context, identity models.Identity) (string, error) {
	sid := uuid.New().String()
	if err := m.Store.SaveSession(ctx, sid, identity, m.TTL); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	now := m.Now()
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Subject:   identity.ID,
		Issuer:    config.SessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.SessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.Now),
	)
	if err != nil || claims.ID == "" {
		return nil, ErrNoSession
	}
	return claims, nil
}

// Resolve returns the identity behind a cookie value.
func (m *Manager) Resolve(ctx context.Context, token string) (models.Identity, error) {
	claims, err := m.parse(token)
	if err != nil {
		return models.Identity{}, err
	}
	identity, err := m.Store.GetSession(ctx, claims.ID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("get session: %w", err)
	}
	if identity == nil {
		return models.Identity{}, ErrNoSession
	}
	return *identity, nil
}

// Revoke deletes the session behind token. Invalid tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.Store.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeUser ends every session of userID, e.g. after their role changed.
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	if err := m.Store.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}
