// Package account handles signup, password authentication and admin role management.
package account

import (
	"collective/backend/internal/config"
	"collective/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("account: email already registered")
	ErrInvalidCredentials = errors.New("account: invalid email or password")
	ErrUserNotFound       = errors.New("account: user not found")
	ErrForbidden          = errors.New("account: admin access required")
	ErrInvalidInput       = errors.New("account: invalid input")
	ErrSelfDelete         = errors.New("account: cannot delete your own account")
)

// Store persists users. Lookups return (nil, nil) when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) error
	// DeleteUser removes the user together with their profiles, conversations and messages.
	// It returns ErrUserNotFound when id matches nothing.
	DeleteUser(ctx context.Context, id string) error
}

type Service struct {
	Store Store
	// Cost is the bcrypt work factor.
	Cost int
}

func NewService(s Store) *Service {
	return &Service{Store: s, Cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if n := len(password); n < config.MinPasswordLength || n > config.MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, config.MinPasswordLength, config.MaxPasswordLength)
	}
	return nil
}

// Signup registers a COMPANY or INVESTOR account. Admins are only made through SetRole.
func (s *Service) Signup(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if role != models.RoleCompany && role != models.RoleInvestor {
		return nil, fmt.Errorf("%w: role must be COMPANY or INVESTOR", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: string(hash), Role: role}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user signed up")
	return user, nil
}

// Authenticate checks the password of the account registered under email.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, actor models.Identity) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SetRole changes the role of userID and returns the updated user. Only admins may call it.
func (s *Service) SetRole(ctx context.Context, actor models.Identity, userID string, role models.Role) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.AssignRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// AssignRole changes a role without an actor check. The admin CLI uses it to bootstrap the
// first admin.
func (s *Service) AssignRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.Store.UpdateUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update role: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("user role changed")
	return nil
}

// Delete removes userID and everything attached to it. Admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor models.Identity, userID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if userID == actor.ID {
		return ErrSelfDelete
	}
	if err := s.Store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "actor_id": actor.ID}).Info("user deleted")
	return nil
}
