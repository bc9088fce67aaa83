package storage

import (
	"collective/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// SaveSession stores the identity in Redis; the key expires with the session. The session
// ID is also indexed under the user so DeleteUserSessions can find it.
func (s *Service) SaveSession(ctx context.Context, sid string, identity models.Identity, ttl time.Duration) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	index := userSessionKeyPrefix + identity.ID
	_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+sid, payload, ttl)
		pipe.SAdd(ctx, index, sid)
		pipe.Expire(ctx, index, ttl)
		return nil
	})
	return err
}

func (s *Service) GetSession(ctx context.Context, sid string) (*models.Identity, error) {
	raw, err := s.Redis.Get(ctx, sessionKeyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var identity models.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *Service) DeleteSession(ctx context.Context, sid string) error {
	return s.Redis.Del(ctx, sessionKeyPrefix+sid).Err()
}

// DeleteUserSessions logs userID out everywhere.
func (s *Service) DeleteUserSessions(ctx context.Context, userID string) error {
	index := userSessionKeyPrefix + userID
	sids, err := s.Redis.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, sessionKeyPrefix+sid)
	}
	keys = append(keys, index)
	return s.Redis.Del(ctx, keys...).Err()
}
