// Package session reads the opaque session credential issued by the
// identity provider. The gateway never creates or destroys sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatgate/internal/shared"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	UserID uint64 `json:"user_id"`
}

// Store resolves an opaque session token into the decoded session. Passed
// explicitly into each pipeline stage so tests can substitute a fake with
// controlled contents.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
}

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	raw, err := s.redis.Get(ctx, shared.SessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("malformed session payload: %w", err)
	}
	if sess.UserID == 0 {
		return nil, ErrNotFound
	}
	return &sess, nil
}
