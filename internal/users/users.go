// Package users resolves sessions into user identities
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatgate/internal/session"
	"chatgate/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Identity resolves the current session into a user identity, or none.
type Identity interface {
	FromSession(ctx context.Context, token string) (*shared.UserMetadata, error)
}

type Manager struct {
	sessions session.Store
	redis    *redis.Client
	rdb      *sql.DB
	log      *zap.SugaredLogger
}

func NewManager(sessions session.Store, redisClient *redis.Client, rdb *sql.DB, log *zap.SugaredLogger) *Manager {
	return &Manager{sessions: sessions, redis: redisClient, rdb: rdb, log: log}
}

// FromSession resolves a session token to user metadata. Returns
// shared.ErrInvalidSession when the session does not resolve to a user.
func (m *Manager) FromSession(ctx context.Context, token string) (*shared.UserMetadata, error) {
	sess, err := m.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, shared.ErrInvalidSession
		}
		return nil, err
	}
	return m.metadataForUser(ctx, sess.UserID)
}

func (m *Manager) metadataForUser(ctx context.Context, userID uint64) (*shared.UserMetadata, error) {
	var userMetadata shared.UserMetadata

	userInfoCacheKey := fmt.Sprintf("v1:user:id:%d", userID)
	userInfoCache, err := m.redis.Get(ctx, userInfoCacheKey).Result()
	switch err {
	case nil:
		err = json.Unmarshal([]byte(userInfoCache), &userMetadata)
		if err == nil {
			return &userMetadata, nil
		}
		m.log.Errorw("Error unmarshalling user info cache", "error", err)
		fallthrough
	default:
		m.log.Debugw("User cache miss", "key", userInfoCacheKey)

		var role string
		err = m.rdb.QueryRowContext(ctx, `
		SELECT
		user.id,
		user.email,
		user.role
		FROM user
		WHERE user.id = ?
		`, userID).Scan(
			&userMetadata.UserID,
			&userMetadata.Email,
			&role,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				m.log.Warnw("Session references unknown user", "user_id", userID)
				return nil, shared.ErrInvalidSession
			}
			m.log.Errorw("Database error during user lookup", "error", err)
			return nil, err
		}
		userMetadata.IsAdmin = role == "admin"
		go func() {
			userInfoCache, err := json.Marshal(userMetadata)
			if err != nil {
				m.log.Errorw("Error marshalling user info", "error", err)
				return
			}
			m.redis.Set(context.Background(), userInfoCacheKey, userInfoCache, shared.UserInfoCacheTTL)
		}()
		return &userMetadata, nil
	}
}
