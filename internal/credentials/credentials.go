// Package credentials looks up per-user provider API keys
package credentials

import (
	"context"
	"database/sql"
	"fmt"

	"chatgate/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store returns the caller's API key for a provider, or "" when none is
// configured. Keys are owned by the settings surface of the surrounding
// application; this subsystem only reads them.
type Store interface {
	Get(ctx context.Context, userID uint64, provider string) (string, error)
}

type SQLStore struct {
	redis *redis.Client
	rdb   *sql.DB
	log   *zap.SugaredLogger
}

func NewSQLStore(redisClient *redis.Client, rdb *sql.DB, log *zap.SugaredLogger) *SQLStore {
	return &SQLStore{redis: redisClient, rdb: rdb, log: log}
}

func (s *SQLStore) Get(ctx context.Context, userID uint64, provider string) (string, error) {
	cacheKey := fmt.Sprintf("v1:key:%d:%s", userID, provider)
	cached, err := s.redis.Get(ctx, cacheKey).Result()
	if err == nil && cached != "" {
		return cached, nil
	}

	var apiKey string
	err = s.rdb.QueryRowContext(ctx, `
	SELECT api_key
	FROM provider_key
	WHERE user_id = ? AND provider = ?
	`, userID, provider).Scan(&apiKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		s.log.Errorw("Database error during credential lookup", "provider", provider, "error", err)
		return "", err
	}

	go func() {
		s.redis.Set(context.Background(), cacheKey, apiKey, shared.CredentialCacheTTL)
	}()
	return apiKey, nil
}
