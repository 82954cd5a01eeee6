// Package routers
package routers

import (
	"database/sql"

	"chatgate/internal/buckets"
	"chatgate/internal/credentials"
	"chatgate/internal/middleware"
	"chatgate/internal/providers"
	"chatgate/internal/routes/chat"
	"chatgate/internal/users"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RegisterChatRoutes wires the chat proxy API. The returned closer drains
// the usage cache; callers invoke it on shutdown.
func RegisterChatRoutes(e *echo.Group, wdb *sql.DB, rdb *sql.DB, redisClient *redis.Client, identity users.Identity, log *zap.SugaredLogger) (func(), error) {
	creds := credentials.NewSQLStore(redisClient, rdb, log)
	registry := providers.NewRegistry()
	usageCache := buckets.NewUsageCache(log, wdb)
	manager := chat.NewManager(creds, registry, usageCache, log)

	umw := middleware.NewUserMiddleware(identity)

	api := e.Group("/api")
	extractUser := api.Group("", umw.ExtractUser)
	requireUser := api.Group("", umw.ExtractUser, umw.RequireUser)

	extractUser.GET("/models", manager.Models)
	requireUser.POST("/chat", manager.ChatRequest)

	return manager.ShutDown, nil
}
