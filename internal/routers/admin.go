package routers

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"chatgate/internal/ctx"
	"chatgate/internal/database"
	"chatgate/internal/middleware"
	"chatgate/internal/users"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AdminRouter struct {
	rdb *sql.DB
	log *zap.SugaredLogger
}

// RegisterAdminRoutes wires the admin-only JSON surface. The HTML admin
// pages live behind the gate pipeline; these endpoints back them.
func RegisterAdminRoutes(e *echo.Group, rdb *sql.DB, identity users.Identity, log *zap.SugaredLogger) error {
	ar := &AdminRouter{rdb: rdb, log: log}
	umw := middleware.NewUserMiddleware(identity)

	admin := e.Group("/api/admin", umw.ExtractUser, umw.RequireAdmin)
	admin.GET("/stats", ar.Stats)
	admin.GET("/users/:id/requests", ar.UserRequests)
	return nil
}

func (ar *AdminRouter) Stats(cc echo.Context) error {
	c := cc.(*ctx.Context)

	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := database.RecentDailyStats(reqCtx, ar.rdb, 7)
	if err != nil {
		c.LogValues.AddError(errors.Join(errors.New("failed to get daily stats"), err))
		return c.String(500, "failed to get daily stats")
	}
	return c.JSON(200, map[string]any{"data": stats})
}

func (ar *AdminRouter) UserRequests(cc echo.Context) error {
	c := cc.(*ctx.Context)

	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(400, "invalid user id")
	}

	reqCtx := c.Request().Context()
	start := time.Now()
	records, err := database.RecentRequestsForUser(reqCtx, ar.rdb, userID, 100)
	if err != nil {
		c.LogValues.AddError(errors.Join(errors.New("failed to get user requests"), err))
		return c.String(500, "failed to get user requests")
	}
	c.Log.Debugw("Fetched user requests", "user_id", userID, "count", len(records), "duration", time.Since(start).String())
	return c.JSON(200, map[string]any{"data": records})
}
