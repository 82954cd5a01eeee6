// Package workspace resolves a user's designated home workspace
package workspace

import (
	"context"
	"database/sql"
	"fmt"

	"chatgate/internal/shared"

	"go.uber.org/zap"
)

type HomeStatus int

const (
	// HomeFound means exactly one home workspace exists for the user.
	HomeFound HomeStatus = iota
	// HomeNotFound covers both zero and multiple home rows. The owning
	// system guarantees exactly one per user; anything else is a
	// data-integrity violation and we never silently pick one.
	HomeNotFound
	// HomeLookupFailed means the lookup itself errored, e.g. the backend
	// was unreachable. Distinct from NotFound so callers can tell
	// "legitimately zero rows" apart from a transient failure.
	HomeLookupFailed
)

type HomeResult struct {
	Status    HomeStatus
	Workspace *shared.Workspace
	Err       error
}

// Finder is the lookup contract consumed by the gate pipeline.
type Finder interface {
	FindHome(ctx context.Context, userID uint64) HomeResult
}

type Router struct {
	rdb *sql.DB
	log *zap.SugaredLogger
}

func NewRouter(rdb *sql.DB, log *zap.SugaredLogger) *Router {
	return &Router{rdb: rdb, log: log}
}

func (r *Router) FindHome(ctx context.Context, userID uint64) HomeResult {
	rows, err := r.rdb.QueryContext(ctx, `
	SELECT id, user_id, is_home
	FROM workspace
	WHERE user_id = ? AND is_home = 1
	`, userID)
	if err != nil {
		r.log.Errorw("Home workspace lookup failed", "user_id", userID, "error", err)
		return HomeResult{Status: HomeLookupFailed, Err: fmt.Errorf("home workspace lookup: %w", err)}
	}
	defer rows.Close()

	var found []*shared.Workspace
	for rows.Next() {
		var ws shared.Workspace
		if err := rows.Scan(&ws.ID, &ws.OwnerUserID, &ws.IsHome); err != nil {
			r.log.Errorw("Failed to scan workspace row", "user_id", userID, "error", err)
			return HomeResult{Status: HomeLookupFailed, Err: fmt.Errorf("home workspace scan: %w", err)}
		}
		found = append(found, &ws)
	}
	if err := rows.Err(); err != nil {
		return HomeResult{Status: HomeLookupFailed, Err: fmt.Errorf("home workspace rows: %w", err)}
	}

	if len(found) != 1 {
		if len(found) > 1 {
			r.log.Errorw("User has multiple home workspaces", "user_id", userID, "count", len(found))
		}
		return HomeResult{Status: HomeNotFound}
	}
	return HomeResult{Status: HomeFound, Workspace: found[0]}
}
