package middleware

import (
	"chatgate/internal/ctx"
	"chatgate/internal/shared"
	"chatgate/internal/users"

	"github.com/labstack/echo/v4"
)

// UserMiddleware attaches the session user to API requests. Best effort:
// a missing or stale session leaves c.User nil and the route's Require*
// wrapper decides what that means.
type UserMiddleware struct {
	identity users.Identity
}

func NewUserMiddleware(identity users.Identity) *UserMiddleware {
	return &UserMiddleware{identity: identity}
}

func (um *UserMiddleware) ExtractUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		c.User = nil

		token, err := shared.ExtractSessionToken(c.Request())
		if err != nil {
			return next(c)
		}
		user, err := um.identity.FromSession(c.Request().Context(), token)
		if err != nil {
			return next(c)
		}
		c.User = user
		c.LogValues.UserID = user.UserID
		c.LogValues.IsAdmin = user.IsAdmin
		c.Log = c.Log.With("user_id", user.UserID)
		return next(c)
	}
}

func (um *UserMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		if c.User == nil {
			return c.String(401, "unauthorized")
		}
		return next(c)
	}
}

func (um *UserMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*ctx.Context)
		if c.User == nil {
			return c.String(401, "unauthorized")
		}
		if !c.User.IsAdmin {
			return c.String(403, "forbidden")
		}
		return next(c)
	}
}
