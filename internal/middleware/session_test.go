package middleware

import (
	"net/http"
	"testing"

	"chatgate/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestExtractUser(t *testing.T) {
	um := NewUserMiddleware(&fakeIdentity{users: map[string]*shared.UserMetadata{
		"member-token": {UserID: 2, Email: "member@test"},
	}})

	t.Run("valid session attaches the user", func(t *testing.T) {
		c, _ := newGateContext(t, gateRequest("/api/chat", "member-token"))
		err := um.ExtractUser(func(echo.Context) error { return nil })(c)
		require.NoError(t, err)
		require.NotNil(t, c.User)
		require.Equal(t, uint64(2), c.User.UserID)
		require.Equal(t, uint64(2), c.LogValues.UserID)
	})

	t.Run("missing session leaves user nil", func(t *testing.T) {
		c, _ := newGateContext(t, gateRequest("/api/chat", ""))
		err := um.ExtractUser(func(echo.Context) error { return nil })(c)
		require.NoError(t, err)
		require.Nil(t, c.User)
	})

	t.Run("stale session leaves user nil", func(t *testing.T) {
		c, _ := newGateContext(t, gateRequest("/api/chat", "expired"))
		err := um.ExtractUser(func(echo.Context) error { return nil })(c)
		require.NoError(t, err)
		require.Nil(t, c.User)
	})
}

func TestRequireUser(t *testing.T) {
	um := NewUserMiddleware(&fakeIdentity{})

	c, rec := newGateContext(t, gateRequest("/api/chat", ""))
	err := um.RequireUser(func(echo.Context) error { return nil })(c)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	called := false
	c, _ = newGateContext(t, gateRequest("/api/chat", ""))
	c.User = &shared.UserMetadata{UserID: 2}
	err = um.RequireUser(func(echo.Context) error { called = true; return nil })(c)
	require.NoError(t, err)
	require.True(t, called)
}

func TestRequireAdmin(t *testing.T) {
	um := NewUserMiddleware(&fakeIdentity{})

	c, rec := newGateContext(t, gateRequest("/api/admin/stats", ""))
	err := um.RequireAdmin(func(echo.Context) error { return nil })(c)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newGateContext(t, gateRequest("/api/admin/stats", ""))
	c.User = &shared.UserMetadata{UserID: 2}
	err = um.RequireAdmin(func(echo.Context) error { return nil })(c)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, rec.Code)

	called := false
	c, _ = newGateContext(t, gateRequest("/api/admin/stats", ""))
	c.User = &shared.UserMetadata{UserID: 1, IsAdmin: true}
	err = um.RequireAdmin(func(echo.Context) error { called = true; return nil })(c)
	require.NoError(t, err)
	require.True(t, called)
}
