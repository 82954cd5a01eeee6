// Package shared
package shared

import (
	"fmt"
	"net/http"
	"os"
)

func SafeEnv(env string) (string, error) {
	// Lookup env variable, and error if not present
	res, present := os.LookupEnv(env)
	if !present {
		return "", fmt.Errorf("missing environment variable %s", env)
	}
	return res, nil
}

func GetEnv(env, fallback string) string {
	if value, ok := os.LookupEnv(env); ok {
		return value
	}
	return fallback
}

// ExtractSessionToken reads the opaque session credential from the request
// cookie. The gateway only ever reads it; the identity provider owns its
// lifecycle.
func ExtractSessionToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", ErrMissingSession
	}
	if cookie.Value == "" {
		return "", ErrMissingSession
	}
	return cookie.Value, nil
}
