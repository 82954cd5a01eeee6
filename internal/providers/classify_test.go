package providers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		message    string
		wantKind   ErrorKind
		wantStatus int
	}{
		{
			// The message rule wins over the 401 status rule.
			name:       "key not found message on 401",
			status:     401,
			message:    "API Key not found.",
			wantKind:   CredentialNotConfigured,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "key not found message on 400",
			status:     400,
			message:    "api key not found for this account",
			wantKind:   CredentialNotConfigured,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "plain 401",
			status:     401,
			message:    "invalid request",
			wantKind:   CredentialInvalid,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "server error keeps original status",
			status:     503,
			message:    "connection reset",
			wantKind:   UpstreamError,
			wantStatus: 503,
		},
		{
			name:       "rate limit keeps original status",
			status:     429,
			message:    "rate limit exceeded",
			wantKind:   UpstreamError,
			wantStatus: 429,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.message)
			require.Equal(t, tt.wantKind, got.Kind)
			require.Equal(t, tt.wantStatus, got.StatusCode)
			require.NotEmpty(t, got.Message)
		})
	}
}

func TestClassifyUpstreamErrorKeepsMessage(t *testing.T) {
	got := Classify(503, "connection reset")
	require.Equal(t, "connection reset", got.Message)
}

func TestClassifyTransport(t *testing.T) {
	got := ClassifyTransport(errors.New("dial tcp: connection refused"))
	require.Equal(t, UpstreamUnreachable, got.Kind)
	require.Equal(t, http.StatusInternalServerError, got.StatusCode)
	require.Contains(t, got.Message, "connection refused")

	got = ClassifyTransport(nil)
	require.Equal(t, UpstreamUnreachable, got.Kind)
	require.NotEmpty(t, got.Message)
}
