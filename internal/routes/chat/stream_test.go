package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chatgate/internal/buckets"
	"chatgate/internal/providers"
	"chatgate/internal/shared"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreds struct {
	key string
	err error
}

func (f *fakeCreds) Get(context.Context, uint64, string) (string, error) {
	return f.key, f.err
}

type countingTransport struct {
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func newTestManager(upstreamURL, key string) *Manager {
	registry := providers.NewRegistry()
	registry.Register(providers.NewOpenAI(upstreamURL))
	registry.Register(providers.NewGoogle(upstreamURL))
	log := zap.NewNop().Sugar()
	return NewManager(&fakeCreds{key: key}, registry, buckets.NewUsageCache(log, nil), log)
}

func chatReq(model string) *shared.ChatRequest {
	return &shared.ChatRequest{
		Model:       model,
		Messages:    []shared.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: 0.5,
	}
}

func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}

func openaiDeltaLine(text string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, text)
}

func TestStreamOrderedChunks(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		openaiDeltaLine("Hel"),
		openaiDeltaLine("lo"),
		openaiDeltaLine(" world"),
		"[DONE]",
	))
	defer server.Close()

	m := newTestManager(server.URL, "sk-test")
	var got []string
	result, err := m.Stream(context.Background(), 7, chatReq("gpt-3.5-turbo"), func(c shared.StreamChunk) error {
		got = append(got, c.Content)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo", " world"}, got)
	require.True(t, result.Completed)
	require.False(t, result.Canceled)
	require.Equal(t, uint64(3), result.Chunks)
	require.Greater(t, result.TimeToFirstChunk, time.Duration(0))
}

func TestStreamMissingCredential(t *testing.T) {
	m := newTestManager("http://127.0.0.1:1", "")
	transport := &countingTransport{}
	m.Transport = transport

	result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(shared.StreamChunk) error {
		t.Fatal("no chunk should be emitted")
		return nil
	})
	require.ErrorIs(t, err, ErrMissingCredential)
	require.Nil(t, result)
	// Nothing may reach the network without a credential.
	require.Zero(t, transport.calls.Load())
}

func TestStreamUnsupportedModel(t *testing.T) {
	m := newTestManager("http://127.0.0.1:1", "sk-test")
	transport := &countingTransport{}
	m.Transport = transport

	result, err := m.Stream(context.Background(), 7, chatReq("made-up-model"), func(shared.StreamChunk) error {
		return nil
	})
	require.ErrorIs(t, err, ErrUnsupportedModel)
	require.Nil(t, result)
	require.Zero(t, transport.calls.Load())
}

func TestStreamUpstreamRejection(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind providers.ErrorKind
	}{
		{
			name:     "provider reports no key",
			status:   401,
			body:     `{"error":{"message":"API Key not found."}}`,
			wantKind: providers.CredentialNotConfigured,
		},
		{
			name:     "provider rejects key",
			status:   401,
			body:     `{"error":{"message":"Incorrect API key provided"}}`,
			wantKind: providers.CredentialInvalid,
		},
		{
			name:     "provider overloaded",
			status:   503,
			body:     `{"message":"overloaded"}`,
			wantKind: providers.UpstreamError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			m := newTestManager(server.URL, "sk-test")
			result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(shared.StreamChunk) error {
				t.Fatal("no chunk should be emitted")
				return nil
			})
			require.Nil(t, result)
			var perr *providers.ProviderError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, tt.wantKind, perr.Kind)
		})
	}
}

func TestStreamUpstreamUnreachable(t *testing.T) {
	server := httptest.NewServer(sseHandler())
	server.Close()

	m := newTestManager(server.URL, "sk-test")
	result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(shared.StreamChunk) error {
		return nil
	})
	require.Nil(t, result)
	var perr *providers.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, providers.UpstreamUnreachable, perr.Kind)
}

func TestStreamEndsWithoutMarker(t *testing.T) {
	// OpenAI streams end with an explicit [DONE]; a body that just stops is
	// a truncated stream, but already delivered chunks stand.
	server := httptest.NewServer(sseHandler(
		openaiDeltaLine("par"),
		openaiDeltaLine("tial"),
	))
	defer server.Close()

	m := newTestManager(server.URL, "sk-test")
	var got []string
	result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(c shared.StreamChunk) error {
		got = append(got, c.Content)
		return nil
	})
	require.Equal(t, []string{"par", "tial"}, got)
	require.NotNil(t, result)
	require.Equal(t, uint64(2), result.Chunks)
	require.False(t, result.Completed)
	var perr *providers.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, providers.UpstreamUnreachable, perr.Kind)
}

func TestStreamEOFCompletesMarkerlessProvider(t *testing.T) {
	// Gemini has no completion marker; EOF is the clean end of stream.
	server := httptest.NewServer(sseHandler(
		`{"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"lo"}]}}]}`,
	))
	defer server.Close()

	m := newTestManager(server.URL, "key123")
	var got []string
	result, err := m.Stream(context.Background(), 7, chatReq("gemini-pro"), func(c shared.StreamChunk) error {
		got = append(got, c.Content)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo"}, got)
	require.True(t, result.Completed)
}

func TestStreamClientDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, "data: %s\n\n", openaiDeltaLine("x"))
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer server.Close()

	m := newTestManager(server.URL, "sk-test")
	clientCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chunks int
	result, err := m.Stream(clientCtx, 7, chatReq("gpt-4"), func(shared.StreamChunk) error {
		chunks++
		if chunks == 2 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.Canceled)
	require.False(t, result.Completed)
	require.GreaterOrEqual(t, result.Chunks, uint64(2))
	require.Less(t, result.Chunks, uint64(100))
}

func TestStreamIdleTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", openaiDeltaLine("Hel"))
		flusher.Flush()
		// Stall instead of producing the next chunk.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	m := newTestManager(server.URL, "sk-test")
	m.IdleChunkTimeout = 150 * time.Millisecond

	var got []string
	start := time.Now()
	result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(c shared.StreamChunk) error {
		got = append(got, c.Content)
		return nil
	})
	require.Less(t, time.Since(start), 3*time.Second)
	require.Equal(t, []string{"Hel"}, got)
	require.NotNil(t, result)
	require.False(t, result.Completed)
	var perr *providers.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, providers.UpstreamUnreachable, perr.Kind)
}

func TestStreamEmitFailureCancelsUpstream(t *testing.T) {
	server := httptest.NewServer(sseHandler(
		openaiDeltaLine("a"),
		openaiDeltaLine("b"),
		openaiDeltaLine("c"),
		"[DONE]",
	))
	defer server.Close()

	m := newTestManager(server.URL, "sk-test")
	result, err := m.Stream(context.Background(), 7, chatReq("gpt-4"), func(shared.StreamChunk) error {
		return fmt.Errorf("client write failed")
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.Canceled)
	require.Zero(t, result.Chunks)
}
