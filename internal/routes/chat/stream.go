package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"chatgate/internal/providers"
	"chatgate/internal/shared"

	"go.uber.org/zap"
)

// StreamResult summarizes one proxied stream for accounting. It is
// returned even when the stream terminated with an error so already
// delivered chunks are accounted for.
type StreamResult struct {
	Provider         string
	Chunks           uint64
	TimeToFirstChunk time.Duration
	TotalTime        time.Duration
	Completed        bool
	Canceled         bool
}

// Stream forwards a normalized chat request to the model's provider and
// emits decoded deltas through emit in receipt order. Chunk i is never
// emitted before chunk i-1 and chunks are never buffered, batched, or
// deduplicated. The returned error is either a *shared.RequestError (no
// upstream call was made) or a *providers.ProviderError (classified
// upstream failure). A nil result with a non-nil error means nothing was
// emitted; a non-nil result with a non-nil error is a partial stream.
func (m *Manager) Stream(ctx context.Context, userID uint64, req *shared.ChatRequest, emit func(shared.StreamChunk) error) (*StreamResult, error) {
	log := m.Log.With("model", req.Model, "user_id", userID)
	startTime := time.Now()

	info, ok := providers.ForModel(req.Model)
	if !ok {
		log.Infow("Rejecting unknown model")
		return nil, ErrUnsupportedModel
	}
	adapter, ok := m.Registry.ForProvider(info.Provider)
	if !ok {
		log.Errorw("No adapter registered for provider", "provider", info.Provider)
		return nil, shared.ErrInternalServerError
	}
	log = log.With("provider", info.Provider)

	credential, err := m.Credentials.Get(ctx, userID, info.Provider)
	if err != nil {
		log.Errorw("Credential lookup failed", "error", err)
		return nil, shared.ErrInternalServerError
	}
	if credential == "" {
		return nil, ErrMissingCredential
	}

	// The request is immutable once constructed; the output cap comes from
	// the static table, never the caller.
	upstream := *req
	upstream.MaxOutputTokens = info.MaxOutputTokens

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r, err := adapter.BuildRequest(streamCtx, &upstream, credential)
	if err != nil {
		log.Errorw("Failed building upstream request", "error", err)
		return nil, shared.ErrInternalServerError
	}

	httpClient := m.getHTTPClient(r.URL.String())
	res, err := httpClient.Do(r)
	if err != nil {
		if ctx.Err() == context.Canceled {
			log.Warnw("Client disconnected before upstream connect")
			return &StreamResult{Provider: info.Provider, Canceled: true, TotalTime: time.Since(startTime)}, nil
		}
		log.Errorw("Upstream connect failed", "error", err)
		return nil, providers.ClassifyTransport(err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			log.Warnw("Failed to close upstream body", "error", closeErr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		message := readErrorMessage(res.Body)
		perr := providers.Classify(res.StatusCode, message)
		log.Warnw("Upstream rejected request",
			"status_code", res.StatusCode,
			"kind", perr.Kind.String(),
			"upstream_message", message)
		return nil, perr
	}

	return m.readStream(streamCtx, cancel, ctx, adapter, info.Provider, res.Body, emit, startTime, log)
}

func (m *Manager) readStream(
	streamCtx context.Context,
	cancel context.CancelFunc,
	clientCtx context.Context,
	adapter providers.Adapter,
	provider string,
	body io.Reader,
	emit func(shared.StreamChunk) error,
	startTime time.Time,
	log *zap.SugaredLogger,
) (*StreamResult, error) {
	result := &StreamResult{Provider: provider}

	// Once streaming has started an idle-chunk timer bounds the wait for
	// the next line; a stalled upstream terminates the stream instead of
	// hanging forever.
	var idleFired atomic.Bool
	idleTimer := time.AfterFunc(m.IdleChunkTimeout, func() {
		idleFired.Store(true)
		cancel()
	})
	defer idleTimer.Stop()

	var ttfcRecorded bool
	reader := bufio.NewScanner(body)

scanner:
	for reader.Scan() {
		idleTimer.Reset(m.IdleChunkTimeout)

		if clientCtx.Err() != nil {
			// The consumer is gone: stop reading and release the upstream
			// connection promptly.
			log.Warnw("Client disconnected during streaming, aborting upstream read")
			result.Canceled = true
			break scanner
		}

		line := reader.Text()
		if line == "" {
			continue
		}

		delta, done, ok := adapter.DecodeDelta(line)
		if !ok {
			continue
		}
		if done {
			result.Completed = true
			break scanner
		}

		if !ttfcRecorded {
			result.TimeToFirstChunk = time.Since(startTime)
			ttfcRecorded = true
			log.Infow("First chunk received", "ttfc_ms", result.TimeToFirstChunk.Milliseconds())
		}

		if err := emit(shared.StreamChunk{Content: delta}); err != nil {
			log.Warnw("Client write failed, aborting upstream read", "error", err)
			result.Canceled = true
			break scanner
		}
		result.Chunks++
	}

	result.TotalTime = time.Since(startTime)

	if err := reader.Err(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("Upstream read failed mid-stream", "error", err, "chunks", result.Chunks)
		return result, providers.ClassifyTransport(err)
	}

	if idleFired.Load() && !result.Completed && !result.Canceled {
		log.Errorw("Idle stream timeout", "chunks", result.Chunks)
		return result, providers.ClassifyTransport(errors.New("no chunk received within idle timeout"))
	}

	if clientCtx.Err() != nil {
		result.Canceled = true
	}

	if !result.Completed && !result.Canceled {
		if !adapter.HasEndMarker() {
			// Providers without a completion marker end cleanly at EOF.
			result.Completed = true
		} else {
			log.Errorw("Stream ended without completion marker", "chunks", result.Chunks)
			return result, providers.ClassifyTransport(errors.New("stream ended without completion marker"))
		}
	}

	log.Infow("Stream finished",
		"completed", result.Completed,
		"canceled", result.Canceled,
		"chunks", result.Chunks,
		"ttfc_ms", result.TimeToFirstChunk.Milliseconds(),
		"total_ms", result.TotalTime.Milliseconds())
	return result, nil
}

// readErrorMessage extracts a human-readable message from an upstream
// error body. Providers disagree on the envelope so we try the common
// shapes before falling back to the raw body.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.Error.Message != "" {
			return nested.Error.Message
		}
		if nested.Message != "" {
			return nested.Message
		}
	}
	return string(raw)
}
