package shared

import (
	"fmt"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSettings is the client-facing knob set. Max output tokens never come
// from the caller; they come from the static model table.
type ChatSettings struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
}

type ChatBody struct {
	ChatSettings ChatSettings  `json:"chatSettings"`
	Messages     []ChatMessage `json:"messages"`
}

// ChatRequest is the normalized, immutable request handed to the stream
// proxy after validation.
type ChatRequest struct {
	Model           string
	Messages        []ChatMessage
	Temperature     float32
	MaxOutputTokens int
}

// StreamChunk is one unit of decoded assistant output, delivered in
// upstream receipt order.
type StreamChunk struct {
	Content string
}

type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

type UserMetadata struct {
	UserID  uint64 `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

type Workspace struct {
	ID          string
	OwnerUserID uint64
	IsHome      bool
}

// StreamUsage captures what we know about one proxied stream for
// accounting. Token counts are not reported uniformly across providers so
// we track chunk counts instead.
type StreamUsage struct {
	UserID           uint64
	Model            string
	Provider         string
	Chunks           uint64
	TimeToFirstChunk time.Duration
	TotalTime        time.Duration
	Completed        bool
	Canceled         bool
	CreatedAt        time.Time
}
