package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"chatgate/internal/shared"
)

const (
	AnthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
)

type Anthropic struct {
	baseURL string
}

func NewAnthropic(baseURL string) *Anthropic {
	return &Anthropic{baseURL: baseURL}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) HasEndMarker() bool { return true }

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []shared.ChatMessage `json:"messages"`
	Temperature float32              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

func (a *Anthropic) BuildRequest(ctx context.Context, req *shared.ChatRequest, credential string) (*http.Request, error) {
	// Anthropic takes the system prompt out of band.
	var system string
	messages := make([]shared.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, m)
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("x-api-key", credential)
	r.Header.Set("anthropic-version", anthropicAPIVersion)
	return r, nil
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (a *Anthropic) DecodeDelta(line string) (string, bool, bool) {
	if !strings.HasPrefix(line, "data: ") {
		return "", false, false
	}
	var event anthropicEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
		return "", false, false
	}
	switch event.Type {
	case "message_stop":
		return "", true, true
	case "content_block_delta":
		if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
			return "", false, false
		}
		return event.Delta.Text, false, true
	}
	return "", false, false
}
