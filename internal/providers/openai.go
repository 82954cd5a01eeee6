package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"chatgate/internal/shared"
)

const OpenAIBaseURL = "https://api.openai.com"

type OpenAI struct {
	baseURL string
}

func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: baseURL}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) HasEndMarker() bool { return true }

type openaiRequest struct {
	Model       string               `json:"model"`
	Messages    []shared.ChatMessage `json:"messages"`
	Temperature float32              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Stream      bool                 `json:"stream"`
}

func (o *OpenAI) BuildRequest(ctx context.Context, req *shared.ChatRequest, credential string) (*http.Request, error) {
	body, err := json.Marshal(openaiRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxOutputTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer "+credential)
	return r, nil
}

type openaiDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (o *OpenAI) DecodeDelta(line string) (string, bool, bool) {
	if !strings.HasPrefix(line, "data: ") {
		return "", false, false
	}
	payload := strings.TrimPrefix(line, "data: ")
	if payload == "[DONE]" {
		return "", true, true
	}
	var chunk openaiDelta
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false, false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return "", false, false
	}
	return chunk.Choices[0].Delta.Content, false, true
}
