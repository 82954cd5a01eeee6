package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chatgate/internal/shared"
)

const GoogleBaseURL = "https://generativelanguage.googleapis.com"

type Google struct {
	baseURL string
}

func NewGoogle(baseURL string) *Google {
	return &Google{baseURL: baseURL}
}

func (g *Google) Name() string { return ProviderGoogle }

// Gemini streams have no completion marker; the SSE body just ends.
func (g *Google) HasEndMarker() bool { return false }

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float32 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

func (g *Google) BuildRequest(ctx context.Context, req *shared.ChatRequest, credential string) (*http.Request, error) {
	payload := googleRequest{}
	payload.GenerationConfig.Temperature = req.Temperature
	payload.GenerationConfig.MaxOutputTokens = req.MaxOutputTokens
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			payload.SystemInstruction = &googleContent{Parts: []googlePart{{Text: m.Content}}}
		case "assistant":
			payload.Contents = append(payload.Contents, googleContent{Role: "model", Parts: []googlePart{{Text: m.Content}}})
		default:
			payload.Contents = append(payload.Contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Content}}})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", g.baseURL, req.Model, credential)
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	return r, nil
}

type googleChunk struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Google) DecodeDelta(line string) (string, bool, bool) {
	if !strings.HasPrefix(line, "data: ") {
		return "", false, false
	}
	var chunk googleChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
		return "", false, false
	}
	if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
		return "", false, false
	}
	var sb strings.Builder
	for _, p := range chunk.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", false, false
	}
	return sb.String(), false, true
}
