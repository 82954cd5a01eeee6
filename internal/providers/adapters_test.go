package providers

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"chatgate/internal/shared"

	"github.com/stretchr/testify/require"
)

func testChatRequest() *shared.ChatRequest {
	return &shared.ChatRequest{
		Model: "test-model",
		Messages: []shared.ChatMessage{
			{Role: "system", Content: "You are helpful."},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "bye"},
		},
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

func TestOpenAIBuildRequest(t *testing.T) {
	a := NewOpenAI("https://upstream.test")
	r, err := a.BuildRequest(context.Background(), testChatRequest(), "sk-test")
	require.NoError(t, err)

	require.Equal(t, "https://upstream.test/v1/chat/completions", r.URL.String())
	require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
	require.Equal(t, "application/json", r.Header.Get("Content-Type"))

	var body openaiRequest
	raw, _ := io.ReadAll(r.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	require.True(t, body.Stream)
	require.Equal(t, 4096, body.MaxTokens)
	require.Len(t, body.Messages, 4)
}

func TestOpenAIDecodeDelta(t *testing.T) {
	a := NewOpenAI(OpenAIBaseURL)

	delta, done, ok := a.DecodeDelta(`data: {"choices":[{"delta":{"content":"Hel"}}]}`)
	require.True(t, ok)
	require.False(t, done)
	require.Equal(t, "Hel", delta)

	_, done, ok = a.DecodeDelta("data: [DONE]")
	require.True(t, ok)
	require.True(t, done)

	_, _, ok = a.DecodeDelta(`data: {"choices":[{"delta":{}}]}`)
	require.False(t, ok)

	_, _, ok = a.DecodeDelta(": keepalive")
	require.False(t, ok)
}

func TestAnthropicBuildRequest(t *testing.T) {
	a := NewAnthropic("https://upstream.test")
	r, err := a.BuildRequest(context.Background(), testChatRequest(), "sk-ant")
	require.NoError(t, err)

	require.Equal(t, "https://upstream.test/v1/messages", r.URL.String())
	require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
	require.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

	var body anthropicRequest
	raw, _ := io.ReadAll(r.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	// The system message moves out of band.
	require.Equal(t, "You are helpful.", body.System)
	require.Len(t, body.Messages, 3)
	for _, m := range body.Messages {
		require.NotEqual(t, "system", m.Role)
	}
}

func TestAnthropicDecodeDelta(t *testing.T) {
	a := NewAnthropic(AnthropicBaseURL)

	delta, done, ok := a.DecodeDelta(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`)
	require.True(t, ok)
	require.False(t, done)
	require.Equal(t, "lo", delta)

	_, done, ok = a.DecodeDelta(`data: {"type":"message_stop"}`)
	require.True(t, ok)
	require.True(t, done)

	_, _, ok = a.DecodeDelta(`data: {"type":"message_start"}`)
	require.False(t, ok)

	_, _, ok = a.DecodeDelta(`event: content_block_delta`)
	require.False(t, ok)
}

func TestGoogleBuildRequest(t *testing.T) {
	g := NewGoogle("https://upstream.test")
	req := testChatRequest()
	req.Model = "gemini-pro"
	r, err := g.BuildRequest(context.Background(), req, "key123")
	require.NoError(t, err)

	require.Equal(t, "/v1beta/models/gemini-pro:streamGenerateContent", r.URL.Path)
	require.Equal(t, "sse", r.URL.Query().Get("alt"))
	require.Equal(t, "key123", r.URL.Query().Get("key"))

	var body googleRequest
	raw, _ := io.ReadAll(r.Body)
	require.NoError(t, json.Unmarshal(raw, &body))
	require.NotNil(t, body.SystemInstruction)
	require.Len(t, body.Contents, 3)
	require.Equal(t, "model", body.Contents[1].Role)
}

func TestGoogleDecodeDelta(t *testing.T) {
	g := NewGoogle(GoogleBaseURL)

	delta, done, ok := g.DecodeDelta(`data: {"candidates":[{"content":{"parts":[{"text":"Hel"},{"text":"lo"}]}}]}`)
	require.True(t, ok)
	require.False(t, done)
	require.Equal(t, "Hello", delta)

	_, _, ok = g.DecodeDelta(`data: {"candidates":[]}`)
	require.False(t, ok)

	require.False(t, g.HasEndMarker())
}

func TestForModel(t *testing.T) {
	info, ok := ForModel("gpt-4")
	require.True(t, ok)
	require.Equal(t, ProviderOpenAI, info.Provider)
	require.Equal(t, 4096, info.MaxOutputTokens)

	_, ok = ForModel("made-up-model")
	require.False(t, ok)
}

func TestListModelsStableOrder(t *testing.T) {
	first := ListModels()
	second := ListModels()
	require.Equal(t, first, second)
	require.Len(t, first, 8)
	require.Equal(t, "gpt-3.5-turbo", first[0].ID)
}
