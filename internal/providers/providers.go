// Package providers holds the closed set of upstream model providers the
// gateway can stream from, the static per-model output limits, and the
// classification of provider failures.
package providers

import (
	"context"
	"net/http"

	"chatgate/internal/shared"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Adapter converts a normalized chat request into one provider's transport
// request and decodes its incremental framing back into plain text deltas.
// Adapters are selected by the model's provider field, never by sniffing
// response shapes.
type Adapter interface {
	Name() string
	// BuildRequest constructs the streaming upstream request. It performs
	// no I/O.
	BuildRequest(ctx context.Context, req *shared.ChatRequest, credential string) (*http.Request, error)
	// DecodeDelta decodes one line of the provider's stream framing.
	// ok is false for lines that carry no text (keepalives, metadata).
	DecodeDelta(line string) (delta string, done bool, ok bool)
	// HasEndMarker reports whether the provider emits an explicit
	// completion marker. When false, EOF is the clean end of stream.
	HasEndMarker() bool
}

type ModelInfo struct {
	ID              string `json:"id"`
	Provider        string `json:"provider"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

// models is the static per-model output limit table. Callers never control
// max output tokens; unknown models are rejected before any upstream call.
var models = map[string]ModelInfo{
	"gpt-3.5-turbo":            {ID: "gpt-3.5-turbo", Provider: ProviderOpenAI, MaxOutputTokens: 4096},
	"gpt-4":                    {ID: "gpt-4", Provider: ProviderOpenAI, MaxOutputTokens: 4096},
	"gpt-4-turbo-preview":      {ID: "gpt-4-turbo-preview", Provider: ProviderOpenAI, MaxOutputTokens: 4096},
	"claude-2.1":               {ID: "claude-2.1", Provider: ProviderAnthropic, MaxOutputTokens: 4096},
	"claude-3-sonnet-20240229": {ID: "claude-3-sonnet-20240229", Provider: ProviderAnthropic, MaxOutputTokens: 4096},
	"claude-3-opus-20240229":   {ID: "claude-3-opus-20240229", Provider: ProviderAnthropic, MaxOutputTokens: 4096},
	"gemini-pro":               {ID: "gemini-pro", Provider: ProviderGoogle, MaxOutputTokens: 8192},
	"gemini-1.5-pro-latest":    {ID: "gemini-1.5-pro-latest", Provider: ProviderGoogle, MaxOutputTokens: 8192},
}

func ForModel(model string) (ModelInfo, bool) {
	info, ok := models[model]
	return info, ok
}

// ListModels returns the model table in stable order for the models
// endpoint.
func ListModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, p := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle} {
		for _, id := range []string{
			"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo-preview",
			"claude-2.1", "claude-3-sonnet-20240229", "claude-3-opus-20240229",
			"gemini-pro", "gemini-1.5-pro-latest",
		} {
			if info := models[id]; info.Provider == p {
				out = append(out, info)
			}
		}
	}
	return out
}

// Registry is the closed adapter set keyed by provider name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	r.Register(NewOpenAI(OpenAIBaseURL))
	r.Register(NewAnthropic(AnthropicBaseURL))
	r.Register(NewGoogle(GoogleBaseURL))
	return r
}

// Register replaces the adapter for its provider name. Tests use this to
// point an adapter at a local upstream.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) ForProvider(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}
