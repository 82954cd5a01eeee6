// Package chat includes the chat-completion proxy routes and streaming core
package chat

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chatgate/internal/buckets"
	"chatgate/internal/credentials"
	"chatgate/internal/providers"
	"chatgate/internal/shared"

	"go.uber.org/zap"
)

var (
	// ErrMissingCredential is returned before any upstream call when the
	// caller has no key configured for the target provider.
	ErrMissingCredential = &shared.RequestError{
		StatusCode: 400,
		Err:        errors.New("API key not found. Add your provider key in profile settings."),
	}
	// ErrUnsupportedModel is returned for models outside the static table.
	ErrUnsupportedModel = &shared.RequestError{
		StatusCode: 400,
		Err:        errors.New("unsupported model"),
	}
)

type Manager struct {
	Credentials credentials.Store
	Registry    *providers.Registry
	Log         *zap.SugaredLogger

	// Transport overrides the dial-timeout transport when set; tests use
	// it to count upstream calls.
	Transport http.RoundTripper

	ConnectTimeout   time.Duration
	IdleChunkTimeout time.Duration

	httpClients  map[string]*http.Client
	clientsMutex sync.RWMutex
	usageCache   *buckets.UsageCache
}

func NewManager(creds credentials.Store, registry *providers.Registry, usageCache *buckets.UsageCache, log *zap.SugaredLogger) *Manager {
	return &Manager{
		Credentials:      creds,
		Registry:         registry,
		Log:              log,
		ConnectTimeout:   shared.DefaultConnectTimeout,
		IdleChunkTimeout: shared.DefaultIdleChunkTimeout,
		httpClients:      make(map[string]*http.Client),
		usageCache:       usageCache,
	}
}

func (m *Manager) getHTTPClient(upstreamURL string) *http.Client {
	parsedURL, err := url.Parse(upstreamURL)
	if err != nil {
		m.Log.Warnw("Failed to parse upstream URL, using full URL as key", "url", upstreamURL, "error", err)
		parsedURL = &url.URL{Host: upstreamURL}
	}
	host := parsedURL.Host

	m.clientsMutex.RLock()
	if client, exists := m.httpClients[host]; exists {
		m.clientsMutex.RUnlock()
		return client
	}
	m.clientsMutex.RUnlock()

	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if client, exists := m.httpClients[host]; exists {
		return client
	}

	transport := m.Transport
	if transport == nil {
		transport = &http.Transport{
			Dial: (&net.Dialer{
				Timeout: m.ConnectTimeout,
			}).Dial,
			TLSHandshakeTimeout: m.ConnectTimeout,
			DisableKeepAlives:   false,
		}
	}
	// No overall client timeout: streams are bounded by the idle-chunk
	// timer instead.
	client := &http.Client{Transport: transport}

	m.httpClients[host] = client
	return client
}

func (m *Manager) ShutDown() {
	if m.usageCache != nil {
		m.usageCache.Shutdown()
	}
}
