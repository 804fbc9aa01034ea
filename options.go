package pairdesk

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.pairdesk.com"
	// defaultTimeout bounds a single request/response exchange.
	defaultTimeout = 30 * time.Second
	// defaultRefreshBuffer is how close to expiry an access token may
	// get before it is refreshed proactively.
	defaultRefreshBuffer = 5 * time.Minute
	// defaultRefreshTimeout bounds the shared refresh HTTP call.
	defaultRefreshTimeout = 30 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	refreshBuffer  time.Duration
	refreshTimeout time.Duration
	store          CredentialStore
	logger         zerolog.Logger

	pins        map[string][]string
	pinTLS      *tls.Config
	pinsEnforce bool
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout and
// the pinned transport; callers taking this route own their TLS setup.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout. Default 30s.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRefreshBuffer sets how close to expiry an access token may get
// before a request refreshes it proactively. Default 5 minutes.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(c *clientConfig) {
		c.refreshBuffer = buffer
	}
}

// WithRefreshTimeout bounds the shared token refresh call. Default 30s.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.refreshTimeout = timeout
	}
}

// WithCredentialStore sets the store that mirrors the credential pair.
// The store is read once at construction to restore a previous
// session. Default is an in-memory store.
func WithCredentialStore(store CredentialStore) Option {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithLogger sets the structured logger. Default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithPinnedKeys enables TLS public-key pinning. pins maps a domain to
// the base64 SHA-256 hashes of the public keys it may present; a
// handshake that matches none of them is aborted. tlsConfig may be nil.
func WithPinnedKeys(pins map[string][]string, tlsConfig *tls.Config) Option {
	return func(c *clientConfig) {
		c.pins = pins
		c.pinTLS = tlsConfig
		c.pinsEnforce = true
	}
}

// WithoutPinEnforcement disables pin checking while keeping standard
// TLS verification. For development builds against local or staging
// endpoints only; production builds must not use it.
func WithoutPinEnforcement() Option {
	return func(c *clientConfig) {
		c.pinsEnforce = false
	}
}
