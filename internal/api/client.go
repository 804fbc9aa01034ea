package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairdesk/client-go/internal/events"
)

// Defaults for the HTTP layer.
const (
	// DefaultTimeout bounds a single request/response exchange.
	DefaultTimeout = 30 * time.Second
	// DefaultRefreshBuffer is how close to expiry a token may get
	// before the pipeline refreshes it proactively.
	DefaultRefreshBuffer = 5 * time.Minute
)

// maxErrorBody caps how much of an error response body is read.
const maxErrorBody = 1 << 20

// TokenSource provides credentials for authenticated requests. The
// refresh coordinator implements it.
type TokenSource interface {
	// Access returns the current access token.
	Access() (token string, ok bool)
	// ExpiresWithin reports whether the current token expires inside
	// the buffer. Unknown expiry reports false.
	ExpiresWithin(buffer time.Duration) bool
	// Refresh exchanges the refresh token for a new access token,
	// deduplicating concurrent calls.
	Refresh(ctx context.Context) (string, error)
}

// Config configures the API client.
type Config struct {
	BaseURL       string
	HTTPClient    *http.Client
	Tokens        TokenSource
	Bus           *events.Bus
	RefreshBuffer time.Duration
	Logger        zerolog.Logger
}

// Client issues HTTP requests against the service, recovering from
// expired-credential failures via the token source.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	bus           *events.Bus
	refreshBuffer time.Duration
	log           zerolog.Logger
}

// NewClient creates an API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	refreshBuffer := cfg.RefreshBuffer
	if refreshBuffer <= 0 {
		refreshBuffer = DefaultRefreshBuffer
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    httpClient,
		tokens:        cfg.Tokens,
		bus:           bus,
		refreshBuffer: refreshBuffer,
		log:           cfg.Logger,
	}, nil
}

// SetTokenSource installs the token source. Called once during client
// assembly, before any request is issued; the coordinator needs the
// client's refresh endpoint, so the two are wired in two steps.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// Do executes one exchange described by req, decoding a success body
// into result when result is non-nil. On a credential-expiry failure of
// an authenticated request it refreshes through the token source and
// retries exactly once; a second 401 is terminal.
func (c *Client) Do(ctx context.Context, req *Request, result any) error {
	target, err := req.resolve(c.baseURL)
	if err != nil {
		return &Error{Kind: KindBadURL, Message: err.Error(), Err: err}
	}

	var token string
	if req.RequiresAuth {
		token, err = c.authToken(ctx)
		if err != nil {
			c.bus.Publish(events.Event{Kind: events.Unauthorized})
			return err
		}
	}

	err = c.send(ctx, req, target, token, result)
	if !req.RequiresAuth || !isUnauthorized(err) {
		return err
	}

	// Reactive path: the access token was rejected. Refresh once and
	// retry with the new token. A failed refresh, or a second 401, is
	// surfaced as terminal unauthorized.
	c.log.Debug().Str("path", req.Path).Msg("access token rejected, refreshing")
	newToken, refreshErr := c.tokens.Refresh(ctx)
	if refreshErr != nil {
		c.bus.Publish(events.Event{Kind: events.Unauthorized})
		return &Error{Kind: KindUnauthorized, Message: "token refresh failed", Err: refreshErr}
	}

	err = c.send(ctx, req, target, newToken, result)
	if isUnauthorized(err) {
		c.bus.Publish(events.Event{Kind: events.Unauthorized})
	}
	return err
}

// authToken returns the access token to attach, refreshing proactively
// when the current one is absent or expiring inside the buffer. A
// failed proactive refresh with a token still in hand falls open to the
// reactive 401 path.
func (c *Client) authToken(ctx context.Context) (string, error) {
	token, ok := c.tokens.Access()
	if !ok {
		refreshed, err := c.tokens.Refresh(ctx)
		if err != nil {
			return "", &Error{Kind: KindUnauthorized, Message: "not authenticated", Err: err}
		}
		return refreshed, nil
	}
	if c.tokens.ExpiresWithin(c.refreshBuffer) {
		refreshed, err := c.tokens.Refresh(ctx)
		if err == nil {
			return refreshed, nil
		}
		c.log.Debug().Err(err).Msg("proactive refresh failed, sending with current token")
	}
	return token, nil
}

// send performs a single HTTP exchange and classifies the outcome.
func (c *Client) send(ctx context.Context, req *Request, target, token string, result any) error {
	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindDecoding, Message: "marshal request body", Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return &Error{Kind: KindBadURL, Message: err.Error(), Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		classified := ClassifyTransport(err)
		c.log.Debug().Str("method", req.Method).Str("path", req.Path).
			Str("kind", string(classified.Kind)).Dur("elapsed", time.Since(start)).
			Msg("request failed")
		return classified
	}
	defer resp.Body.Close()

	c.log.Debug().Str("method", req.Method).Str("path", req.Path).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Classify(resp.StatusCode, resp.Header, body)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &Error{Kind: KindDecoding, Message: "decode response body", Err: err}
	}
	return nil
}

// isUnauthorized reports whether err is a classified 401. Only direct
// unauthorized responses trigger the retry protocol; wrapped refresh
// failures already are terminal.
func isUnauthorized(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Kind == KindUnauthorized && apiErr.StatusCode == http.StatusUnauthorized
}
