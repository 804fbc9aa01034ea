package pairdesk

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pairdesk/client-go/internal/api"
	"github.com/pairdesk/client-go/internal/auth"
	"github.com/pairdesk/client-go/internal/events"
)

// User is a PairDesk account.
type User struct {
	ID          string
	Email       string
	DisplayName string
	TimeZone    string
	CreatedAt   time.Time
}

// FocusSession is a booked coworking session.
type FocusSession struct {
	ID          string
	StartsAt    time.Time
	Duration    time.Duration
	SessionType string
	Status      string
	PartnerName string
}

// SignUpParams are the inputs for account registration.
type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
	TimeZone    string
}

// UpdateProfileParams is a partial profile update; nil fields are left
// unchanged.
type UpdateProfileParams struct {
	DisplayName *string
	TimeZone    *string
}

// ListSessionsParams bounds the session listing window. Zero values
// leave the bound open.
type ListSessionsParams struct {
	From time.Time
	To   time.Time
}

// BookSessionParams are the inputs for booking a focus session.
type BookSessionParams struct {
	StartsAt    time.Time
	Duration    time.Duration
	SessionType string
	// IdempotencyKey lets the server recognize duplicate retries of
	// the same booking. Generated when empty.
	IdempotencyKey string
}

// Client is the PairDesk API client. Safe for concurrent use; requests
// that race into an expired access token share a single refresh call.
type Client struct {
	apiClient *api.Client
	session   *auth.Session
	coord     *auth.Coordinator
	bus       *events.Bus
	log       zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a PairDesk client. Credentials persisted by a previous
// process are restored from the configured store; no network call is
// made until the first operation.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:        defaultBaseURL,
		timeout:        defaultTimeout,
		refreshBuffer:  defaultRefreshBuffer,
		refreshTimeout: defaultRefreshTimeout,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemoryStore()
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		var transport http.RoundTripper = http.DefaultTransport
		if cfg.pins != nil || cfg.pinTLS != nil {
			transport = api.NewPinnedTransport(cfg.pins, cfg.pinTLS, cfg.pinsEnforce)
		}
		httpClient = &http.Client{
			Timeout:   cfg.timeout,
			Transport: transport,
		}
	}

	bus := events.NewBus()
	session := auth.NewSession(cfg.store, cfg.logger)

	apiClient, err := api.NewClient(api.Config{
		BaseURL:       cfg.baseURL,
		HTTPClient:    httpClient,
		Bus:           bus,
		RefreshBuffer: cfg.refreshBuffer,
		Logger:        cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	// The coordinator refreshes through the public refresh endpoint of
	// the same API client, so the two are wired in two steps.
	coord := auth.NewCoordinator(session, func(ctx context.Context, refreshToken string) (auth.RefreshResult, error) {
		resp, err := apiClient.RefreshToken(ctx, refreshToken)
		if err != nil {
			return auth.RefreshResult{}, err
		}
		return auth.RefreshResult{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		}, nil
	}, bus, cfg.refreshTimeout, cfg.logger)
	apiClient.SetTokenSource(coord)

	return &Client{
		apiClient: apiClient,
		session:   session,
		coord:     coord,
		bus:       bus,
		log:       cfg.logger,
	}, nil
}

// checkClosed returns ErrClientClosed once Close has been called.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// IsAuthenticated reports whether the client holds an access token.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// SignUp registers an account and signs it in.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	resp, err := c.apiClient.SignUp(ctx, api.SignUpRequest{
		Email:       params.Email,
		Password:    params.Password,
		DisplayName: params.DisplayName,
		TimeZone:    params.TimeZone,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	c.installSession(resp)
	return userFromPayload(resp.User), nil
}

// SignIn exchanges credentials for a session. A 401 from this endpoint
// means wrong credentials and is surfaced directly; it never triggers a
// token refresh.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	resp, err := c.apiClient.SignIn(ctx, api.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, wrapError(err)
	}

	c.installSession(resp)
	return userFromPayload(resp.User), nil
}

// installSession stores the token pair and announces the sign-in.
func (c *Client) installSession(resp *api.AuthResponse) {
	c.session.Update(resp.AccessToken, resp.RefreshToken)
	c.log.Info().Msg("signed in")
	c.bus.Publish(events.Event{Kind: events.SignedIn})
	c.bus.Publish(events.Event{Kind: events.CredentialUpdated, HasToken: true})
}

// SignOut revokes the session server-side when possible and always
// clears the local credential pair. Idempotent.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	if c.session.IsAuthenticated() {
		// Best effort: local sign-out proceeds even when the server
		// call fails.
		if err := c.apiClient.SignOut(ctx); err != nil {
			c.log.Debug().Err(err).Msg("server sign-out failed")
		}
	}

	c.session.Clear()
	c.bus.Publish(events.Event{Kind: events.SignedOut})
	c.bus.Publish(events.Event{Kind: events.CredentialUpdated, HasToken: false})
	return nil
}

// Profile fetches the signed-in account.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if !c.session.IsAuthenticated() {
		if _, ok := c.session.Refresh(); !ok {
			return nil, ErrNotSignedIn
		}
	}

	payload, err := c.apiClient.GetProfile(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	return userFromPayload(payload), nil
}

// UpdateProfile applies a partial profile update.
func (c *Client) UpdateProfile(ctx context.Context, params UpdateProfileParams) (*User, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	payload, err := c.apiClient.UpdateProfile(ctx, api.UpdateProfileRequest{
		DisplayName: params.DisplayName,
		TimeZone:    params.TimeZone,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return userFromPayload(payload), nil
}

// ListSessions returns booked sessions overlapping the window.
func (c *Client) ListSessions(ctx context.Context, params ListSessionsParams) ([]FocusSession, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	payloads, err := c.apiClient.ListSessions(ctx, params.From, params.To)
	if err != nil {
		return nil, wrapError(err)
	}

	sessions := make([]FocusSession, 0, len(payloads))
	for _, p := range payloads {
		sessions = append(sessions, sessionFromPayload(&p))
	}
	return sessions, nil
}

// BookSession books a focus session. The booking carries an
// Idempotency-Key header so a retried call cannot double-book.
func (c *Client) BookSession(ctx context.Context, params BookSessionParams) (*FocusSession, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	key := params.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	payload, err := c.apiClient.CreateSession(ctx, api.CreateSessionRequest{
		StartsAt:        params.StartsAt,
		DurationMinutes: int(params.Duration / time.Minute),
		SessionType:     params.SessionType,
	}, key)
	if err != nil {
		return nil, wrapError(err)
	}

	session := sessionFromPayload(payload)
	return &session, nil
}

// CancelSession cancels a booked session.
func (c *Client) CancelSession(ctx context.Context, sessionID string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return wrapError(c.apiClient.DeleteSession(ctx, sessionID))
}

// Close releases resources and detaches all event subscribers. The
// credential pair stays in the store so a later client can restore it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.bus.Clear()
	return nil
}

func userFromPayload(p *api.UserPayload) *User {
	if p == nil {
		return nil
	}
	return &User{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		TimeZone:    p.TimeZone,
		CreatedAt:   p.CreatedAt,
	}
}

func sessionFromPayload(p *api.SessionPayload) FocusSession {
	return FocusSession{
		ID:          p.ID,
		StartsAt:    p.StartsAt,
		Duration:    time.Duration(p.DurationMinutes) * time.Minute,
		SessionType: p.SessionType,
		Status:      p.Status,
		PartnerName: p.PartnerName,
	}
}
