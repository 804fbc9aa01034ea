package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairdesk/client-go/internal/events"
)

// ErrNoRefreshToken is returned by Refresh when the session holds no
// refresh token. No network call is made in that case.
var ErrNoRefreshToken = errors.New("no refresh token")

// DefaultRefreshTimeout bounds a single refresh HTTP call. The timeout
// belongs to the refresh itself, not to any individual waiter.
const DefaultRefreshTimeout = 30 * time.Second

// RefreshResult carries the tokens returned by the refresh endpoint.
// RefreshToken is empty when the server did not rotate it.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// RefreshFunc performs the actual refresh HTTP exchange. Wired by the
// client to the public refresh endpoint.
type RefreshFunc func(ctx context.Context, refreshToken string) (RefreshResult, error)

// ticket is the single in-flight refresh. All concurrent callers attach
// to the same ticket and observe the identical outcome.
type ticket struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int

	// token and err are written once, before done is closed.
	token string
	err   error
}

// Coordinator deduplicates concurrent refresh attempts into one network
// call. At most one refresh HTTP call is in flight at any instant.
type Coordinator struct {
	mu      sync.Mutex
	current *ticket

	session *Session
	refresh RefreshFunc
	bus     *events.Bus
	timeout time.Duration
	log     zerolog.Logger
}

// NewCoordinator creates a refresh coordinator over the given session.
func NewCoordinator(session *Session, refresh RefreshFunc, bus *events.Bus, timeout time.Duration, log zerolog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Coordinator{
		session: session,
		refresh: refresh,
		bus:     bus,
		timeout: timeout,
		log:     log,
	}
}

// Access returns the current access token.
func (c *Coordinator) Access() (string, bool) {
	return c.session.Access()
}

// ExpiresWithin reports whether the current access token expires inside
// the buffer. Returns false when no token is held or its expiry cannot
// be decoded.
func (c *Coordinator) ExpiresWithin(buffer time.Duration) bool {
	token, ok := c.session.Access()
	if !ok {
		return false
	}
	return ExpiresWithin(token, buffer, time.Now())
}

// Refresh exchanges the refresh token for a new access token. Safe to
// call concurrently: if a refresh is already in flight the caller waits
// for its result instead of starting another one.
//
// Cancelling the caller's context detaches that caller only; the shared
// refresh keeps running for the remaining waiters and is abandoned once
// the last waiter has gone away. The refresh call itself is bounded by
// the coordinator's timeout.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if t := c.current; t != nil {
		t.waiters++
		c.mu.Unlock()
		return c.wait(ctx, t)
	}

	refreshToken, ok := c.session.Refresh()
	if !ok {
		c.mu.Unlock()
		return "", ErrNoRefreshToken
	}

	refreshCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	t := &ticket{
		done:    make(chan struct{}),
		cancel:  cancel,
		waiters: 1,
	}
	c.current = t
	c.mu.Unlock()

	go c.run(refreshCtx, t, refreshToken)

	return c.wait(ctx, t)
}

// run performs the single refresh exchange and resolves the ticket.
func (c *Coordinator) run(ctx context.Context, t *ticket, refreshToken string) {
	defer t.cancel()

	result, err := c.refresh(ctx, refreshToken)

	c.mu.Lock()
	if err != nil {
		t.err = err
	} else {
		// Session mutation happens while the ticket is still current,
		// so a caller arriving now either sees the ticket or the
		// already-updated session.
		c.session.Update(result.AccessToken, result.RefreshToken)
		t.token = result.AccessToken
	}
	c.current = nil
	c.mu.Unlock()

	close(t.done)

	if err != nil {
		c.log.Warn().Err(err).Msg("token refresh failed")
		c.bus.Publish(events.Event{Kind: events.Unauthorized})
		return
	}
	c.log.Debug().Msg("token refresh succeeded")
	c.bus.Publish(events.Event{Kind: events.CredentialUpdated, HasToken: true})
}

// wait blocks until the ticket resolves or the caller's context is done.
func (c *Coordinator) wait(ctx context.Context, t *ticket) (string, error) {
	select {
	case <-t.done:
		return t.token, t.err
	case <-ctx.Done():
		c.detach(t)
		return "", ctx.Err()
	}
}

// detach removes a cancelled waiter from the ticket. The last waiter to
// leave cancels the underlying refresh call.
func (c *Coordinator) detach(t *ticket) {
	c.mu.Lock()
	t.waiters--
	abandon := t.waiters <= 0 && c.current == t
	c.mu.Unlock()

	if abandon {
		t.cancel()
	}
}
