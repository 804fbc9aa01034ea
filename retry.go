package pairdesk

import (
	"context"
	"errors"
	"sync"
	"time"
)

// maxRetryAttempts is the per-(context, kind) attempt budget.
const maxRetryAttempts = 3

// retryKey scopes attempt counters so concurrent operations and
// distinct failure kinds never interfere.
type retryKey struct {
	context string
	kind    ErrorKind
}

// retryState tracks attempts for one (context, kind) pair.
type retryState struct {
	attempts      int
	lastAttemptAt time.Time
	retryAfter    time.Duration
}

// RetryPolicy decides whether a failed call may be attempted again and
// how long to wait first. The SDK never retries on the caller's behalf
// (beyond the single built-in 401 refresh-retry); callers opt in per
// call-site:
//
//	for {
//	    sessions, err := client.ListSessions(ctx, params)
//	    if err == nil {
//	        policy.Reset("list-sessions")
//	        return sessions, nil
//	    }
//	    if !policy.ShouldRetry("list-sessions", err) {
//	        return nil, err
//	    }
//	    policy.RecordAttempt("list-sessions", err)
//	    if err := policy.Wait(ctx, "list-sessions", err); err != nil {
//	        return nil, err
//	    }
//	}
//
// Safe for concurrent use.
type RetryPolicy struct {
	mu       sync.Mutex
	attempts map[retryKey]*retryState
	now      func() time.Time
}

// NewRetryPolicy creates a policy with the default budget of three
// attempts per (context, kind) pair.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		attempts: make(map[retryKey]*retryState),
		now:      time.Now,
	}
}

// ShouldRetry reports whether another attempt is allowed for this
// context and error. Only retryable kinds (server error, rate limited,
// timeout, network error) are ever eligible.
func (p *RetryPolicy) ShouldRetry(contextKey string, err error) bool {
	kind, retryable := classifyForRetry(err)
	if !retryable {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	state := p.attempts[retryKey{contextKey, kind}]
	return state == nil || state.attempts < maxRetryAttempts
}

// RecordAttempt registers a failed attempt for this context and error.
// Creates the counter on first use.
func (p *RetryPolicy) RecordAttempt(contextKey string, err error) {
	kind, retryable := classifyForRetry(err)
	if !retryable {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	key := retryKey{contextKey, kind}
	state := p.attempts[key]
	if state == nil {
		state = &retryState{}
		p.attempts[key] = state
	}
	state.attempts++
	state.lastAttemptAt = p.now()
	state.retryAfter = serverRetryAfter(err)
}

// Delay returns the wait before the next attempt: 2^(n-1) seconds for
// attempt n, except that a server-supplied Retry-After is used verbatim
// regardless of attempt count.
func (p *RetryPolicy) Delay(contextKey string, err error) time.Duration {
	if after := serverRetryAfter(err); after > 0 {
		return after
	}

	kind, _ := classifyForRetry(err)
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 1
	if state := p.attempts[retryKey{contextKey, kind}]; state != nil && state.attempts > 0 {
		n = state.attempts
	}
	return time.Second << (n - 1)
}

// Wait sleeps for Delay, honoring context cancellation.
func (p *RetryPolicy) Wait(ctx context.Context, contextKey string, err error) error {
	timer := time.NewTimer(p.Delay(contextKey, err))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset clears all attempt counters for a context. Called after any
// successful exchange so a past blip does not poison later calls under
// the same context key.
func (p *RetryPolicy) Reset(contextKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.attempts {
		if key.context == contextKey {
			delete(p.attempts, key)
		}
	}
}

// classifyForRetry extracts the error kind and retry eligibility.
func classifyForRetry(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	return apiErr.Kind, apiErr.Retryable()
}

// serverRetryAfter returns the server-requested delay, if any.
func serverRetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited {
		return apiErr.RetryAfter
	}
	return 0
}
