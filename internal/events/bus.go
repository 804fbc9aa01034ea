// Package events implements the session-lifecycle event bus.
//
// The bus fans out events to any number of subscribers. Unauthorized
// events are throttled to at most one per rolling second so that a burst
// of concurrent requests failing together does not trigger a cascade of
// sign-out handling in the consumer.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies a session-lifecycle event.
type Kind string

const (
	// SignedIn is published after a successful sign-in or sign-up.
	SignedIn Kind = "signed_in"
	// SignedOut is published after the session has been cleared.
	SignedOut Kind = "signed_out"
	// Unauthorized is published when a request fails with a terminal
	// unauthorized outcome (refresh exhausted or refresh impossible).
	Unauthorized Kind = "unauthorized"
	// CredentialUpdated is published whenever the access credential
	// changes, including after a successful refresh.
	CredentialUpdated Kind = "credential_updated"
)

// Event is a single session-lifecycle notification.
type Event struct {
	Kind Kind
	// HasToken reports whether an access token is held after the change.
	// Only meaningful for CredentialUpdated.
	HasToken bool
	// At is the time the event was published.
	At time.Time
}

// Bus is a synchronized broadcast channel for session events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]func(Event)
	nextID atomic.Uint64

	// unauthorizedLimiter gates Unauthorized events. The limiter is
	// internally synchronized; no additional locking is needed around
	// Allow.
	unauthorizedLimiter *rate.Limiter
}

// NewBus creates an event bus with the default unauthorized throttle
// of one event per second.
func NewBus() *Bus {
	return &Bus{
		subs:                make(map[uint64]func(Event)),
		unauthorizedLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Subscribe registers a callback for all published events. The returned
// function removes the subscription and is safe to call multiple times.
func (b *Bus) Subscribe(fn func(Event)) func() {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to all subscribers. Unauthorized events
// that arrive inside the throttle window are dropped. Callbacks are
// invoked synchronously after releasing the read lock.
func (b *Bus) Publish(e Event) {
	if e.Kind == Unauthorized && !b.unauthorizedLimiter.Allow() {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Clear removes all subscriptions. Called during client shutdown.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = make(map[uint64]func(Event))
	b.mu.Unlock()
}
