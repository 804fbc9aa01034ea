package pairdesk

import (
	"time"

	"github.com/pairdesk/client-go/internal/events"
)

// EventKind identifies a session-lifecycle event.
type EventKind string

const (
	// EventSignedIn fires after a successful sign-in or sign-up.
	EventSignedIn EventKind = "signed_in"
	// EventSignedOut fires after the session has been cleared.
	EventSignedOut EventKind = "signed_out"
	// EventUnauthorized fires when a request fails with a terminal
	// unauthorized outcome. Throttled to at most one per second, so a
	// burst of concurrent failures produces a single notification.
	EventUnauthorized EventKind = "unauthorized"
	// EventCredentialUpdated fires whenever the access credential
	// changes, including after a background refresh.
	EventCredentialUpdated EventKind = "credential_updated"
)

// Event is a session-lifecycle notification.
type Event struct {
	Kind EventKind
	// HasToken reports whether an access token is held after the
	// change. Meaningful for EventCredentialUpdated.
	HasToken bool
	// At is the time the event was published.
	At time.Time
}

// OnEvent registers a callback for session-lifecycle events. Callbacks
// run synchronously on the publishing goroutine and should return
// quickly. The returned function removes the subscription and is safe
// to call multiple times.
//
// Typical use is driving sign-out UI:
//
//	unsub := client.OnEvent(func(e pairdesk.Event) {
//	    if e.Kind == pairdesk.EventUnauthorized {
//	        promptReLogin()
//	    }
//	})
//	defer unsub()
func (c *Client) OnEvent(fn func(Event)) func() {
	return c.bus.Subscribe(func(e events.Event) {
		fn(Event{
			Kind:     EventKind(e.Kind),
			HasToken: e.HasToken,
			At:       e.At,
		})
	})
}
