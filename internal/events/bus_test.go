package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var got1, got2 []Kind
	bus.Subscribe(func(e Event) { got1 = append(got1, e.Kind) })
	bus.Subscribe(func(e Event) { got2 = append(got2, e.Kind) })

	bus.Publish(Event{Kind: SignedIn})
	bus.Publish(Event{Kind: CredentialUpdated, HasToken: true})

	assert.Equal(t, []Kind{SignedIn, CredentialUpdated}, got1)
	assert.Equal(t, []Kind{SignedIn, CredentialUpdated}, got2)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var count int
	unsub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Kind: SignedIn})
	unsub()
	bus.Publish(Event{Kind: SignedOut})

	assert.Equal(t, 1, count)

	// Safe to call again.
	unsub()
}

func TestBus_UnauthorizedThrottled(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(func(e Event) {
		if e.Kind == Unauthorized {
			count++
		}
	})

	// Burst of unauthorized events inside one window: only the first
	// gets through.
	for i := 0; i < 10; i++ {
		bus.Publish(Event{Kind: Unauthorized})
	}

	assert.Equal(t, 1, count)
}

func TestBus_UnauthorizedThrottleDoesNotAffectOtherKinds(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Kind: Unauthorized})
	bus.Publish(Event{Kind: Unauthorized}) // dropped
	bus.Publish(Event{Kind: CredentialUpdated, HasToken: true})
	bus.Publish(Event{Kind: SignedOut})

	assert.Equal(t, 3, count)
}

func TestBus_PublishSetsTimestamp(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(func(e Event) { got = e })

	before := time.Now()
	bus.Publish(Event{Kind: SignedIn})

	require.False(t, got.At.IsZero())
	assert.False(t, got.At.Before(before))
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var count int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			bus.Publish(Event{Kind: SignedIn})
			unsub()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, count, 0)
}

func TestBus_ClearRemovesSubscribers(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(func(Event) { count++ })

	bus.Clear()
	bus.Publish(Event{Kind: SignedIn})

	assert.Zero(t, count)
}
