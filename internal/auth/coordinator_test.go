package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairdesk/client-go/internal/events"
)

func newTestCoordinator(t *testing.T, session *Session, fn RefreshFunc) (*Coordinator, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	return NewCoordinator(session, fn, bus, 0, zerolog.Nop()), bus
}

func TestCoordinator_ConcurrentCallersShareOneRefresh(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old-access", "refresh-1")

	var calls atomic.Int32
	release := make(chan struct{})
	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		calls.Add(1)
		<-release
		return RefreshResult{AccessToken: "new-access"}, nil
	})

	const n = 10
	results := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.Refresh(context.Background())
		}(i)
	}

	// Let all callers attach before the refresh resolves.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i])
	}

	access, _ := session.Access()
	assert.Equal(t, "new-access", access)
}

func TestCoordinator_NoRefreshTokenFailsWithoutNetworkCall(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())

	var calls atomic.Int32
	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		calls.Add(1)
		return RefreshResult{}, nil
	})

	_, err := coord.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, calls.Load())
}

func TestCoordinator_FailureLeavesSessionUnmodified(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old-access", "refresh-1")

	refreshErr := errors.New("refresh rejected")
	coord, bus := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{}, refreshErr
	})

	var unauthorized atomic.Int32
	bus.Subscribe(func(e events.Event) {
		if e.Kind == events.Unauthorized {
			unauthorized.Add(1)
		}
	})

	_, err := coord.Refresh(context.Background())
	require.ErrorIs(t, err, refreshErr)

	access, _ := session.Access()
	refresh, _ := session.Refresh()
	assert.Equal(t, "old-access", access)
	assert.Equal(t, "refresh-1", refresh)
	assert.Equal(t, int32(1), unauthorized.Load())
}

func TestCoordinator_RotatedRefreshTokenIsStored(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old-access", "refresh-1")

	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		assert.Equal(t, "refresh-1", refreshToken)
		return RefreshResult{AccessToken: "a2", RefreshToken: "refresh-2"}, nil
	})

	tok, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", tok)

	refresh, _ := session.Refresh()
	assert.Equal(t, "refresh-2", refresh)
}

func TestCoordinator_PublishesCredentialUpdated(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old", "refresh-1")

	coord, bus := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		return RefreshResult{AccessToken: "new"}, nil
	})

	got := make(chan events.Event, 1)
	bus.Subscribe(func(e events.Event) {
		if e.Kind == events.CredentialUpdated {
			got <- e
		}
	})

	_, err := coord.Refresh(context.Background())
	require.NoError(t, err)

	select {
	case e := <-got:
		assert.True(t, e.HasToken)
	case <-time.After(time.Second):
		t.Fatal("credential_updated event not published")
	}
}

func TestCoordinator_CancelledCallerDoesNotCancelSharedRefresh(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old", "refresh-1")

	release := make(chan struct{})
	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		select {
		case <-release:
			return RefreshResult{AccessToken: "new"}, nil
		case <-ctx.Done():
			return RefreshResult{}, ctx.Err()
		}
	})

	// First caller starts the refresh, then cancels. A second caller is
	// still waiting, so the shared refresh must keep running.
	ctx1, cancel1 := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(ctx1)
		firstDone <- err
	}()

	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan struct{})
	var secondTok string
	var secondErr error
	go func() {
		secondTok, secondErr = coord.Refresh(context.Background())
		close(secondDone)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel1()
	require.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	<-secondDone
	require.NoError(t, secondErr)
	assert.Equal(t, "new", secondTok)
}

func TestCoordinator_LastWaiterLeavingAbandonsRefresh(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old", "refresh-1")

	refreshCancelled := make(chan struct{})
	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		<-ctx.Done()
		close(refreshCancelled)
		return RefreshResult{}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	select {
	case <-refreshCancelled:
	case <-time.After(time.Second):
		t.Fatal("abandoned refresh was not cancelled")
	}
}

func TestCoordinator_NextCallerAfterResolutionStartsFreshRefresh(t *testing.T) {
	session := NewSession(newMemStore(), zerolog.Nop())
	session.Update("old", "refresh-1")

	var calls atomic.Int32
	coord, _ := newTestCoordinator(t, session, func(ctx context.Context, refreshToken string) (RefreshResult, error) {
		n := calls.Add(1)
		return RefreshResult{AccessToken: "access-" + string(rune('0'+n))}, nil
	})

	tok1, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	tok2, err := coord.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.NotEqual(t, tok1, tok2)
}
