// Package auth owns the credential lifecycle: the in-memory access and
// refresh token pair, its durability mirror in the credential store, and
// the single-flight token refresh coordinator.
package auth

import (
	"sync"

	"github.com/rs/zerolog"
)

// Store names for the two persisted secrets.
const (
	accessSecretName  = "access_token"
	refreshSecretName = "refresh_token"
)

// Store is the credential persistence capability. Implementations must
// serialize concurrent operations on the same name.
type Store interface {
	// Save persists a secret under the given name.
	Save(name, secret string) error
	// Load retrieves a previously saved secret. ok is false when the
	// secret is absent or cannot be read.
	Load(name string) (secret string, ok bool)
	// Clear removes the named secret. Clearing an absent secret is not
	// an error.
	Clear(name string) error
}

// Session holds the current credential pair. The in-memory copy is
// authoritative; every mutation is mirrored into the store before the
// call returns. The store is read exactly once, at construction.
//
// All operations are atomic with respect to each other: a reader never
// observes a half-updated pair.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
	store   Store
	log     zerolog.Logger
}

// NewSession creates a session, restoring any credentials persisted by a
// previous process.
func NewSession(store Store, log zerolog.Logger) *Session {
	s := &Session{store: store, log: log}
	if store != nil {
		if tok, ok := store.Load(accessSecretName); ok {
			s.access = tok
		}
		if tok, ok := store.Load(refreshSecretName); ok {
			s.refresh = tok
		}
	}
	return s
}

// SetAccess replaces the access token.
func (s *Session) SetAccess(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
	s.mirror(accessSecretName, token)
}

// SetRefresh replaces the refresh token.
func (s *Session) SetRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = token
	s.mirror(refreshSecretName, token)
}

// Update atomically installs a new access token and, when refresh is
// non-empty, a new refresh token. Used after sign-in and after a
// successful refresh (refresh endpoints may rotate the refresh token or
// omit it).
func (s *Session) Update(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.mirror(accessSecretName, access)
	if refresh != "" {
		s.refresh = refresh
		s.mirror(refreshSecretName, refresh)
	}
}

// Clear removes both tokens from memory and from the store. Idempotent.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	if s.store == nil {
		return
	}
	if err := s.store.Clear(accessSecretName); err != nil {
		s.log.Warn().Err(err).Str("secret", accessSecretName).Msg("clear credential")
	}
	if err := s.store.Clear(refreshSecretName); err != nil {
		s.log.Warn().Err(err).Str("secret", refreshSecretName).Msg("clear credential")
	}
}

// Access returns the current access token. ok is false when none is held.
func (s *Session) Access() (token string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.access != ""
}

// Refresh returns the current refresh token. ok is false when none is held.
func (s *Session) Refresh() (token string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh, s.refresh != ""
}

// IsAuthenticated reports whether an access token is held.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Access()
	return ok
}

// mirror writes through to the store. The in-memory copy stays
// authoritative even when the mirror write fails, so a store error is
// logged rather than surfaced.
func (s *Session) mirror(name, secret string) {
	if s.store == nil {
		return
	}
	var err error
	if secret == "" {
		err = s.store.Clear(name)
	} else {
		err = s.store.Save(name, secret)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("secret", name).Msg("mirror credential to store")
	}
}
