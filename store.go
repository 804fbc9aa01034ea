package pairdesk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CredentialStore persists the credential pair across process restarts.
// Implementations must serialize concurrent operations on the same
// name; operations across different names carry no ordering guarantee.
// Backends can be the OS keychain, an encrypted file, or anything with
// the same atomicity per name.
type CredentialStore interface {
	// Save persists a secret under the given name.
	Save(name, secret string) error
	// Load retrieves a previously saved secret. ok is false when the
	// secret is absent or cannot be read.
	Load(name string) (secret string, ok bool)
	// Clear removes the named secret. Clearing an absent secret is not
	// an error.
	Clear(name string) error
}

// MemoryStore is an in-process CredentialStore. Credentials do not
// survive a restart; it is the default, and useful in tests.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

// Save implements CredentialStore.
func (s *MemoryStore) Save(name, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = secret
	return nil
}

// Load implements CredentialStore.
func (s *MemoryStore) Load(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[name]
	return secret, ok
}

// Clear implements CredentialStore.
func (s *MemoryStore) Clear(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, name)
	return nil
}

// FileStore keeps each secret in its own file under a directory, with
// 0600 permissions. Suitable for CLI tools and development; production
// apps should prefer an OS keychain-backed CredentialStore.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory (0700) when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save implements CredentialStore.
func (s *FileStore) Save(name, secret string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	return nil
}

// Load implements CredentialStore.
func (s *FileStore) Load(name string) (string, bool) {
	path, err := s.path(name)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Clear implements CredentialStore.
func (s *FileStore) Clear(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove secret: %w", err)
	}
	return nil
}

// path validates the secret name and maps it into the store directory.
func (s *FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
