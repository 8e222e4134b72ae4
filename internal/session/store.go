package session

import (
	"context"
	"errors"
	"sync"

	"github.com/llanen/nl.eneco.toon/pkg/model"
)

// ErrSessionNotFound is returned when no session exists in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrMultipleSessions indicates corrupted state: more than one session is
// persisted where at most one may exist. Never auto-repaired.
var ErrMultipleSessions = errors.New("multiple sessions found")

// Store persists the OAuth2 session. At most one session may be stored;
// List exposes whatever is actually persisted so the invariant can be
// checked by the caller.
type Store interface {
	List(ctx context.Context) ([]model.Session, error)
	Save(ctx context.Context, session model.Session) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// MemoryStore is an in-memory Store, used in tests and for ephemeral
// deployments where re-authorizing on restart is acceptable.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.Session)}
}

// List returns all persisted sessions.
func (s *MemoryStore) List(ctx context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Save inserts or replaces a session by its id.
func (s *MemoryStore) Save(ctx context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
