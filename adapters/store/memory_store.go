package store

import (
	"context"
	"sync"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
)

// MemoryStore is an in-memory implementation of the SessionStore
// interface. The session survives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	session *core.Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() ports.SessionStore {
	return &MemoryStore{}
}

// Save persists the session.
func (s *MemoryStore) Save(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.session = &copied
	return nil
}

// Load returns the persisted session or core.ErrNoSession.
func (s *MemoryStore) Load(ctx context.Context) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, core.ErrNoSession
	}
	copied := *s.session
	return &copied, nil
}

// Clear removes the persisted session.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
