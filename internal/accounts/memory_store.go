package accounts

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory account store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]string
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]string)}
}

// Seed registers a user with the given status.
func (s *MemoryStore) Seed(userID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = status
}

// Suspend sets the user's status to suspended.
// Unknown users are created as suspended so enforcement never silently drops.
func (s *MemoryStore) Suspend(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = StatusSuspended
	return nil
}

// Status returns the user's status.
func (s *MemoryStore) Status(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[userID]
	if !ok {
		return "", ErrNotFound
	}
	return status, nil
}
