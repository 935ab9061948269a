package audit

import (
	"context"
	"sync"
)

// MemorySink is an in-memory audit sink for tests and development.
type MemorySink struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores the event.
func (s *MemorySink) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByUser returns up to limit events for a user, newest first.
func (s *MemorySink) ListByUser(_ context.Context, userID string, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Event
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		if s.events[i].UserID == userID {
			result = append(result, s.events[i])
		}
	}
	return result, nil
}

// All returns every stored event (test helper).
func (s *MemorySink) All() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}
