package abuse

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryScoreStore is an in-memory score store for tests and development.
type MemoryScoreStore struct {
	mu     sync.Mutex
	scores map[string]*Score
}

// NewMemoryScoreStore creates an empty in-memory score store.
func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{scores: make(map[string]*Score)}
}

func (s *MemoryScoreStore) Get(_ context.Context, userID string) (*Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scores[userID]
	if !ok {
		return nil, ErrScoreNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryScoreStore) Apply(_ context.Context, userID string, delta int, now time.Time) (*Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.scores[userID]
	if !ok {
		row = &Score{UserID: userID, CreatedAt: now}
		s.scores[userID] = row
	}
	row.CurrentScore += delta
	row.State = StateForScore(row.CurrentScore)
	row.LastViolation = now
	row.UpdatedAt = now

	cp := *row
	return &cp, nil
}

func (s *MemoryScoreStore) Update(_ context.Context, score *Score, expectedLastViolation time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.scores[score.UserID]
	if !ok {
		return ErrScoreNotFound
	}
	if !row.LastViolation.Equal(expectedLastViolation) {
		return ErrScoreStale
	}
	row.CurrentScore = score.CurrentScore
	row.State = score.State
	row.LastViolation = score.LastViolation
	row.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryScoreStore) ListPage(_ context.Context, offset, limit int) ([]*Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.scores))
	for id := range s.scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	result := make([]*Score, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *s.scores[id]
		result = append(result, &cp)
	}
	return result, nil
}

// MemoryViolationStore is an in-memory violation ledger for tests and development.
type MemoryViolationStore struct {
	mu         sync.Mutex
	violations map[string][]*Violation
}

// NewMemoryViolationStore creates an empty in-memory violation store.
func NewMemoryViolationStore() *MemoryViolationStore {
	return &MemoryViolationStore{violations: make(map[string][]*Violation)}
}

func (s *MemoryViolationStore) Append(_ context.Context, v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.violations[v.UserID] = append(s.violations[v.UserID], &cp)
	return nil
}

func (s *MemoryViolationStore) ListByUser(_ context.Context, userID string, from, to time.Time) ([]*Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*Violation
	for _, v := range s.violations[userID] {
		if !from.IsZero() && v.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && v.OccurredAt.After(to) {
			continue
		}
		cp := *v
		result = append(result, &cp)
	}
	// Newest first.
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	return result, nil
}
