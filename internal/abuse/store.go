package abuse

import (
	"context"
	"time"
)

// ScoreStore persists per-user score rows.
type ScoreStore interface {
	// Get returns the user's score row, or ErrScoreNotFound.
	Get(ctx context.Context, userID string) (*Score, error)

	// Apply atomically adds delta to the user's score, creating the row if
	// missing, stamps lastViolation = now, recomputes the state from the
	// resulting score, and returns the updated row. The read-modify-write
	// must be atomic per user so concurrent violations never lose updates.
	Apply(ctx context.Context, userID string, delta int, now time.Time) (*Score, error)

	// Update persists the score, state, and lastViolation of an existing
	// row, but only while its lastViolation still equals
	// expectedLastViolation. Returns ErrScoreStale when a concurrent write
	// moved the row on, so the decay sweep's write-back can never overwrite
	// a violation recorded after its read.
	Update(ctx context.Context, score *Score, expectedLastViolation time.Time) error

	// ListPage returns a page of score rows ordered by user ID, for the
	// monitor sweep. The sweep never loads the whole table at once.
	ListPage(ctx context.Context, offset, limit int) ([]*Score, error)
}

// ViolationStore persists the append-only violation ledger.
type ViolationStore interface {
	// Append writes one immutable violation row.
	Append(ctx context.Context, v *Violation) error

	// ListByUser returns a user's violations within [from, to], newest
	// first. Zero times mean unbounded.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Violation, error)
}
