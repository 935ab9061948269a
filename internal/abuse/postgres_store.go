package abuse

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresScoreStore persists score rows in PostgreSQL.
type PostgresScoreStore struct {
	db *sql.DB
}

// NewPostgresScoreStore creates a PostgreSQL-backed score store.
func NewPostgresScoreStore(db *sql.DB) *PostgresScoreStore {
	return &PostgresScoreStore{db: db}
}

func (s *PostgresScoreStore) Get(ctx context.Context, userID string) (*Score, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_score, state, last_violation, created_at, updated_at
		FROM abuse_scores
		WHERE user_id = $1
	`, userID)

	var sc Score
	err := row.Scan(&sc.UserID, &sc.CurrentScore, &sc.State, &sc.LastViolation, &sc.CreatedAt, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get abuse score: %w", err)
	}
	return &sc, nil
}

// Apply uses an upsert so the increment is atomic under concurrent
// violations: the row-level lock serializes both additions and neither is
// lost. The state is then derived from the returned score inside the same
// transaction.
func (s *PostgresScoreStore) Apply(ctx context.Context, userID string, delta int, now time.Time) (*Score, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin score update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sc Score
	err = tx.QueryRowContext(ctx, `
		INSERT INTO abuse_scores (user_id, current_score, state, last_violation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET current_score = abuse_scores.current_score + $2,
		    last_violation = $4,
		    updated_at = $4
		RETURNING user_id, current_score, last_violation, created_at, updated_at
	`, userID, delta, string(StateForScore(delta)), now).Scan(
		&sc.UserID, &sc.CurrentScore, &sc.LastViolation, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply score delta: %w", err)
	}

	sc.State = StateForScore(sc.CurrentScore)
	if _, err := tx.ExecContext(ctx, `
		UPDATE abuse_scores SET state = $1 WHERE user_id = $2
	`, string(sc.State), userID); err != nil {
		return nil, fmt.Errorf("failed to update abuse state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit score update: %w", err)
	}
	return &sc, nil
}

// Update guards the write with the lastViolation value the caller read.
// A row moved on by a concurrent Apply matches zero rows, which keeps the
// decay sweep from overwriting a violation recorded after its read.
func (s *PostgresScoreStore) Update(ctx context.Context, score *Score, expectedLastViolation time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE abuse_scores
		SET current_score = $1, state = $2, last_violation = $3, updated_at = NOW()
		WHERE user_id = $4 AND last_violation = $5
	`, score.CurrentScore, string(score.State), score.LastViolation, score.UserID, expectedLastViolation)
	if err != nil {
		return fmt.Errorf("failed to update abuse score: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil || affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM abuse_scores WHERE user_id = $1)
	`, score.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check abuse score for %s: %w", score.UserID, err)
	}
	if !exists {
		return ErrScoreNotFound
	}
	return ErrScoreStale
}

func (s *PostgresScoreStore) ListPage(ctx context.Context, offset, limit int) ([]*Score, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, current_score, state, last_violation, created_at, updated_at
		FROM abuse_scores
		ORDER BY user_id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list abuse scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.UserID, &sc.CurrentScore, &sc.State, &sc.LastViolation, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan abuse score: %w", err)
		}
		result = append(result, &sc)
	}
	return result, rows.Err()
}

// PostgresViolationStore persists the append-only violation ledger.
type PostgresViolationStore struct {
	db *sql.DB
}

// NewPostgresViolationStore creates a PostgreSQL-backed violation store.
func NewPostgresViolationStore(db *sql.DB) *PostgresViolationStore {
	return &PostgresViolationStore{db: db}
}

func (s *PostgresViolationStore) Append(ctx context.Context, v *Violation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO abuse_violations (id, user_id, violation_type, severity, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.UserID, string(v.Type), v.Severity, v.Description, v.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append violation: %w", err)
	}
	return nil
}

func (s *PostgresViolationStore) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Violation, error) {
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, violation_type, severity, description, occurred_at
		FROM abuse_violations
		WHERE user_id = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.UserID, &v.Type, &v.Severity, &v.Description, &v.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		result = append(result, &v)
	}
	return result, rows.Err()
}
