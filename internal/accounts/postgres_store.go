package accounts

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore enforces account status against the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed account store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Suspend sets the user's status to suspended. The WHERE clause makes the
// statement idempotent: re-suspending affects zero rows and is not an error.
func (s *PostgresStore) Suspend(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status <> $1
	`, StatusSuspended, userID)
	if err != nil {
		return fmt.Errorf("failed to suspend user %s: %w", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil || affected > 0 {
		return nil
	}

	// Zero rows: either already suspended (fine) or unknown user.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to verify user %s: %w", userID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// Status returns the user's current status.
func (s *PostgresStore) Status(ctx context.Context, userID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM users WHERE id = $1`, userID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status for user %s: %w", userID, err)
	}
	return status, nil
}
