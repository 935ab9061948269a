package scanpattern

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresProvider reads activity counts from the scanning subsystem's
// scan_sessions table. Read-only: this package never writes session rows.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider creates a provider over db.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Activity(ctx context.Context, userID string) (*Activity, error) {
	var a Activity
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE started_at > NOW() - INTERVAL '1 hour'),
			COUNT(*) FILTER (WHERE started_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE status = 'active')
		FROM scan_sessions
		WHERE user_id = $1`,
		userID,
	).Scan(&a.LastHour, &a.Last24h, &a.ActiveSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan activity for %s: %w", userID, err)
	}
	return &a, nil
}
