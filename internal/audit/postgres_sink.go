package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresSink appends audit events to the audit_events table.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a PostgreSQL-backed audit sink.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Append inserts the event. The table has no UPDATE path: rows are immutable.
func (s *PostgresSink) Append(ctx context.Context, event *Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, user_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, string(event.Type), event.UserID, dataJSON, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListByUser returns up to limit events for a user, newest first.
func (s *PostgresSink) ListByUser(ctx context.Context, userID string, limit int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, user_id, data, created_at
		FROM audit_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Event
	for rows.Next() {
		var e Event
		var dataJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Type, &e.UserID, &dataJSON, &createdAt); err != nil {
			continue
		}
		e.Timestamp = createdAt
		e.Data = make(map[string]interface{})
		_ = json.Unmarshal(dataJSON, &e.Data)
		result = append(result, &e)
	}
	return result, rows.Err()
}
