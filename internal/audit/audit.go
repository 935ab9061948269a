// Package audit provides a fire-and-forget audit/event trail for the abuse engine.
//
// Every enforcement-relevant action (violation recorded, account suspended,
// rate limit tripped, keyword batch rejected, scan pattern flagged, score
// decayed) is appended to a write-only sink. Emission never blocks or fails
// the request path: errors are logged and counted, not returned.
package audit

import (
	"context"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	EventViolationRecorded EventType = "abuse.violation.recorded"
	EventUserSuspended     EventType = "abuse.user.suspended"
	EventRateLimited       EventType = "ratelimit.exceeded"
	EventKeywordsRejected  EventType = "keywords.rejected"
	EventScanFlagged       EventType = "scan.pattern.flagged"
	EventScoreDecayed      EventType = "abuse.score.decayed"
)

// Event is a single append-only audit record.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	UserID    string                 `json:"userId"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink persists audit events. Implementations must treat events as immutable.
type Sink interface {
	Append(ctx context.Context, event *Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Event, error)
}
