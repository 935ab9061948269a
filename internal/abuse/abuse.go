// Package abuse implements the persistent, decaying per-user reputation ledger.
//
// Every confirmed policy violation adds round(severity*100) points to the
// user's score. Fixed boundaries map the score to an escalating state
// (clean → warning → high_risk → blocked); reaching blocked suspends the
// account. Scores halve after a quiet grace period so reputation can
// recover. Violations themselves are append-only and never deleted; they
// are the audit trail behind every score mutation.
package abuse

import (
	"errors"
	"time"
)

// State is the escalation tier derived from the current score.
type State string

const (
	StateClean    State = "clean"
	StateWarning  State = "warning"
	StateHighRisk State = "high_risk"
	StateBlocked  State = "blocked"
)

// Score boundaries. A score in [boundaryWarning, boundaryHighRisk) is
// warning, and so on. Blocked is unbounded above.
const (
	boundaryWarning  = 50
	boundaryHighRisk = 100
	boundaryBlocked  = 200
)

// StateForScore maps a score to its state using the fixed boundary table.
func StateForScore(score int) State {
	switch {
	case score >= boundaryBlocked:
		return StateBlocked
	case score >= boundaryHighRisk:
		return StateHighRisk
	case score >= boundaryWarning:
		return StateWarning
	default:
		return StateClean
	}
}

// decayStateForScore classifies a score produced by decay. Unlike
// StateForScore it treats exactly 50 as clean: a user who served a full
// grace period at the warning boundary (100 → 50) has recovered. This is
// the one deliberate asymmetry between accumulation and decay.
func decayStateForScore(score int) State {
	if score <= boundaryWarning {
		return StateClean
	}
	return StateForScore(score)
}

// ViolationType categorizes violations.
type ViolationType string

const (
	ViolationSpamKeywords      ViolationType = "spam_keywords"
	ViolationExcessiveRequests ViolationType = "excessive_requests"
	ViolationFakeOwnership     ViolationType = "fake_ownership"
	ViolationScanAbuse         ViolationType = "scan_abuse"
)

// Violation is a single immutable entry in the per-user violation ledger.
type Violation struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Type        ViolationType `json:"type"`
	Severity    float64       `json:"severity"` // [0, 1]
	Description string        `json:"description"`
	OccurredAt  time.Time     `json:"occurredAt"`
}

// Score is the per-user reputation row. One row per user, created lazily
// on the first violation, never hard-deleted.
type Score struct {
	UserID        string    `json:"userId"`
	CurrentScore  int       `json:"currentScore"`
	State         State     `json:"state"`
	LastViolation time.Time `json:"lastViolation"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CheckResult is the outcome of a blocked-user lookup.
type CheckResult struct {
	State      State  `json:"state"`
	Score      int    `json:"score"`
	CanProceed bool   `json:"canProceed"`
	Message    string `json:"message,omitempty"`
}

// Report aggregates a user's reputation and violation history.
type Report struct {
	UserID          string                `json:"userId"`
	Score           int                   `json:"score"`
	State           State                 `json:"state"`
	Violations      []*Violation          `json:"violations"`
	TotalViolations int                   `json:"totalViolations"`
	ByType          map[ViolationType]int `json:"byType"`
	From            time.Time             `json:"from"`
	To              time.Time             `json:"to"`
}

// SweepStats summarizes one monitor sweep over all score rows.
type SweepStats struct {
	Scanned  int      `json:"scanned"`
	Decayed  int      `json:"decayed"`
	HighRisk []string `json:"highRisk"`
	Blocked  []string `json:"blocked"`
	Errors   int      `json:"errors"`
}

// ErrScoreNotFound is returned when a user has no score row yet.
var ErrScoreNotFound = errors.New("abuse: score not found")

// ErrScoreStale is returned when a conditional write-back loses to a
// concurrent update. The caller must re-read before deciding again.
var ErrScoreStale = errors.New("abuse: score changed concurrently")

// ErrInvalidSeverity is returned for severities outside [0, 1].
var ErrInvalidSeverity = errors.New("abuse: severity must be in [0, 1]")
