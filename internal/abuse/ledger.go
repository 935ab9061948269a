package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jgreer/markhound/internal/accounts"
	"github.com/jgreer/markhound/internal/audit"
	"github.com/jgreer/markhound/internal/idgen"
	"github.com/jgreer/markhound/internal/metrics"
	"github.com/jgreer/markhound/internal/retry"
	"github.com/jgreer/markhound/internal/traces"
)

// DefaultGracePeriod is how long after the last violation a score is
// exempt from decay.
const DefaultGracePeriod = 7 * 24 * time.Hour

// sweepPageSize bounds how many score rows the monitor loads at once.
const sweepPageSize = 100

const blockedMessage = "Your account is blocked due to repeated policy violations. Contact support to appeal."

// Ledger maintains per-user abuse scores and enforces account-level
// consequences. All score mutations go through it.
type Ledger struct {
	scores      ScoreStore
	violations  ViolationStore
	accounts    accounts.Store
	audit       *audit.Emitter
	logger      *slog.Logger
	gracePeriod time.Duration
	now         func() time.Time
}

// NewLedger creates an abuse ledger over the given stores.
func NewLedger(scores ScoreStore, violations ViolationStore, accts accounts.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		scores:      scores,
		violations:  violations,
		accounts:    accts,
		logger:      logger,
		gracePeriod: DefaultGracePeriod,
		now:         time.Now,
	}
}

// WithAudit attaches an audit emitter.
func (l *Ledger) WithAudit(e *audit.Emitter) *Ledger {
	l.audit = e
	return l
}

// WithGracePeriod overrides the default decay grace period.
func (l *Ledger) WithGracePeriod(d time.Duration) *Ledger {
	if d > 0 {
		l.gracePeriod = d
	}
	return l
}

// WithClock overrides the time source (tests only).
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// RecordViolation applies a violation to the user's score, appends it to
// the immutable ledger, and triggers suspension when the score crosses
// into blocked.
//
// The violation append is attempted even when the score update fails:
// losing the audit trail is worse than a temporarily stale score.
func (l *Ledger) RecordViolation(ctx context.Context, userID string, v *Violation) (*Score, error) {
	ctx, span := traces.StartSpan(ctx, "abuse.RecordViolation",
		traces.UserID(userID), traces.ViolationType(string(v.Type)))
	defer span.End()

	if v.Severity < 0 || v.Severity > 1 {
		return nil, ErrInvalidSeverity
	}

	now := l.now()
	delta := int(math.Round(v.Severity * 100))

	score, scoreErr := l.scores.Apply(ctx, userID, delta, now)

	v.ID = idgen.WithPrefix("vio_")
	v.UserID = userID
	if v.OccurredAt.IsZero() {
		v.OccurredAt = now
	}
	if err := l.violations.Append(ctx, v); err != nil {
		// The score (if updated) stands; the missing ledger row is an audit
		// gap that must be visible in operational logs.
		l.logger.Error("violation append failed", "user", userID, "type", v.Type, "error", err)
	}

	if scoreErr != nil {
		return nil, fmt.Errorf("failed to update abuse score for %s: %w", userID, scoreErr)
	}

	metrics.ViolationsTotal.WithLabelValues(string(v.Type)).Inc()
	l.audit.EmitViolation(userID, string(v.Type), v.Severity, score.CurrentScore, string(score.State))

	l.logger.Info("violation recorded",
		"user", userID,
		"type", v.Type,
		"severity", v.Severity,
		"score", score.CurrentScore,
		"state", score.State,
	)

	if score.State == StateBlocked {
		l.enforce(ctx, userID, score.CurrentScore)
	}

	return score, nil
}

// enforce suspends the account. Suspension is idempotent at the store
// level, so at-least-once delivery is safe. A failure after retries is a
// security-relevant condition: it is logged at error severity and counted,
// but never fails the violation recording, since the blocked state is
// already persisted and gates future requests regardless.
func (l *Ledger) enforce(ctx context.Context, userID string, score int) {
	err := retry.Do(ctx, 3, 100*time.Millisecond, func() error {
		err := l.accounts.Suspend(ctx, userID)
		if err == accounts.ErrNotFound {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		metrics.SuspensionFailuresTotal.Inc()
		l.logger.Error("account suspension failed, needs follow-up",
			"user", userID, "score", score, "error", err)
		return
	}

	metrics.SuspensionsTotal.Inc()
	l.audit.EmitSuspension(userID, score)
	l.logger.Warn("account suspended", "user", userID, "score", score)
}

// CheckUser returns the user's current standing. Users with no score row
// are clean and may proceed.
func (l *Ledger) CheckUser(ctx context.Context, userID string) (*CheckResult, error) {
	score, err := l.scores.Get(ctx, userID)
	if err == ErrScoreNotFound {
		return &CheckResult{State: StateClean, Score: 0, CanProceed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check user %s: %w", userID, err)
	}

	result := &CheckResult{
		State:      score.State,
		Score:      score.CurrentScore,
		CanProceed: score.State != StateBlocked,
	}
	if !result.CanProceed {
		result.Message = blockedMessage
	}
	return result, nil
}

// ApplyDecay halves the user's score if the grace period has passed since
// the last violation. It stamps lastViolation so an immediately repeated
// sweep is a no-op: a quiet user halves once per grace period.
// Returns the (possibly unchanged) score and whether decay was applied.
func (l *Ledger) ApplyDecay(ctx context.Context, userID string) (*Score, bool, error) {
	score, err := l.scores.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return l.decay(ctx, score)
}

func (l *Ledger) decay(ctx context.Context, score *Score) (*Score, bool, error) {
	now := l.now()
	if score.CurrentScore == 0 || now.Sub(score.LastViolation) < l.gracePeriod {
		return score, false, nil
	}

	oldScore := score.CurrentScore
	readAt := score.LastViolation
	score.CurrentScore /= 2
	score.State = decayStateForScore(score.CurrentScore)
	score.LastViolation = now

	err := l.scores.Update(ctx, score, readAt)
	if err == ErrScoreStale {
		// A violation landed between the read and the write-back. Its score
		// stands; the user is reconsidered on the next sweep.
		fresh, gerr := l.scores.Get(ctx, score.UserID)
		if gerr != nil {
			return nil, false, fmt.Errorf("failed to reload score for %s after stale decay: %w", score.UserID, gerr)
		}
		l.logger.Debug("decay skipped, score changed concurrently", "user", score.UserID)
		return fresh, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist decay for %s: %w", score.UserID, err)
	}

	l.audit.EmitDecay(score.UserID, oldScore, score.CurrentScore, string(score.State))
	l.logger.Debug("score decayed",
		"user", score.UserID, "old", oldScore, "new", score.CurrentScore, "state", score.State)
	return score, true, nil
}

// MonitorAll sweeps every score row: applies decay where eligible and
// collects users still in high_risk or blocked for reporting. One user's
// failure never aborts the sweep; it is logged, counted, and skipped.
func (l *Ledger) MonitorAll(ctx context.Context) (*SweepStats, error) {
	ctx, span := traces.StartSpan(ctx, "abuse.MonitorAll")
	defer span.End()

	start := l.now()
	stats := &SweepStats{}
	byState := map[State]int{StateClean: 0, StateWarning: 0, StateHighRisk: 0, StateBlocked: 0}

	for offset := 0; ; offset += sweepPageSize {
		page, err := l.scores.ListPage(ctx, offset, sweepPageSize)
		if err != nil {
			return stats, fmt.Errorf("failed to page abuse scores at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		for _, score := range page {
			stats.Scanned++

			updated, decayed, err := l.decay(ctx, score)
			if err != nil {
				stats.Errors++
				l.logger.Warn("decay failed, skipping user", "user", score.UserID, "error", err)
				continue
			}
			if decayed {
				stats.Decayed++
			}

			byState[updated.State]++
			switch updated.State {
			case StateHighRisk:
				stats.HighRisk = append(stats.HighRisk, updated.UserID)
			case StateBlocked:
				stats.Blocked = append(stats.Blocked, updated.UserID)
			}
		}

		if len(page) < sweepPageSize {
			break
		}
	}

	for state, count := range byState {
		metrics.UsersByState.WithLabelValues(string(state)).Set(float64(count))
	}
	metrics.DecaySweepsTotal.Inc()
	metrics.DecaySweepDuration.Observe(l.now().Sub(start).Seconds())

	l.logger.Info("abuse sweep completed",
		"scanned", stats.Scanned,
		"decayed", stats.Decayed,
		"high_risk", len(stats.HighRisk),
		"blocked", len(stats.Blocked),
		"errors", stats.Errors,
	)
	return stats, nil
}

// Report returns a read-only aggregation of the user's standing and
// violation history within [from, to].
func (l *Ledger) Report(ctx context.Context, userID string, from, to time.Time) (*Report, error) {
	report := &Report{
		UserID: userID,
		State:  StateClean,
		ByType: make(map[ViolationType]int),
		From:   from,
		To:     to,
	}

	score, err := l.scores.Get(ctx, userID)
	if err != nil && err != ErrScoreNotFound {
		return nil, fmt.Errorf("failed to load score for report: %w", err)
	}
	if err == nil {
		report.Score = score.CurrentScore
		report.State = score.State
	}

	violations, err := l.violations.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load violations for report: %w", err)
	}

	report.Violations = violations
	report.TotalViolations = len(violations)
	for _, v := range violations {
		report.ByType[v.Type]++
	}
	return report, nil
}
