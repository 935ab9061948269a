// Package scanpattern detects anomalous automated-scanning behavior that
// simple per-request rate limiting misses: sustained over-volume, bursts
// concentrated in one hour, and excessive concurrent sessions.
//
// The analyzer only reads activity counts owned by the scanning subsystem.
// It never mutates state and fails open when the activity source is
// unavailable.
package scanpattern

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgreer/markhound/internal/audit"
	"github.com/jgreer/markhound/internal/plan"
)

// Risk factor names surfaced to callers.
const (
	FactorExcessiveScanning    = "excessive_scanning"
	FactorBurstActivity        = "burst_activity"
	FactorExcessiveConcurrency = "excessive_concurrency"
)

// Activity is a read-only snapshot of one user's recent scan volume.
type Activity struct {
	LastHour       int
	Last24h        int
	ActiveSessions int
}

// ActivityProvider supplies scan activity counts for a user.
type ActivityProvider interface {
	Activity(ctx context.Context, userID string) (*Activity, error)
}

// Result is the analyzer's verdict.
type Result struct {
	Allowed     bool     `json:"allowed"`
	RiskFactors []string `json:"riskFactors"`
	Message     string   `json:"message,omitempty"`
}

// Analyzer evaluates scan activity against plan thresholds.
type Analyzer struct {
	provider ActivityProvider
	audit    *audit.Emitter
	logger   *slog.Logger
}

// NewAnalyzer creates a scan-pattern analyzer over provider.
func NewAnalyzer(provider ActivityProvider, logger *slog.Logger) *Analyzer {
	return &Analyzer{provider: provider, logger: logger}
}

// WithAudit attaches an audit emitter for flagged patterns.
func (a *Analyzer) WithAudit(emitter *audit.Emitter) *Analyzer {
	a.audit = emitter
	return a
}

// Check collects all risk factors present in the user's recent activity.
// An anomalous pattern can trip several factors at once; callers get the
// full list, not just the first match.
func (a *Analyzer) Check(ctx context.Context, userID string, p plan.Plan) *Result {
	pol := plan.ScanPolicyFor(p)
	if pol.Unlimited {
		return &Result{Allowed: true, RiskFactors: []string{}}
	}

	activity, err := a.provider.Activity(ctx, userID)
	if err != nil {
		a.logger.Warn("scan activity unavailable, admitting request",
			"user", userID, "error", err)
		return &Result{Allowed: true, RiskFactors: []string{}}
	}

	factors := []string{}
	if activity.LastHour > pol.HourlyCeiling {
		factors = append(factors, FactorExcessiveScanning)
	}
	if activity.Last24h >= pol.BurstMinDaily &&
		float64(activity.LastHour) >= pol.BurstShare*float64(activity.Last24h) {
		factors = append(factors, FactorBurstActivity)
	}
	if activity.ActiveSessions > pol.MaxActiveSessions {
		factors = append(factors, FactorExcessiveConcurrency)
	}

	if len(factors) > 0 {
		a.audit.EmitScanFlagged(userID, factors)
		a.logger.Info("anomalous scan pattern",
			"user", userID, "plan", string(p), "factors", factors,
			"lastHour", activity.LastHour, "last24h", activity.Last24h)
		return &Result{
			Allowed:     false,
			RiskFactors: factors,
			Message:     fmt.Sprintf("Scan activity flagged: %s", factors[0]),
		}
	}
	return &Result{Allowed: true, RiskFactors: factors}
}
