// Package admission composes the real-time abuse checks into one
// per-request decision.
//
// A validation runs the rate limiter, the keyword assessor (when the
// request carries keywords), and the scan-pattern analyzer (for
// scan-related actions), then folds the sub-signals into a 0-100 risk
// score. The decision is pure: nothing is persisted, and recording an
// actual violation is a separate, explicit call into the abuse ledger.
package admission

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/jgreer/markhound/internal/keywords"
	"github.com/jgreer/markhound/internal/metrics"
	"github.com/jgreer/markhound/internal/plan"
	"github.com/jgreer/markhound/internal/ratelimit"
	"github.com/jgreer/markhound/internal/scanpattern"
	"github.com/jgreer/markhound/internal/traces"
)

// Risk-score weights. A hard block from any check dominates the scale so a
// single critical violation always lands above 70, while graded signals
// (quota proximity, spam ratio) together stay under 70.
const (
	hardBlockWeight = 75
	rateWeight      = 25
	keywordWeight   = 30
	maxRiskScore    = 100
)

// Request is one proposed user action to validate.
type Request struct {
	UserID   string   `json:"userId" binding:"required"`
	Action   string   `json:"action" binding:"required"`
	Plan     string   `json:"plan"`
	Keywords []string `json:"keywords,omitempty"`
}

// Checks holds the sub-results that contributed to a decision. A nil field
// means the check did not apply to this request.
type Checks struct {
	RateLimit      *ratelimit.Result    `json:"rateLimit,omitempty"`
	KeywordQuality *keywords.Assessment `json:"keywordQuality,omitempty"`
	ScanPatterns   *scanpattern.Result  `json:"scanPatterns,omitempty"`
}

// Decision is the composite admission verdict.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	RiskScore int    `json:"riskScore"`
	Checks    Checks `json:"checks"`
}

// Validator composes the three real-time checks.
type Validator struct {
	limiter  *ratelimit.Limiter
	assessor *keywords.Assessor
	scans    *scanpattern.Analyzer
	logger   *slog.Logger
}

// NewValidator creates a composite validator.
func NewValidator(limiter *ratelimit.Limiter, assessor *keywords.Assessor, scans *scanpattern.Analyzer, logger *slog.Logger) *Validator {
	return &Validator{
		limiter:  limiter,
		assessor: assessor,
		scans:    scans,
		logger:   logger,
	}
}

// Validate runs every check that applies to the request and returns the
// composite decision.
func (v *Validator) Validate(ctx context.Context, req *Request) *Decision {
	p := plan.Parse(req.Plan)

	ctx, span := traces.StartSpan(ctx, "admission.Validate",
		traces.UserID(req.UserID), traces.Action(req.Action), traces.Plan(string(p)))
	defer span.End()

	decision := &Decision{Allowed: true}
	risk := 0

	rate := v.limiter.Check(ctx, req.UserID, req.Action, p)
	decision.Checks.RateLimit = rate
	risk += rateContribution(rate, req.Action, p)
	if !rate.Allowed {
		decision.Allowed = false
	}

	if len(req.Keywords) > 0 {
		quality := v.assessor.Assess(ctx, req.UserID, req.Keywords)
		decision.Checks.KeywordQuality = quality
		risk += keywordContribution(quality, len(req.Keywords))
		if !quality.Allowed {
			decision.Allowed = false
		}
	}

	if isScanAction(req.Action) {
		scans := v.scans.Check(ctx, req.UserID, p)
		decision.Checks.ScanPatterns = scans
		if !scans.Allowed {
			risk += hardBlockWeight
			decision.Allowed = false
		}
	}

	if risk > maxRiskScore {
		risk = maxRiskScore
	}
	decision.RiskScore = risk

	span.SetAttributes(traces.RiskScore(risk))
	metrics.ValidationRiskScore.Observe(float64(risk))
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "rejected"
		v.logger.Info("request rejected",
			"user", req.UserID, "action", req.Action, "plan", string(p), "riskScore", risk)
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()

	return decision
}

// rateContribution maps quota pressure onto the risk scale. An exceeded
// limit is a hard block; otherwise proximity to the quota contributes
// proportionally.
func rateContribution(rate *ratelimit.Result, action string, p plan.Plan) int {
	if !rate.Allowed {
		return hardBlockWeight
	}
	pol := plan.RatePolicyFor(p)
	if pol.Unlimited {
		return 0
	}
	quota := pol.QuotaFor(action)
	if quota <= 0 {
		return 0
	}
	used := quota - rate.Remaining
	if used < 0 {
		used = 0
	}
	return int(math.Round(float64(rateWeight) * float64(used) / float64(quota)))
}

// keywordContribution maps the spam ratio onto the risk scale.
func keywordContribution(quality *keywords.Assessment, total int) int {
	if !quality.Allowed {
		return hardBlockWeight
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(keywordWeight) * float64(len(quality.Flagged)) / float64(total)))
}

func isScanAction(action string) bool {
	return action == plan.ActionScanStart || strings.HasPrefix(action, "scan_")
}
