// Package ratelimit enforces per-user, per-action request quotas over fixed
// one-hour windows.
//
// Counts live in a shared Counter store (Redis in production) keyed by user,
// action, and window start. The limiter fails open: if the counter store is
// unreachable, requests are admitted rather than blocking legitimate traffic
// on an infrastructure outage.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgreer/markhound/internal/audit"
	"github.com/jgreer/markhound/internal/metrics"
	"github.com/jgreer/markhound/internal/plan"
)

// Window is the fixed quota window. Counts reset at the top of each hour
// rather than sliding, which keeps the counter store to one key per window.
const Window = time.Hour

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Message   string    `json:"message,omitempty"`
}

// Limiter checks per-user action counts against plan quotas.
type Limiter struct {
	counter Counter
	audit   *audit.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter creates a rate limiter backed by counter.
func NewLimiter(counter Counter, logger *slog.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

// WithAudit attaches an audit emitter for rejection events.
func (l *Limiter) WithAudit(emitter *audit.Emitter) *Limiter {
	l.audit = emitter
	return l
}

// WithClock overrides the limiter's clock for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check decides whether userID may perform action under plan p, and records
// one unit of usage when admitted. It never returns an error: counter-store
// failures admit the request (fail open).
func (l *Limiter) Check(ctx context.Context, userID, action string, p plan.Plan) *Result {
	windowStart := l.now().Truncate(Window)
	resetAt := windowStart.Add(Window)

	pol := plan.RatePolicyFor(p)
	if pol.Unlimited {
		metrics.RateLimitChecksTotal.WithLabelValues("allowed").Inc()
		return &Result{Allowed: true, Remaining: plan.UnlimitedQuota, ResetAt: resetAt}
	}

	quota := pol.QuotaFor(action)
	key := counterKey(userID, action, windowStart)

	count, err := l.counter.Get(ctx, key)
	if err != nil {
		metrics.RateLimitChecksTotal.WithLabelValues("fail_open").Inc()
		l.logger.Warn("counter store unavailable, admitting request",
			"user", userID, "action", action, "error", err)
		return &Result{Allowed: true, Remaining: quota, ResetAt: resetAt}
	}

	if count >= int64(quota) {
		metrics.RateLimitChecksTotal.WithLabelValues("exceeded").Inc()
		l.audit.EmitRateLimited(userID, action, quota)
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
			Message:   fmt.Sprintf("Rate limit exceeded for %s. Limit resets at %s.", action, resetAt.UTC().Format(time.RFC3339)),
		}
	}

	remaining := quota - int(count)
	if _, err := l.counter.Incr(ctx, key, Window); err != nil {
		metrics.RateLimitChecksTotal.WithLabelValues("fail_open").Inc()
		l.logger.Warn("counter increment failed, admitting request",
			"user", userID, "action", action, "error", err)
		return &Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}
	}

	metrics.RateLimitChecksTotal.WithLabelValues("allowed").Inc()
	l.logger.Debug("request admitted", "user", userID, "action", action, "remaining", remaining)
	return &Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

func counterKey(userID, action string, windowStart time.Time) string {
	return fmt.Sprintf("rl:%s:%s:%d", userID, action, windowStart.Unix())
}
