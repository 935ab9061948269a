package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jgreer/markhound/internal/idgen"
	"github.com/jgreer/markhound/internal/metrics"
)

const emitTimeout = 5 * time.Second

// Emitter appends audit events to a sink.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
}

// NewEmitter creates a new audit emitter. A nil sink disables emission.
func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	return &Emitter{sink: sink, logger: logger}
}

func (e *Emitter) emit(userID string, eventType EventType, data map[string]interface{}) {
	if e == nil || e.sink == nil {
		return
	}
	metrics.AuditEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if err := e.sink.Append(ctx, event); err != nil {
		metrics.AuditEmitErrorsTotal.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("audit emit failed", "event", eventType, "user", userID, "error", err)
	}
}

// EmitViolation records that a violation was written to the ledger.
func (e *Emitter) EmitViolation(userID, violationType string, severity float64, newScore int, newState string) {
	e.emit(userID, EventViolationRecorded, map[string]interface{}{
		"violationType": violationType,
		"severity":      severity,
		"newScore":      newScore,
		"newState":      newState,
	})
}

// EmitSuspension records an enforcement-driven account suspension.
func (e *Emitter) EmitSuspension(userID string, score int) {
	e.emit(userID, EventUserSuspended, map[string]interface{}{
		"score": score,
	})
}

// EmitRateLimited records a rate-limit rejection.
func (e *Emitter) EmitRateLimited(userID, action string, quota int) {
	e.emit(userID, EventRateLimited, map[string]interface{}{
		"action": action,
		"quota":  quota,
	})
}

// EmitKeywordsRejected records a spam-dominated keyword batch.
func (e *Emitter) EmitKeywordsRejected(userID string, qualityScore float64, flagged int, total int) {
	e.emit(userID, EventKeywordsRejected, map[string]interface{}{
		"qualityScore": qualityScore,
		"flagged":      flagged,
		"total":        total,
	})
}

// EmitScanFlagged records an anomalous scan pattern.
func (e *Emitter) EmitScanFlagged(userID string, riskFactors []string) {
	e.emit(userID, EventScanFlagged, map[string]interface{}{
		"riskFactors": riskFactors,
	})
}

// EmitDecay records a decay sweep mutation for one user.
func (e *Emitter) EmitDecay(userID string, oldScore, newScore int, newState string) {
	e.emit(userID, EventScoreDecayed, map[string]interface{}{
		"oldScore": oldScore,
		"newScore": newScore,
		"newState": newState,
	})
}
