package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestEmitterAppendsTypedEvents(t *testing.T) {
	sink := NewMemorySink()
	emitter := NewEmitter(sink, slog.Default())

	emitter.EmitViolation("u1", "spam_keywords", 0.6, 60, "warning")
	emitter.EmitSuspension("u1", 210)
	emitter.EmitRateLimited("u2", "keyword_search", 10)

	events := sink.All()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != EventViolationRecorded || events[0].UserID != "u1" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[0].Data["newScore"] != 60 {
		t.Errorf("newScore = %v, want 60", events[0].Data["newScore"])
	}
	if events[1].Type != EventUserSuspended {
		t.Errorf("event 1 type = %s", events[1].Type)
	}
	if events[2].Type != EventRateLimited || events[2].Data["action"] != "keyword_search" {
		t.Errorf("event 2 = %+v", events[2])
	}
	for _, e := range events {
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("event missing id or timestamp: %+v", e)
		}
	}
}

func TestEmitterListByUser(t *testing.T) {
	sink := NewMemorySink()
	emitter := NewEmitter(sink, slog.Default())

	emitter.EmitDecay("u1", 80, 40, "clean")
	emitter.EmitDecay("u2", 100, 50, "clean")
	emitter.EmitScanFlagged("u1", []string{"burst_activity"})

	events, err := sink.ListByUser(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events for u1, want 2", len(events))
	}
	// Newest first.
	if events[0].Type != EventScanFlagged {
		t.Errorf("first event = %s, want scan flag", events[0].Type)
	}
}

// NilEmitter and failing sinks must never panic or propagate errors.

type failingSink struct{}

func (failingSink) Append(context.Context, *Event) error {
	return errors.New("disk full")
}

func (failingSink) ListByUser(context.Context, string, int) ([]*Event, error) {
	return nil, errors.New("disk full")
}

func TestEmitterSwallowsSinkFailures(t *testing.T) {
	emitter := NewEmitter(failingSink{}, slog.Default())
	emitter.EmitViolation("u1", "spam_keywords", 0.5, 50, "warning")
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	emitter.EmitSuspension("u1", 200)

	emitter = NewEmitter(nil, slog.Default())
	emitter.EmitRateLimited("u1", "scan_start", 5)
}
