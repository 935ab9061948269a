package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New(3, time.Minute)
	if !b.Allow("classifier") {
		t.Error("fresh breaker should allow")
	}
	if b.State("classifier") != StateClosed {
		t.Errorf("expected closed, got %s", b.State("classifier"))
	}
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure("classifier")
	b.RecordFailure("classifier")
	if b.State("classifier") != StateClosed {
		t.Error("should still be closed below threshold")
	}

	b.RecordFailure("classifier")
	if b.State("classifier") != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", b.State("classifier"))
	}
	if b.Allow("classifier") {
		t.Error("open breaker should reject")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	b.RecordFailure("classifier")
	if b.State("classifier") != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(20 * time.Millisecond)

	// First request after openDuration is the probe.
	if !b.Allow("classifier") {
		t.Error("expected probe to be allowed")
	}
	if b.State("classifier") != StateHalfOpen {
		t.Errorf("expected half_open, got %s", b.State("classifier"))
	}

	// Second request while probing is rejected.
	if b.Allow("classifier") {
		t.Error("expected concurrent probe to be rejected")
	}

	// Probe success closes the circuit.
	b.RecordSuccess("classifier")
	if b.State("classifier") != StateClosed {
		t.Errorf("expected closed after probe success, got %s", b.State("classifier"))
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	b.RecordFailure("classifier")
	time.Sleep(20 * time.Millisecond)
	_ = b.Allow("classifier") // transition to half-open

	b.RecordFailure("classifier")
	if b.State("classifier") != StateOpen {
		t.Errorf("expected open after probe failure, got %s", b.State("classifier"))
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New(3, time.Minute)

	b.RecordFailure("classifier")
	b.RecordFailure("classifier")
	b.RecordSuccess("classifier")
	b.RecordFailure("classifier")
	b.RecordFailure("classifier")

	if b.State("classifier") != StateClosed {
		t.Error("success should reset the consecutive failure count")
	}
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b := New(1, time.Minute)

	b.RecordFailure("a")
	if b.Allow("a") {
		t.Error("key a should be open")
	}
	if !b.Allow("b") {
		t.Error("key b should be unaffected")
	}
}
