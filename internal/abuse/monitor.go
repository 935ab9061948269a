package abuse

import (
	"context"
	"log/slog"
	"time"
)

// Monitor periodically sweeps all abuse scores, applying decay and
// surfacing high-risk users. It owns no state of its own: every sweep is
// independently idempotent, so an interrupted run is simply retried on the
// next tick.
type Monitor struct {
	ledger   *Ledger
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewMonitor creates a sweep worker.
// interval is typically 1 hour in production, seconds in tests.
func NewMonitor(ledger *Ledger, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		ledger:   ledger,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Run once immediately on start
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (m *Monitor) Stop() {
	select {
	case m.stop <- struct{}{}:
	default:
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	if _, err := m.ledger.MonitorAll(ctx); err != nil {
		m.logger.Warn("abuse sweep failed", "error", err)
	}
}
