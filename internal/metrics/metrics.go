// Package metrics provides Prometheus instrumentation for the markhound abuse engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "markhound",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ValidationsTotal counts composite admission decisions by outcome.
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Name:      "validations_total",
			Help:      "Total composite admission decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// ValidationRiskScore observes the composite risk score distribution.
	ValidationRiskScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "markhound",
		Name:      "validation_risk_score",
		Help:      "Composite risk score (0-100) per validated request.",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// ViolationsTotal counts recorded abuse violations by type.
	ViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Name:      "violations_total",
			Help:      "Total abuse violations recorded by type.",
		},
		[]string{"type"},
	)

	// SuspensionsTotal counts account suspensions triggered by the ledger.
	SuspensionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "markhound",
		Name:      "suspensions_total",
		Help:      "Total account suspensions triggered by abuse enforcement.",
	})

	// SuspensionFailuresTotal counts enforcement failures after retries.
	SuspensionFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "markhound",
		Name:      "suspension_failures_total",
		Help:      "Total account suspension attempts that failed after retries.",
	})

	// RateLimitChecksTotal counts rate-limit decisions by result.
	RateLimitChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Name:      "ratelimit_checks_total",
			Help:      "Total rate-limit checks by result (allowed, exceeded, fail_open).",
		},
		[]string{"result"},
	)

	// ClassifierErrorsTotal counts keyword classifier failures.
	ClassifierErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "markhound",
		Name:      "classifier_errors_total",
		Help:      "Total keyword classifier call failures (neutral fallback applied).",
	})

	// DecaySweepsTotal counts completed monitor sweeps.
	DecaySweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "markhound",
		Name:      "decay_sweeps_total",
		Help:      "Total completed abuse-score decay sweeps.",
	})

	// DecaySweepDuration observes sweep latency.
	DecaySweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "markhound",
		Name:      "decay_sweep_duration_seconds",
		Help:      "Duration of abuse-score decay sweeps in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// UsersByState tracks the user population per abuse state after each sweep.
	UsersByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "markhound",
			Name:      "users_by_abuse_state",
			Help:      "Users per abuse state as of the last monitor sweep.",
		},
		[]string{"state"},
	)

	// AuditEmitTotal counts audit emit attempts by event type.
	AuditEmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Subsystem: "audit",
			Name:      "emit_total",
			Help:      "Total audit emit attempts by event type.",
		},
		[]string{"event_type"},
	)

	// AuditEmitErrorsTotal counts audit emit failures by event type.
	AuditEmitErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Subsystem: "audit",
			Name:      "emit_errors_total",
			Help:      "Total audit emit failures by event type.",
		},
		[]string{"event_type"},
	)

	// BreakerTransitionsTotal counts circuit breaker state transitions.
	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markhound",
			Subsystem: "circuitbreaker",
			Name:      "state_transitions_total",
			Help:      "Circuit breaker state transitions by key, from-state, and to-state.",
		},
		[]string{"key", "from_state", "to_state"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "markhound", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "markhound", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "markhound", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "markhound", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ValidationsTotal,
		ValidationRiskScore,
		ViolationsTotal,
		SuspensionsTotal,
		SuspensionFailuresTotal,
		RateLimitChecksTotal,
		ClassifierErrorsTotal,
		DecaySweepsTotal,
		DecaySweepDuration,
		UsersByState,
		AuditEmitTotal,
		AuditEmitErrorsTotal,
		BreakerTransitionsTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
