// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jgreer/markhound/internal/abuse"
	"github.com/jgreer/markhound/internal/accounts"
	"github.com/jgreer/markhound/internal/admission"
	"github.com/jgreer/markhound/internal/audit"
	"github.com/jgreer/markhound/internal/config"
	"github.com/jgreer/markhound/internal/keywords"
	"github.com/jgreer/markhound/internal/logging"
	"github.com/jgreer/markhound/internal/metrics"
	"github.com/jgreer/markhound/internal/ratelimit"
	"github.com/jgreer/markhound/internal/scanpattern"
)

// maxRequestSize caps request bodies (1MB).
const maxRequestSize = 1 << 20

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	ledger      *abuse.Ledger
	monitor     *abuse.Monitor
	limiter     *ratelimit.Limiter
	assessor    *keywords.Assessor
	analyzer    *scanpattern.Analyzer
	validator   *admission.Validator
	accounts    accounts.Store
	edgeLimiter *ratelimit.EdgeLimiter
	db          *sql.DB // nil if using in-memory
	redis       *ratelimit.RedisCounter
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	cancelRun   context.CancelFunc

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		scoreStore     abuse.ScoreStore
		violationStore abuse.ViolationStore
		auditSink      audit.Sink
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		scoreStore = abuse.NewPostgresScoreStore(db)
		violationStore = abuse.NewPostgresViolationStore(db)
		auditSink = audit.NewPostgresSink(db)
		s.accounts = accounts.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		scoreStore = abuse.NewMemoryScoreStore()
		violationStore = abuse.NewMemoryViolationStore()
		auditSink = audit.NewMemorySink()
		s.accounts = accounts.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	emitter := audit.NewEmitter(auditSink, s.logger)

	// Counter store (Redis if REDIS_ADDR set, otherwise in-memory)
	var counter ratelimit.Counter
	if cfg.RedisAddr != "" {
		rc, err := ratelimit.NewRedisCounter(cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = rc
		counter = rc
		s.logger.Info("using Redis rate-limit counters", "addr", cfg.RedisAddr)
	} else {
		counter = ratelimit.NewMemoryCounter()
		s.logger.Info("using in-memory rate-limit counters")
	}
	s.limiter = ratelimit.NewLimiter(counter, s.logger).WithAudit(emitter)

	// Keyword classifier (neutral verdicts if no endpoint configured)
	var classifier keywords.Classifier
	if cfg.ClassifierURL != "" {
		classifier = keywords.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout)
		s.logger.Info("keyword classifier enabled", "url", cfg.ClassifierURL)
	} else {
		classifier = &keywords.StaticClassifier{Result: keywords.Classification{SpamScore: 0.5}}
		s.logger.Warn("no classifier configured, keywords score neutral")
	}
	s.assessor = keywords.NewAssessor(classifier, s.logger).WithAudit(emitter)

	s.analyzer = scanpattern.NewAnalyzer(s.activityProvider(), s.logger).WithAudit(emitter)

	s.validator = admission.NewValidator(s.limiter, s.assessor, s.analyzer, s.logger)

	s.ledger = abuse.NewLedger(scoreStore, violationStore, s.accounts, s.logger).
		WithAudit(emitter).
		WithGracePeriod(cfg.DecayGracePeriod)
	s.monitor = abuse.NewMonitor(s.ledger, cfg.SweepInterval, s.logger)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// activityProvider picks the scan-activity source for the analyzer.
func (s *Server) activityProvider() scanpattern.ActivityProvider {
	if s.db != nil {
		return scanpattern.NewPostgresProvider(s.db)
	}
	return scanpattern.NewMemoryProvider()
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Request size limit
	s.router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
		c.Next()
	})

	// Coarse per-IP rate limiting in front of the plan-aware checks
	edgeCfg := ratelimit.DefaultEdgeConfig()
	if s.cfg.RateLimitRPS > 0 {
		edgeCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		edgeCfg.BurstSize = s.cfg.RateLimitRPS
	}
	s.edgeLimiter = ratelimit.NewEdgeLimiter(edgeCfg)
	s.router.Use(s.edgeLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Honor an upstream request ID from a load balancer
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	// Real-time admission checks
	v1.POST("/validate", s.validateHandler)
	v1.POST("/limits/check", s.checkLimitHandler)
	v1.POST("/keywords/check", s.checkKeywordsHandler)
	v1.GET("/scans/:userId/patterns", s.scanPatternsHandler)

	// Reputation ledger
	v1.POST("/abuse/violations", s.recordViolationHandler)
	v1.GET("/abuse/:userId", s.checkUserHandler)
	v1.GET("/abuse/:userId/report", s.reportHandler)

	// Admin: trigger a full decay sweep out of schedule
	v1.POST("/abuse/monitor", s.requireAdmin(), s.monitorHandler)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start the decay sweep worker
	go s.monitor.Start(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRun != nil {
		s.cancelRun()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.monitor.Stop()
	s.logger.Info("monitor stopped")

	if s.edgeLimiter != nil {
		s.edgeLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
