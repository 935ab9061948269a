package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jgreer/markhound/internal/abuse"
	"github.com/jgreer/markhound/internal/admission"
	"github.com/jgreer/markhound/internal/logging"
	"github.com/jgreer/markhound/internal/plan"
)

// -----------------------------------------------------------------------------
// Admission checks
// -----------------------------------------------------------------------------

// validateHandler handles POST /v1/validate
func (s *Server) validateHandler(c *gin.Context) {
	var req admission.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId and action are required",
		})
		return
	}

	decision := s.validator.Validate(c.Request.Context(), &req)
	c.JSON(http.StatusOK, decision)
}

type limitCheckRequest struct {
	UserID string `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"`
	Plan   string `json:"plan"`
}

// checkLimitHandler handles POST /v1/limits/check
func (s *Server) checkLimitHandler(c *gin.Context) {
	var req limitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId and action are required",
		})
		return
	}

	result := s.limiter.Check(c.Request.Context(), req.UserID, req.Action, plan.Parse(req.Plan))
	c.JSON(http.StatusOK, result)
}

type keywordCheckRequest struct {
	UserID   string   `json:"userId" binding:"required"`
	Keywords []string `json:"keywords" binding:"required"`
}

// checkKeywordsHandler handles POST /v1/keywords/check
func (s *Server) checkKeywordsHandler(c *gin.Context) {
	var req keywordCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId and keywords are required",
		})
		return
	}

	result := s.assessor.Assess(c.Request.Context(), req.UserID, req.Keywords)
	c.JSON(http.StatusOK, result)
}

// scanPatternsHandler handles GET /v1/scans/:userId/patterns
func (s *Server) scanPatternsHandler(c *gin.Context) {
	userID := c.Param("userId")
	result := s.analyzer.Check(c.Request.Context(), userID, plan.Parse(c.Query("plan")))
	c.JSON(http.StatusOK, result)
}

// -----------------------------------------------------------------------------
// Reputation ledger
// -----------------------------------------------------------------------------

type violationRequest struct {
	UserID      string  `json:"userId" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Severity    float64 `json:"severity"`
	Description string  `json:"description"`
}

// recordViolationHandler handles POST /v1/abuse/violations
func (s *Server) recordViolationHandler(c *gin.Context) {
	var req violationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "userId and type are required",
		})
		return
	}

	score, err := s.ledger.RecordViolation(c.Request.Context(), req.UserID, &abuse.Violation{
		Type:        abuse.ViolationType(req.Type),
		Severity:    req.Severity,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, abuse.ErrInvalidSeverity) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_severity",
				"message": "severity must be between 0 and 1",
			})
			return
		}
		logging.L(c.Request.Context()).Error("failed to record violation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record violation",
		})
		return
	}

	c.JSON(http.StatusCreated, score)
}

// checkUserHandler handles GET /v1/abuse/:userId
func (s *Server) checkUserHandler(c *gin.Context) {
	userID := c.Param("userId")

	result, err := s.ledger.CheckUser(c.Request.Context(), userID)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to check user", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to check user standing",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// reportHandler handles GET /v1/abuse/:userId/report
func (s *Server) reportHandler(c *gin.Context) {
	userID := c.Param("userId")

	from, ok := parseTimeQuery(c, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to", time.Now())
	if !ok {
		return
	}

	report, err := s.ledger.Report(c.Request.Context(), userID, from, to)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to build report", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to build abuse report",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

func parseTimeQuery(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": name + " must be an RFC3339 timestamp",
		})
		return time.Time{}, false
	}
	return t, true
}

// monitorHandler handles POST /v1/abuse/monitor
func (s *Server) monitorHandler(c *gin.Context) {
	stats, err := s.ledger.MonitorAll(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("manual sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Sweep failed",
			"stats":   stats,
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// requireAdmin gates admin-only routes on the X-Admin-Secret header. When no
// secret is configured outside production, the gate is open for local use.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" && !s.cfg.IsProduction() {
			c.Next()
			return
		}
		provided := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.AdminSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Admin secret required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	if s.db != nil {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
