package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/loveshotsmedia/l3arn-updated/config"
	"github.com/loveshotsmedia/l3arn-updated/jwks"
	"github.com/loveshotsmedia/l3arn-updated/services/audit"
	"github.com/loveshotsmedia/l3arn-updated/utils"
	"go.uber.org/zap"
)

// KeySource serves the signing key set and reports its cache state
type KeySource interface {
	Get(ctx context.Context) (*jwks.KeySet, error)
	Stats() jwks.Stats
}

// AuditStatsSource reports the audit queue state
type AuditStatsSource interface {
	GetStats() audit.Stats
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
	Stats   *ReadinessStats   `json:"stats,omitempty"`
}

// ReadinessStats carries the internal state behind the readiness checks
type ReadinessStats struct {
	JWKS  *jwks.Stats  `json:"jwks,omitempty"`
	Audit *audit.Stats `json:"audit,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	keys   KeySource
	audit  AuditStatsSource
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when no audit database is
// configured.
func NewHealthHandler(db *sql.DB, keys KeySource, auditStats AuditStatsSource, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		keys:   keys,
		audit:  auditStats,
		logger: logger,
	}
}

// HandleHealth handles GET /health
// Liveness only: 200 whenever the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Service: config.ServiceName,
		Version: config.Version,
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandlePing handles GET /api/v1/ping
func (h *HealthHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "pong", "version": "v1"}); err != nil {
		h.logger.Error("failed to write ping response", zap.Error(err))
	}
}

// HandleReadiness handles GET /health/ready
// Readiness check - validates that all dependencies are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	stats := &ReadinessStats{}
	allHealthy := true

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.keys != nil {
		if _, err := h.keys.Get(ctx); err != nil {
			h.logger.Warn("jwks health check failed", zap.Error(err))
			checks["jwks"] = "unhealthy"
			allHealthy = false
		} else {
			checks["jwks"] = "healthy"
		}
		keyStats := h.keys.Stats()
		stats.JWKS = &keyStats
	}

	if h.audit != nil {
		auditStats := h.audit.GetStats()
		stats.Audit = &auditStats
		if !auditStats.Started {
			checks["audit"] = "stopped"
			allHealthy = false
		} else {
			checks["audit"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:  status,
		Service: config.ServiceName,
		Version: config.Version,
		Checks:  checks,
		Stats:   stats,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
