package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
)

// readinessTimeout bounds dependency probes during readiness checks
const readinessTimeout = 5 * time.Second

// DBChecker is the optional database readiness probe
type DBChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness endpoints
type HealthHandler struct {
	version string
	db      DBChecker // nil when no database is configured
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(version string, db DBChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		db:      db,
		logger:  logger,
	}
}

// HandleHealth handles GET /health. Liveness only; no dependencies are probed.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleReady handles GET /health/ready. Probes the audit database when one
// is configured; any failure yields 503. Upstream Azure services are not
// probed here: a chat round trip is billable and an upstream outage must not
// pull the remaining endpoints out of rotation. Connectivity can be checked
// on demand via GET /api/AzureOpenAI/test.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database readiness check failed", zap.Error(err))
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	status := "ready"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	_ = utils.WriteJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
