package handlers

import (
	"net/http"

	"github.com/wendao/limitpulse/internal/health"
	"github.com/wendao/limitpulse/pkg/logger"
)

// HealthHandler serves liveness and upstream source health.
type HealthHandler struct {
	tracker *health.Tracker
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tracker *health.Tracker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		tracker: tracker,
		logger:  log,
	}
}

// Liveness returns server health status
// GET /health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "limitpulse-api",
	})
}

// Sources returns per-source acquisition health
// GET /api/sources/health
func (h *HealthHandler) Sources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tracker.Snapshot())
}
