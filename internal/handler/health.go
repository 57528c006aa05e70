package handler

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
	natsclient "github.com/RomanRochniak/CapstoneGym/internal/nats"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db         *gorm.DB
	natsClient *natsclient.Client
}

// NewHealthHandler creates a new health handler. natsClient is nil when
// exchange events are disabled.
func NewHealthHandler(gdb *gorm.DB, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		db:         gdb,
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(h.db); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
