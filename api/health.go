package api

import (
	"log/slog"
	"net/http"

	"github.com/anser-ai/anser/internal/session"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store  session.Store
	logger *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(store session.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.ready)
}

// health reports process liveness. It always succeeds.
func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports whether the session store is reachable.
func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not ready", "session store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
