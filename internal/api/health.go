package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/prepwise/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo         store.Repository
	voiceEnabled bool
	timeout      time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, voiceEnabled bool) *HealthHandler {
	return &HealthHandler{repo: repo, voiceEnabled: voiceEnabled, timeout: defaultHealthCheckTimeout}
}

// RegisterRoutes registers the health check and client config routes.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/config", h.Config)
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// Config reports which client features are available.
func (h *HealthHandler) Config(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"voiceEnabled": h.voiceEnabled})
}
