package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	ServiceName    = "SmartDoc Analyst"
	ServiceVersion = "1.0.0"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	database Pinger
	// nil when no cache is configured
	cache  Pinger
	logger *slog.Logger
}

func NewHealthHandler(database, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		database: database,
		cache:    cache,
		logger:   logger,
	}
}

// Health reports dependency status. The service is degraded, not down,
// when a dependency fails its ping.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"

	database := "connected"
	if err := h.database.Ping(ctx); err != nil {
		h.logger.Warn("Database health check failed", slog.String("error", err.Error()))
		database = "disconnected"
		status = "degraded"
	}

	cache := "disabled"
	if h.cache != nil {
		cache = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("Cache health check failed", slog.String("error", err.Error()))
			cache = "disconnected"
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": database,
		"cache":    cache,
		"version":  ServiceVersion,
	})
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": ServiceName,
		"version": ServiceVersion,
		"status":  "running",
	})
}
