// Package server exposes the local ops surface: liveness, readiness,
// Prometheus metrics, and the aggregate status snapshot.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aerolink-systems/aerolink-agent/internal/config"
	"github.com/aerolink-systems/aerolink-agent/internal/status"
)

// Pinger is the slice of the store readiness needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the ops endpoints.
type Handler struct {
	store    Pinger
	registry *status.Registry
	clientID int
	version  string
	now      func() time.Time
	startAt  time.Time
}

// NewHandler constructs a Handler. now is the offset-corrected clock
// used for snapshot timestamps; nil falls back to the wall clock.
func NewHandler(store Pinger, registry *status.Registry, clientID int, version string, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:    store,
		registry: registry,
		clientID: clientID,
		version:  version,
		now:      now,
		startAt:  time.Now(),
	}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// Ready reports whether the store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
	})
}

// Status serves the same aggregate snapshot the reporter publishes,
// for local inspection.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"client_id":      h.clientID,
		"version":        h.version,
		"timestamp":      h.now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startAt).Seconds()),
		"components":     h.registry.Snapshot(),
	})
}

// NewRouter constructs a ServeMux with the ops routes registered.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.HandleFunc("/api/v1/status", h.Status)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// New builds the ops HTTP server with the configured timeouts.
func New(cfg config.ServerConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
