package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/itemsvc/internal/db"
)

// readyTimeout bounds the database ping of a readiness probe.
const readyTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	DB      *sqlx.DB
	Version string
	Started time.Time
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    int64     `json:"uptime"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health. It reports only that the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	jsonResponse(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: now,
		Version:   h.Version,
		Uptime:    int64(now.Sub(h.Started).Seconds()),
	})
}

// Ready handles GET /ready. It fails with 503 while the database is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := db.Ping(ctx, h.DB); err != nil {
		slog.Warn("readiness check failed", "error", err)
		jsonResponse(w, http.StatusServiceUnavailable, readyResponse{
			Status: "not_ready",
			Checks: map[string]string{"database": "unavailable"},
		})
		return
	}

	jsonResponse(w, http.StatusOK, readyResponse{
		Status: "ready",
		Checks: map[string]string{"database": "ok"},
	})
}
