package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	db         Pinger
	countsFile string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, countsFile string) *HealthHandler {
	return &HealthHandler{db: db, countsFile: countsFile}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}

	if err := h.db.Ping(r.Context()); err != nil {
		status["database"] = "error"
		status["status"] = "degraded"
	} else {
		status["database"] = "ok"
	}

	if info, err := os.Stat(filepath.Dir(h.countsFile)); err != nil || !info.IsDir() {
		status["counterStore"] = "error"
		status["status"] = "degraded"
	} else {
		status["counterStore"] = "ok"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, status)
}
