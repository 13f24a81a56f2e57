package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports process and database health. Backend availability is
// deliberately excluded: the console stays up through a backend outage and
// reports it per request instead.
// GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "degraded",
			"database": "unreachable",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}
