package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// Healthz reports process liveness only.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "podforge"})
}

// Readyz reports whether the dependencies the API needs are reachable.
// Postgres holds episodes; Redis backs the job queue and progress
// tracking.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	check := func(name string, err error) {
		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}

	if h.db != nil {
		check("database", h.db.Ping(r.Context()))
	}
	if h.redis != nil {
		check("redis", h.redis.Ping(r.Context()).Err())
	}

	status := http.StatusOK
	overall := "ok"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	writeJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
