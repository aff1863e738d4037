package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"planets-engine/internal/scheduler"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/redis"
	"planets-engine/internal/shared/response"
)

type HealthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Database   string `json:"database"`
	Redis      string `json:"redis"`
	LastTickAt string `json:"last_tick_at,omitempty"`
	TickCount  int64  `json:"tick_count"`
}

type HealthHandler struct {
	db    *database.DB
	redis *redis.Client
	state *scheduler.StateRepository
}

// NewHealthHandler accepts a nil redis client when Redis is disabled.
func NewHealthHandler(db *database.DB, rdb *redis.Client, state *scheduler.StateRepository) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, state: state}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "connected",
		Redis:     "disabled",
	}

	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("Database ping failed", "error", err)
		resp.Database = "disconnected"
		resp.Status = "degraded"
	}

	if h.redis != nil {
		resp.Redis = "connected"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis ping failed", "error", err)
			resp.Redis = "disconnected"
			resp.Status = "degraded"
		}
	}

	if resp.Database == "connected" {
		st, err := h.state.Get(ctx, nil)
		if err != nil {
			logger.Warn("Failed to read scheduler state", "error", err)
		} else if st != nil {
			resp.LastTickAt = st.LastTickAt.UTC().Format(time.RFC3339Nano)
			resp.TickCount = st.TickCount
		}
	}

	response.Success(w, http.StatusOK, resp)
}
