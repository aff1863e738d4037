package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/middleware"
	"planets-engine/internal/scheduler"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type AdminHandler struct {
	scheduler *scheduler.Scheduler
}

func NewAdminHandler(s *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{scheduler: s}
}

// Tick runs one scheduler tick at the current time and returns its report.
func (h *AdminHandler) Tick(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "admin_tick")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	if claims := middleware.GetUserFromContext(r); claims != nil {
		logger = logger.With("empire_id", claims.EmpireID)
	}
	logger.Info("Manual tick requested")

	report, err := h.scheduler.TickNow(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}
