package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/empire"
	"planets-engine/internal/middleware"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type MeHandler struct {
	service *empire.Service
}

func NewMeHandler(service *empire.Service) *MeHandler {
	return &MeHandler{service: service}
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "me")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("no user claims found in context"))
		return
	}

	e, err := h.service.GetEmpire(r.Context(), claims.EmpireID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, e)
}
