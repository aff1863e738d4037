package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/base"
	"planets-engine/internal/middleware"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type BaseHandler struct {
	service *base.Service
}

func NewBaseHandler(service *base.Service) *BaseHandler {
	return &BaseHandler{service: service}
}

// GetBase serves GET /api/bases/{id}.
func (h *BaseHandler) GetBase(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_base")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	b, err := h.service.GetBase(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, h.service.Describe(b))
}

// ListMine serves GET /api/bases for the authenticated empire.
func (h *BaseHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_bases")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("no user claims found in context"))
		return
	}

	bases, err := h.service.ListEmpireBases(r.Context(), claims.EmpireID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if bases == nil {
		bases = []base.Base{}
	}

	response.Success(w, http.StatusOK, bases)
}
