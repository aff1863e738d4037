package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/empire"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type EmpiresHandler struct {
	service *empire.Service
}

func NewEmpiresHandler(service *empire.Service) *EmpiresHandler {
	return &EmpiresHandler{service: service}
}

func (h *EmpiresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_empires")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	empires, err := h.service.GetAllEmpires(r.Context())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if empires == nil {
		empires = []empire.Empire{}
	}

	response.Success(w, http.StatusOK, empires)
}
