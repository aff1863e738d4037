package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"planets-engine/internal/catalog"
	"planets-engine/internal/eligibility"
	"planets-engine/internal/energy"
	"planets-engine/internal/queue"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type QueueHandler struct {
	manager *queue.Manager
	energy  *energy.Calculator
}

func NewQueueHandler(manager *queue.Manager, calc *energy.Calculator) *QueueHandler {
	return &QueueHandler{manager: manager, energy: calc}
}

type EnqueueRequest struct {
	CatalogKey  string `json:"catalogKey"`
	TargetLevel int    `json:"targetLevel"`
}

type EnqueueResponse struct {
	Success   bool        `json:"success"`
	QueueItem *queue.Item `json:"queueItem"`
}

// ItemView is a queue item with the time left until it completes.
type ItemView struct {
	queue.Item
	RemainingMs int64 `json:"remaining_ms"`
}

type CancelResponse struct {
	Success   bool        `json:"success"`
	QueueItem *queue.Item `json:"queueItem"`
	Refund    int64       `json:"refund"`
}

// Enqueue serves POST /api/bases/{id}/queues/{kind}.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "enqueue")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	kind, err := catalog.ParseKind(r.PathValue("kind"))
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid queue kind", err))
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}
	if req.CatalogKey == "" {
		response.Error(w, r, logger, errors.Validation("catalogKey is required"))
		return
	}

	item, err := h.manager.Enqueue(r.Context(), r.PathValue("id"), eligibility.Request{
		Kind:        kind,
		CatalogKey:  req.CatalogKey,
		TargetLevel: req.TargetLevel,
	})
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, EnqueueResponse{Success: true, QueueItem: item})
}

// Cancel serves POST /api/queue-items/{id}/cancel.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "cancel_queue_item")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	item, refund, err := h.manager.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, CancelResponse{Success: true, QueueItem: item, Refund: refund})
}

// List serves GET /api/bases/{id}/queues.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_queue_items")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	items, err := h.manager.ListActive(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	views := make([]ItemView, 0, len(items))
	for i := range items {
		views = append(views, ItemView{Item: items[i], RemainingMs: items[i].RemainingMs()})
	}

	response.Success(w, http.StatusOK, views)
}

// Eligibility serves POST /api/bases/{id}/eligibility.
func (h *QueueHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "check_eligibility")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req eligibility.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}

	result, err := h.manager.CheckEligibility(r.Context(), r.PathValue("id"), req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, result)
}

// Energy serves GET /api/bases/{id}/energy.
func (h *QueueHandler) Energy(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "base_energy")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	report, err := h.manager.Energy(r.Context(), r.PathValue("id"), h.energy)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}
