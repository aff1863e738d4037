package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"planets-engine/internal/fleet"
	"planets-engine/internal/middleware"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
	"planets-engine/internal/spatial"
)

type FleetHandler struct {
	service *fleet.Service
}

func NewFleetHandler(service *fleet.Service) *FleetHandler {
	return &FleetHandler{service: service}
}

type FormRequest struct {
	Name  string          `json:"name"`
	Units database.Counts `json:"units"`
}

// TravelRequest names a destination either as "RR:SS:BB" text or as a
// coordinate picked from the map. Both resolve to the same coordinate.
// Destination stays raw so a malformed coordinate is reported as one.
type TravelRequest struct {
	DestinationCoord string          `json:"destinationCoord"`
	Destination      json.RawMessage `json:"destination"`
}

func (req TravelRequest) resolve() (spatial.Coordinate, error) {
	if req.DestinationCoord != "" {
		c, err := spatial.ParseCoordinate(req.DestinationCoord)
		if err != nil {
			return spatial.Coordinate{}, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error())
		}
		return c, nil
	}
	if len(req.Destination) > 0 && string(req.Destination) != "null" {
		var c spatial.Coordinate
		if err := json.Unmarshal(req.Destination, &c); err != nil {
			return spatial.Coordinate{}, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error())
		}
		return c, nil
	}
	return spatial.Coordinate{}, errors.ValidationCode(errors.CodeInvalidCoordinate, "destinationCoord is required")
}

type RecallRequest struct {
	Reason string `json:"reason"`
}

type MovementResponse struct {
	Success  bool            `json:"success"`
	Movement *fleet.Movement `json:"movement"`
}

// Form serves POST /api/bases/{id}/fleets.
func (h *FleetHandler) Form(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "form_fleet")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req FormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}

	f, err := h.service.Form(r.Context(), r.PathValue("id"), req.Name, req.Units)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, f)
}

// GetFleet serves GET /api/fleets/{id}.
func (h *FleetHandler) GetFleet(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_fleet")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	view, err := h.service.GetFleet(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, view)
}

// ListMine serves GET /api/fleets.
func (h *FleetHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_fleets")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("no user claims found in context"))
		return
	}

	fleets, err := h.service.ListEmpireFleets(r.Context(), claims.EmpireID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, fleets)
}

// Dispatch serves POST /api/fleets/{id}/dispatch.
func (h *FleetHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "dispatch_fleet")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	destination, ok := decodeTravel(w, r, logger)
	if !ok {
		return
	}

	movement, err := h.service.Dispatch(r.Context(), r.PathValue("id"), destination)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, MovementResponse{Success: true, Movement: movement})
}

// Estimate serves POST /api/fleets/{id}/estimate.
func (h *FleetHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "estimate_travel")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	destination, ok := decodeTravel(w, r, logger)
	if !ok {
		return
	}

	estimate, err := h.service.EstimateTravel(r.Context(), r.PathValue("id"), destination)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, estimate)
}

// Recall serves POST /api/movements/{id}/recall.
func (h *FleetHandler) Recall(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "recall_movement")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	var req RecallRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
			return
		}
	}

	movement, err := h.service.Recall(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, MovementResponse{Success: true, Movement: movement})
}

func decodeTravel(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (spatial.Coordinate, bool) {
	var req TravelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return spatial.Coordinate{}, false
	}

	destination, err := req.resolve()
	if err != nil {
		response.Error(w, r, logger, err)
		return spatial.Coordinate{}, false
	}
	return destination, true
}
