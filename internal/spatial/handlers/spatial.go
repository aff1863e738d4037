package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
	"planets-engine/internal/spatial"
)

type SpatialHandler struct {
	metric spatial.Metric
}

func NewSpatialHandler(metric spatial.Metric) *SpatialHandler {
	return &SpatialHandler{metric: metric}
}

type DistanceResponse struct {
	From     spatial.Coordinate `json:"from"`
	To       spatial.Coordinate `json:"to"`
	Distance float64            `json:"distance"`
}

// GetDistance serves GET /api/spatial/distance?from=RR:SS:BB&to=RR:SS:BB.
func (h *SpatialHandler) GetDistance(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_distance")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	from, err := spatial.ParseCoordinate(r.URL.Query().Get("from"))
	if err != nil {
		response.Error(w, r, logger, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error()))
		return
	}
	to, err := spatial.ParseCoordinate(r.URL.Query().Get("to"))
	if err != nil {
		response.Error(w, r, logger, errors.ValidationCode(errors.CodeInvalidCoordinate, err.Error()))
		return
	}

	response.Success(w, http.StatusOK, DistanceResponse{
		From:     from,
		To:       to,
		Distance: h.metric.CalculateDistance(from, to),
	})
}
