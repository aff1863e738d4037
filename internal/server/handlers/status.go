package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"planets-engine/internal/base"
	"planets-engine/internal/empire"
	"planets-engine/internal/events"
	"planets-engine/internal/scheduler"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type StatusResponse struct {
	Game              string `json:"game"`
	TickCount         int64  `json:"tick_count"`
	LastTickAt        string `json:"last_tick_at,omitempty"`
	Empires           int    `json:"empires"`
	Bases             int    `json:"bases"`
	StreamSubscribers int    `json:"stream_subscribers"`
	DroppedEvents     int64  `json:"dropped_events"`
}

type StatusHandler struct {
	empires *empire.Service
	bases   *base.Service
	state   *scheduler.StateRepository
	bus     *events.Bus
}

func NewStatusHandler(empires *empire.Service, bases *base.Service, state *scheduler.StateRepository, bus *events.Bus) *StatusHandler {
	return &StatusHandler{empires: empires, bases: bases, state: state, bus: bus}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "status")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	empireCount, err := h.empires.GetEmpireCount(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	baseCount, err := h.bases.GetBaseCount(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	resp := StatusResponse{
		Game:              "Planets!",
		Empires:           empireCount,
		Bases:             baseCount,
		StreamSubscribers: h.bus.SubscriberCount(),
		DroppedEvents:     h.bus.Dropped(),
	}

	st, err := h.state.Get(ctx, nil)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to read scheduler state", err))
		return
	}
	if st != nil {
		resp.TickCount = st.TickCount
		resp.LastTickAt = st.LastTickAt.UTC().Format(time.RFC3339Nano)
	}

	response.Success(w, http.StatusOK, resp)
}
