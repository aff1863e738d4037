package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"planets-engine/internal/events"
	"planets-engine/internal/middleware"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
)

// StreamHandler pushes the caller's events over a websocket. Admins receive
// every event.
type StreamHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	buffer   int
}

func NewStreamHandler(bus *events.Bus, allowedOrigin string) *StreamHandler {
	return &StreamHandler{
		bus:    bus,
		buffer: 128,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "event_stream")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger = logger.With("empire_id", claims.EmpireID)
	logger.Info("Event stream opened")

	empireID, admin := claims.EmpireID, claims.Role == "admin"
	sub := h.bus.Subscribe(h.buffer, func(e events.Event) bool {
		return admin || e.EmpireID == empireID
	})
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeLoop(ctx, conn, sub)
	}()

	// The reader only watches for the client going away.
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	logger.Info("Event stream closed")
}

func writeLoop(ctx context.Context, conn *websocket.Conn, sub *events.Subscription) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}
