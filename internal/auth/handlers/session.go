package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/auth"
	"planets-engine/internal/middleware"
	"planets-engine/internal/shared/cookies"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type SessionResponse struct {
	EmpireID string `json:"empire_id"`
	Role     string `json:"role"`
}

// SessionHandler moves a bearer token into an HttpOnly cookie for browser
// clients and clears it again on logout.
type SessionHandler struct {
	signer   *auth.Signer
	settings cookies.Settings
}

func NewSessionHandler(signer *auth.Signer, settings cookies.Settings) *SessionHandler {
	return &SessionHandler{signer: signer, settings: settings}
}

// Create re-signs the caller's claims and sets them as the auth cookie.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "create_session", "remote_addr", r.RemoteAddr)

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("no user claims found in context"))
		return
	}

	token, err := h.signer.GenerateJWT(claims.EmpireID, claims.Role)
	if err != nil {
		response.Error(w, r, logger, errors.WrapInternal("failed to issue session token", err))
		return
	}
	cookies.SetAuthCookie(w, h.settings, token)

	logger.Info("Session cookie issued", "empire_id", claims.EmpireID)
	response.Success(w, http.StatusCreated, SessionResponse{EmpireID: claims.EmpireID, Role: claims.Role})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "logout", "remote_addr", r.RemoteAddr)
	logger.Debug("Logout requested")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cookies.ClearAuthCookie(w, h.settings)

	logger.Info("Empire logged out")
	w.WriteHeader(http.StatusNoContent)
}
