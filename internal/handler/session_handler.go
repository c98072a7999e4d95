package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-realty-portal/internal/middleware"
	"go-realty-portal/internal/model"
	"go-realty-portal/internal/service"
	"go-realty-portal/pkg/apierror"
)

type SessionHandler struct {
	auth  *service.AuthService
	audit *service.AuditService
}

func NewSessionHandler(auth *service.AuthService, audit *service.AuditService) *SessionHandler {
	return &SessionHandler{auth: auth, audit: audit}
}

// List returns the requester's active sessions, newest first, with the
// current one marked.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	sessions, err := h.auth.ListSessions(r.Context(), identity.UserID, identity.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, sessions)
}

// Revoke kills one of the requester's own sessions. The store treats a
// second revoke as a no-op; here it surfaces as a conflict.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if uuid.Validate(sessionID) != nil {
		writeError(w, model.ErrSessionNotFound)
		return
	}

	session, err := h.auth.FindSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Users may only revoke their own sessions.
	if session.UserID != identity.UserID {
		writeError(w, model.ErrForbidden)
		return
	}

	revoked, err := h.auth.RevokeSession(r.Context(), sessionID, model.RevokeReasonManual)
	if err != nil {
		writeError(w, err)
		return
	}
	if !revoked {
		writeError(w, apierror.New("CONFLICT", "session is already revoked", sessionID, http.StatusConflict))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"revoked": true})
}

// RevokeOthers logs the user out of every device except the one making
// the request.
func (h *SessionHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	count, err := h.auth.RevokeAllSessions(r.Context(), identity.UserID, model.RevokeReasonLogoutAll, identity.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"revoked": count})
}

// History lists the requester's recent authentication events.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	events, err := h.audit.History(r.Context(), identity.UserID, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, events)
}
