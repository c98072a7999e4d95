package handler

import (
	"encoding/json"
	"net/http"

	"go-realty-portal/internal/middleware"
	"go-realty-portal/internal/model"
	"go-realty-portal/internal/service"
	"go-realty-portal/pkg/apierror"
)

type InviteHandler struct {
	accounts *service.AccountService
}

func NewInviteHandler(accounts *service.AccountService) *InviteHandler {
	return &InviteHandler{accounts: accounts}
}

// Create issues an invite. Realtors may invite buyers; admins may
// invite any role.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if identity.Role == model.RoleRealtor && payload.Role != "" && payload.Role != model.RoleBuyer {
		writeError(w, model.ErrForbidden)
		return
	}

	invite, inviteToken, err := h.accounts.CreateInvite(r.Context(), payload.Email, payload.Role, identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"invite": invite,
		"token":  inviteToken,
	})
}

// Accept consumes an invite token and creates the invited account.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.AcceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	user, err := h.accounts.AcceptInvite(r.Context(), payload.Token, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user)
}
