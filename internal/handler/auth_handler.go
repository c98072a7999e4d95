package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go-realty-portal/internal/middleware"
	"go-realty-portal/internal/model"
	"go-realty-portal/internal/service"
	"go-realty-portal/pkg/apierror"
)

type AuthHandler struct {
	auth         *service.AuthService
	accounts     *service.AccountService
	accessTTL    time.Duration
	refreshTTL   time.Duration
	cookieSecure bool
}

func NewAuthHandler(auth *service.AuthService, accounts *service.AccountService, accessTTL time.Duration, refreshTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		accounts:     accounts,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		cookieSecure: cookieSecure,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	pair, err := h.auth.Login(r.Context(), payload.Email, payload.Password, r.UserAgent(), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, h.accessTTL, h.refreshTTL, h.cookieSecure)
	writeSuccess(w, http.StatusOK, pair)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	// Self-service registration only creates buyers; realtor and admin
	// accounts come through invites.
	if payload.Role != "" && payload.Role != model.RoleBuyer {
		writeError(w, apierror.New("FORBIDDEN", "role not available for self-registration", payload.Role, http.StatusForbidden))
		return
	}

	user, err := h.accounts.Register(r.Context(), payload.Email, payload.Password, model.RoleBuyer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user)
}

// Refresh reissues an access token against the live session named by
// the refresh token, read from the cookie or the body. The refresh
// token is not rotated. Any miss clears cookies and forces
// re-authentication.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	refreshToken := ""
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var payload model.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			refreshToken = strings.TrimSpace(payload.RefreshToken)
		}
	}
	if refreshToken == "" {
		writeError(w, apierror.New("UNAUTHORIZED", "refresh token is required", "", http.StatusUnauthorized))
		return
	}

	result, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		middleware.ClearAuthCookies(w, h.cookieSecure)
		writeError(w, apierror.New("INVALID_TOKEN", "refresh token is invalid or expired", "", http.StatusUnauthorized))
		return
	}

	middleware.SetAuthCookies(w, result.AccessToken, refreshToken, h.accessTTL, h.refreshTTL, h.cookieSecure)
	writeSuccess(w, http.StatusOK, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.auth.Logout(r.Context(), *identity); err != nil {
		writeError(w, err)
		return
	}

	middleware.ClearAuthCookies(w, h.cookieSecure)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

// LogoutAll revokes every session the user has, current one included.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	count, err := h.auth.RevokeAllSessions(r.Context(), identity.UserID, model.RevokeReasonLogoutAll, "")
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.ClearAuthCookies(w, h.cookieSecure)
	writeSuccess(w, http.StatusOK, map[string]any{"revoked": count})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, identity)
}

// ForgotPassword responds identically whether or not the account
// exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"message": "If that account exists, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"reset": true})
}
