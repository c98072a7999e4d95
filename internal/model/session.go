package model

import "time"

// Revocation reasons recorded on a session. A session row is never
// deleted; revocation is append-only state.
const (
	RevokeReasonManual    = "manual_revoke"
	RevokeReasonLogoutAll = "logout_all_devices"
	RevokeReasonExpired   = "expired"
	RevokeReasonReplaced  = "replaced"
)

type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	RefreshTokenHash string     `json:"-"`
	UserAgent        string     `json:"user_agent,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
	IsRevoked        bool       `json:"is_revoked"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedReason    string     `json:"revoked_reason,omitempty"`
}

// SessionInfo is the listing shape exposed to end users. The refresh
// token hash never leaves the store layer.
type SessionInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	IsCurrent  bool      `json:"is_current"`
}

type Invite struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	InvitedBy string     `json:"invited_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// AuthEvent is an append-only audit record of an authentication action.
type AuthEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AuthEventLogin          = "login"
	AuthEventLoginFailed    = "login_failed"
	AuthEventLogout         = "logout"
	AuthEventRefresh        = "refresh"
	AuthEventSessionRevoked = "session_revoked"
	AuthEventPasswordReset  = "password_reset"
	AuthEventInviteAccepted = "invite_accepted"
)
