package model

import "time"

const (
	RoleBuyer   = "BUYER"
	RoleRealtor = "REALTOR"
	RoleAdmin   = "ADMIN"
)

// ValidRole reports whether role is one of the three tenant roles.
func ValidRole(role string) bool {
	return role == RoleBuyer || role == RoleRealtor || role == RoleAdmin
}

// LandingPath returns the path prefix a role owns after sign-in.
func LandingPath(role string) string {
	switch role {
	case RoleRealtor:
		return "/realtor"
	case RoleAdmin:
		return "/admin"
	default:
		return "/client"
	}
}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Identity is the per-request identity context attached by the gatekeeper.
// SessionID is empty for tokens minted without a session binding.
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}
