package ratelimit

// Action names with configured windows. Anything else falls back to
// the default rule.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionReset    = "password_reset"
	ActionRefresh  = "refresh"
)

// Identifier composes the window key from the client IP and, when the
// caller is authenticated, the user id. Per-IP and per-user throttling
// then share one key scheme.
func Identifier(ip string, userID string) string {
	if userID == "" {
		return "ip:" + ip
	}
	return "ip:" + ip + "|user:" + userID
}
