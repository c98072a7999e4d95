package token

import "strings"

const bearerPrefix = "Bearer "

// FromAuthorizationHeader returns the bearer token carried by an
// Authorization header value. A header without the exact "Bearer "
// prefix (case-sensitive) is treated as absent, not malformed.
func FromAuthorizationHeader(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}

	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", false
	}

	return raw, true
}
