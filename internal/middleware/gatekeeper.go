package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go-realty-portal/internal/model"
	"go-realty-portal/internal/token"
)

// SessionResolver resolves an access token to a live identity,
// rechecking session liveness when the token is session-bound.
type SessionResolver interface {
	GetSessionUser(ctx context.Context, accessToken string) (*model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

const signInPath = "/sign-in"

// Forwarded identity headers for downstream handlers.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderSessionID = "X-Session-Id"
)

// rolePrefixes maps each owned path prefix to the role that owns it.
var rolePrefixes = map[string]string{
	"/client":  model.RoleBuyer,
	"/realtor": model.RoleRealtor,
	"/admin":   model.RoleAdmin,
}

// authEntryPaths are pages an already-authenticated user has no
// business on; they bounce to the role's landing path.
var authEntryPaths = map[string]struct{}{
	signInPath: {},
	"/sign-up": {},
}

// Gatekeeper is the single admission chokepoint. Every request is
// classified (public, API, page), its credential extracted from the
// access_token cookie or the Authorization header, and the outcome is
// exactly one of: pass with identity attached, a 401 envelope for API
// routes, or a redirect for page routes.
type Gatekeeper struct {
	resolver     SessionResolver
	publicExact  map[string]struct{}
	publicPrefix []string
	cookieSecure bool
}

func NewGatekeeper(resolver SessionResolver, publicRoutes []string, cookieSecure bool) *Gatekeeper {
	g := &Gatekeeper{
		resolver:     resolver,
		publicExact:  map[string]struct{}{},
		cookieSecure: cookieSecure,
	}

	for _, route := range publicRoutes {
		route = strings.TrimSuffix(route, "/")
		if route == "" {
			route = "/"
		}
		g.publicExact[route] = struct{}{}
	}

	// Anything under these trees is public.
	g.publicPrefix = []string{"/static/", "/assets/"}

	return g
}

// DefaultPublicRoutes is the allowlist for routes that skip all checks.
func DefaultPublicRoutes() []string {
	return []string{
		"/",
		signInPath,
		"/sign-up",
		"/forgot-password",
		"/reset-password",
		"/invite",
		"/health",
		"/api/v1/auth/login",
		"/api/v1/auth/register",
		"/api/v1/auth/refresh",
		"/api/v1/auth/forgot-password",
		"/api/v1/auth/reset-password",
		"/api/v1/auth/invites/accept",
	}
}

func (g *Gatekeeper) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if g.isPublic(path) {
			// Signed-in users hitting sign-in/sign-up go straight to
			// their role's landing path.
			if _, entry := authEntryPaths[path]; entry {
				if identity := g.resolve(r); identity != nil {
					http.Redirect(w, r, model.LandingPath(identity.Role), http.StatusFound)
					return
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		if isAPIRoute(path) {
			g.admitAPI(w, r, next)
			return
		}

		g.admitPage(w, r, next)
	})
}

func (g *Gatekeeper) admitAPI(w http.ResponseWriter, r *http.Request, next http.Handler) {
	raw, ok := extractToken(r)
	if !ok {
		writeAuthError(w, "UNAUTHORIZED", "authentication required")
		return
	}

	identity, err := g.resolver.GetSessionUser(r.Context(), raw)
	if err != nil {
		// Expiry, bad signature and revoked sessions all collapse to
		// one code so the response can't be used as an oracle.
		writeAuthError(w, "INVALID_TOKEN", "invalid or expired token")
		return
	}

	next.ServeHTTP(w, r.WithContext(withIdentity(r, identity)))
}

func (g *Gatekeeper) admitPage(w http.ResponseWriter, r *http.Request, next http.Handler) {
	identity := g.resolve(r)
	if identity == nil {
		ClearAuthCookies(w, g.cookieSecure)
		target := signInPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	// A role that does not own the matched prefix is sent to its own
	// landing path, never to an error page.
	if owner, matched := matchRolePrefix(r.URL.Path); matched && owner != identity.Role {
		http.Redirect(w, r, model.LandingPath(identity.Role), http.StatusFound)
		return
	}

	next.ServeHTTP(w, r.WithContext(withIdentity(r, identity)))
}

// resolve extracts and verifies a credential, returning nil on any
// failure. Used where absence is an outcome rather than an error.
func (g *Gatekeeper) resolve(r *http.Request) *model.Identity {
	raw, ok := extractToken(r)
	if !ok {
		return nil
	}

	identity, err := g.resolver.GetSessionUser(r.Context(), raw)
	if err != nil {
		return nil
	}
	return identity
}

func (g *Gatekeeper) isPublic(path string) bool {
	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	if _, ok := g.publicExact[trimmed]; ok {
		return true
	}
	for _, prefix := range g.publicPrefix {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func matchRolePrefix(path string) (role string, matched bool) {
	for prefix, owner := range rolePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return owner, true
		}
	}
	return "", false
}

// extractToken prefers the access_token cookie and falls back to an
// Authorization bearer header for non-browser clients.
func extractToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return token.FromAuthorizationHeader(r.Header.Get("Authorization"))
}

func withIdentity(r *http.Request, identity *model.Identity) context.Context {
	r.Header.Set(HeaderUserID, identity.UserID)
	r.Header.Set(HeaderUserEmail, identity.Email)
	r.Header.Set(HeaderUserRole, identity.Role)
	if identity.SessionID != "" {
		r.Header.Set(HeaderSessionID, identity.SessionID)
	}
	return context.WithValue(r.Context(), identityContextKey, identity)
}

// IdentityFromContext returns the identity attached by the gatekeeper.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	return identity, ok
}

// RequireRoles guards individual API routes that only some roles may
// call, producing 403 rather than a redirect.
func RequireRoles(allowed ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowed {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, allowed := roleSet[identity.Role]; !allowed {
				writeAuthError(w, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	if code == "FORBIDDEN" {
		w.WriteHeader(http.StatusForbidden)
	} else {
		w.WriteHeader(http.StatusUnauthorized)
	}

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
