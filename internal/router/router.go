package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-realty-portal/internal/config"
	"go-realty-portal/internal/handler"
	"go-realty-portal/internal/middleware"
	"go-realty-portal/internal/model"
	"go-realty-portal/internal/ratelimit"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Invite  *handler.InviteHandler
	Health  *handler.HealthHandler
}

func New(cfg *config.Config, gatekeeper *middleware.Gatekeeper, limits ratelimit.Store, h Handlers) http.Handler {
	r := chi.NewRouter()
	throttle := middleware.NewThrottle(cfg.RateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(throttle.Handler)
	r.Use(gatekeeper.Handler)

	r.Get("/health", h.Health.Check)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.With(middleware.ActionRateLimit(limits, ratelimit.ActionLogin)).Post("/login", h.Auth.Login)
			auth.With(middleware.ActionRateLimit(limits, ratelimit.ActionRegister)).Post("/register", h.Auth.Register)
			auth.With(middleware.ActionRateLimit(limits, ratelimit.ActionRefresh)).Post("/refresh", h.Auth.Refresh)
			auth.With(middleware.ActionRateLimit(limits, ratelimit.ActionReset)).Post("/forgot-password", h.Auth.ForgotPassword)
			auth.Post("/reset-password", h.Auth.ResetPassword)
			auth.Post("/invites/accept", h.Invite.Accept)

			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/logout-all", h.Auth.LogoutAll)
			auth.Get("/me", h.Auth.Me)
		})

		api.Route("/sessions", func(sessions chi.Router) {
			sessions.Get("/", h.Session.List)
			sessions.Get("/history", h.Session.History)
			sessions.Post("/revoke-others", h.Session.RevokeOthers)
			sessions.Delete("/{session_id}", h.Session.Revoke)
		})

		api.With(middleware.RequireRoles(model.RoleRealtor, model.RoleAdmin)).Post("/invites", h.Invite.Create)
	})

	// Role landing pages. The business UI lives in a separate frontend;
	// these stubs keep the gatekeeper's redirect targets resolvable when
	// the service runs standalone.
	for _, path := range []string{"/", "/sign-in", "/sign-up", "/forgot-password", "/reset-password", "/invite"} {
		r.Get(path, pageStub)
	}
	for _, prefix := range []string{"/client", "/realtor", "/admin"} {
		r.Get(prefix, pageStub)
		r.Get(prefix+"/*", pageStub)
	}

	return r
}

func pageStub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok: " + r.URL.Path))
}
