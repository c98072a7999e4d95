package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-realty-portal/internal/config"
	"go-realty-portal/internal/database"
	"go-realty-portal/internal/handler"
	"go-realty-portal/internal/middleware"
	"go-realty-portal/internal/ratelimit"
	"go-realty-portal/internal/repository"
	"go-realty-portal/internal/router"
	"go-realty-portal/internal/service"
	"go-realty-portal/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	inviteRepo := repository.NewInviteRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, sessionRepo, codec, auditService, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	accountService := service.NewAccountService(userRepo, sessionRepo, inviteRepo, codec, service.LogMailer{}, auditService, cfg.ResetTokenTTL, cfg.InviteTokenTTL)

	// The rate-limit table is constructed once here and passed by
	// reference; its sweep goroutine is cancelled on shutdown.
	limiter := ratelimit.New(map[string]ratelimit.Rule{
		ratelimit.ActionLogin:    {Limit: cfg.LoginRateLimit, Window: cfg.LoginRateWindow},
		ratelimit.ActionRegister: {Limit: cfg.RegisterRateLimit, Window: cfg.RegisterRateWindow},
		ratelimit.ActionReset:    {Limit: cfg.ResetRateLimit, Window: cfg.ResetRateWindow},
		ratelimit.ActionRefresh:  {Limit: cfg.RefreshRateLimit, Window: cfg.RefreshRateWindow},
	})
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go limiter.Sweep(sweepCtx, cfg.RateLimitSweepInterval)

	gatekeeper := middleware.NewGatekeeper(authService, middleware.DefaultPublicRoutes(), cfg.CookieSecure)

	appRouter := router.New(cfg, gatekeeper, limiter, router.Handlers{
		Auth:    handler.NewAuthHandler(authService, accountService, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.CookieSecure),
		Session: handler.NewSessionHandler(authService, auditService),
		Invite:  handler.NewInviteHandler(accountService),
		Health:  handler.NewHealthHandler(db),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			sweepCancel,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
