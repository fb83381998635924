package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/observer/syncparty/internal/api"
	"github.com/observer/syncparty/internal/auth"
	"github.com/observer/syncparty/internal/config"
	"github.com/observer/syncparty/internal/middleware"
	"github.com/observer/syncparty/internal/server"
	"github.com/observer/syncparty/internal/session"
)

func main() {
	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env for local development; production relies on the host env.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.AuthEnabled() {
		slog.Info("authentication enabled",
			"audience", cfg.JWTAudience,
			"issuer", cfg.JWTIssuer,
			"host_roles", cfg.HostRoles,
			"invite_roles", cfg.InviteRoles,
		)
	} else {
		slog.Warn("JWT_SECRET not set - authentication disabled, invites unavailable")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer,
		time.Duration(cfg.InviteTTLSeconds)*time.Second)

	registry := session.NewRegistry()
	hub := session.NewHub(registry, verifier, cfg.HostRoles, cfg.InviteRoles, logger)
	wsHandler := session.NewHandler(hub, logger)

	limiter := middleware.NewRateLimiter(cfg.InviteRatePerMin)
	inviteHandler := api.NewInviteHandler(verifier, registry, cfg.HostRoles, cfg.InviteRoles, limiter, logger)

	srv := server.New(cfg, &server.Dependencies{
		Hub:           hub,
		WSHandler:     wsHandler,
		InviteHandler: inviteHandler,
		Logger:        logger,
	})

	// Start the server in a goroutine so shutdown can be handled below.
	go func() {
		slog.Info("session server starting", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exiting")
}
