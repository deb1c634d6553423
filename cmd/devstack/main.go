// Copyright (c) 2026 AssetPulse. All rights reserved.
// Author: platform@assetpulse.io

// Command devstack runs the local development servers: the stand-in identity
// provider and the stand-in AssetPulse backend, on two ports.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load .env (best effort) and configuration from environment variables.
//  3. Build the shared token service (one secret for mint and verify).
//  4. Wire both chi routers with the middleware chain.
//  5. Start both HTTP servers with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/assetpulse/assetpulse-go/internal/devstack"
	"github.com/assetpulse/assetpulse-go/internal/platform/config"
	"github.com/assetpulse/assetpulse-go/internal/platform/middleware"
	"github.com/assetpulse/assetpulse-go/internal/platform/sec"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", "assetpulse-devstack"))
	slog.SetDefault(log)

	log.Info("devstack_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// .env is a development convenience; its absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "assetpulse-devstack"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("identity_port", cfg.DevIdentityPort),
		slog.String("api_port", cfg.DevAPIPort),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// ── 3. Token Service ──────────────────────────────────────────────────
	// One secret on both sides: the identity server mints ID tokens, the API
	// server verifies them in the token exchange.
	tokens := sec.NewTokenService(cfg.TokenSecret, "assetpulse-devstack")

	// ── 4. Wiring ─────────────────────────────────────────────────────────
	identityServer := devstack.NewIdentityServer(tokens, log.With(slog.String("server", "identity")))
	apiServer := devstack.NewAPIServer(tokens, "http://localhost:"+cfg.DevAPIPort, log.With(slog.String("server", "api")))

	identityRouter := newRouter(rootCtx, log)
	identityServer.Routes(identityRouter)

	apiRouter := newRouter(rootCtx, log)
	apiServer.Routes(apiRouter)

	servers := []*http.Server{
		newServer(":"+cfg.DevIdentityPort, identityRouter),
		newServer(":"+cfg.DevAPIPort, apiRouter),
	}

	// ── 5. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, len(servers))
	for _, server := range servers {
		server := server
		go func() {
			log.Info("server_listening", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown_error", slog.String("addr", server.Addr), slog.Any("error", err))
		}
	}

	log.Info("devstack_stopped")
}

// newRouter builds the shared middleware chain both servers sit behind.
func newRouter(ctx context.Context, log *slog.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(log))
	router.Use(middleware.RateLimit(ctx))
	router.Use(middleware.Recover())
	return router
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
