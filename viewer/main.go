package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animus-labs/animus-audit/internal/config"
	"github.com/animus-labs/animus-audit/internal/platform/env"
	"github.com/animus-labs/animus-audit/internal/platform/httpserver"
	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
	"github.com/animus-labs/animus-audit/internal/runstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := flag.String("config", env.String("AUDIT_CONFIG", ""), "Pipeline config file (YAML)")
	envFile := flag.String("env-file", ".env", "Optional .env file")
	flag.Parse()

	if err := env.LoadDotEnv(*envFile); err != nil {
		logger.Error("invalid env file", "error", err)
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	addr := env.String("VIEWER_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("VIEWER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	rps, err := env.Float("VIEWER_RATE_LIMIT_RPS", 20)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	burst, err := env.Int("VIEWER_RATE_LIMIT_BURST", 40)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	store, err := runstore.Open(startupCtx, cfg.ArtifactsDir, cfg.ObjectStore, logger)
	cancel()
	if err != nil {
		logger.Error("run store unavailable", "error", err)
		os.Exit(1)
	}

	checks := []httpserver.ReadinessCheck{{
		Name: "runstore",
		Check: func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			_, err := store.Backend().ListRunIDs(checkCtx)
			return err
		},
	}}
	if mb, ok := store.Backend().(*runstore.MinioBackend); ok {
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return objectstore.CheckBucket(checkCtx, mb.Client(), cfg.ObjectStore)
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("viewer"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("viewer", checks...))

	api := newViewerAPI(logger, store)
	api.register(mux)

	serverCfg := httpserver.Config{
		Service:         "viewer",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	logger.Info("viewer starting", "addr", addr, "backend", store.Backend().Name())
	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, httpserver.RateLimit(httpserver.NewLimiter(rps, burst), mux, "/healthz", "/readyz"))); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
