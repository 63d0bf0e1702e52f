package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/animus-labs/animus-audit/internal/config"
	"github.com/animus-labs/animus-audit/internal/ingest"
	"github.com/animus-labs/animus-audit/internal/platform/auditlog"
	"github.com/animus-labs/animus-audit/internal/platform/env"
	"github.com/animus-labs/animus-audit/internal/runner"
	"github.com/animus-labs/animus-audit/internal/runstore"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", env.String("AUDIT_CONFIG", ""), "Pipeline config file (YAML)")
		envFile    = fs.String("env-file", ".env", "Optional .env file")
		dataPath   = fs.String("data", "", "Path to CSV dataset (overrides config)")
		ingestOnly = fs.Bool("ingest-only", false, "Record dataset provenance without training")
	)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	if err := env.LoadDotEnv(*envFile); err != nil {
		logger.Error("invalid env file", "error", err)
		return exitConfig
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid config", "error", err)
		return exitConfig
	}
	if *dataPath != "" {
		cfg.DatasetPath = *dataPath
	}

	store, err := runstore.Open(ctx, cfg.ArtifactsDir, cfg.ObjectStore, logger)
	if err != nil {
		logger.Error("run store unavailable", "error", err)
		return exitRuntime
	}
	recorder, closeRecorder, err := auditlog.OpenRecorder(ctx, cfg.Database)
	if err != nil {
		logger.Error("audit database unavailable", "error", err)
		return exitRuntime
	}
	defer func() { _ = closeRecorder() }()

	res, err := runner.New(store, recorder, logger).Run(ctx, runner.Options{
		DatasetPath:   cfg.DatasetPath,
		IngestOnly:    *ingestOnly,
		TargetColumn:  cfg.TargetColumn,
		PositiveLabel: cfg.PositiveLabel,
		TestFraction:  cfg.TestFraction,
		Seed:          cfg.Seed,
		Params:        cfg.ModelParams(),
	})
	if err != nil {
		if errors.Is(err, ingest.ErrDatasetNotFound) {
			fmt.Fprintf(stderr, "Dataset not found: %s\n", cfg.DatasetPath)
		}
		logger.Error("pipeline run failed", "error", err)
		return exitRuntime
	}

	fmt.Fprintf(stdout, "Run ID: %s\n", res.Record.RunID)
	fmt.Fprintf(stdout, "Global log: %s\n", res.LogPath)
	fmt.Fprintf(stdout, "Per-run metadata: %s\n", res.SnapshotLocation)
	if v, ok := res.Record.MetricValue(); ok {
		fmt.Fprintf(stdout, "Accuracy: %.4f\n", v)
	}
	return exitOK
}
