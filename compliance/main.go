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
	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/platform/auditlog"
	"github.com/animus-labs/animus-audit/internal/platform/env"
	"github.com/animus-labs/animus-audit/internal/runner"
	"github.com/animus-labs/animus-audit/internal/runstore"
)

const (
	exitOK         = 0
	exitRuntime    = 1
	exitConfig     = 2
	exitStrictFail = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	fs := flag.NewFlagSet("compliance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", env.String("AUDIT_CONFIG", ""), "Pipeline config file (YAML)")
		envFile    = fs.String("env-file", ".env", "Optional .env file")
		runID      = fs.String("run-id", "", "Run to evaluate (default: most recent run)")
		strict     = fs.Bool("strict", false, "Exit 3 when the verdict is FAIL")
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
	rules, err := cfg.ComplianceRules()
	if err != nil {
		logger.Error("invalid compliance rules", "error", err)
		return exitConfig
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

	if *runID == "" {
		fmt.Fprintln(stdout, "No run_id provided. Using latest run.")
	}
	eval, err := runner.New(store, recorder, logger).Evaluate(ctx, *runID, rules)
	if err != nil {
		switch {
		case errors.Is(err, runstore.ErrNoRuns):
			fmt.Fprintln(stderr, "No runs found.")
		case errors.Is(err, runstore.ErrNotFound):
			fmt.Fprintf(stderr, "metadata.json not found for run %s\n", eval.RunID)
		case errors.Is(err, runstore.ErrMalformed):
			fmt.Fprintf(stderr, "metadata.json for run %s is malformed\n", eval.RunID)
		}
		logger.Error("compliance evaluation failed", "error", err)
		return exitRuntime
	}

	fmt.Fprintf(stdout, "Compliance check complete for run %s. Verdict: %s\n", eval.RunID, eval.Verdict)
	for _, f := range eval.Findings {
		if !f.Passed {
			fmt.Fprintf(stdout, "- %s [%s]: %s\n", f.ID, f.Severity, f.Title)
		}
	}
	if *strict && eval.Verdict == domain.VerdictFail {
		return exitStrictFail
	}
	return exitOK
}
