package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_IngestOnly(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "bank.csv")
	if err := os.WriteFile(data, []byte("age,deposit\n30,yes\n40,no\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AUDIT_ARTIFACTS_DIR", filepath.Join(dir, "artifacts"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-data", data, "-ingest-only", "-env-file", filepath.Join(dir, "none.env")}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Run ID: ") || !strings.Contains(stdout.String(), "run_log.jsonl") {
		t.Fatalf("stdout=%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "artifacts", "run_log.jsonl")); err != nil {
		t.Fatalf("run log missing: %v", err)
	}
}

func TestRun_MissingDataset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUDIT_ARTIFACTS_DIR", filepath.Join(dir, "artifacts"))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-data", filepath.Join(dir, "missing.csv"), "-env-file", filepath.Join(dir, "none.env")}, &stdout, &stderr)
	if code != exitRuntime {
		t.Fatalf("exit=%d, want %d", code, exitRuntime)
	}
	if !strings.Contains(stderr.String(), "Dataset not found") {
		t.Fatalf("stderr=%s", stderr.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-nope"}, &stdout, &stderr); code != exitConfig {
		t.Fatalf("exit=%d, want %d", code, exitConfig)
	}
}
