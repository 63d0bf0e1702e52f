//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestPipelineToViewer builds the three binaries, records a training run,
// evaluates it in strict mode and reads the verdict back through the viewer.
// Set AUDIT_E2E_MINIO_* and AUDIT_E2E_DATABASE_URL to run against real
// infrastructure; otherwise the local filesystem backend is used.
func TestPipelineToViewer(t *testing.T) {
	root := repoRoot(t)
	tmp := t.TempDir()

	bins := map[string]string{}
	for _, name := range []string{"pipeline", "compliance", "viewer"} {
		bin := filepath.Join(tmp, name+".bin")
		build := exec.Command("go", "build", "-o", bin, "./"+name)
		build.Dir = root
		if out, err := build.CombinedOutput(); err != nil {
			t.Fatalf("go build %s: %v\n%s", name, err, string(out))
		}
		bins[name] = bin
	}

	artifacts := filepath.Join(tmp, "artifacts")
	env := append(os.Environ(),
		"AUDIT_ARTIFACTS_DIR="+artifacts,
		"AUDIT_DATASET_PATH="+writeDataset(t, tmp),
	)
	env = append(env, infraEnv(t)...)

	out := runBinary(t, bins["pipeline"], env, 0, "-env-file", filepath.Join(tmp, "absent.env"))
	runID := lineValue(t, out, "Run ID: ")

	out = runBinary(t, bins["compliance"], env, 0, "-env-file", filepath.Join(tmp, "absent.env"), "-strict")
	if !strings.Contains(out, "No run_id provided. Using latest run.") {
		t.Fatalf("compliance did not fall back to the latest run:\n%s", out)
	}
	if !strings.Contains(out, fmt.Sprintf("Compliance check complete for run %s. Verdict: PASS", runID)) {
		t.Fatalf("unexpected compliance output:\n%s", out)
	}

	addr := freeAddr(t)
	var logs bytes.Buffer
	viewer := exec.Command(bins["viewer"], "-env-file", filepath.Join(tmp, "absent.env"))
	viewer.Env = append(env, "VIEWER_HTTP_ADDR="+addr)
	viewer.Stdout = &logs
	viewer.Stderr = &logs
	if err := viewer.Start(); err != nil {
		t.Fatalf("start viewer: %v", err)
	}
	t.Cleanup(func() { stopProcess(t, viewer, &logs) })

	waitHTTP200(t, fmt.Sprintf("http://%s/readyz", addr))

	resp, err := http.Get(fmt.Sprintf("http://%s/api/runs/%s", addr, runID))
	if err != nil {
		t.Fatalf("GET run: %v\n%s", err, logs.String())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET run status=%d\n%s", resp.StatusCode, logs.String())
	}
	var detail struct {
		RunID   string   `json:"run_id"`
		Verdict string   `json:"compliance_verdict"`
		Files   []string `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if detail.RunID != runID || detail.Verdict != "PASS" {
		t.Fatalf("run detail = %+v", detail)
	}
	if len(detail.Files) != 7 {
		t.Fatalf("files = %v, want all seven artifacts", detail.Files)
	}
}

func infraEnv(t *testing.T) []string {
	t.Helper()

	var env []string
	if endpoint := strings.TrimSpace(os.Getenv("AUDIT_E2E_MINIO_ENDPOINT")); endpoint != "" {
		accessKey := strings.TrimSpace(os.Getenv("AUDIT_E2E_MINIO_ACCESS_KEY"))
		secretKey := strings.TrimSpace(os.Getenv("AUDIT_E2E_MINIO_SECRET_KEY"))
		if accessKey == "" || secretKey == "" {
			t.Fatalf("AUDIT_E2E_MINIO_ACCESS_KEY and AUDIT_E2E_MINIO_SECRET_KEY are required with AUDIT_E2E_MINIO_ENDPOINT")
		}
		env = append(env,
			"AUDIT_OBJECTSTORE_ENDPOINT="+endpoint,
			"AUDIT_OBJECTSTORE_ACCESS_KEY="+accessKey,
			"AUDIT_OBJECTSTORE_SECRET_KEY="+secretKey,
			"AUDIT_OBJECTSTORE_USE_SSL=false",
			"AUDIT_OBJECTSTORE_BUCKET=audit-e2e",
			fmt.Sprintf("AUDIT_OBJECTSTORE_PREFIX=e2e-%d", time.Now().UnixNano()),
		)
	}
	if url := strings.TrimSpace(os.Getenv("AUDIT_E2E_DATABASE_URL")); url != "" {
		env = append(env, "AUDIT_DATABASE_URL="+url)
	}
	return env
}

func writeDataset(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("age,job,balance,deposit\n")
	jobs := []string{"admin", "technician", "services"}
	for i := 0; i < 80; i++ {
		deposit := "no"
		if i%2 == 0 {
			deposit = "yes"
		}
		fmt.Fprintf(&b, "%d,%s,%d,%s\n", 20+i, jobs[i%3], 100+i*10*(i%2), deposit)
	}
	path := filepath.Join(dir, "bank.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func runBinary(t *testing.T, bin string, env []string, wantCode int, args ...string) string {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("run %s: %v", bin, err)
	}
	if code != wantCode {
		t.Fatalf("%s exit=%d, want %d\nstdout:\n%s\nstderr:\n%s", filepath.Base(bin), code, wantCode, stdout.String(), stderr.String())
	}
	return stdout.String()
}

func lineValue(t *testing.T, out, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q line in output:\n%s", prefix, out)
	return ""
}

func repoRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(file))
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitHTTP200(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 500 * time.Millisecond}
	deadline := time.Now().Add(8 * time.Second)
	for {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", url)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func stopProcess(t *testing.T, cmd *exec.Cmd, out *bytes.Buffer) {
	t.Helper()

	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	case err := <-done:
		if err != nil {
			t.Fatalf("process exit: %v\n%s", err, out.String())
		}
	}
}
