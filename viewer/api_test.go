package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/animus-labs/animus-audit/internal/compliance"
	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/platform/httpserver"
	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
	"github.com/animus-labs/animus-audit/internal/runstore"
)

func newTestServer(t *testing.T) (*httptest.Server, *runstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store, err := runstore.Open(context.Background(), t.TempDir(), objectstore.Config{}, logger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	newViewerAPI(logger, store).register(mux)
	srv := httptest.NewServer(httpserver.Wrap(logger, mux))
	t.Cleanup(srv.Close)
	return srv, store
}

func seedRun(t *testing.T, store *runstore.Store, id string, ts time.Time, accuracy float64) domain.RunRecord {
	t.Helper()
	rec := domain.RunRecord{
		RunID:         id,
		TimestampUTC:  ts,
		SchemaVersion: domain.RecordSchemaVersion,
		Model: &domain.ModelInfo{
			Algorithm: "LogisticRegression",
			Metrics:   &domain.Metrics{Metric: "accuracy", Value: domain.Some(accuracy)},
		},
	}
	ctx := context.Background()
	require.NoError(t, store.AppendRecord(ctx, rec))
	require.NoError(t, store.WriteSnapshot(ctx, id, rec))
	return rec
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestHome(t *testing.T) {
	srv, _ := newTestServer(t)
	status, _, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `href="/runs"`)

	status, _, _ = get(t, srv.URL+"/nope")
	require.Equal(t, http.StatusNotFound, status)
}

func TestRunsPage_ListsNewestFirst(t *testing.T) {
	srv, store := newTestServer(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRun(t, store, "run-old", base, 0.81)
	seedRun(t, store, "run-new", base.Add(time.Hour), 0.9)

	status, ct, body := get(t, srv.URL+"/runs")
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.HasPrefix(ct, "text/html"))
	require.Less(t, strings.Index(body, "run-new"), strings.Index(body, "run-old"))
	require.Contains(t, body, "0.9000")
	require.Contains(t, body, "2024-03-01 13:00:00 UTC")
}

func TestRunPage_ShowsVerdictAndArtifacts(t *testing.T) {
	srv, store := newTestServer(t)
	rec := seedRun(t, store, "run-1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 0.75)

	findings := compliance.Evaluate(context.Background(), &rec, store.RunDir(rec.RunID))
	_, err := compliance.Persist(context.Background(), store.RunDir(rec.RunID), &rec, findings)
	require.NoError(t, err)

	status, _, body := get(t, srv.URL+"/runs/run-1")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "FAIL")
	require.Contains(t, body, "/runs/run-1/files/metadata.json")
	require.Contains(t, body, "/runs/run-1/files/compliance_summary.txt")
	require.NotContains(t, body, "/runs/run-1/files/model_card.md")
}

func TestRunPage_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	status, _, body := get(t, srv.URL+"/runs/missing")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body, "No run missing found.")
}

func TestRunFile(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store, "run-1", time.Now().UTC(), 0.5)
	_, err := store.PutFile(context.Background(), "run-1", "secret.txt", []byte("x"), "text/plain")
	require.NoError(t, err)

	status, ct, body := get(t, srv.URL+"/runs/run-1/files/metadata.json")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "application/json", ct)
	require.Contains(t, body, `"run_id": "run-1"`)

	status, _, _ = get(t, srv.URL+"/runs/run-1/files/secret.txt")
	require.Equal(t, http.StatusNotFound, status)

	status, _, _ = get(t, srv.URL+"/runs/run-1/files/model_card.md")
	require.Equal(t, http.StatusNotFound, status)

	status, _, _ = get(t, srv.URL+"/runs/other/files/metadata.json")
	require.Equal(t, http.StatusNotFound, status)
}

func TestAPI_ListAndGet(t *testing.T) {
	srv, store := newTestServer(t)
	seedRun(t, store, "run-1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 0.5)

	status, ct, body := get(t, srv.URL+"/api/runs")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "application/json", ct)
	var list struct {
		Runs []runView `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Runs, 1)
	require.Equal(t, "run-1", list.Runs[0].RunID)
	require.NotNil(t, list.Runs[0].Accuracy)
	require.InDelta(t, 0.5, *list.Runs[0].Accuracy, 1e-9)
	require.Empty(t, list.Runs[0].Verdict)

	status, _, body = get(t, srv.URL+"/api/runs/run-1")
	require.Equal(t, http.StatusOK, status)
	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &detail))
	require.Equal(t, "run-1", detail["run_id"])
	require.Equal(t, []any{runstore.SnapshotName}, detail["files"])

	status, _, body = get(t, srv.URL+"/api/runs/missing")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body, `"error":"not_found"`)
}

func TestAPI_RunLog(t *testing.T) {
	srv, store := newTestServer(t)

	status, _, body := get(t, srv.URL+"/api/log")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"records":[],"skipped":0}`, body)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seedRun(t, store, "run-1", base, 0.5)
	f, err := os.OpenFile(store.LogPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	seedRun(t, store, "run-2", base.Add(time.Hour), 0.6)

	status, _, body = get(t, srv.URL+"/api/log")
	require.Equal(t, http.StatusOK, status)
	var out struct {
		Records []domain.RunRecord `json:"records"`
		Skipped int                `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Equal(t, 1, out.Skipped)
	require.Len(t, out.Records, 2)
	require.Equal(t, "run-1", out.Records[0].RunID)
	require.Equal(t, "run-2", out.Records[1].RunID)
}
