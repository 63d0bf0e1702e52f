package main

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/animus-labs/animus-audit/internal/compliance"
	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/model"
	"github.com/animus-labs/animus-audit/internal/platform/httpserver"
	"github.com/animus-labs/animus-audit/internal/reports"
	"github.com/animus-labs/animus-audit/internal/runstore"
)

// runFiles is the allow-list of artifacts the viewer serves, in display order.
var runFiles = []struct {
	name        string
	contentType string
}{
	{runstore.SnapshotName, "application/json"},
	{reports.DatasetCardName, "text/markdown; charset=utf-8"},
	{reports.ModelCardName, "text/markdown; charset=utf-8"},
	{reports.RunReportName, "text/markdown; charset=utf-8"},
	{compliance.FindingsName, "application/json"},
	{compliance.SummaryName, "text/plain; charset=utf-8"},
	{model.ArtifactName, "application/octet-stream"},
}

type viewerAPI struct {
	logger *slog.Logger
	store  *runstore.Store
}

func newViewerAPI(logger *slog.Logger, store *runstore.Store) *viewerAPI {
	return &viewerAPI{logger: logger, store: store}
}

func (api *viewerAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", api.handleHome)
	mux.HandleFunc("GET /runs", api.handleRunsPage)
	mux.HandleFunc("GET /runs/{run_id}", api.handleRunPage)
	mux.HandleFunc("GET /runs/{run_id}/files/{name}", api.handleRunFile)

	mux.HandleFunc("GET /api/runs", api.handleListRuns)
	mux.HandleFunc("GET /api/runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("GET /api/log", api.handleRunLog)
}

type runView struct {
	RunID        string         `json:"run_id"`
	TimestampUTC time.Time      `json:"timestamp_utc"`
	Accuracy     *float64       `json:"accuracy,omitempty"`
	Verdict      domain.Verdict `json:"compliance_verdict,omitempty"`
}

func (v runView) AccuracyText() string {
	if v.Accuracy == nil {
		return "-"
	}
	return strconv.FormatFloat(*v.Accuracy, 'f', 4, 64)
}

func (v runView) VerdictText() string {
	if v.Verdict == "" {
		return "-"
	}
	return string(v.Verdict)
}

type runDetail struct {
	runView
	Record   domain.RunRecord `json:"metadata"`
	Files    []string         `json:"files"`
	Findings []domain.Finding `json:"findings,omitempty"`
}

// verdict derives the status from the persisted findings; empty if the run was never evaluated.
func (api *viewerAPI) verdict(ctx context.Context, runID string) (domain.Verdict, []domain.Finding) {
	data, err := api.store.GetFile(ctx, runID, compliance.FindingsName)
	if err != nil {
		if !errors.Is(err, runstore.ErrNotFound) {
			api.logger.Warn("read findings failed", "run_id", runID, "error", err)
		}
		return "", nil
	}
	findings, err := compliance.LoadFindings(bytes.NewReader(data))
	if err != nil {
		api.logger.Warn("findings unreadable", "run_id", runID, "error", err)
		return "", nil
	}
	return compliance.Aggregate(findings), findings
}

func (api *viewerAPI) view(ctx context.Context, rec domain.RunRecord) runView {
	v := runView{RunID: rec.RunID, TimestampUTC: rec.TimestampUTC}
	if acc, ok := rec.MetricValue(); ok {
		v.Accuracy = &acc
	}
	v.Verdict, _ = api.verdict(ctx, rec.RunID)
	return v
}

func (api *viewerAPI) listViews(ctx context.Context) ([]runView, error) {
	runs, err := api.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, api.view(ctx, run.Record))
	}
	return views, nil
}

// detail returns nil when the run does not exist or its snapshot is unreadable.
func (api *viewerAPI) detail(ctx context.Context, runID string) (*runDetail, error) {
	lookup, err := api.store.ReadSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	if lookup.Status != runstore.Found {
		if lookup.Status == runstore.Malformed {
			api.logger.Warn("malformed snapshot", "run_id", runID, "reason", lookup.Reason)
		}
		return nil, nil
	}
	d := &runDetail{runView: api.view(ctx, lookup.Record), Record: lookup.Record, Files: []string{}}
	_, d.Findings = api.verdict(ctx, runID)
	for _, f := range runFiles {
		ok, err := api.store.FileExists(ctx, runID, f.name)
		if err != nil {
			return nil, err
		}
		if ok {
			d.Files = append(d.Files, f.name)
		}
	}
	return d, nil
}

func (api *viewerAPI) handleHome(w http.ResponseWriter, r *http.Request) {
	api.renderHTML(w, r, homeTmpl, nil)
}

func (api *viewerAPI) handleRunsPage(w http.ResponseWriter, r *http.Request) {
	views, err := api.listViews(r.Context())
	if err != nil {
		api.logger.Error("list runs failed", "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.renderHTML(w, r, runsTmpl, views)
}

func (api *viewerAPI) handleRunPage(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	d, err := api.detail(r.Context(), runID)
	if err != nil {
		api.logger.Error("read run failed", "run_id", runID, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if d == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_ = notFoundTmpl.Execute(w, runID)
		return
	}
	api.renderHTML(w, r, runTmpl, d)
}

func (api *viewerAPI) handleRunFile(w http.ResponseWriter, r *http.Request) {
	runID, name := r.PathValue("run_id"), r.PathValue("name")
	contentType := ""
	for _, f := range runFiles {
		if f.name == name {
			contentType = f.contentType
			break
		}
	}
	if contentType == "" {
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
		return
	}
	if lookup, err := api.store.ReadSnapshot(r.Context(), runID); err != nil || lookup.Status == runstore.NotFound {
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
		return
	}

	data, err := api.store.GetFile(r.Context(), runID, name)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
			return
		}
		api.logger.Error("read run file failed", "run_id", runID, "name", name, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if contentType == "application/octet-stream" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (api *viewerAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	views, err := api.listViews(r.Context())
	if err != nil {
		api.logger.Error("list runs failed", "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (api *viewerAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	d, err := api.detail(r.Context(), runID)
	if err != nil {
		api.logger.Error("read run failed", "run_id", runID, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if d == nil {
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, d)
}

func (api *viewerAPI) renderHTML(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		api.logger.Error("render failed", "template", t.Name(), "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleRunLog returns the global run log in append order. Lines that do not
// parse are counted rather than failing the request.
func (api *viewerAPI) handleRunLog(w http.ResponseWriter, r *http.Request) {
	records := make([]domain.RunRecord, 0)
	skipped, err := api.store.RunLog().Records(func(rec domain.RunRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		api.logger.Error("read run log failed", "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	if skipped > 0 {
		api.logger.Warn("run log has unparsable lines", "skipped", skipped)
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"skipped": skipped,
	})
}
