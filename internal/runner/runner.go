// Package runner orchestrates one pipeline run and one compliance evaluation.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/fingerprint"
	"github.com/animus-labs/animus-audit/internal/ingest"
	"github.com/animus-labs/animus-audit/internal/model"
	"github.com/animus-labs/animus-audit/internal/platform/auditlog"
	"github.com/animus-labs/animus-audit/internal/reports"
	"github.com/animus-labs/animus-audit/internal/runstore"
	"github.com/animus-labs/animus-audit/internal/transform"
)

const (
	actorPipeline   = "animus-audit/pipeline"
	actorCompliance = "animus-audit/compliance"
)

type Options struct {
	DatasetPath   string
	IngestOnly    bool
	TargetColumn  string
	PositiveLabel string
	TestFraction  float64
	Seed          int64
	Params        model.Params
}

type Result struct {
	Record           domain.RunRecord
	LogPath          string
	SnapshotLocation string
}

type Runner struct {
	store    *runstore.Store
	recorder auditlog.Recorder
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(store *runstore.Store, recorder auditlog.Recorder, logger *slog.Logger) *Runner {
	if recorder == nil {
		recorder = auditlog.Noop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Runner{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Run executes ingest and, unless IngestOnly is set, transform, training and
// report generation. The record is appended to the global log and then
// written as the run snapshot.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	frame, err := ingest.Load(opts.DatasetPath)
	if err != nil {
		return Result{}, err
	}
	dataset, err := ingest.Describe(opts.DatasetPath, frame)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("dataset loaded", "path", opts.DatasetPath, "rows", dataset.Rows, "columns", len(dataset.Columns), "sha256", dataset.DatasetSHA256)

	rec := domain.RunRecord{
		RunID:         r.newID(),
		TimestampUTC:  r.now(),
		SchemaVersion: domain.RecordSchemaVersion,
		Dataset:       &dataset,
	}

	if !opts.IngestOnly {
		if err := r.train(ctx, &rec, frame, opts); err != nil {
			return Result{}, fmt.Errorf("run %s: %w", rec.RunID, err)
		}
	}
	if err := r.writeReports(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("run %s: %w", rec.RunID, err)
	}

	if err := r.store.AppendRecord(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("append run log: %w", err)
	}
	if err := r.store.WriteSnapshot(ctx, rec.RunID, rec); err != nil {
		return Result{}, fmt.Errorf("write snapshot: %w", err)
	}
	r.logger.Info("run recorded", "run_id", rec.RunID, "ingest_only", opts.IngestOnly, "backend", r.store.Backend().Name())

	r.audit(ctx, auditlog.Event{
		OccurredAt: rec.TimestampUTC,
		Actor:      actorPipeline,
		Action:     auditlog.ActionRunCreate,
		RunID:      rec.RunID,
		Payload: map[string]any{
			"dataset_sha256": dataset.DatasetSHA256,
			"ingest_only":    opts.IngestOnly,
			"model_card":     rec.ModelCardHash,
		},
	})

	return Result{
		Record:           rec,
		LogPath:          r.store.LogPath(),
		SnapshotLocation: r.store.Backend().Locate(rec.RunID, runstore.SnapshotName),
	}, nil
}

func (r *Runner) train(ctx context.Context, rec *domain.RunRecord, frame *ingest.Frame, opts Options) error {
	cleaned, err := transform.BasicClean(frame)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	features, err := transform.PrepareFeatures(cleaned, opts.TargetColumn, opts.PositiveLabel)
	if err != nil {
		return fmt.Errorf("prepare features: %w", err)
	}
	split, err := transform.TrainTestSplit(features.X, features.Y, opts.TestFraction, opts.Seed)
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	rec.Transform = &domain.TransformInfo{
		RowsAfterClean: domain.Some(int64(cleaned.Len())),
		NFeatures:      len(features.Names),
		TrainSize:      len(split.YTrain),
		TestSize:       len(split.YTest),
	}

	clf, err := model.Train(split.XTrain, split.YTrain, features.Names, opts.Params)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	pred, err := clf.Predict(split.XTest)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	acc, err := model.Accuracy(split.YTest, pred)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	r.logger.Info("model trained", "run_id", rec.RunID, "iterations", clf.Iters, "accuracy", acc)

	encoded, err := clf.Encode()
	if err != nil {
		return err
	}
	artifactPath, err := r.store.PutFile(ctx, rec.RunID, model.ArtifactName, encoded, model.ArtifactContentType)
	if err != nil {
		return err
	}
	rec.Model = &domain.ModelInfo{
		Algorithm:       model.Algorithm,
		Hyperparameters: opts.Params.Hyperparameters(),
		Metrics:         &domain.Metrics{Metric: "accuracy", Value: domain.Some(acc)},
		ArtifactPath:    artifactPath,
	}

	// The digest is taken from the exact bytes stored, before anything else can touch the file.
	card, err := reports.ModelCard(*rec.Model)
	if err != nil {
		return err
	}
	rec.ModelCardHash = fingerprint.Bytes(card)
	if _, err := r.store.PutFile(ctx, rec.RunID, reports.ModelCardName, card, reports.ContentType); err != nil {
		return err
	}
	return nil
}

func (r *Runner) writeReports(ctx context.Context, rec domain.RunRecord) error {
	datasetCard, err := reports.DatasetCard(*rec.Dataset)
	if err != nil {
		return err
	}
	if _, err := r.store.PutFile(ctx, rec.RunID, reports.DatasetCardName, datasetCard, reports.ContentType); err != nil {
		return err
	}
	report, err := reports.RunReport(rec)
	if err != nil {
		return err
	}
	_, err = r.store.PutFile(ctx, rec.RunID, reports.RunReportName, report, reports.ContentType)
	return err
}

// audit mirrors an event. Mirror failures are logged; the run log stays the source of truth.
func (r *Runner) audit(ctx context.Context, event auditlog.Event) {
	if err := r.recorder.Record(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("audit mirror failed", "action", event.Action, "run_id", event.RunID, "error", err)
	}
}
