// Package runstore persists run records: the append-only global log plus one
// metadata snapshot and artifact set per run directory.
package runstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/animus-labs/animus-audit/internal/domain"
)

const SnapshotName = "metadata.json"

type LookupStatus int

const (
	Found LookupStatus = iota
	NotFound
	Malformed
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Lookup is the result of reading one snapshot. Record is set only when Found.
type Lookup struct {
	Status LookupStatus
	Record domain.RunRecord
	Reason string
}

func (l Lookup) Err() error {
	switch l.Status {
	case Found:
		return nil
	case NotFound:
		return ErrNotFound
	default:
		if l.Reason == "" {
			return ErrMalformed
		}
		return fmt.Errorf("%w: %s", ErrMalformed, l.Reason)
	}
}

type RunSummary struct {
	RunID        string
	TimestampUTC time.Time
	Record       domain.RunRecord
}

type Store struct {
	backend   Backend
	log       *RunLog
	logger    *slog.Logger
	validator *snapshotValidator
}

func New(backend Backend, runLog *RunLog, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if runLog == nil {
		return nil, errors.New("run log is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	validator, err := newSnapshotValidator()
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, log: runLog, logger: logger, validator: validator}, nil
}

func (s *Store) Backend() Backend { return s.backend }

func (s *Store) LogPath() string { return s.log.Path() }

func (s *Store) RunLog() *RunLog { return s.log }

func (s *Store) AppendRecord(ctx context.Context, record domain.RunRecord) error {
	if err := validateSegment("run id", record.RunID); err != nil {
		return err
	}
	return s.log.Append(record)
}

// WriteSnapshot replaces any prior snapshot for runID. A readable prior
// snapshot may only gain sections; recorded provenance cannot change.
func (s *Store) WriteSnapshot(ctx context.Context, runID string, record domain.RunRecord) error {
	if record.RunID != runID {
		return fmt.Errorf("record run id %q does not match %q", record.RunID, runID)
	}
	prior, err := s.ReadSnapshot(ctx, runID)
	if err != nil {
		return err
	}
	if prior.Status == Found {
		if err := domain.EnsureRunRecordImmutable(prior.Record, record); err != nil {
			return fmt.Errorf("%w: %v", ErrImmutable, err)
		}
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')
	_, err = s.PutFile(ctx, runID, SnapshotName, data, "application/json")
	return err
}

func (s *Store) ReadSnapshot(ctx context.Context, runID string) (Lookup, error) {
	if err := validateSegment("run id", runID); err != nil {
		return Lookup{Status: NotFound, Reason: err.Error()}, nil
	}
	data, err := s.GetFile(ctx, runID, SnapshotName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Lookup{Status: NotFound, Reason: fmt.Sprintf("no snapshot for run %s", runID)}, nil
		}
		return Lookup{}, err
	}
	rec, err := s.validator.decode(data)
	if err != nil {
		return Lookup{Status: Malformed, Reason: err.Error()}, nil
	}
	if rec.RunID != runID {
		return Lookup{Status: Malformed, Reason: fmt.Sprintf("snapshot run_id %q does not match directory %q", rec.RunID, runID)}, nil
	}
	return Lookup{Status: Found, Record: rec}, nil
}

// ListRuns returns readable runs newest first. Runs whose snapshot is missing
// or malformed are logged and skipped.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	ids, err := s.backend.ListRunIDs(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		lookup, err := s.ReadSnapshot(ctx, id)
		if err != nil {
			s.logger.Warn("skipping run", "run_id", id, "error", err)
			continue
		}
		if lookup.Status != Found {
			s.logger.Warn("skipping run", "run_id", id, "status", lookup.Status.String(), "reason", lookup.Reason)
			continue
		}
		runs = append(runs, RunSummary{RunID: id, TimestampUTC: lookup.Record.TimestampUTC, Record: lookup.Record})
	}
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].TimestampUTC.Equal(runs[j].TimestampUTC) {
			return runs[i].TimestampUTC.After(runs[j].TimestampUTC)
		}
		return runs[i].RunID > runs[j].RunID
	})
	return runs, nil
}

// LatestRunID returns the most recently created run directory. The run may
// have no readable snapshot; callers read it and report that.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	return s.backend.NewestRunID(ctx)
}

// PutFile stores a run-scoped file and returns its recorded location.
func (s *Store) PutFile(ctx context.Context, runID, name string, data []byte, contentType string) (string, error) {
	if err := s.backend.Put(ctx, runID, name, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", runID, name, err)
	}
	return s.backend.Locate(runID, name), nil
}

func (s *Store) GetFile(ctx context.Context, runID, name string) ([]byte, error) {
	rc, err := s.backend.Get(ctx, runID, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", runID, name, err)
	}
	return data, nil
}

func (s *Store) FileExists(ctx context.Context, runID, name string) (bool, error) {
	return s.backend.Exists(ctx, runID, name)
}

func (s *Store) RunDir(runID string) *RunDir {
	return &RunDir{runID: runID, store: s}
}
