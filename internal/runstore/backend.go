package runstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrMalformed = errors.New("malformed run record")
	ErrNoRuns    = errors.New("no runs found")
	ErrImmutable = errors.New("snapshot rewrite changes recorded provenance")
)

// Backend stores run-scoped files under runs/<run_id>/<name>.
type Backend interface {
	Name() string
	Put(ctx context.Context, runID, name string, body io.Reader, size int64, contentType string) error
	// Get returns ErrNotFound when the file does not exist.
	Get(ctx context.Context, runID, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, runID, name string) (bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
	// NewestRunID returns the most recently created run directory, whether or
	// not it holds a snapshot. It returns ErrNoRuns when there are none.
	NewestRunID(ctx context.Context) (string, error)
	// Locate returns the location recorded in run metadata for a file.
	Locate(runID, name string) string
	// ExistsAt reports whether a previously recorded location still resolves.
	ExistsAt(ctx context.Context, location string) (bool, error)
}

func validateSegment(kind, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if v == "." || v == ".." || strings.ContainsAny(v, `/\`) || strings.ContainsRune(v, 0) {
		return fmt.Errorf("invalid %s: %q", kind, v)
	}
	return nil
}

func validateFile(runID, name string) error {
	if err := validateSegment("run id", runID); err != nil {
		return err
	}
	return validateSegment("file name", name)
}

// noteCreated keeps the earliest time seen for a run, which stands in for
// the directory's creation time.
func noteCreated(created map[string]time.Time, runID string, t time.Time) {
	if prev, ok := created[runID]; !ok || t.Before(prev) {
		created[runID] = t
	}
}

// newestRun picks the latest creation time; ties go to the greater run id.
func newestRun(created map[string]time.Time) (string, error) {
	var (
		best   string
		bestAt time.Time
	)
	for id, at := range created {
		if best == "" || at.After(bestAt) || (at.Equal(bestAt) && id > best) {
			best, bestAt = id, at
		}
	}
	if best == "" {
		return "", ErrNoRuns
	}
	return best, nil
}
