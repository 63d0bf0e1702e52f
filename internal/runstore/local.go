package runstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalBackend keeps run directories on disk at <root>/runs/<run_id>.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, errors.New("artifacts root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	return &LocalBackend{root: abs}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) runsDir() string {
	return filepath.Join(b.root, "runs")
}

func (b *LocalBackend) path(runID, name string) string {
	return filepath.Join(b.runsDir(), runID, name)
}

func (b *LocalBackend) Put(ctx context.Context, runID, name string, body io.Reader, size int64, contentType string) error {
	if err := validateFile(runID, name); err != nil {
		return err
	}
	dir := filepath.Join(b.runsDir(), runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), b.path(runID, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, runID, name string) (io.ReadCloser, error) {
	if err := validateFile(runID, name); err != nil {
		return nil, err
	}
	f, err := os.Open(b.path(runID, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", runID, name, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (b *LocalBackend) Exists(ctx context.Context, runID, name string) (bool, error) {
	if err := validateFile(runID, name); err != nil {
		return false, err
	}
	return statRegular(b.path(runID, name))
}

func (b *LocalBackend) ListRunIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.runsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// NewestRunID dates each run directory by its oldest visible entry, so files
// rewritten later (findings, summaries) do not make an old run look new.
// An empty directory falls back to its own modification time.
func (b *LocalBackend) NewestRunID(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(b.runsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoRuns
		}
		return "", fmt.Errorf("list runs: %w", err)
	}
	created := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		at, err := b.createdAt(entry.Name())
		if err != nil {
			return "", err
		}
		created[entry.Name()] = at
	}
	return newestRun(created)
}

func (b *LocalBackend) createdAt(runID string) (time.Time, error) {
	dir := filepath.Join(b.runsDir(), runID)
	files, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	seen := map[string]time.Time{}
	for _, f := range files {
		if strings.HasPrefix(f.Name(), ".") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return time.Time{}, err
		}
		noteCreated(seen, runID, info.ModTime())
	}
	if at, ok := seen[runID]; ok {
		return at, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (b *LocalBackend) Locate(runID, name string) string {
	return b.path(runID, name)
}

// ExistsAt resolves relative locations against the artifacts root.
func (b *LocalBackend) ExistsAt(ctx context.Context, location string) (bool, error) {
	if location == "" {
		return false, nil
	}
	if !filepath.IsAbs(location) {
		location = filepath.Join(b.root, location)
	}
	return statRegular(location)
}

func statRegular(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
