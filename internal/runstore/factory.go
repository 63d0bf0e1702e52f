package runstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
)

// NewBackend selects the MinIO backend when an object store is configured and
// the local artifacts directory otherwise.
func NewBackend(ctx context.Context, artifactsRoot string, cfg objectstore.Config) (Backend, error) {
	if !cfg.Enabled() {
		return NewLocalBackend(artifactsRoot)
	}
	b, err := NewMinioBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("minio backend: %w", err)
	}
	if err := objectstore.EnsureBucket(ctx, b.Client(), cfg); err != nil {
		return nil, err
	}
	return b, nil
}

// Open builds a Store whose global log lives at <artifactsRoot>/run_log.jsonl.
func Open(ctx context.Context, artifactsRoot string, cfg objectstore.Config, logger *slog.Logger) (*Store, error) {
	backend, err := NewBackend(ctx, artifactsRoot, cfg)
	if err != nil {
		return nil, err
	}
	return New(backend, NewRunLog(filepath.Join(artifactsRoot, RunLogName)), logger)
}
