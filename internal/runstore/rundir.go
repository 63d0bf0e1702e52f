package runstore

import (
	"context"
	"io"
)

// RunDir is the read view of one run directory plus the global log.
type RunDir struct {
	runID string
	store *Store
}

func (d *RunDir) RunID() string { return d.runID }

func (d *RunDir) Exists(ctx context.Context, name string) (bool, error) {
	return d.store.backend.Exists(ctx, d.runID, name)
}

func (d *RunDir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return d.store.backend.Get(ctx, d.runID, name)
}

func (d *RunDir) ArtifactExists(ctx context.Context, location string) (bool, error) {
	return d.store.backend.ExistsAt(ctx, location)
}

func (d *RunDir) GlobalLogExists(ctx context.Context) (bool, error) {
	return d.store.log.Exists()
}

// Put replaces a derived file in the run directory.
func (d *RunDir) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := d.store.PutFile(ctx, d.runID, name, data, contentType)
	return err
}
