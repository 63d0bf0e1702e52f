package compliance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
)

type memDir struct {
	runID     string
	files     map[string][]byte
	artifacts map[string]bool
	logExists bool
	logErr    error
}

func newMemDir(runID string) *memDir {
	return &memDir{runID: runID, files: map[string][]byte{}, artifacts: map[string]bool{}}
}

func (d *memDir) RunID() string { return d.runID }

func (d *memDir) Exists(_ context.Context, name string) (bool, error) {
	_, ok := d.files[name]
	return ok, nil
}

func (d *memDir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := d.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *memDir) ArtifactExists(_ context.Context, location string) (bool, error) {
	return d.artifacts[location], nil
}

func (d *memDir) GlobalLogExists(context.Context) (bool, error) {
	return d.logExists, d.logErr
}

func (d *memDir) Put(_ context.Context, name string, data []byte, _ string) error {
	if name == "" {
		return errors.New("name required")
	}
	d.files[name] = append([]byte(nil), data...)
	return nil
}

func (d *memDir) names() []string {
	out := make([]string, 0, len(d.files))
	for name := range d.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
