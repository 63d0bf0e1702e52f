package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EnsureRunRecordImmutable checks that after is a valid successor of before.
// Identity and dataset provenance never change; sections may be added but not removed.
func EnsureRunRecordImmutable(before, after RunRecord) error {
	if before.RunID == "" || after.RunID == "" {
		return errors.New("run ids are required")
	}
	if before.RunID != after.RunID {
		return fmt.Errorf("run id changed from %q to %q", before.RunID, after.RunID)
	}
	if !before.TimestampUTC.Equal(after.TimestampUTC) {
		return errors.New("timestamp is immutable")
	}
	if before.Dataset != nil {
		if after.Dataset == nil {
			return errors.New("dataset section cannot be removed")
		}
		same, err := sameJSON(before.Dataset, after.Dataset)
		if err != nil {
			return err
		}
		if !same {
			return errors.New("dataset section is immutable")
		}
	}
	if before.Transform != nil && after.Transform == nil {
		return errors.New("transform section cannot be removed")
	}
	if before.Model != nil && after.Model == nil {
		return errors.New("model section cannot be removed")
	}
	if before.ModelCardHash != "" && before.ModelCardHash != after.ModelCardHash {
		return errors.New("model card hash is immutable")
	}
	return nil
}

// sameJSON compares sections in their recorded form, so a record read back
// from a snapshot equals the one that was written (nil and empty collections
// both encode away).
func sameJSON(a, b any) (bool, error) {
	x, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode section: %w", err)
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode section: %w", err)
	}
	return bytes.Equal(x, y), nil
}
