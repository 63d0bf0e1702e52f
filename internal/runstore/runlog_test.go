package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/animus-labs/animus-audit/internal/domain"
)

func TestRunLog_AppendNeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", RunLogName)
	log := NewRunLog(path)

	ok, err := log.Exists()
	require.NoError(t, err)
	require.False(t, ok)

	ts := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(sampleRecord("one", ts)))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, log.Append(sampleRecord("two", ts)))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(string(second), string(first)))
	require.Equal(t, 2, strings.Count(string(second), "\n"))
}

func TestRunLog_RecordsSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), RunLogName)
	log := NewRunLog(path)
	require.NoError(t, log.Append(sampleRecord("one", time.Now().UTC())))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, log.Append(sampleRecord("two", time.Now().UTC())))

	var ids []string
	skipped, err := log.Records(func(rec domain.RunRecord) error {
		ids = append(ids, rec.RunID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.Equal(t, []string{"one", "two"}, ids)
}
