package runstore

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
)

func TestRunIDFromKey(t *testing.T) {
	prefix := "audit/runs/"
	require.Equal(t, "abc", runIDFromKey(prefix, "audit/runs/abc/metadata.json"))
	require.Equal(t, "abc", runIDFromKey(prefix, "audit/runs/abc/"))
	require.Equal(t, "", runIDFromKey(prefix, "other/runs/abc/metadata.json"))
	require.Equal(t, "", runIDFromKey(prefix, "audit/runs/"))
}

func TestMinioBackend_Locations(t *testing.T) {
	cfg := objectstore.Config{
		Endpoint:  "localhost:9000",
		AccessKey: "k",
		SecretKey: "s",
		Region:    "us-east-1",
		Bucket:    "artifacts",
		Prefix:    "audit",
	}
	b := &MinioBackend{cfg: cfg}

	loc := b.Locate("run-1", "model.joblib")
	require.Equal(t, "s3://artifacts/audit/runs/run-1/model.joblib", loc)

	key, ok := b.keyFromLocation(loc)
	require.True(t, ok)
	require.Equal(t, "audit/runs/run-1/model.joblib", key)

	_, ok = b.keyFromLocation("s3://other/audit/runs/run-1/model.joblib")
	require.False(t, ok)
	_, ok = b.keyFromLocation("/abs/path/model.joblib")
	require.False(t, ok)
	key, ok = b.keyFromLocation("audit/runs/run-1/model.joblib")
	require.True(t, ok)
	require.Equal(t, "audit/runs/run-1/model.joblib", key)
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(minio.ErrorResponse{StatusCode: 404}))
	require.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.False(t, isNotFound(minio.ErrorResponse{StatusCode: 500, Code: "InternalError"}))
}
