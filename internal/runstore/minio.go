package runstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
)

// MinioBackend keeps run directories in an S3-compatible bucket under
// <prefix>/runs/<run_id>/<name>.
type MinioBackend struct {
	client *minio.Client
	cfg    objectstore.Config
}

func NewMinioBackend(cfg objectstore.Config) (*MinioBackend, error) {
	client, err := objectstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewMinioBackendWithClient(client, cfg)
}

func NewMinioBackendWithClient(client *minio.Client, cfg objectstore.Config) (*MinioBackend, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MinioBackend{client: client, cfg: cfg}, nil
}

func (b *MinioBackend) Name() string { return "minio" }

func (b *MinioBackend) Client() *minio.Client { return b.client }

func (b *MinioBackend) key(runID, name string) string {
	return b.cfg.Key("runs", runID, name)
}

func (b *MinioBackend) Put(ctx context.Context, runID, name string, body io.Reader, size int64, contentType string) error {
	if err := validateFile(runID, name); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := b.client.PutObject(ctx, b.cfg.Bucket, b.key(runID, name), body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", b.key(runID, name), err)
	}
	return nil
}

func (b *MinioBackend) Get(ctx context.Context, runID, name string) (io.ReadCloser, error) {
	if err := validateFile(runID, name); err != nil {
		return nil, err
	}
	key := b.key(runID, name)
	if _, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

func (b *MinioBackend) Exists(ctx context.Context, runID, name string) (bool, error) {
	if err := validateFile(runID, name); err != nil {
		return false, err
	}
	return b.statKey(ctx, b.key(runID, name))
}

func (b *MinioBackend) ListRunIDs(ctx context.Context) ([]string, error) {
	prefix := b.cfg.Key("runs") + "/"
	seen := map[string]struct{}{}
	for obj := range b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list runs: %w", obj.Err)
		}
		if id := runIDFromKey(prefix, obj.Key); id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// NewestRunID dates each run by the earliest LastModified under its prefix.
func (b *MinioBackend) NewestRunID(ctx context.Context) (string, error) {
	prefix := b.cfg.Key("runs") + "/"
	created := map[string]time.Time{}
	for obj := range b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return "", fmt.Errorf("list runs: %w", obj.Err)
		}
		if id := runIDFromKey(prefix, obj.Key); id != "" {
			noteCreated(created, id, obj.LastModified)
		}
	}
	return newestRun(created)
}

func (b *MinioBackend) Locate(runID, name string) string {
	return "s3://" + b.cfg.Bucket + "/" + b.key(runID, name)
}

// ExistsAt accepts either an s3:// location in this bucket or a bare object key.
func (b *MinioBackend) ExistsAt(ctx context.Context, location string) (bool, error) {
	key, ok := b.keyFromLocation(location)
	if !ok {
		return false, nil
	}
	return b.statKey(ctx, key)
}

func (b *MinioBackend) keyFromLocation(location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket != b.cfg.Bucket || key == "" {
			return "", false
		}
		return key, true
	}
	if strings.HasPrefix(location, "/") {
		return "", false
	}
	return location, true
}

func (b *MinioBackend) statKey(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

func runIDFromKey(prefix, key string) string {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if validateSegment("run id", id) != nil {
		return ""
	}
	return id
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
