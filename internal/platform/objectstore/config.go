package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-audit/internal/platform/env"
)

// Config describes the S3-compatible bucket that holds run directories.
// A zero Endpoint means no object store is configured.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("AUDIT_OBJECTSTORE_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:  strings.TrimSpace(env.String("AUDIT_OBJECTSTORE_ENDPOINT", "")),
		AccessKey: env.String("AUDIT_OBJECTSTORE_ACCESS_KEY", ""),
		SecretKey: env.String("AUDIT_OBJECTSTORE_SECRET_KEY", ""),
		Region:    env.String("AUDIT_OBJECTSTORE_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("AUDIT_OBJECTSTORE_BUCKET", "artifacts"),
		Prefix:    env.String("AUDIT_OBJECTSTORE_PREFIX", ""),
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.HasPrefix(strings.TrimSpace(c.Prefix), "/") {
		return fmt.Errorf("prefix must be relative: %q", c.Prefix)
	}
	return nil
}

// Key joins the configured prefix with the given path segments.
func (c Config) Key(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if p := strings.Trim(strings.TrimSpace(c.Prefix), "/"); p != "" {
		segments = append(segments, p)
	}
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, "/")
}
