package auditlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/animus-labs/animus-audit/internal/platform/postgres"
)

// Recorder mirrors pipeline and compliance events somewhere durable.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Noop drops every event. It is used when no mirror database is configured.
type Noop struct{}

func (Noop) Record(context.Context, Event) error { return nil }

type DBRecorder struct {
	db      *sql.DB
	timeout time.Duration
}

func NewDBRecorder(db *sql.DB) *DBRecorder {
	return &DBRecorder{db: db, timeout: 2 * time.Second}
}

func (r *DBRecorder) Record(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := Insert(ctx, r.db, event)
	return err
}

// OpenRecorder connects to the mirror database when cfg is enabled and
// returns Noop otherwise. The returned close func is never nil.
func OpenRecorder(ctx context.Context, cfg postgres.Config) (Recorder, func() error, error) {
	if !cfg.Enabled() {
		return Noop{}, func() error { return nil }, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewDBRecorder(db), db.Close, nil
}
