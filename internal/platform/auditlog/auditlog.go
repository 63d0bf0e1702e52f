package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/fingerprint"
)

// Action names what happened to a run.
type Action string

const (
	ActionRunCreate          Action = "run.create"
	ActionComplianceEvaluate Action = "compliance.evaluate"
)

func (a Action) Valid() bool {
	return a == ActionRunCreate || a == ActionComplianceEvaluate
}

const schemaDDL = `CREATE TABLE IF NOT EXISTS run_audit_events (
	event_id BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	run_id TEXT NOT NULL,
	verdict TEXT NULL,
	payload JSONB NOT NULL,
	integrity_sha256 TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS run_audit_events_run_id_idx ON run_audit_events (run_id, occurred_at)`

// Event is one row of the append-only mirror of the run log.
type Event struct {
	OccurredAt time.Time
	Actor      string
	Action     Action
	RunID      string
	// Verdict is only set for compliance evaluations.
	Verdict domain.Verdict
	Payload any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e Event) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("unknown action %q", e.Action)
	}
	if strings.TrimSpace(e.RunID) == "" {
		return errors.New("RunID is required")
	}
	if e.Action == ActionComplianceEvaluate && e.Verdict == "" {
		return errors.New("Verdict is required for compliance events")
	}
	return nil
}

// EnsureSchema creates the run_audit_events table if it is missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create run_audit_events: %w", err)
	}
	return nil
}

func Insert(ctx context.Context, q QueryRower, event Event) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Actor = strings.TrimSpace(event.Actor)
	event.RunID = strings.TrimSpace(event.RunID)
	if err := event.Validate(); err != nil {
		return 0, err
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	integrity, err := IntegrityDigest(event, payloadJSON)
	if err != nil {
		return 0, err
	}

	var verdict sql.NullString
	if event.Verdict != "" {
		verdict = sql.NullString{String: string(event.Verdict), Valid: true}
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO run_audit_events (
			occurred_at,
			actor,
			action,
			run_id,
			verdict,
			payload,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING event_id`,
		event.OccurredAt.UTC(),
		event.Actor,
		string(event.Action),
		event.RunID,
		verdict,
		payloadJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

// IntegrityDigest fingerprints the RFC 8785 canonical form of an event, so
// payload key order and number spelling do not change the digest.
func IntegrityDigest(event Event, payloadJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt time.Time       `json:"occurred_at"`
		Actor      string          `json:"actor"`
		Action     Action          `json:"action"`
		RunID      string          `json:"run_id"`
		Verdict    domain.Verdict  `json:"verdict,omitempty"`
		Payload    json.RawMessage `json:"payload"`
	}

	blob, err := json.Marshal(integrityInput{
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      strings.TrimSpace(event.Actor),
		Action:     event.Action,
		RunID:      strings.TrimSpace(event.RunID),
		Verdict:    event.Verdict,
		Payload:    payloadJSON,
	})
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	canonical, err := jcs.Transform(blob)
	if err != nil {
		return "", fmt.Errorf("canonicalize integrity: %w", err)
	}
	return fingerprint.Bytes(canonical), nil
}
