package runstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/animus-labs/animus-audit/internal/domain"
)

const snapshotSchemaURL = "https://animus-audit.local/schemas/run_record.schema.json"

// Shape and types only. Every section is optional so ingestion-only and
// partially recorded runs still load; missing content is the rule engine's concern.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["run_id"],
  "properties": {
    "run_id": {"type": "string"},
    "timestamp_utc": {"type": "string"},
    "schema_version": {"type": "string"},
    "model_card_hash": {"type": ["string", "null"]},
    "dataset": {
      "type": ["object", "null"],
      "properties": {
        "dataset_path": {"type": ["string", "null"]},
        "dataset_sha256": {"type": ["string", "null"]},
        "file_size_bytes": {"type": ["integer", "null"]},
        "rows": {"type": ["integer", "null"]},
        "columns": {"type": ["array", "null"], "items": {"type": "string"}},
        "schema": {"type": ["object", "null"], "additionalProperties": {"type": "string"}}
      }
    },
    "transform": {
      "type": ["object", "null"],
      "properties": {
        "rows_after_clean": {"type": ["integer", "null"]},
        "n_features": {"type": ["integer", "null"]},
        "train_size": {"type": ["integer", "null"]},
        "test_size": {"type": ["integer", "null"]}
      }
    },
    "model": {
      "type": ["object", "null"],
      "properties": {
        "algorithm": {"type": ["string", "null"]},
        "hyperparameters": {"type": ["object", "null"]},
        "artifact_path": {"type": ["string", "null"]},
        "metrics": {
          "type": ["object", "null"],
          "properties": {
            "metric": {"type": ["string", "null"]},
            "value": {}
          }
        }
      }
    }
  }
}`

// supportedSchemaVersions accepts any 1.x record.
const supportedSchemaVersions = "^1.0.0"

type snapshotValidator struct {
	schema     *jsonschema.Schema
	constraint *semver.Constraints
}

func newSnapshotValidator() (*snapshotValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchema)); err != nil {
		return nil, fmt.Errorf("snapshot schema load failed: %w", err)
	}
	compiled, err := c.Compile(snapshotSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("snapshot schema compile failed: %w", err)
	}
	constraint, err := semver.NewConstraint(supportedSchemaVersions)
	if err != nil {
		return nil, fmt.Errorf("schema version constraint: %w", err)
	}
	return &snapshotValidator{schema: compiled, constraint: constraint}, nil
}

// decode validates raw snapshot bytes and returns the typed record.
func (v *snapshotValidator) decode(data []byte) (domain.RunRecord, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return domain.RunRecord{}, fmt.Errorf("parse: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return domain.RunRecord{}, fmt.Errorf("schema: %w", err)
	}

	var rec domain.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decode: %w", err)
	}
	if err := v.checkVersion(rec.SchemaVersion); err != nil {
		return domain.RunRecord{}, err
	}
	return rec, nil
}

// checkVersion treats a missing version as the first record format.
func (v *snapshotValidator) checkVersion(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	ver, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", raw, err)
	}
	if !v.constraint.Check(ver) {
		return fmt.Errorf("unsupported schema_version %s (want %s)", raw, supportedSchemaVersions)
	}
	return nil
}
