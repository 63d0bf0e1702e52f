package compliance

import (
	"context"
	"fmt"

	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/fingerprint"
)

const ModelCardName = "model_card.md"

// DefaultRules returns the fixed checklist in declaration order.
func DefaultRules() []Rule {
	return []Rule{
		builtinRule{
			id:       "CHECK-001",
			title:    "Run ID present",
			severity: domain.SeverityBlocker,
			details:  "Each run must have a unique identifier.",
			check:    checkRunID,
		},
		builtinRule{
			id:       "CHECK-002",
			title:    "Dataset fingerprint exists",
			severity: domain.SeverityBlocker,
			details:  "Dataset SHA-256 must be logged for reproducibility.",
			check:    checkDatasetFingerprint,
		},
		builtinRule{
			id:       "CHECK-003",
			title:    "Model metrics recorded",
			severity: domain.SeverityBlocker,
			details:  "At least one evaluation metric must be saved.",
			check:    checkMetrics,
		},
		builtinRule{
			id:       "CHECK-004",
			title:    "Model artifact saved",
			severity: domain.SeverityWarn,
			details:  "Trained model should be persisted for auditability.",
			check:    checkModelArtifact,
		},
		builtinRule{
			id:       "CHECK-005",
			title:    "Global run log exists",
			severity: domain.SeverityWarn,
			details:  "Append-only diary of all runs must exist.",
			check:    checkGlobalLog,
		},
		builtinRule{
			id:       "CHECK-006",
			title:    "Transformation metadata exists and data cleaned",
			severity: domain.SeverityWarn,
			details:  "Transform stage must record a positive row count after cleaning.",
			check:    checkTransform,
		},
		builtinRule{
			id:       "CHECK-007",
			title:    "Model card integrity",
			severity: domain.SeverityBlocker,
			details:  "Model card must match the SHA-256 recorded when it was generated.",
			check:    checkModelCardIntegrity,
		},
	}
}

func checkRunID(_ context.Context, in Inputs) (bool, string) {
	if !in.Record.HasRunID() {
		return false, "run_id is missing."
	}
	return true, ""
}

func checkDatasetFingerprint(_ context.Context, in Inputs) (bool, string) {
	if in.Record == nil || in.Record.Dataset == nil {
		return false, "dataset section is missing."
	}
	if _, ok := in.Record.DatasetSHA256(); !ok {
		return false, "dataset.dataset_sha256 is empty."
	}
	return true, ""
}

func checkMetrics(_ context.Context, in Inputs) (bool, string) {
	if in.Record == nil || in.Record.Model == nil {
		return false, "model section is missing."
	}
	if raw, ok := in.Record.InvalidMetricValue(); ok {
		return false, fmt.Sprintf("model.metrics.value is not numeric: %s.", raw)
	}
	if _, ok := in.Record.MetricValue(); !ok {
		return false, "model.metrics.value is absent."
	}
	return true, ""
}

func checkModelArtifact(ctx context.Context, in Inputs) (bool, string) {
	path, ok := in.Record.ArtifactPath()
	if !ok {
		return false, "model.artifact_path is not set."
	}
	if in.Dir == nil {
		return false, "run directory is unavailable."
	}
	exists, err := in.Dir.ArtifactExists(ctx, path)
	if err != nil {
		return false, fmt.Sprintf("could not stat artifact: %v.", err)
	}
	if !exists {
		return false, fmt.Sprintf("artifact not found at %s.", path)
	}
	return true, ""
}

func checkGlobalLog(ctx context.Context, in Inputs) (bool, string) {
	if in.Dir == nil {
		return false, "run directory is unavailable."
	}
	exists, err := in.Dir.GlobalLogExists(ctx)
	if err != nil {
		return false, fmt.Sprintf("could not stat run log: %v.", err)
	}
	if !exists {
		return false, "run log not found."
	}
	return true, ""
}

func checkTransform(_ context.Context, in Inputs) (bool, string) {
	if in.Record == nil || in.Record.Transform == nil {
		return false, "transform section is missing."
	}
	rows, ok := in.Record.RowsAfterClean()
	if !ok {
		return false, "transform.rows_after_clean is absent."
	}
	if rows <= 0 {
		return false, fmt.Sprintf("transform.rows_after_clean is %d.", rows)
	}
	return true, ""
}

// checkModelCardIntegrity recomputes the live digest and compares it with the
// digest captured at generation time. A missing recorded hash is a failure.
func checkModelCardIntegrity(ctx context.Context, in Inputs) (bool, string) {
	recorded, ok := in.Record.RecordedModelCardHash()
	if !ok {
		return false, "model_card_hash is not recorded."
	}
	if in.Dir == nil {
		return false, "run directory is unavailable."
	}
	rc, err := in.Dir.Open(ctx, ModelCardName)
	if err != nil {
		return false, fmt.Sprintf("model card unreadable: %v.", err)
	}
	defer rc.Close()

	live, err := fingerprint.Reader(rc)
	if err != nil {
		return false, fmt.Sprintf("model card unreadable: %v.", err)
	}
	if live.SHA256 != recorded {
		return false, fmt.Sprintf("hash mismatch: recorded %s, computed %s.", recorded, live.SHA256)
	}
	return true, ""
}
