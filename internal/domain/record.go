package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// RecordSchemaVersion is written into every new snapshot.
const RecordSchemaVersion = "1.0.0"

// RunRecord is the provenance document for one pipeline execution.
// Dataset, Transform and Model are nil when the corresponding stage did not run.
type RunRecord struct {
	RunID         string         `json:"run_id"`
	TimestampUTC  time.Time      `json:"timestamp_utc"`
	SchemaVersion string         `json:"schema_version,omitempty"`
	Dataset       *DatasetInfo   `json:"dataset,omitempty"`
	Transform     *TransformInfo `json:"transform,omitempty"`
	Model         *ModelInfo     `json:"model,omitempty"`
	ModelCardHash string         `json:"model_card_hash,omitempty"`
}

type DatasetInfo struct {
	DatasetPath   string            `json:"dataset_path,omitempty"`
	DatasetSHA256 string            `json:"dataset_sha256,omitempty"`
	FileSizeBytes Opt[int64]        `json:"file_size_bytes,omitzero"`
	Rows          int               `json:"rows"`
	Columns       []string          `json:"columns,omitempty"`
	Schema        map[string]string `json:"schema,omitempty"`
}

type TransformInfo struct {
	RowsAfterClean Opt[int64] `json:"rows_after_clean"`
	NFeatures      int        `json:"n_features"`
	TrainSize      int        `json:"train_size"`
	TestSize       int        `json:"test_size"`
}

type ModelInfo struct {
	Algorithm       string         `json:"algorithm,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
	Metrics         *Metrics       `json:"metrics,omitempty"`
	ArtifactPath    string         `json:"artifact_path,omitempty"`
}

type Metrics struct {
	Metric string
	Value  Opt[float64]

	// invalid keeps a present but non-numeric value verbatim, so checks can
	// report it and a rewrite preserves it.
	invalid json.RawMessage
}

type metricsJSON struct {
	Metric string `json:"metric,omitempty"`
	Value  any    `json:"value"`
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	out := metricsJSON{Metric: m.Metric, Value: m.Value}
	if m.invalid != nil {
		out.Value = m.invalid
	}
	return json.Marshal(out)
}

func (m *Metrics) UnmarshalJSON(data []byte) error {
	var in struct {
		Metric string          `json:"metric"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Metrics{Metric: in.Metric}
	raw := bytes.TrimSpace(in.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		m.invalid = append(json.RawMessage(nil), raw...)
		return nil
	}
	m.Value = Some(v)
	return nil
}

func (r *RunRecord) HasRunID() bool {
	return r != nil && strings.TrimSpace(r.RunID) != ""
}

func (r *RunRecord) DatasetSHA256() (string, bool) {
	if r == nil || r.Dataset == nil {
		return "", false
	}
	v := strings.TrimSpace(r.Dataset.DatasetSHA256)
	return v, v != ""
}

func (r *RunRecord) MetricValue() (float64, bool) {
	if r == nil || r.Model == nil || r.Model.Metrics == nil {
		return 0, false
	}
	return r.Model.Metrics.Value.Get()
}

// InvalidMetricValue returns the recorded metric value when it is present
// but not a number.
func (r *RunRecord) InvalidMetricValue() (string, bool) {
	if r == nil || r.Model == nil || r.Model.Metrics == nil || r.Model.Metrics.invalid == nil {
		return "", false
	}
	return string(r.Model.Metrics.invalid), true
}

func (r *RunRecord) MetricName() string {
	if r == nil || r.Model == nil || r.Model.Metrics == nil {
		return ""
	}
	return r.Model.Metrics.Metric
}

func (r *RunRecord) ArtifactPath() (string, bool) {
	if r == nil || r.Model == nil {
		return "", false
	}
	v := strings.TrimSpace(r.Model.ArtifactPath)
	return v, v != ""
}

func (r *RunRecord) RowsAfterClean() (int64, bool) {
	if r == nil || r.Transform == nil {
		return 0, false
	}
	return r.Transform.RowsAfterClean.Get()
}

func (r *RunRecord) RecordedModelCardHash() (string, bool) {
	if r == nil {
		return "", false
	}
	v := strings.ToLower(strings.TrimSpace(r.ModelCardHash))
	return v, v != ""
}
