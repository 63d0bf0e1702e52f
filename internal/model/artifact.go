package model

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	ArtifactName        = "model.joblib"
	artifactFormat      = "animus-audit.logreg.v1"
	ArtifactContentType = "application/octet-stream"
)

type artifact struct {
	Format    string              `json:"format"`
	Algorithm string              `json:"algorithm"`
	Model     *LogisticRegression `json:"model"`
}

// Encode serialises the fitted model. The bytes are opaque to the rest of the pipeline.
func (m *LogisticRegression) Encode() ([]byte, error) {
	data, err := json.Marshal(artifact{Format: artifactFormat, Algorithm: Algorithm, Model: m})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return data, nil
}

func Load(r io.Reader) (*LogisticRegression, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Format != artifactFormat || a.Model == nil {
		return nil, fmt.Errorf("unsupported model artifact format %q", a.Format)
	}
	m := a.Model
	p := len(m.Weights)
	if len(m.Means) != p || len(m.Scales) != p {
		return nil, fmt.Errorf("model artifact is inconsistent: %d weights, %d means, %d scales", p, len(m.Means), len(m.Scales))
	}
	return m, nil
}
