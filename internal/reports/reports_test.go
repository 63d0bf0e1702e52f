package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/animus-audit/internal/domain"
)

func TestDatasetCard(t *testing.T) {
	out, err := DatasetCard(domain.DatasetInfo{
		DatasetPath:   "data/bank.csv",
		DatasetSHA256: "abc",
		Rows:          3,
		Columns:       []string{"b", "a"},
		Schema:        map[string]string{"b": "object", "a": "int64"},
	})
	if err != nil {
		t.Fatalf("DatasetCard: %v", err)
	}
	want := "# Dataset Card\n**Path**: data/bank.csv\n**Rows**: 3\n**Columns**: 2\n**Schema**: a=int64, b=object\n**SHA-256**: abc\n"
	if string(out) != want {
		t.Fatalf("card=\n%s\nwant\n%s", out, want)
	}
}

func TestModelCard_Deterministic(t *testing.T) {
	info := domain.ModelInfo{
		Algorithm:       "LogisticRegression",
		Hyperparameters: map[string]any{"max_iter": 1000, "l2": 0.0001, "learning_rate": 0.1},
		Metrics:         &domain.Metrics{Metric: "accuracy", Value: domain.Some(0.9125)},
		ArtifactPath:    "/artifacts/runs/r1/model.joblib",
	}
	a, err := ModelCard(info)
	if err != nil {
		t.Fatalf("ModelCard: %v", err)
	}
	for i := 0; i < 5; i++ {
		b, _ := ModelCard(info)
		if !bytes.Equal(a, b) {
			t.Fatalf("model card not reproducible")
		}
	}
	if !strings.Contains(string(a), "**Metrics**: accuracy=0.9125\n") {
		t.Fatalf("card=\n%s", a)
	}
	if !strings.Contains(string(a), "**Hyperparameters**: l2=0.0001, learning_rate=0.1, max_iter=1000\n") {
		t.Fatalf("card=\n%s", a)
	}
}

func TestRunReport_IngestOnly(t *testing.T) {
	out, err := RunReport(domain.RunRecord{
		RunID:        "r1",
		TimestampUTC: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Dataset:      &domain.DatasetInfo{Rows: 10, Columns: []string{"a"}, DatasetSHA256: "abc"},
	})
	if err != nil {
		t.Fatalf("RunReport: %v", err)
	}
	s := string(out)
	for _, want := range []string{"**Run ID**: r1", "**Timestamp**: 2025-01-02T03:04:05Z", "- Rows: 10", "- not run", "- not trained"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report missing %q:\n%s", want, s)
		}
	}
}
