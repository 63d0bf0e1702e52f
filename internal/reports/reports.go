// Package reports renders the Markdown cards stored with each run.
package reports

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/animus-labs/animus-audit/internal/domain"
)

const (
	DatasetCardName = "dataset_card.md"
	ModelCardName   = "model_card.md"
	RunReportName   = "run_report.md"
	ContentType     = "text/markdown; charset=utf-8"
)

var funcs = template.FuncMap{
	"kv":    formatMap,
	"opt":   formatOpt,
	"count": func(cols []string) int { return len(cols) },
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	},
	"orDash": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	},
}

var datasetCardTmpl = template.Must(template.New(DatasetCardName).Funcs(funcs).Parse(`# Dataset Card
**Path**: {{orDash .DatasetPath}}
**Rows**: {{.Rows}}
**Columns**: {{count .Columns}}
**Schema**: {{kv .Schema}}
**SHA-256**: {{orDash .DatasetSHA256}}
`))

var modelCardTmpl = template.Must(template.New(ModelCardName).Funcs(funcs).Parse(`# Model Card
**Algorithm**: {{orDash .Algorithm}}
**Hyperparameters**: {{kv .Hyperparameters}}
**Metrics**: {{with .Metrics}}{{orDash .Metric}}={{opt .Value}}{{else}}-{{end}}
**Artifact Path**: {{orDash .ArtifactPath}}
`))

var runReportTmpl = template.Must(template.New(RunReportName).Funcs(funcs).Parse(`# Run Report
**Run ID**: {{.RunID}}
**Timestamp**: {{ts .TimestampUTC}}

## Dataset
{{- with .Dataset}}
- Rows: {{.Rows}}
- Columns: {{count .Columns}}
- Hash: {{orDash .DatasetSHA256}}
{{- else}}
- not recorded
{{- end}}

## Transform
{{- with .Transform}}
- Rows after cleaning: {{opt .RowsAfterClean}}
- Features: {{.NFeatures}}
- Train/test: {{.TrainSize}}/{{.TestSize}}
{{- else}}
- not run
{{- end}}

## Model
{{- with .Model}}
- Algorithm: {{orDash .Algorithm}}
- Accuracy: {{with .Metrics}}{{opt .Value}}{{else}}-{{end}}
- Saved at: {{orDash .ArtifactPath}}
{{- else}}
- not trained
{{- end}}
`))

func DatasetCard(info domain.DatasetInfo) ([]byte, error) {
	return render(datasetCardTmpl, info)
}

// ModelCard renders the card whose digest is recorded as model_card_hash.
// Callers must hash exactly the returned bytes.
func ModelCard(info domain.ModelInfo) ([]byte, error) {
	return render(modelCardTmpl, info)
}

func RunReport(record domain.RunRecord) ([]byte, error) {
	return render(runReportTmpl, record)
}

func render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

// formatMap prints keys in sorted order so cards are reproducible.
func formatMap(v any) string {
	var keys []string
	values := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, val := range m {
			keys = append(keys, k)
			values[k] = val
		}
	case map[string]any:
		for k, val := range m {
			keys = append(keys, k)
			values[k] = fmt.Sprint(val)
		}
	}
	if len(keys) == 0 {
		return "-"
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + values[k]
	}
	return strings.Join(parts, ", ")
}

func formatOpt(v any) string {
	switch o := v.(type) {
	case domain.Opt[float64]:
		if f, ok := o.Get(); ok {
			return fmt.Sprintf("%.4f", f)
		}
	case domain.Opt[int64]:
		if n, ok := o.Get(); ok {
			return fmt.Sprint(n)
		}
	}
	return "-"
}
