package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/animus-labs/animus-audit/internal/domain"
)

const (
	FindingsName = "compliance_findings.json"
	SummaryName  = "compliance_summary.txt"

	summaryTimeLayout = "2006-01-02 15:04:05 UTC"
)

// Sink receives the derived compliance files for one run.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// Persist replaces the findings and summary files and returns the verdict.
// Output depends only on the record and findings, so repeated calls with the
// same inputs write identical bytes.
func Persist(ctx context.Context, sink Sink, record *domain.RunRecord, findings []domain.Finding) (domain.Verdict, error) {
	sorted := SortFindings(findings)
	verdict := Aggregate(sorted)

	findingsJSON, err := EncodeFindings(sorted)
	if err != nil {
		return "", err
	}
	if err := sink.Put(ctx, FindingsName, findingsJSON, "application/json"); err != nil {
		return "", fmt.Errorf("write %s: %w", FindingsName, err)
	}
	if err := sink.Put(ctx, SummaryName, RenderSummary(record, sorted, verdict), "text/plain; charset=utf-8"); err != nil {
		return "", fmt.Errorf("write %s: %w", SummaryName, err)
	}
	return verdict, nil
}

// SortFindings returns a copy ordered by rule id.
func SortFindings(findings []domain.Finding) []domain.Finding {
	sorted := append([]domain.Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

func EncodeFindings(findings []domain.Finding) ([]byte, error) {
	if findings == nil {
		findings = []domain.Finding{}
	}
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	return append(data, '\n'), nil
}

func RenderSummary(record *domain.RunRecord, findings []domain.Finding, verdict domain.Verdict) []byte {
	var b bytes.Buffer
	if record.HasRunID() {
		fmt.Fprintf(&b, "Compliance summary for run %s\n", strings.TrimSpace(record.RunID))
	} else {
		b.WriteString("Compliance summary (run id unavailable)\n")
	}
	if record != nil && !record.TimestampUTC.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", record.TimestampUTC.UTC().Format(summaryTimeLayout))
	} else {
		b.WriteString("Timestamp: unknown\n")
	}
	fmt.Fprintf(&b, "Verdict: %s\n\n", verdict)

	for _, f := range findings {
		mark := "PASS"
		if !f.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s (%s) %s\n", mark, f.ID, f.Severity, f.Title)
		fmt.Fprintf(&b, "    %s\n", f.Details)
	}
	return b.Bytes()
}

func LoadFindings(r io.Reader) ([]domain.Finding, error) {
	var findings []domain.Finding
	if err := json.NewDecoder(r).Decode(&findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return findings, nil
}
