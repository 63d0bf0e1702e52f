package compliance

import (
	"context"
	"strings"
	"testing"

	"github.com/animus-labs/animus-audit/internal/domain"
)

func mustExprRule(t *testing.T, expr string) *ExprRule {
	t.Helper()
	r, err := NewExprRule(ExprDefinition{
		ID:       "CUSTOM-001",
		Title:    "Accuracy threshold",
		Severity: domain.SeverityWarn,
		Expr:     expr,
		Details:  "Accuracy must reach the release threshold.",
	})
	if err != nil {
		t.Fatalf("NewExprRule: %v", err)
	}
	return r
}

func TestExprRule_Evaluates(t *testing.T) {
	rec, dir := completeFixture()
	in := Inputs{Record: rec, Dir: dir}

	passed, details := mustExprRule(t, `run.model.metrics.value >= 0.9`).Check(context.Background(), in)
	if !passed || details != "Accuracy must reach the release threshold." {
		t.Fatalf("passed=%v details=%q", passed, details)
	}

	passed, details = mustExprRule(t, `run.model.metrics.value >= 0.95`).Check(context.Background(), in)
	if passed || !strings.Contains(details, "evaluated to false") {
		t.Fatalf("passed=%v details=%q", passed, details)
	}

	passed, _ = mustExprRule(t, `has(run.transform) && run.transform.rows_after_clean >= 100.0`).Check(context.Background(), in)
	if !passed {
		t.Fatalf("transform expression should pass")
	}
}

func TestExprRule_GapsBecomeFailures(t *testing.T) {
	rec := &domain.RunRecord{RunID: "r1"}
	in := Inputs{Record: rec, Dir: newMemDir("r1")}

	cases := map[string]string{
		"compile error": `run.model.metrics.value >=`,
		"missing key":   `run.model.metrics.value > 0.5`,
		"non-bool":      `"yes"`,
	}
	for name, expr := range cases {
		r := mustExprRule(t, expr)
		passed, details := r.Check(context.Background(), in)
		if passed {
			t.Fatalf("%s: expected failure", name)
		}
		if !strings.HasPrefix(details, "Accuracy must reach the release threshold.") {
			t.Fatalf("%s: details=%q", name, details)
		}
	}
	if mustExprRule(t, `run.model.metrics.value >=`).CompileErr() == nil {
		t.Fatalf("expected compile error to be retained")
	}
}

func TestExprDefinition_Validate(t *testing.T) {
	bad := []ExprDefinition{
		{Title: "t", Severity: domain.SeverityWarn, Expr: "true"},
		{ID: "X", Severity: domain.SeverityWarn, Expr: "true"},
		{ID: "X", Title: "t", Severity: "LOW", Expr: "true"},
		{ID: "X", Title: "t", Severity: domain.SeverityWarn},
	}
	for i, def := range bad {
		if _, err := NewExprRule(def); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
