package compliance

import (
	"context"
	"fmt"

	"github.com/animus-labs/animus-audit/internal/domain"
)

// Evaluate runs every rule in declaration order and returns exactly one
// finding per rule. It never fails: a rule that panics is reported as failed.
// With no rules the built-in checklist is used.
func Evaluate(ctx context.Context, record *domain.RunRecord, dir RunDir, rules ...Rule) []domain.Finding {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	in := Inputs{Record: record, Dir: dir}
	findings := make([]domain.Finding, 0, len(rules))
	for _, rule := range rules {
		findings = append(findings, evaluateRule(ctx, rule, in))
	}
	return findings
}

func evaluateRule(ctx context.Context, rule Rule, in Inputs) (f domain.Finding) {
	f = domain.Finding{
		ID:       rule.ID(),
		Title:    rule.Title(),
		Severity: rule.Severity(),
	}
	defer func() {
		if v := recover(); v != nil {
			f.Passed = false
			f.Details = fmt.Sprintf("Rule could not be evaluated: %v.", v)
		}
	}()
	f.Passed, f.Details = rule.Check(ctx, in)
	return f
}

// Aggregate reduces findings to a verdict. Order does not matter and INFO
// findings never change the result.
func Aggregate(findings []domain.Finding) domain.Verdict {
	verdict := domain.VerdictPass
	for _, f := range findings {
		if f.Passed {
			continue
		}
		switch f.Severity {
		case domain.SeverityBlocker:
			return domain.VerdictFail
		case domain.SeverityWarn:
			verdict = domain.VerdictWarn
		}
	}
	return verdict
}
