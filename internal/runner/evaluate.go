package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-audit/internal/compliance"
	"github.com/animus-labs/animus-audit/internal/domain"
	"github.com/animus-labs/animus-audit/internal/platform/auditlog"
)

type Evaluation struct {
	RunID    string
	Verdict  domain.Verdict
	Findings []domain.Finding
}

// Evaluate runs the compliance checklist for runID, or for the most recently
// created run directory when runID is empty, and persists the findings into
// the run directory. Once a run id is resolved it is set on the returned
// Evaluation even when the snapshot cannot be read.
func (r *Runner) Evaluate(ctx context.Context, runID string, rules []compliance.Rule) (Evaluation, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		latest, err := r.store.LatestRunID(ctx)
		if err != nil {
			return Evaluation{}, fmt.Errorf("resolve latest run: %w", err)
		}
		r.logger.Info("no run id given, using latest run", "run_id", latest)
		runID = latest
	}

	lookup, err := r.store.ReadSnapshot(ctx, runID)
	if err != nil {
		return Evaluation{RunID: runID}, fmt.Errorf("read snapshot %s: %w", runID, err)
	}
	if err := lookup.Err(); err != nil {
		return Evaluation{RunID: runID}, fmt.Errorf("run %s: %w", runID, err)
	}

	dir := r.store.RunDir(runID)
	findings := compliance.Evaluate(ctx, &lookup.Record, dir, rules...)
	verdict, err := compliance.Persist(ctx, dir, &lookup.Record, findings)
	if err != nil {
		return Evaluation{RunID: runID}, fmt.Errorf("persist findings: %w", err)
	}

	failing := make([]string, 0)
	for _, f := range findings {
		if !f.Passed {
			failing = append(failing, f.ID)
		}
	}
	r.logger.Info("compliance evaluated", "run_id", runID, "verdict", verdict, "failing", failing)
	r.audit(ctx, auditlog.Event{
		OccurredAt: r.now(),
		Actor:      actorCompliance,
		Action:     auditlog.ActionComplianceEvaluate,
		RunID:      runID,
		Verdict:    verdict,
		Payload: map[string]any{
			"checks_total":      len(findings),
			"failing_check_ids": failing,
		},
	})

	return Evaluation{RunID: runID, Verdict: verdict, Findings: compliance.SortFindings(findings)}, nil
}
