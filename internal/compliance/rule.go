// Package compliance evaluates run records against the audit checklist and
// persists the resulting findings and verdict.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/animus-labs/animus-audit/internal/domain"
)

// RunDir is the read view of one run directory and the global log.
type RunDir interface {
	RunID() string
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	ArtifactExists(ctx context.Context, location string) (bool, error)
	GlobalLogExists(ctx context.Context) (bool, error)
}

type Inputs struct {
	Record *domain.RunRecord
	Dir    RunDir
}

// Rule is a predicate over one run. Check must not panic on missing sections;
// an input gap is a failed check with an explanation.
type Rule interface {
	ID() string
	Title() string
	Severity() domain.Severity
	Check(ctx context.Context, in Inputs) (passed bool, details string)
}

type checkFunc func(ctx context.Context, in Inputs) (bool, string)

type builtinRule struct {
	id       string
	title    string
	severity domain.Severity
	details  string
	check    checkFunc
}

func (r builtinRule) ID() string                { return r.id }
func (r builtinRule) Title() string             { return r.title }
func (r builtinRule) Severity() domain.Severity { return r.severity }

func (r builtinRule) Check(ctx context.Context, in Inputs) (bool, string) {
	ok, reason := r.check(ctx, in)
	if ok || reason == "" {
		return ok, r.details
	}
	return false, r.details + " " + reason
}

// WithDefaults returns the built-in rules followed by extra, rejecting
// duplicate ids and unknown severities.
func WithDefaults(extra ...Rule) ([]Rule, error) {
	rules := append(DefaultRules(), extra...)
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func ValidateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r == nil {
			return errors.New("nil rule")
		}
		id := strings.TrimSpace(r.ID())
		if id == "" {
			return errors.New("rule id is required")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate rule id %s", id)
		}
		seen[id] = struct{}{}
		if !r.Severity().Valid() {
			return fmt.Errorf("rule %s: invalid severity %q", id, r.Severity())
		}
	}
	return nil
}
