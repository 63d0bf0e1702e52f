package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/animus-labs/animus-audit/internal/domain"
)

// ExprDefinition declares an additional rule as a CEL expression over the
// record document, bound to the variable "run".
type ExprDefinition struct {
	ID       string          `yaml:"id" json:"id"`
	Title    string          `yaml:"title" json:"title"`
	Severity domain.Severity `yaml:"severity" json:"severity"`
	Expr     string          `yaml:"expr" json:"expr"`
	Details  string          `yaml:"details" json:"details"`
}

func (d ExprDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("rule %s: title is required", d.ID)
	}
	if !d.Severity.Valid() {
		return fmt.Errorf("rule %s: invalid severity %q", d.ID, d.Severity)
	}
	if strings.TrimSpace(d.Expr) == "" {
		return fmt.Errorf("rule %s: expr is required", d.ID)
	}
	return nil
}

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("run", cel.DynType))
})

// ExprRule evaluates a compiled CEL program. A compile failure is kept and
// reported as a failed check so a broken expression stays visible in the findings.
type ExprRule struct {
	def        ExprDefinition
	prg        cel.Program
	compileErr error
}

func NewExprRule(def ExprDefinition) (*ExprRule, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	r := &ExprRule{def: def}
	r.prg, r.compileErr = compileExpr(def.Expr)
	return r, nil
}

func compileExpr(expr string) (cel.Program, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}

func (r *ExprRule) ID() string                { return r.def.ID }
func (r *ExprRule) Title() string             { return r.def.Title }
func (r *ExprRule) Severity() domain.Severity { return r.def.Severity }

// CompileErr reports whether the expression failed to compile.
func (r *ExprRule) CompileErr() error { return r.compileErr }

func (r *ExprRule) Check(ctx context.Context, in Inputs) (bool, string) {
	details := strings.TrimSpace(r.def.Details)
	if details == "" {
		details = fmt.Sprintf("Expression %q must hold.", r.def.Expr)
	}
	fail := func(reason string) (bool, string) {
		return false, details + " " + reason
	}

	if r.compileErr != nil {
		return fail(fmt.Sprintf("expression invalid: %v.", r.compileErr))
	}
	doc, err := recordDocument(in.Record)
	if err != nil {
		return fail(fmt.Sprintf("record unavailable: %v.", err))
	}
	out, _, err := r.prg.ContextEval(ctx, map[string]any{"run": doc})
	if err != nil {
		return fail(fmt.Sprintf("evaluation error: %v.", err))
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return fail(fmt.Sprintf("expression returned %s, want bool.", out.Type().TypeName()))
	}
	if !allowed {
		return fail("expression evaluated to false.")
	}
	return true, details
}

// recordDocument exposes the record to CEL with its JSON field names.
func recordDocument(rec *domain.RunRecord) (map[string]any, error) {
	if rec == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
