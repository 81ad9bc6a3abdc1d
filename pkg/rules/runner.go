package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// Outcome says whether a procedure was analyzed at all.
type Outcome string

const (
	Analyzed Outcome = "analyzed"
	// Skipped procedures use syntax the graph builder does not support.
	Skipped Outcome = "skipped"
)

// Report is the result of analyzing one procedure.
type Report struct {
	Procedure   string
	Outcome     Outcome
	SkipReason  string
	Result      symexec.Result
	Graph       *cfg.Graph
	Diagnostics []Diagnostic
}

// Runner analyzes procedures with a fixed set of rules and budgets. It is
// safe for concurrent use: every call creates its own walker and rule
// instances.
type Runner struct {
	registry *Registry
	rules    []string
	opts     symexec.Options
}

// NewRunner returns a runner for the named rules (all registered rules when
// none are named).
func NewRunner(registry *Registry, opts symexec.Options, ids ...string) (*Runner, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	for _, id := range ids {
		if !registry.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
	}
	return &Runner{registry: registry, rules: ids, opts: opts}, nil
}

// Analyze builds the graph of proc, walks it with fresh rule instances and
// collects their findings. Rules that need complete exploration report only
// when the walk explored every path. The error is reserved for broken
// invariants; unsupported syntax yields a Skipped report.
func (r *Runner) Analyze(ctx context.Context, proc *syntax.Procedure, model syntax.SemanticModel) (Report, error) {
	report := Report{Procedure: proc.Name}

	g, err := cfg.Build(proc.Body, model)
	if err != nil {
		if errors.Is(err, cfg.ErrUnsupportedSyntax) {
			report.Outcome = Skipped
			report.SkipReason = err.Error()
			return report, nil
		}
		return report, fmt.Errorf("building graph of %s: %w", proc.Name, err)
	}
	report.Graph = g

	analyzers, err := r.registry.New(r.rules...)
	if err != nil {
		return report, err
	}
	checks := make([]symexec.Check, len(analyzers))
	for i, a := range analyzers {
		checks[i] = a
	}

	opts := r.opts
	opts.Parameters = proc.Params
	res, err := symexec.NewWalker(g, model, opts, checks...).Walk(ctx)
	report.Outcome = Analyzed
	report.Result = res
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", proc.Name, err)
	}

	for _, a := range analyzers {
		if !a.SupportsPartialResults() && !res.FullyExplored() {
			continue
		}
		for _, d := range a.Diagnostics() {
			d.Procedure = proc.Name
			report.Diagnostics = append(report.Diagnostics, d)
		}
	}
	SortDiagnostics(report.Diagnostics)
	return report, nil
}
