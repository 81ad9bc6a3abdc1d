package rules

import (
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// ConstantConditionID is the key of the constant condition rule.
const ConstantConditionID = "S2583"

// ConstantCondition reports boolean conditions that evaluated to the same
// outcome on every path that reached them. It is only sound once every
// path has been explored.
type ConstantCondition struct {
	reporter
	order    []syntax.Expr
	outcomes map[syntax.Expr]*[2]bool
	ended    bool
}

func NewConstantCondition() Analyzer {
	return &ConstantCondition{
		reporter: newReporter(ConstantConditionID),
		outcomes: make(map[syntax.Expr]*[2]bool),
	}
}

func (r *ConstantCondition) SupportsPartialResults() bool { return false }

func (r *ConstantCondition) Branch(ctx *symexec.BranchContext) {
	cond := conditionOf(ctx.Condition)
	if cond == nil || syntax.IsBoolLiteral(cond) {
		return
	}
	seen, ok := r.outcomes[cond]
	if !ok {
		seen = new([2]bool)
		r.outcomes[cond] = seen
		r.order = append(r.order, cond)
	}
	if ctx.Outcome {
		seen[1] = true
	} else {
		seen[0] = true
	}
}

func (r *ConstantCondition) ExplorationEnded(symexec.Result) {
	if r.ended {
		return
	}
	r.ended = true
	for _, cond := range r.order {
		seen := r.outcomes[cond]
		switch {
		case seen[0] && seen[1]:
		case seen[1]:
			r.report(cond.Pos(), "Change this condition so that it does not always evaluate to '%s'.", "true")
		case seen[0]:
			r.report(cond.Pos(), "Change this condition so that it does not always evaluate to '%s'.", "false")
		}
	}
}

// conditionOf returns the boolean expression a branch tests, or nil for
// branches on nullness or iteration.
func conditionOf(term syntax.Node) syntax.Expr {
	switch t := term.(type) {
	case *syntax.If:
		return t.Cond
	case *syntax.While:
		return t.Cond
	case *syntax.Do:
		return t.Cond
	case *syntax.For:
		return t.Cond
	case *syntax.Conditional:
		return t.Cond
	case *syntax.Catch:
		return t.Filter
	case *syntax.Binary:
		if t.Op == "&&" || t.Op == "||" {
			return t.X
		}
	}
	return nil
}
