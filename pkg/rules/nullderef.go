package rules

import (
	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// NullDereferenceID is the key of the null dereference rule.
const NullDereferenceID = "S2259"

// NullDereference reports member accesses, element accesses, instance calls,
// foreach loops and lock statements on a value known to be null. The path
// ends at the dereference.
type NullDereference struct {
	reporter
}

// NewNullDereference returns a fresh null dereference check.
func NewNullDereference() Analyzer {
	return &NullDereference{reporter: newReporter(NullDereferenceID)}
}

func (r *NullDereference) SupportsPartialResults() bool { return true }

func (r *NullDereference) PreInstruction(ctx *symexec.InstructionContext) (*symexec.ProgramState, bool) {
	v, ok := symexec.DereferencedValue(ctx.Instruction, ctx.State, ctx.Model)
	if !ok || !ctx.State.HasConstraint(v, symexec.Null) {
		return ctx.State, true
	}
	if target := dereferenced(ctx.Instruction); target != nil {
		r.report(target.Pos(), "'%s' is null on at least one execution path.", syntax.Format(target))
	}
	return nil, false
}

// dereferenced returns the expression whose value an instruction
// dereferences.
func dereferenced(n syntax.Node) syntax.Expr {
	switch n := n.(type) {
	case *syntax.MemberAccess:
		return n.X
	case *syntax.ElementAccess:
		return n.X
	case *syntax.Invocation:
		return syntax.ReceiverOf(n)
	case *cfg.ForeachStart:
		return n.Stmt.Collection
	case *syntax.Lock:
		return n.X
	}
	return nil
}
