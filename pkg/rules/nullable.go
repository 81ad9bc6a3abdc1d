package rules

import (
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// EmptyNullableValueAccessID is the key of the empty nullable access rule.
const EmptyNullableValueAccessID = "S3655"

// EmptyNullableValueAccess reports reading .Value of a tracked nullable
// local or parameter that holds no value.
type EmptyNullableValueAccess struct {
	reporter
}

func NewEmptyNullableValueAccess() Analyzer {
	return &EmptyNullableValueAccess{reporter: newReporter(EmptyNullableValueAccessID)}
}

func (r *EmptyNullableValueAccess) SupportsPartialResults() bool { return true }

func (r *EmptyNullableValueAccess) PreInstruction(ctx *symexec.InstructionContext) (*symexec.ProgramState, bool) {
	ma, ok := ctx.Instruction.(*syntax.MemberAccess)
	if !ok || ma.Name != "Value" {
		return ctx.State, true
	}
	id, ok := syntax.RemoveParentheses(ma.X).(*syntax.Identifier)
	if !ok {
		return ctx.State, true
	}
	sym := ctx.Model.SymbolOf(id)
	if !sym.Tracked() || syntax.KindOf(sym.Type) != syntax.TypeNullableValue {
		return ctx.State, true
	}
	if !ctx.State.HasConstraint(ctx.State.Peek(0), symexec.Null) {
		return ctx.State, true
	}
	r.report(ma.Pos(), "'%s' is null on at least one execution path.", id.Name)
	return nil, false
}
