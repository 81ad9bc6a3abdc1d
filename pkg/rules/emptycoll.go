package rules

import (
	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// EmptyCollectionAccessID is the key of the empty collection access rule.
const EmptyCollectionAccessID = "S4158"

// readingMethods are the calls that only make sense on a populated
// collection.
var readingMethods = map[string]bool{
	"Aggregate": true, "All": true, "Average": true, "Contains": true,
	"ContainsKey": true, "ContainsValue": true, "ElementAt": true,
	"ElementAtOrDefault": true, "Exists": true, "Find": true, "FindAll": true,
	"FindIndex": true, "FindLast": true, "FindLastIndex": true, "First": true,
	"FirstOrDefault": true, "ForEach": true, "IndexOf": true, "Last": true,
	"LastIndexOf": true, "LastOrDefault": true, "Max": true, "Min": true,
	"Peek": true, "Pop": true, "Dequeue": true, "Remove": true, "RemoveAt": true,
	"Single": true, "SingleOrDefault": true, "TryGetValue": true,
}

// EmptyCollectionAccess reports reads and iteration of a collection known to
// be empty.
type EmptyCollectionAccess struct {
	reporter
}

func NewEmptyCollectionAccess() Analyzer {
	return &EmptyCollectionAccess{reporter: newReporter(EmptyCollectionAccessID)}
}

func (r *EmptyCollectionAccess) SupportsPartialResults() bool { return true }

func (r *EmptyCollectionAccess) PreInstruction(ctx *symexec.InstructionContext) (*symexec.ProgramState, bool) {
	var coll symexec.SymbolicValue
	var what string
	switch n := ctx.Instruction.(type) {
	case *syntax.Invocation:
		if _, isMember := n.Fun.(*syntax.MemberAccess); !isMember || !readingMethods[syntax.MethodName(n)] {
			return ctx.State, true
		}
		coll = ctx.State.Peek(len(n.Args))
		what = "call to '" + syntax.MethodName(n) + "'"
	case *syntax.ElementAccess:
		coll = ctx.State.Peek(len(n.Index))
		what = "element access"
	case *cfg.ForeachStart:
		coll = ctx.State.Peek(0)
		what = "loop"
	default:
		return ctx.State, true
	}
	if ctx.State.HasConstraint(coll, symexec.Empty) {
		r.report(ctx.Instruction.Pos(), "Remove this %s, the collection is known to be empty here.", what)
	}
	return ctx.State, true
}
