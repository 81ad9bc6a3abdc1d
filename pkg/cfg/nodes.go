package cfg

import (
	"fmt"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

// The builder introduces a handful of operations that have no syntax of
// their own. They embed the span of the construct they were derived from.

// TempStore pops the top of the stack into a temporary.
type TempStore struct {
	syntax.Span
	Temp *syntax.Symbol
}

// TempLoad pushes the value of a temporary.
type TempLoad struct {
	syntax.Span
	Temp *syntax.Symbol
}

// PatternTest pops a value and pushes the boolean outcome of matching it
// against a leaf pattern, binding any designated variable.
type PatternTest struct {
	syntax.Span
	Pattern syntax.Pattern
}

// PropertyRead pops a receiver already known to be non-null and pushes the
// value of one of its members. Used by property patterns.
type PropertyRead struct {
	syntax.Span
	Member string
}

// ForeachStart pops the collection of a foreach loop and stores it in a
// temporary read by the loop header.
type ForeachStart struct {
	syntax.Span
	Stmt       *syntax.Foreach
	Collection *syntax.Symbol
}

// ForeachNext terminates the foreach header: true enters the body with the
// next element, false leaves the loop.
type ForeachNext struct {
	syntax.Span
	Stmt       *syntax.Foreach
	Collection *syntax.Symbol
}

// ShortCircuit terminates the branch block of a desugared pattern
// conjunction ("&&") or disjunction ("||").
type ShortCircuit struct {
	syntax.Span
	Op     string
	Origin syntax.Pattern
}

// Negate pops a boolean and pushes its negation.
type Negate struct {
	syntax.Span
}

func (n *TempStore) String() string    { return "store " + n.Temp.Name }
func (n *TempLoad) String() string     { return "load " + n.Temp.Name }
func (n *PatternTest) String() string  { return "test is " + syntax.Format(n.Pattern) }
func (n *PropertyRead) String() string { return "read ." + n.Member }
func (n *ForeachStart) String() string { return "iterate " + syntax.Format(n.Stmt.Collection) }
func (n *ForeachNext) String() string  { return "next " + syntax.Format(n.Stmt) }
func (n *ShortCircuit) String() string {
	return fmt.Sprintf("%s (%s)", n.Op, syntax.Format(n.Origin))
}
func (n *Negate) String() string { return "not" }

// AssignEvaluatesLeft reports whether the builder emits the left operand of
// an assignment as its own operation before the right operand. Simple
// assignments to a name only bind; `??=` evaluates its left side as the
// branch condition instead.
func AssignEvaluatesLeft(a *syntax.Assign) bool {
	switch a.Op {
	case "??=":
		return false
	case "=":
		_, isName := syntax.RemoveParentheses(a.Left).(*syntax.Identifier)
		return !isName
	}
	return true
}

// Pops returns how many stack values an invocation consumes: its arguments
// plus the receiver or delegate value when there is one. A call through a
// plain name consumes only its arguments.
func Pops(inv *syntax.Invocation) int {
	if syntax.IsNameof(inv) {
		return 0
	}
	n := len(inv.Args)
	if _, isName := inv.Fun.(*syntax.Identifier); !isName {
		n++
	}
	return n
}
