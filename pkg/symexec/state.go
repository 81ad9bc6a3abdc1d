package symexec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

type constraintSet [domainCount]Constraint

// ProgramState is an immutable snapshot of one path: the evaluation stack,
// the values bound to tracked symbols, the constraints known about values,
// and the pending finally resume targets. Every transition returns a new
// state and leaves the receiver untouched.
type ProgramState struct {
	arena       *Arena
	stack       []SymbolicValue
	bindings    map[*syntax.Symbol]SymbolicValue
	constraints map[SymbolicValue]constraintSet
	resume      []cfg.Resume

	fp string
}

// NewProgramState returns the empty state of a walk over arena, with the
// well-known values constrained.
func NewProgramState(arena *Arena) *ProgramState {
	s := &ProgramState{
		arena:       arena,
		bindings:    map[*syntax.Symbol]SymbolicValue{},
		constraints: map[SymbolicValue]constraintSet{},
	}
	s.constraints[NullValue] = constraintSet{Nullability: Null}
	s.constraints[TrueValue] = constraintSet{Nullability: NotNull, Boolean: True}
	s.constraints[FalseValue] = constraintSet{Nullability: NotNull, Boolean: False}
	s.constraints[ThisValue] = constraintSet{Nullability: NotNull}
	return s
}

// Arena returns the arena the state's values live in.
func (s *ProgramState) Arena() *Arena { return s.arena }

func (s *ProgramState) clone() *ProgramState {
	c := *s
	c.fp = ""
	return &c
}

// ---- stack ----

// Push returns a state with vs pushed in order; the last one ends on top.
func (s *ProgramState) Push(vs ...SymbolicValue) *ProgramState {
	c := s.clone()
	c.stack = append(s.stack[:len(s.stack):len(s.stack)], vs...)
	return c
}

// Pop removes the top of the stack. It returns NoValue on an empty stack.
func (s *ProgramState) Pop() (*ProgramState, SymbolicValue) {
	if len(s.stack) == 0 {
		return s, NoValue
	}
	c := s.clone()
	c.stack = s.stack[: len(s.stack)-1 : len(s.stack)-1]
	return c, s.stack[len(s.stack)-1]
}

// PopN removes the top n values and returns them in push order.
func (s *ProgramState) PopN(n int) (*ProgramState, []SymbolicValue) {
	if n <= 0 {
		return s, nil
	}
	if n > len(s.stack) {
		n = len(s.stack)
	}
	c := s.clone()
	k := len(s.stack) - n
	c.stack = s.stack[:k:k]
	out := make([]SymbolicValue, n)
	copy(out, s.stack[k:])
	return c, out
}

// Peek returns the value n positions below the top; Peek(0) is the top.
func (s *ProgramState) Peek(n int) SymbolicValue {
	if n < 0 || n >= len(s.stack) {
		return NoValue
	}
	return s.stack[len(s.stack)-1-n]
}

// StackSize returns the number of values on the stack.
func (s *ProgramState) StackSize() int { return len(s.stack) }

// ClearStack drops every stack value, as happens when control leaves an
// expression abruptly.
func (s *ProgramState) ClearStack() *ProgramState {
	if len(s.stack) == 0 {
		return s
	}
	c := s.clone()
	c.stack = nil
	return c
}

// ---- bindings ----

// Bind returns a state where sym holds v.
func (s *ProgramState) Bind(sym *syntax.Symbol, v SymbolicValue) *ProgramState {
	if old, ok := s.bindings[sym]; ok && old == v {
		return s
	}
	c := s.clone()
	c.bindings = make(map[*syntax.Symbol]SymbolicValue, len(s.bindings)+1)
	for k, x := range s.bindings {
		c.bindings[k] = x
	}
	c.bindings[sym] = v
	return c
}

// ValueOf returns the value bound to sym.
func (s *ProgramState) ValueOf(sym *syntax.Symbol) (SymbolicValue, bool) {
	v, ok := s.bindings[sym]
	return v, ok
}

// Symbols returns the bound symbols ordered by name and declaration.
func (s *ProgramState) Symbols() []*syntax.Symbol {
	out := make([]*syntax.Symbol, 0, len(s.bindings))
	for sym := range s.bindings {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return symbolLess(out[i], out[j]) })
	return out
}

func symbolLess(a, b *syntax.Symbol) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	da, db := a.Decl, b.Decl
	switch {
	case da.StartLine != db.StartLine:
		return da.StartLine < db.StartLine
	case da.StartCol != db.StartCol:
		return da.StartCol < db.StartCol
	case da.EndLine != db.EndLine:
		return da.EndLine < db.EndLine
	case da.EndCol != db.EndCol:
		return da.EndCol < db.EndCol
	}
	return a.Kind < b.Kind
}

// ---- constraints ----

// Constraint returns the constraint v carries in domain d.
func (s *ProgramState) Constraint(v SymbolicValue, d Domain) (Constraint, bool) {
	set, ok := s.constraints[v]
	if !ok || set[d].IsZero() {
		return Constraint{}, false
	}
	return set[d], true
}

// HasConstraint reports whether v is known to satisfy c.
func (s *ProgramState) HasConstraint(v SymbolicValue, c Constraint) bool {
	have, ok := s.Constraint(v, c.Domain)
	return ok && c.Contains(have)
}

// Constraints lists the constraints on v in domain order.
func (s *ProgramState) Constraints(v SymbolicValue) []Constraint {
	set := s.constraints[v]
	var out []Constraint
	for _, c := range set {
		if !c.IsZero() {
			out = append(out, c)
		}
	}
	return out
}

// SetConstraint replaces v's constraint in c's domain without any
// consistency check. Checks use TrySetConstraint instead.
func (s *ProgramState) SetConstraint(v SymbolicValue, c Constraint) *ProgramState {
	if c.IsZero() || v == NoValue {
		return s
	}
	set := s.constraints[v]
	if set[c.Domain] == c {
		return s
	}
	set[c.Domain] = c
	return s.withConstraints(v, set)
}

// RemoveConstraint forgets what v holds in domain d.
func (s *ProgramState) RemoveConstraint(v SymbolicValue, d Domain) *ProgramState {
	set, ok := s.constraints[v]
	if !ok || set[d].IsZero() {
		return s
	}
	set[d] = Constraint{}
	return s.withConstraints(v, set)
}

func (s *ProgramState) withConstraints(v SymbolicValue, set constraintSet) *ProgramState {
	c := s.clone()
	c.constraints = make(map[SymbolicValue]constraintSet, len(s.constraints)+1)
	for k, x := range s.constraints {
		c.constraints[k] = x
	}
	if set == (constraintSet{}) {
		delete(c.constraints, v)
	} else {
		c.constraints[v] = set
	}
	return c
}

// ---- finally resume stack ----

// pushResume records where finally exits continue. Entries are pushed in
// order, so the innermost region, listed last, is matched first.
func (s *ProgramState) pushResume(rs []cfg.Resume) *ProgramState {
	if len(rs) == 0 {
		return s
	}
	c := s.clone()
	c.resume = append(s.resume[:len(s.resume):len(s.resume)], rs...)
	return c
}

// resumeFrom pops entries until one belongs to exit and returns its target.
func (s *ProgramState) resumeFrom(exit *cfg.Block) (*ProgramState, *cfg.Block, bool) {
	for i := len(s.resume) - 1; i >= 0; i-- {
		if s.resume[i].Exit == exit {
			c := s.clone()
			c.resume = s.resume[:i:i]
			return c, s.resume[i].Target, true
		}
	}
	return s, nil, false
}

// resumeKey identifies the pending finally continuations.
func (s *ProgramState) resumeKey() string {
	if len(s.resume) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, r := range s.resume {
		sb.WriteString(strconv.Itoa(r.Exit.ID))
		sb.WriteByte('>')
		sb.WriteString(strconv.Itoa(r.Target.ID))
		sb.WriteByte(' ')
	}
	return sb.String()
}

// ResumeDepth returns how many finally continuations are pending.
func (s *ProgramState) ResumeDepth() int { return len(s.resume) }
