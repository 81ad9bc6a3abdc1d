package symexec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

var (
	fillingMethods = map[string]bool{
		"Add": true, "AddRange": true, "Insert": true, "InsertRange": true,
		"Push": true, "Enqueue": true, "TryAdd": true, "AddFirst": true, "AddLast": true,
		"UnionWith": true,
	}
	shrinkingMethods = map[string]bool{
		"Remove": true, "RemoveAt": true, "RemoveAll": true, "RemoveRange": true,
		"RemoveWhere": true, "Pop": true, "Dequeue": true, "TryPop": true, "TryDequeue": true,
		"RemoveFirst": true, "RemoveLast": true, "ExceptWith": true, "IntersectWith": true,
	}
)

func one(s *ProgramState) []*ProgramState { return []*ProgramState{s} }

func (w *Walker) fresh(s *ProgramState, t *syntax.Type) (*ProgramState, SymbolicValue) {
	v := w.arena.Fresh()
	if t.IsValueType() {
		s = s.SetConstraint(v, NotNull)
	}
	return s, v
}

// known returns a fresh value carrying cs.
func (w *Walker) known(s *ProgramState, cs ...Constraint) (*ProgramState, SymbolicValue) {
	v := w.arena.Fresh()
	for _, c := range cs {
		s = s.SetConstraint(v, c)
	}
	return s, v
}

func (w *Walker) pop(s *ProgramState, n int) (*ProgramState, []SymbolicValue, error) {
	if s.StackSize() < n {
		return nil, nil, fmt.Errorf("%w: stack underflow, need %d values, have %d", ErrInvariant, n, s.StackSize())
	}
	s, vs := s.PopN(n)
	return s, vs, nil
}

// apply runs the effect of one instruction. It returns every successor
// state: none when the instruction cannot complete, two when its result
// forks.
func (w *Walker) apply(n syntax.Node, s *ProgramState) ([]*ProgramState, error) {
	switch n := n.(type) {
	case *syntax.Identifier:
		s, v := w.read(s, n)
		return one(s.Push(v)), nil

	case *syntax.Literal:
		s, v := w.literal(s, n)
		return one(s.Push(v)), nil

	case *syntax.This:
		return one(s.Push(ThisValue)), nil

	case *syntax.Lambda:
		s, v := w.known(s, NotNull)
		return one(s.Push(v)), nil

	case *syntax.MemberAccess:
		return w.memberAccess(s, n)

	case *syntax.MemberBinding:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		s, v := w.member(s, vs[0], nil, n.Name, w.model.TypeOf(n))
		return one(s.Push(v)), nil

	case *syntax.ElementAccess:
		s, vs, err := w.pop(s, len(n.Index)+1)
		if err != nil {
			return nil, err
		}
		s, ok := s.TrySetConstraint(vs[0], NotNull)
		if !ok {
			return nil, nil
		}
		s, v := w.fresh(s, w.model.TypeOf(n))
		return one(s.Push(v)), nil

	case *syntax.ElementBinding:
		s, _, err := w.pop(s, len(n.Index)+1)
		if err != nil {
			return nil, err
		}
		s, v := w.fresh(s, w.model.TypeOf(n))
		return one(s.Push(v)), nil

	case *syntax.RefArg:
		if n.Modifier == "out" || n.Declares {
			s, v := w.fresh(s, nil)
			return one(s.Push(v)), nil
		}
		s, v := w.read(s, syntax.RemoveParentheses(n.Target))
		return one(s.Push(v)), nil

	case *syntax.Invocation:
		return w.invoke(s, n)

	case *syntax.ObjectCreation:
		s, _, err := w.pop(s, len(n.Args))
		if err != nil {
			return nil, err
		}
		typ := w.model.TypeOf(n)
		if typ == nil {
			typ = syntax.ParseType(n.Type)
		}
		s, v := w.known(s, NotNull)
		if syntax.KindOf(typ) == syntax.TypeCollection {
			switch {
			case n.Initializers > 0:
				s = s.SetConstraint(v, NotEmpty)
			case len(n.Args) == 0:
				s = s.SetConstraint(v, Empty)
			}
		}
		return one(s.Push(v)), nil

	case *syntax.Binary:
		s, vs, err := w.pop(s, 2)
		if err != nil {
			return nil, err
		}
		s, v := w.binary(s, n.Op, vs[0], vs[1], w.model.TypeOf(n))
		return one(s.Push(v)), nil

	case *syntax.Unary:
		return w.unary(s, n)

	case *syntax.Postfix:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		old := vs[0]
		switch n.Op {
		case "++", "--":
			s = w.step(s, n.X, old, n.Op)
		}
		return one(s.Push(old)), nil

	case *syntax.Assign:
		return w.assign(s, n)

	case *syntax.Cast:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		typ := w.model.TypeOf(n)
		if typ == nil {
			typ = syntax.ParseType(n.Type)
		}
		if typ.IsValueType() {
			var ok bool
			if s, ok = s.TrySetConstraint(vs[0], NotNull); !ok {
				return nil, nil
			}
		}
		return one(s.Push(vs[0])), nil

	case *syntax.As:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		if s.HasConstraint(vs[0], Null) {
			return one(s.Push(NullValue)), nil
		}
		s, v := w.fresh(s, nil)
		return one(s.Push(v)), nil

	case *syntax.Opaque:
		s, _, err := w.pop(s, len(n.Operands))
		if err != nil {
			return nil, err
		}
		s, v := w.fresh(s, w.model.TypeOf(n))
		if n.NotNull {
			s = s.SetConstraint(v, NotNull)
		}
		return one(s.Push(v)), nil

	case *syntax.UnsupportedExpr:
		return nil, fmt.Errorf("%w: %s", errDropPath, n.Kind)

	case *syntax.VarDeclarator:
		sym := w.model.SymbolOf(n)
		var v SymbolicValue
		if n.Init != nil {
			var vs []SymbolicValue
			var err error
			if s, vs, err = w.pop(s, 1); err != nil {
				return nil, err
			}
			v = vs[0]
		} else {
			var typ *syntax.Type
			if sym != nil {
				typ = sym.Type
			}
			s, v = w.fresh(s, typ)
		}
		if sym.Tracked() {
			s = s.Bind(sym, v)
		}
		return one(s), nil

	case *syntax.ExprStmt, *syntax.Using:
		s, _, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		return one(s), nil

	case *syntax.Lock:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		s, ok := s.TrySetConstraint(vs[0], NotNull)
		if !ok {
			return nil, nil
		}
		return one(s), nil

	case *syntax.Catch:
		if sym := w.model.SymbolOf(n); sym.Tracked() {
			s, v := w.known(s, NotNull)
			return one(s.Bind(sym, v)), nil
		}
		return one(s), nil

	case *cfg.TempStore:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		return one(s.Bind(n.Temp, vs[0])), nil

	case *cfg.TempLoad:
		v, ok := s.ValueOf(n.Temp)
		if !ok {
			return nil, fmt.Errorf("%w: temporary %s read before it is stored", ErrInvariant, n.Temp.Name)
		}
		return one(s.Push(v)), nil

	case *cfg.PatternTest:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		s, r, err := w.test(s, vs[0], n.Pattern)
		if err != nil {
			return nil, err
		}
		return one(s.Push(r)), nil

	case *cfg.PropertyRead:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		s, v := w.member(s, vs[0], nil, n.Member, nil)
		return one(s.Push(v)), nil

	case *cfg.ForeachStart:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		s, ok := s.TrySetConstraint(vs[0], NotNull)
		if !ok {
			return nil, nil
		}
		return one(s.Bind(n.Collection, vs[0])), nil

	case *cfg.Negate:
		s, vs, err := w.pop(s, 1)
		if err != nil {
			return nil, err
		}
		return one(s.Push(w.not(vs[0]))), nil
	}
	return nil, fmt.Errorf("%w: %T", errDropPath, n)
}

// read returns the value of a name. A tracked symbol read for the first
// time gets a fresh value that stays bound.
func (w *Walker) read(s *ProgramState, n syntax.Node) (*ProgramState, SymbolicValue) {
	sym := w.model.SymbolOf(n)
	if sym.Tracked() {
		if v, ok := s.ValueOf(sym); ok {
			return s, v
		}
		s, v := w.fresh(s, sym.Type)
		return s.Bind(sym, v), v
	}
	if val, ok := w.model.ConstantValueOf(n); ok {
		return w.constant(s, val)
	}
	return w.fresh(s, w.model.TypeOf(n))
}

func (w *Walker) literal(s *ProgramState, lit *syntax.Literal) (*ProgramState, SymbolicValue) {
	switch lit.Kind {
	case syntax.LitNull:
		return s, NullValue
	case syntax.LitBool:
		if lit.Value == "true" {
			return s, TrueValue
		}
		return s, FalseValue
	case syntax.LitInt:
		if k, ok := parseInt(lit.Value); ok {
			return w.known(s, NotNull, Exactly(k))
		}
	case syntax.LitString:
		return w.constant(s, lit.Value)
	}
	return w.known(s, NotNull)
}

func parseInt(text string) (int64, bool) {
	text = strings.TrimRight(text, "uUlL")
	k, err := strconv.ParseInt(text, 0, 64)
	return k, err == nil
}

// constant returns a value for a compile-time constant.
func (w *Walker) constant(s *ProgramState, val any) (*ProgramState, SymbolicValue) {
	switch x := val.(type) {
	case nil:
		return s, NullValue
	case bool:
		if x {
			return s, TrueValue
		}
		return s, FalseValue
	case int:
		return w.known(s, NotNull, Exactly(int64(x)))
	case int32:
		return w.known(s, NotNull, Exactly(int64(x)))
	case int64:
		return w.known(s, NotNull, Exactly(x))
	case string:
		if x == "" {
			return w.known(s, NotNull, EmptyString)
		}
		return w.known(s, NotNull, NonEmptyString)
	}
	return w.known(s, NotNull)
}

// constantOf evaluates the operand of a constant or relational pattern,
// which the graph does not emit as an operation of its own.
func (w *Walker) constantOf(s *ProgramState, e syntax.Expr) (*ProgramState, SymbolicValue) {
	e = syntax.RemoveParentheses(e)
	if val, ok := w.model.ConstantValueOf(e); ok {
		return w.constant(s, val)
	}
	switch e := e.(type) {
	case *syntax.Literal:
		return w.literal(s, e)
	case *syntax.Unary:
		if lit, ok := syntax.RemoveParentheses(e.X).(*syntax.Literal); ok && e.Op == "-" && lit.Kind == syntax.LitInt {
			if k, ok := parseInt(lit.Value); ok {
				return w.known(s, NotNull, Exactly(-k))
			}
		}
	}
	return w.known(s, NotNull)
}

func (w *Walker) memberAccess(s *ProgramState, n *syntax.MemberAccess) ([]*ProgramState, error) {
	s, vs, err := w.pop(s, 1)
	if err != nil {
		return nil, err
	}
	recv := vs[0]
	recvType := w.model.TypeOf(n.X)

	var v SymbolicValue
	if val, ok := w.model.ConstantValueOf(n); ok {
		s, v = w.constant(s, val)
	} else {
		s, v = w.member(s, recv, recvType, n.Name, w.model.TypeOf(n))
	}
	// Reading HasValue of a nullable value type dereferences nothing.
	if syntax.KindOf(recvType) != syntax.TypeNullableValue || n.Name == "Value" {
		var ok bool
		if s, ok = s.TrySetConstraint(recv, NotNull); !ok {
			return nil, nil
		}
	}
	return one(s.Push(v)), nil
}

// member returns the value of recv.name.
func (w *Walker) member(s *ProgramState, recv SymbolicValue, recvType *syntax.Type, name string, typ *syntax.Type) (*ProgramState, SymbolicValue) {
	nullable := syntax.KindOf(recvType) == syntax.TypeNullableValue
	switch {
	case nullable && name == "HasValue":
		return s, w.arena.Derive(RelHasValue, "", recv, NoValue)
	case nullable && name == "Value":
		return w.known(s, NotNull)
	case name == "Length" || name == "Count":
		switch {
		case s.HasConstraint(recv, Empty), s.HasConstraint(recv, EmptyString):
			return w.known(s, NotNull, Exactly(0))
		case s.HasConstraint(recv, NotEmpty), s.HasConstraint(recv, NonEmptyString):
			return w.known(s, NotNull, InRange(1, math.MaxInt64))
		}
		return w.known(s, NotNull, InRange(0, math.MaxInt64))
	}
	return w.fresh(s, typ)
}

func (w *Walker) invoke(s *ProgramState, n *syntax.Invocation) ([]*ProgramState, error) {
	if syntax.IsNameof(n) {
		s, v := w.known(s, NotNull, NonEmptyString)
		return one(s.Push(v)), nil
	}
	s, vs, err := w.pop(s, cfg.Pops(n))
	if err != nil {
		return nil, err
	}

	var recvType *syntax.Type
	hasRecv := false
	switch f := n.Fun.(type) {
	case *syntax.MemberAccess:
		hasRecv, recvType = true, w.model.TypeOf(f.X)
	case *syntax.MemberBinding:
		hasRecv = true
	}
	if hasRecv && len(vs) > len(n.Args) {
		recv := vs[0]
		if !w.model.IsExtensionMethod(n) {
			var ok bool
			if s, ok = s.TrySetConstraint(recv, NotNull); !ok {
				return nil, nil
			}
		}
		s = w.collectionCall(s, recv, recvType, syntax.MethodName(n))
	}

	for _, a := range n.Args {
		ra, ok := syntax.RemoveParentheses(a).(*syntax.RefArg)
		if !ok {
			continue
		}
		sym := w.model.SymbolOf(syntax.RemoveParentheses(ra.Target))
		if sym == nil {
			sym = w.model.SymbolOf(ra)
		}
		if sym.Tracked() {
			var v SymbolicValue
			s, v = w.fresh(s, sym.Type)
			s = s.Bind(sym, v)
		}
	}

	typ := w.model.TypeOf(n)
	if syntax.KindOf(typ) == syntax.TypeNullableValue {
		v := w.arena.Fresh()
		return []*ProgramState{
			s.SetConstraint(v, NotNull).Push(v),
			s.SetConstraint(v, Null).Push(v),
		}, nil
	}
	s, v := w.fresh(s, typ)
	return one(s.Push(v)), nil
}

func (w *Walker) collectionCall(s *ProgramState, recv SymbolicValue, recvType *syntax.Type, method string) *ProgramState {
	if _, tracked := s.Constraint(recv, Collection); !tracked && syntax.KindOf(recvType) != syntax.TypeCollection {
		return s
	}
	switch {
	case fillingMethods[method]:
		return s.RemoveConstraint(recv, Collection).SetConstraint(recv, NotEmpty)
	case method == "Clear":
		return s.RemoveConstraint(recv, Collection).SetConstraint(recv, Empty)
	case shrinkingMethods[method]:
		return s.RemoveConstraint(recv, Collection)
	}
	return s
}

func (w *Walker) not(v SymbolicValue) SymbolicValue {
	switch v {
	case TrueValue:
		return FalseValue
	case FalseValue:
		return TrueValue
	}
	return w.arena.Derive(RelNot, "", v, NoValue)
}

// binary returns the value of l op r.
func (w *Walker) binary(s *ProgramState, op string, l, r SymbolicValue, typ *syntax.Type) (*ProgramState, SymbolicValue) {
	switch op {
	case "==":
		return s, w.arena.Derive(RelEqual, "", l, r)
	case "!=":
		return s, w.not(w.arena.Derive(RelEqual, "", l, r))
	case "<", "<=", ">", ">=":
		return s, w.arena.Derive(RelCompare, op, l, r)
	case "is":
		return s, w.arena.Derive(RelTypeTest, "", l, NoValue)
	}

	bothNotNull := s.HasConstraint(l, NotNull) && s.HasConstraint(r, NotNull)
	if op == "+" && (syntax.KindOf(typ) == syntax.TypeString || w.isString(s, l) || w.isString(s, r)) {
		if s.HasConstraint(l, NonEmptyString) || s.HasConstraint(r, NonEmptyString) {
			return w.known(s, NotNull, NonEmptyString)
		}
		return w.known(s, NotNull)
	}
	if op == "+" || op == "-" {
		lc, lok := s.Constraint(l, Numeric)
		rc, rok := s.Constraint(r, Numeric)
		if lok && rok {
			var res Constraint
			if op == "+" {
				res = InRange(addBound(lc.Min, rc.Min), addBound(lc.Max, rc.Max))
			} else {
				res = InRange(addBound(lc.Min, negBound(rc.Max)), addBound(lc.Max, negBound(rc.Min)))
			}
			if !res.unbounded() {
				return w.known(s, NotNull, res)
			}
		}
	}
	s, v := w.fresh(s, typ)
	if bothNotNull {
		s = s.SetConstraint(v, NotNull)
	}
	return s, v
}

func (w *Walker) isString(s *ProgramState, v SymbolicValue) bool {
	_, ok := s.Constraint(v, StringValue)
	return ok
}

func (w *Walker) unary(s *ProgramState, n *syntax.Unary) ([]*ProgramState, error) {
	s, vs, err := w.pop(s, 1)
	if err != nil {
		return nil, err
	}
	x := vs[0]
	switch n.Op {
	case "!":
		return one(s.Push(w.not(x))), nil
	case "-":
		if k, ok := s.pointOf(x); ok && k != math.MinInt64 {
			s, v := w.known(s, NotNull, Exactly(-k))
			return one(s.Push(v)), nil
		}
	case "++", "--":
		s = w.step(s, n.X, x, n.Op)
		v, _ := s.ValueOf(w.model.SymbolOf(syntax.RemoveParentheses(n.X)))
		if v == NoValue {
			s, v = w.known(s, NotNull)
		}
		return one(s.Push(v)), nil
	}
	s, v := w.fresh(s, w.model.TypeOf(n))
	if s.HasConstraint(x, NotNull) {
		s = s.SetConstraint(v, NotNull)
	}
	return one(s.Push(v)), nil
}

// step rebinds the target of ++ or -- to its shifted value.
func (w *Walker) step(s *ProgramState, target syntax.Expr, old SymbolicValue, op string) *ProgramState {
	sym := w.model.SymbolOf(syntax.RemoveParentheses(target))
	if !sym.Tracked() {
		return s
	}
	d := int64(1)
	if op == "--" {
		d = -1
	}
	var v SymbolicValue
	if c, ok := s.Constraint(old, Numeric); ok {
		s, v = w.known(s, NotNull, InRange(addBound(c.Min, d), addBound(c.Max, d)))
	} else {
		s, v = w.fresh(s, sym.Type)
		if s.HasConstraint(old, NotNull) {
			s = s.SetConstraint(v, NotNull)
		}
	}
	return s.Bind(sym, v)
}

func (w *Walker) assign(s *ProgramState, n *syntax.Assign) ([]*ProgramState, error) {
	var v SymbolicValue
	switch {
	case n.Op == "=" || n.Op == "??=":
		k := 1
		if cfg.AssignEvaluatesLeft(n) {
			k = 2
		}
		st, vs, err := w.pop(s, k)
		if err != nil {
			return nil, err
		}
		s, v = st, vs[k-1]
	default:
		st, vs, err := w.pop(s, 2)
		if err != nil {
			return nil, err
		}
		s, v = w.binary(st, strings.TrimSuffix(n.Op, "="), vs[0], vs[1], w.model.TypeOf(n))
	}
	if sym := w.model.SymbolOf(syntax.RemoveParentheses(n.Left)); sym.Tracked() {
		s = s.Bind(sym, v)
	}
	return one(s.Push(v)), nil
}

// test pushes the outcome of matching v against a leaf pattern, binding
// any designated variable to v.
func (w *Walker) test(s *ProgramState, v SymbolicValue, p syntax.Pattern) (*ProgramState, SymbolicValue, error) {
	bind := func(s *ProgramState) *ProgramState {
		if sym := w.model.SymbolOf(p); sym.Tracked() {
			return s.Bind(sym, v)
		}
		return s
	}
	switch p := p.(type) {
	case *syntax.ConstantPattern:
		s, c := w.constantOf(s, p.Value)
		return s, w.arena.Derive(RelEqual, "", v, c), nil
	case *syntax.DeclarationPattern:
		return bind(s), w.arena.Derive(RelTypeTest, p.Type, v, NoValue), nil
	case *syntax.VarPattern:
		return bind(s), TrueValue, nil
	case *syntax.DiscardPattern:
		return s, TrueValue, nil
	case *syntax.RelationalPattern:
		s, c := w.constantOf(s, p.Value)
		return s, w.arena.Derive(RelCompare, p.Op, v, c), nil
	case *syntax.NotPattern:
		s, r, err := w.test(s, v, p.Pattern)
		if err != nil {
			return nil, NoValue, err
		}
		return s, w.not(r), nil
	case *syntax.RecursivePattern:
		s = bind(s)
		if p.Type != "" {
			return s, w.arena.Derive(RelTypeTest, p.Type, v, NoValue), nil
		}
		return s, w.not(w.arena.Derive(RelEqual, "", v, NullValue)), nil
	}
	return nil, NoValue, fmt.Errorf("%w: pattern %T", errDropPath, p)
}
