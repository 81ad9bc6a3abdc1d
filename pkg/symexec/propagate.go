package symexec

import "math"

// maxPropagation bounds how far a constraint travels through relations.
const maxPropagation = 8

// TrySetConstraint attaches c to v and propagates it to the values v was
// derived from. ok is false when the result would be contradictory: the
// path is infeasible and the state must be dropped.
func (s *ProgramState) TrySetConstraint(v SymbolicValue, c Constraint) (*ProgramState, bool) {
	return s.constrain(v, c, 0)
}

func (s *ProgramState) constrain(v SymbolicValue, c Constraint, depth int) (*ProgramState, bool) {
	if v == NoValue || c.IsZero() || depth > maxPropagation {
		return s, true
	}
	if c.unbounded() {
		return s.constrain(v, NotNull, depth)
	}
	if old, ok := s.Constraint(v, c.Domain); ok {
		merged, ok := old.Intersect(c)
		if !ok {
			return nil, false
		}
		if merged == old {
			return s, true
		}
		c = merged
	}

	if c == Null {
		// Only something that exists can be true, empty or counted.
		for d := Boolean; d < domainCount; d++ {
			if _, has := s.Constraint(v, d); has {
				return nil, false
			}
		}
	}
	s = s.SetConstraint(v, c)
	if c.Domain != Nullability {
		var ok bool
		if s, ok = s.constrain(v, NotNull, depth+1); !ok {
			return nil, false
		}
	}
	return s.propagate(v, c, depth+1)
}

func (s *ProgramState) propagate(v SymbolicValue, c Constraint, depth int) (*ProgramState, bool) {
	info := s.arena.info(v)
	if info.rel == RelNone || c.Domain != Boolean {
		return s, true
	}
	outcome := c == True

	switch info.rel {
	case RelNot:
		return s.constrain(info.left, Bool(!outcome), depth)

	case RelHasValue:
		if outcome {
			return s.constrain(info.left, NotNull, depth)
		}
		return s.constrain(info.left, Null, depth)

	case RelTypeTest:
		if outcome {
			return s.constrain(info.left, NotNull, depth)
		}
		return s, true

	case RelEqual:
		if outcome {
			return s.equal(info.left, info.right, depth)
		}
		return s.notEqual(info.left, info.right, depth)

	case RelCompare:
		op := info.op
		if !outcome {
			// A lifted comparison is also false when an operand is null.
			if !s.HasConstraint(info.left, NotNull) || !s.HasConstraint(info.right, NotNull) {
				return s, true
			}
			op = negateComparison(op)
		}
		return s.compare(info.left, op, info.right, depth)
	}
	return s, true
}

// equal copies what is known about each side onto the other.
func (s *ProgramState) equal(l, r SymbolicValue, depth int) (*ProgramState, bool) {
	if l == r {
		return s, true
	}
	for d := Nullability; d < domainCount; d++ {
		lc, lok := s.Constraint(l, d)
		rc, rok := s.Constraint(r, d)
		var ok bool
		if lok {
			if s, ok = s.constrain(r, lc, depth); !ok {
				return nil, false
			}
		}
		if rok {
			if s, ok = s.constrain(l, rc, depth); !ok {
				return nil, false
			}
		}
	}
	return s, true
}

func (s *ProgramState) notEqual(l, r SymbolicValue, depth int) (*ProgramState, bool) {
	if l == r {
		return nil, false
	}
	var ok bool
	switch {
	case s.HasConstraint(l, Null):
		s, ok = s.constrain(r, NotNull, depth)
	case s.HasConstraint(r, Null):
		s, ok = s.constrain(l, NotNull, depth)
	default:
		ok = true
	}
	if !ok {
		return nil, false
	}
	for _, pair := range [2][2]SymbolicValue{{l, r}, {r, l}} {
		if b, has := s.Constraint(pair[0], Boolean); has {
			if s, ok = s.constrain(pair[1], Bool(b != True), depth); !ok {
				return nil, false
			}
		}
		if k, point := s.pointOf(pair[0]); point {
			if s, ok = s.excludePoint(pair[1], k, depth); !ok {
				return nil, false
			}
		}
	}
	return s, true
}

func (s *ProgramState) pointOf(v SymbolicValue) (int64, bool) {
	c, ok := s.Constraint(v, Numeric)
	if !ok {
		return 0, false
	}
	return c.Point()
}

// excludePoint shrinks v's range when k sits on one of its ends.
func (s *ProgramState) excludePoint(v SymbolicValue, k int64, depth int) (*ProgramState, bool) {
	c, ok := s.Constraint(v, Numeric)
	if !ok {
		return s, true
	}
	switch {
	case c.Min == k && c.Max == k:
		return nil, false
	case c.Min == k:
		return s.constrain(v, InRange(k+1, c.Max), depth)
	case c.Max == k:
		return s.constrain(v, InRange(c.Min, k-1), depth)
	}
	return s, true
}

func (s *ProgramState) rangeOf(v SymbolicValue) Constraint {
	if c, ok := s.Constraint(v, Numeric); ok {
		return c
	}
	return InRange(math.MinInt64, math.MaxInt64)
}

// compare narrows both operands of a comparison known to hold.
func (s *ProgramState) compare(l SymbolicValue, op string, r SymbolicValue, depth int) (*ProgramState, bool) {
	lr, rr := s.rangeOf(l), s.rangeOf(r)
	var ln, rn Constraint
	switch op {
	case "<":
		ln = InRange(math.MinInt64, addBound(rr.Max, -1))
		rn = InRange(addBound(lr.Min, 1), math.MaxInt64)
	case "<=":
		ln = InRange(math.MinInt64, rr.Max)
		rn = InRange(lr.Min, math.MaxInt64)
	case ">":
		ln = InRange(addBound(rr.Min, 1), math.MaxInt64)
		rn = InRange(math.MinInt64, addBound(lr.Max, -1))
	case ">=":
		ln = InRange(rr.Min, math.MaxInt64)
		rn = InRange(math.MinInt64, lr.Max)
	default:
		return s, true
	}
	var ok bool
	if s, ok = s.constrain(l, ln, depth); !ok {
		return nil, false
	}
	return s.constrain(r, rn, depth)
}

func negateComparison(op string) string {
	switch op {
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	case ">=":
		return "<"
	}
	return op
}
