package symexec

import (
	"fmt"
	"math"
)

// Domain groups mutually exclusive constraints. A value carries at most one
// constraint per domain; domains are independent of each other.
type Domain uint8

const (
	Nullability Domain = iota
	Boolean
	Collection
	StringValue
	Numeric

	domainCount
)

func (d Domain) String() string {
	switch d {
	case Nullability:
		return "nullability"
	case Boolean:
		return "bool"
	case Collection:
		return "collection"
	case StringValue:
		return "string"
	case Numeric:
		return "numeric"
	}
	return fmt.Sprintf("domain(%d)", uint8(d))
}

// Kind names a constraint within its domain.
type Kind uint8

const (
	kindNone Kind = iota
	KindNull
	KindNotNull
	KindTrue
	KindFalse
	KindEmpty
	KindNotEmpty
	KindRange
)

// Constraint is a predicate attached to a symbolic value. Numeric
// constraints carry an inclusive range; math.MinInt64 and math.MaxInt64
// stand for unbounded ends. The zero Constraint means "no constraint".
type Constraint struct {
	Domain Domain
	Kind   Kind
	Min    int64
	Max    int64
}

var (
	Null           = Constraint{Domain: Nullability, Kind: KindNull}
	NotNull        = Constraint{Domain: Nullability, Kind: KindNotNull}
	True           = Constraint{Domain: Boolean, Kind: KindTrue}
	False          = Constraint{Domain: Boolean, Kind: KindFalse}
	Empty          = Constraint{Domain: Collection, Kind: KindEmpty}
	NotEmpty       = Constraint{Domain: Collection, Kind: KindNotEmpty}
	EmptyString    = Constraint{Domain: StringValue, Kind: KindEmpty}
	NonEmptyString = Constraint{Domain: StringValue, Kind: KindNotEmpty}
)

// InRange returns a numeric constraint for [min, max].
func InRange(min, max int64) Constraint {
	return Constraint{Domain: Numeric, Kind: KindRange, Min: min, Max: max}
}

// Exactly returns the numeric constraint of a single known value.
func Exactly(v int64) Constraint { return InRange(v, v) }

// Bool returns True or False.
func Bool(b bool) Constraint {
	if b {
		return True
	}
	return False
}

// IsZero reports whether c is the absent constraint.
func (c Constraint) IsZero() bool { return c.Kind == kindNone }

// Point returns the single value of a numeric constraint, if it has one.
func (c Constraint) Point() (int64, bool) {
	if c.Kind == KindRange && c.Min == c.Max {
		return c.Min, true
	}
	return 0, false
}

func (c Constraint) unbounded() bool {
	return c.Kind == KindRange && c.Min == math.MinInt64 && c.Max == math.MaxInt64
}

// Negate returns the constraint describing the opposite outcome. Numeric
// ranges only negate when one end is unbounded.
func (c Constraint) Negate() (Constraint, bool) {
	switch c {
	case Null:
		return NotNull, true
	case NotNull:
		return Null, true
	case True:
		return False, true
	case False:
		return True, true
	case Empty:
		return NotEmpty, true
	case NotEmpty:
		return Empty, true
	case EmptyString:
		return NonEmptyString, true
	case NonEmptyString:
		return EmptyString, true
	}
	if c.Kind == KindRange {
		switch {
		case c.Min == math.MinInt64 && c.Max != math.MaxInt64:
			return InRange(c.Max+1, math.MaxInt64), true
		case c.Max == math.MaxInt64 && c.Min != math.MinInt64:
			return InRange(math.MinInt64, c.Min-1), true
		}
	}
	return Constraint{}, false
}

// Intersect combines two constraints of the same domain that must both
// hold. ok is false when they contradict.
func (c Constraint) Intersect(o Constraint) (Constraint, bool) {
	if c.IsZero() {
		return o, true
	}
	if o.IsZero() {
		return c, true
	}
	if c.Domain != o.Domain {
		panic(fmt.Sprintf("symexec: intersecting %s with %s", c.Domain, o.Domain))
	}
	if c.Kind == KindRange && o.Kind == KindRange {
		r := InRange(max(c.Min, o.Min), min(c.Max, o.Max))
		return r, r.Min <= r.Max
	}
	return c, c == o
}

// Merge joins the constraints two paths hold for the same value. Identical
// constraints survive, numeric ranges widen to their hull, anything else is
// dropped.
func (c Constraint) Merge(o Constraint) (Constraint, bool) {
	if c == o {
		return c, !c.IsZero()
	}
	if c.Kind == KindRange && o.Kind == KindRange {
		return InRange(min(c.Min, o.Min), max(c.Max, o.Max)), true
	}
	return Constraint{}, false
}

// Contains reports whether every value satisfying o also satisfies c.
func (c Constraint) Contains(o Constraint) bool {
	if c.Kind == KindRange && o.Kind == KindRange {
		return c.Min <= o.Min && o.Max <= c.Max
	}
	return c == o
}

func (c Constraint) String() string {
	switch c.Kind {
	case kindNone:
		return "none"
	case KindNull:
		return "null"
	case KindNotNull:
		return "not-null"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindEmpty:
		if c.Domain == StringValue {
			return "empty-string"
		}
		return "empty"
	case KindNotEmpty:
		if c.Domain == StringValue {
			return "non-empty-string"
		}
		return "not-empty"
	case KindRange:
		return "[" + bound(c.Min) + ".." + bound(c.Max) + "]"
	}
	return fmt.Sprintf("kind(%d)", uint8(c.Kind))
}

func bound(v int64) string {
	switch v {
	case math.MinInt64:
		return "-inf"
	case math.MaxInt64:
		return "+inf"
	}
	return fmt.Sprint(v)
}

// saturating arithmetic for range bounds

func addBound(a, b int64) int64 {
	if a == math.MinInt64 || b == math.MinInt64 {
		return math.MinInt64
	}
	if a == math.MaxInt64 || b == math.MaxInt64 {
		return math.MaxInt64
	}
	s := a + b
	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}
	return s
}

func negBound(a int64) int64 {
	switch a {
	case math.MinInt64:
		return math.MaxInt64
	case math.MaxInt64:
		return math.MinInt64
	}
	return -a
}
