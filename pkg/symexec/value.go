package symexec

import "fmt"

// SymbolicValue is a handle into the Arena of one walk. Two handles are the
// same value only if they are equal; states are compared by content through
// their fingerprint, never by handle.
type SymbolicValue int32

// Well-known values shared by every state of a walk.
const (
	NoValue    SymbolicValue = 0
	NullValue  SymbolicValue = 1
	TrueValue  SymbolicValue = 2
	FalseValue SymbolicValue = 3
	ThisValue  SymbolicValue = 4

	firstFresh = 5
)

func (v SymbolicValue) String() string {
	switch v {
	case NoValue:
		return "none"
	case NullValue:
		return "null"
	case TrueValue:
		return "true"
	case FalseValue:
		return "false"
	case ThisValue:
		return "this"
	}
	return fmt.Sprintf("sv%d", int32(v))
}

// Relation describes how a value was derived from other values. Constraints
// set on a derived value propagate to its operands.
type Relation uint8

const (
	RelNone Relation = iota
	// RelEqual is `Left == Right`. Inequality is RelNot over RelEqual.
	RelEqual
	// RelNot is `!Left`.
	RelNot
	// RelHasValue is `Left.HasValue` on a nullable value.
	RelHasValue
	// RelTypeTest is `Left is T`; true implies Left is not null.
	RelTypeTest
	// RelCompare is `Left Op Right` for <, <=, > and >=.
	RelCompare
)

func (r Relation) String() string {
	switch r {
	case RelEqual:
		return "eq"
	case RelNot:
		return "not"
	case RelHasValue:
		return "hasvalue"
	case RelTypeTest:
		return "is"
	case RelCompare:
		return "cmp"
	}
	return ""
}

type valueInfo struct {
	rel   Relation
	op    string
	left  SymbolicValue
	right SymbolicValue
}

// Arena hands out symbolic values for one walk. Values are never removed,
// so states created earlier stay valid. An Arena is not safe for concurrent
// use; each walk owns its own.
type Arena struct {
	values []valueInfo
}

// NewArena returns an arena holding only the well-known values.
func NewArena() *Arena {
	return &Arena{values: make([]valueInfo, firstFresh, 256)}
}

// Fresh returns a value with no known relation to any other.
func (a *Arena) Fresh() SymbolicValue {
	a.values = append(a.values, valueInfo{})
	return SymbolicValue(len(a.values) - 1)
}

// Derive returns a value related to its operands.
func (a *Arena) Derive(rel Relation, op string, left, right SymbolicValue) SymbolicValue {
	a.values = append(a.values, valueInfo{rel: rel, op: op, left: left, right: right})
	return SymbolicValue(len(a.values) - 1)
}

// Len reports how many values have been handed out, well-known ones
// included.
func (a *Arena) Len() int { return len(a.values) }

func (a *Arena) info(v SymbolicValue) valueInfo {
	if v < 0 || int(v) >= len(a.values) {
		return valueInfo{}
	}
	return a.values[v]
}

func isConstant(v SymbolicValue) bool { return v > NoValue && v < firstFresh }
