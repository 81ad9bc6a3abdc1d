package symexec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

func local(name string, line int) *syntax.Symbol {
	return &syntax.Symbol{Name: name, Kind: syntax.SymbolLocal, Decl: syntax.Span{StartLine: line}}
}

func TestProgramState_IsImmutable(t *testing.T) {
	s := NewProgramState(NewArena())
	x := local("x", 1)

	pushed := s.Push(TrueValue, NullValue)
	bound := pushed.Bind(x, NullValue)

	assert.Equal(t, 0, s.StackSize())
	assert.Equal(t, 2, pushed.StackSize())
	_, ok := pushed.ValueOf(x)
	assert.False(t, ok)
	v, ok := bound.ValueOf(x)
	assert.True(t, ok)
	assert.Equal(t, NullValue, v)

	popped, top := pushed.Pop()
	assert.Equal(t, NullValue, top)
	assert.Equal(t, 1, popped.StackSize())
	assert.Equal(t, 2, pushed.StackSize())

	rest, vs := pushed.PopN(2)
	assert.Equal(t, []SymbolicValue{TrueValue, NullValue}, vs)
	assert.Equal(t, 0, rest.StackSize())
}

func TestProgramState_WellKnownValues(t *testing.T) {
	s := NewProgramState(NewArena())
	assert.True(t, s.HasConstraint(NullValue, Null))
	assert.True(t, s.HasConstraint(TrueValue, True))
	assert.True(t, s.HasConstraint(FalseValue, False))
	assert.True(t, s.HasConstraint(ThisValue, NotNull))
}

func TestFingerprint_IgnoresValueIdentity(t *testing.T) {
	build := func(extra int) *ProgramState {
		a := NewArena()
		for i := 0; i < extra; i++ {
			a.Fresh()
		}
		s := NewProgramState(a)
		v := a.Fresh()
		s = s.SetConstraint(v, NotNull)
		s = s.Bind(local("x", 1), v)
		return s.Push(v)
	}

	one, other := build(0), build(7)
	assert.Equal(t, one.Fingerprint(), other.Fingerprint())

	changed := other.SetConstraint(other.Peek(0), NonEmptyString)
	assert.NotEqual(t, one.Fingerprint(), changed.Fingerprint())
}

func TestFingerprint_IgnoresUnreachableValues(t *testing.T) {
	a := NewArena()
	s := NewProgramState(a)
	dead := a.Fresh()

	assert.Equal(t, s.Fingerprint(), s.SetConstraint(dead, Null).Fingerprint())
}

func TestFingerprint_DescribesRelations(t *testing.T) {
	a := NewArena()
	x := a.Fresh()
	eq := a.Derive(RelEqual, "", x, NullValue)
	s := NewProgramState(a).Push(eq)

	assert.Equal(t, "S[v0] B[] V[v0=eq(v1,null) v1] R[]", s.Fingerprint())
}

func TestTrySetConstraint_Contradiction(t *testing.T) {
	a := NewArena()
	v := a.Fresh()
	s := NewProgramState(a)

	s, ok := s.TrySetConstraint(v, Null)
	require.True(t, ok)
	_, ok = s.TrySetConstraint(v, NotNull)
	assert.False(t, ok)

	_, ok = s.TrySetConstraint(v, NonEmptyString)
	assert.False(t, ok, "a null value has no content")

	_, ok = NewProgramState(a).TrySetConstraint(TrueValue, False)
	assert.False(t, ok)
}

func TestTrySetConstraint_ImpliesNotNull(t *testing.T) {
	a := NewArena()
	v := a.Fresh()
	s, ok := NewProgramState(a).TrySetConstraint(v, Empty)
	require.True(t, ok)
	assert.True(t, s.HasConstraint(v, NotNull))
}

func TestTrySetConstraint_ThroughEquality(t *testing.T) {
	a := NewArena()
	x := a.Fresh()
	eq := a.Derive(RelEqual, "", x, NullValue)
	ne := a.Derive(RelNot, "", eq, NoValue)
	s := NewProgramState(a)

	isNull, ok := s.TrySetConstraint(eq, True)
	require.True(t, ok)
	assert.True(t, isNull.HasConstraint(x, Null))

	notNull, ok := s.TrySetConstraint(eq, False)
	require.True(t, ok)
	assert.True(t, notNull.HasConstraint(x, NotNull))

	viaNot, ok := s.TrySetConstraint(ne, True)
	require.True(t, ok)
	assert.True(t, viaNot.HasConstraint(x, NotNull))

	_, ok = notNull.TrySetConstraint(eq, True)
	assert.False(t, ok)
}

func TestTrySetConstraint_Comparison(t *testing.T) {
	a := NewArena()
	i, five := a.Fresh(), a.Fresh()
	base := NewProgramState(a).SetConstraint(five, NotNull).SetConstraint(five, Exactly(5))
	gt := a.Derive(RelCompare, ">", i, five)

	s, ok := base.TrySetConstraint(gt, True)
	require.True(t, ok)
	c, _ := s.Constraint(i, Numeric)
	assert.Equal(t, InRange(6, math.MaxInt64), c)

	// i may be null: a false lifted comparison says nothing about its range.
	s, ok = base.TrySetConstraint(gt, False)
	require.True(t, ok)
	_, has := s.Constraint(i, Numeric)
	assert.False(t, has)

	s, ok = base.SetConstraint(i, NotNull).TrySetConstraint(gt, False)
	require.True(t, ok)
	c, _ = s.Constraint(i, Numeric)
	assert.Equal(t, InRange(math.MinInt64, 5), c)
}

func TestTrySetConstraint_HasValue(t *testing.T) {
	a := NewArena()
	x := a.Fresh()
	hv := a.Derive(RelHasValue, "", x, NoValue)
	s := NewProgramState(a)

	without, ok := s.TrySetConstraint(hv, False)
	require.True(t, ok)
	assert.True(t, without.HasConstraint(x, Null))

	with, ok := s.TrySetConstraint(hv, True)
	require.True(t, ok)
	assert.True(t, with.HasConstraint(x, NotNull))
}

func TestTrySetConstraint_NotEqualExcludesPoint(t *testing.T) {
	a := NewArena()
	i, zero := a.Fresh(), a.Fresh()
	s := NewProgramState(a).
		SetConstraint(i, InRange(0, 10)).
		SetConstraint(zero, Exactly(0))
	eq := a.Derive(RelEqual, "", i, zero)

	s, ok := s.TrySetConstraint(eq, False)
	require.True(t, ok)
	c, _ := s.Constraint(i, Numeric)
	assert.Equal(t, InRange(1, 10), c)
}

func TestResumeStack(t *testing.T) {
	outerExit := &cfg.Block{ID: 7, Kind: cfg.BlockFinallyExit}
	innerExit := &cfg.Block{ID: 4, Kind: cfg.BlockFinallyExit}
	exit := &cfg.Block{ID: 9, Kind: cfg.BlockExit}
	outerEntry := &cfg.Block{ID: 5}

	s := NewProgramState(NewArena()).pushResume([]cfg.Resume{
		{Exit: outerExit, Target: exit},
		{Exit: innerExit, Target: outerEntry},
	})
	assert.Equal(t, 2, s.ResumeDepth())

	s, target, ok := s.resumeFrom(innerExit)
	require.True(t, ok)
	assert.Equal(t, outerEntry, target)
	assert.Equal(t, 1, s.ResumeDepth())

	s, target, ok = s.resumeFrom(outerExit)
	require.True(t, ok)
	assert.Equal(t, exit, target)
	assert.Equal(t, 0, s.ResumeDepth())

	_, _, ok = s.resumeFrom(outerExit)
	assert.False(t, ok)
}
