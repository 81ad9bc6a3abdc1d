package cfg

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
	"github.com/l3aro/go-sharp-flow/pkg/syntax/syntaxtest"
)

func build(t *testing.T, b *syntaxtest.Builder, body syntax.Node) *Graph {
	t.Helper()
	g, err := Build(body, b.Model)
	require.NoError(t, err)
	require.NoError(t, Validate(g))
	return g
}

func blocksOfKind(g *Graph, kind BlockKind) []*Block {
	var out []*Block
	for _, blk := range g.Blocks {
		if blk.Kind == kind {
			out = append(out, blk)
		}
	}
	return out
}

func blockContaining(g *Graph, n syntax.Node) *Block {
	for _, blk := range g.Blocks {
		for _, ins := range blk.Instructions {
			if ins == n {
				return blk
			}
		}
	}
	return nil
}

func TestBuild_StraightLine(t *testing.T) {
	b := syntaxtest.New()
	body := b.Block(
		b.Var("x", "int", b.Int(1)),
		b.Return(b.Ident("x")),
	)

	g := build(t, b, body)

	want := strings.Join([]string{
		"B0 entry",
		"  -> B1",
		"B1 jump",
		"  1",
		"  declare x = 1",
		"  x",
		"  [return x]",
		"  -> B2",
		"B2 exit",
		"",
	}, "\n")
	assert.Equal(t, want, Render(g))
	assert.Equal(t, g.Blocks[len(g.Blocks)-1], g.Exit)
	assert.Equal(t, 0, g.Entry.ID)
}

func TestBuild_IsDeterministic(t *testing.T) {
	newProc := func() (*syntaxtest.Builder, syntax.Node) {
		b := syntaxtest.New()
		b.Param("s", "string")
		b.Param("items", "List<int>")
		body := b.Block(
			b.If(b.Bin("==", b.Ident("s"), b.Null()), b.Return(nil), nil),
			b.Foreach(b.Declarator("i", "int"), b.Ident("items"), b.Block(
				b.If(b.Bin(">", b.Ident("i"), b.Int(3)), b.Break(), nil),
			)),
			b.Try(b.Block(b.Expr(b.Call(b.Ident("s"), "Trim"))), b.Block(), b.Catch("", b.Block())),
			b.Return(b.Member(b.Ident("s"), "Length")),
		)
		return b, body
	}

	b1, body1 := newProc()
	b2, body2 := newProc()
	g1 := build(t, b1, body1)
	g2 := build(t, b2, body2)
	assert.Equal(t, Render(g1), Render(g2))

	// Building the same tree again yields the same graph too.
	g3 := build(t, b1, body1)
	assert.Equal(t, Render(g1), Render(g3))
}

func TestBuild_WellFormed(t *testing.T) {
	tests := []struct {
		name string
		body func(b *syntaxtest.Builder) syntax.Node
	}{
		{"empty", func(b *syntaxtest.Builder) syntax.Node { return b.Block() }},
		{"expression body", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("a", "int")
			return b.Bin("+", b.Ident("a"), b.Int(1))
		}},
		{"if else", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("c", "bool")
			return b.Block(b.If(b.Ident("c"), b.Return(b.Int(1)), b.Return(b.Int(2))))
		}},
		{"while with continue", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("c", "bool")
			return b.Block(b.While(b.Ident("c"), b.Block(
				b.If(b.Ident("c"), b.Continue(), nil),
				b.Expr(b.Call(nil, "M")),
			)))
		}},
		{"do while", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("c", "bool")
			return b.Block(b.Do(b.Block(b.Expr(b.Call(nil, "M"))), b.Ident("c")))
		}},
		{"for", func(b *syntaxtest.Builder) syntax.Node {
			decl := b.Var("i", "int", b.Int(0))
			return b.Block(b.For(
				[]syntax.Stmt{decl},
				b.Bin("<", b.Ident("i"), b.Int(10)),
				[]syntax.Stmt{b.Expr(b.Inc(b.Ident("i")))},
				b.Block(),
			))
		}},
		{"switch", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("n", "int")
			return b.Block(b.Switch(b.Ident("n"),
				b.Case([]syntax.Expr{b.Int(1)}, b.Break()),
				b.Case([]syntax.Expr{b.Int(2)}, b.Return(nil)),
			))
		}},
		{"conditional and coalesce", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("s", "string")
			b.Param("c", "bool")
			return b.Block(b.Return(b.Cond(b.Ident("c"),
				b.Bin("??", b.Ident("s"), b.Str("x")),
				b.Member(b.CondAccess(b.Ident("s"), "Length"), "ToString"),
			)))
		}},
		{"nested try finally", func(b *syntaxtest.Builder) syntax.Node {
			return b.Block(b.Try(
				b.Block(b.Try(b.Block(b.Expr(b.Call(nil, "M"))), b.Block(b.Expr(b.Call(nil, "N"))))),
				nil,
				b.Catch("", b.Block(b.Throw(nil))),
			))
		}},
		{"using and lock", func(b *syntaxtest.Builder) syntax.Node {
			b.Param("o", "object")
			return b.Block(
				b.Using(b.Var("r", "Resource", b.New("Resource")), b.Block(
					b.Lock(b.Ident("o"), b.Block(b.Expr(b.Call(b.Ident("r"), "Run")))),
				)),
			)
		}},
		{"infinite loop", func(b *syntaxtest.Builder) syntax.Node {
			return b.Block(b.While(b.Bool(true), b.Block(b.Expr(b.Call(nil, "M")))))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := syntaxtest.New()
			g := build(t, b, tt.body(b))

			assert.Empty(t, g.Entry.Predecessors)
			assert.Empty(t, g.Exit.Successors)
			for i, blk := range g.Blocks {
				assert.Equal(t, i, blk.ID)
				if blk.Kind == BlockBinaryBranch {
					assert.Len(t, blk.Successors, 2)
					assert.NotNil(t, blk.TrueSuccessor(), "B%d true edge", blk.ID)
					assert.NotNil(t, blk.FalseSuccessor(), "B%d false edge", blk.ID)
				}
				if blk != g.Exit {
					assert.NotEmpty(t, blk.Successors, "B%d", blk.ID)
				}
			}
		})
	}
}

func TestBuild_ConstantLoopConditionKeepsBothEdges(t *testing.T) {
	b := syntaxtest.New()
	g := build(t, b, b.Block(b.While(b.Bool(true), b.Block())))

	// Constant conditions are left to the walker.
	headers := blocksOfKind(g, BlockBinaryBranch)
	require.Len(t, headers, 1)
	assert.True(t, g.IsLoopHeader(headers[0]))
	assert.NotNil(t, headers[0].FalseSuccessor())
	assert.NotEmpty(t, g.Exit.Predecessors)
}

func TestBuild_WhileTrueWithBreak(t *testing.T) {
	b := syntaxtest.New()
	b.Param("c", "bool")
	body := b.Block(
		b.While(b.Bool(true), b.Block(
			b.If(b.Ident("c"), b.Break(), nil),
		)),
		b.Return(nil),
	)
	g := build(t, b, body)

	assert.NotEmpty(t, g.Exit.Predecessors)
	var loops int
	for _, blk := range g.Blocks {
		if g.IsLoopHeader(blk) {
			loops++
		}
	}
	assert.Equal(t, 1, loops)
}

func TestBuild_DoWhileBackEdgeIsTrueEdge(t *testing.T) {
	b := syntaxtest.New()
	b.Param("c", "bool")
	call := b.Call(nil, "M")
	g := build(t, b, b.Block(b.Do(b.Block(b.Expr(call)), b.Ident("c"))))

	body := blockContaining(g, call)
	require.NotNil(t, body)
	assert.True(t, g.IsLoopHeader(body))

	var cond *Block
	for _, p := range body.Predecessors {
		if p.Kind == BlockBinaryBranch {
			cond = p
		}
	}
	require.NotNil(t, cond)
	e := cond.SuccessorFor(LabelTrue)
	require.NotNil(t, e)
	assert.Equal(t, body, e.To)
	assert.True(t, e.Back)
}

func TestBuild_ForHasInitializerBlock(t *testing.T) {
	b := syntaxtest.New()
	decl := b.Var("i", "int", b.Int(0))
	g := build(t, b, b.Block(b.For(
		[]syntax.Stmt{decl},
		b.Bin("<", b.Ident("i"), b.Int(10)),
		[]syntax.Stmt{b.Expr(b.Inc(b.Ident("i")))},
		b.Block(),
	)))

	require.Len(t, blocksOfKind(g, BlockForInitializer), 1)
	assert.NotNil(t, blockContaining(g, decl.Vars[0]))
}

func TestBuild_Foreach(t *testing.T) {
	b := syntaxtest.New()
	b.Param("items", "List<string>")
	v := b.Declarator("s", "string")
	g := build(t, b, b.Block(b.Foreach(v, b.Ident("items"), b.Block())))

	producers := blocksOfKind(g, BlockForeachProducer)
	require.Len(t, producers, 1)
	var start *ForeachStart
	for _, n := range producers[0].Instructions {
		if fs, ok := n.(*ForeachStart); ok {
			start = fs
		}
	}
	require.NotNil(t, start)
	assert.Equal(t, syntax.SymbolTemp, start.Collection.Kind)

	var header *Block
	for _, blk := range g.Blocks {
		if next, ok := blk.Terminator.(*ForeachNext); ok {
			header = blk
			assert.Equal(t, start.Collection, next.Collection)
		}
	}
	require.NotNil(t, header)
	assert.True(t, g.IsLoopHeader(header))
	assert.Equal(t, blockContaining(g, v), header.TrueSuccessor().To)
}

func TestBuild_UnreachableCodeIsPruned(t *testing.T) {
	b := syntaxtest.New()
	dead := b.Call(nil, "M")
	g := build(t, b, b.Block(b.Return(nil), b.Expr(dead)))

	assert.Nil(t, blockContaining(g, dead))
	assert.Len(t, g.Blocks, 3)
}

func TestBuild_UnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		body func(b *syntaxtest.Builder) syntax.Node
	}{
		{"unresolved goto", func(b *syntaxtest.Builder) syntax.Node {
			return b.Block(b.Goto("missing"))
		}},
		{"break outside loop", func(b *syntaxtest.Builder) syntax.Node {
			return b.Block(b.Break())
		}},
		{"unsupported statement", func(b *syntaxtest.Builder) syntax.Node {
			return b.Block(&syntax.UnsupportedStmt{Span: b.Span(), Kind: "yield_statement"})
		}},
		{"nil body", func(b *syntaxtest.Builder) syntax.Node { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := syntaxtest.New()
			body := tt.body(b)
			_, err := Build(body, b.Model)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedSyntax), "got %v", err)

			_, ok := TryBuild(body, b.Model)
			assert.False(t, ok)
		})
	}
}

func TestBuild_UnsupportedExpressionIsKeptAsOperation(t *testing.T) {
	b := syntaxtest.New()
	odd := &syntax.UnsupportedExpr{Span: b.Span(), Kind: "stackalloc"}
	g := build(t, b, b.Block(b.Expr(b.Call(nil, "M", odd))))

	// The walker drops paths reaching it.
	assert.NotNil(t, blockContaining(g, odd))
}

func TestBuild_BackwardGotoIsLoop(t *testing.T) {
	b := syntaxtest.New()
	b.Param("x", "int")
	inc := b.Expr(b.Inc(b.Ident("x")))
	g := build(t, b, b.Block(b.Label("top", inc), b.Goto("top")))

	blk := blockContaining(g, inc)
	require.NotNil(t, blk)
	assert.True(t, g.IsLoopHeader(blk))
	assert.Empty(t, g.Exit.Predecessors)
}

func TestBuild_ForwardGoto(t *testing.T) {
	b := syntaxtest.New()
	skipped := b.Expr(b.Call(nil, "Skipped"))
	target := b.Expr(b.Call(nil, "Target"))
	g := build(t, b, b.Block(b.Goto("end"), skipped, b.Label("end", target)))

	assert.Nil(t, blockContaining(g, skipped))
	blk := blockContaining(g, target)
	require.NotNil(t, blk)
	assert.False(t, g.IsLoopHeader(blk))
}

func TestBuild_SwitchEdges(t *testing.T) {
	b := syntaxtest.New()
	b.Param("n", "int")
	g := build(t, b, b.Block(b.Switch(b.Ident("n"),
		b.Case([]syntax.Expr{b.Int(1)}, b.Break()),
		b.Case(nil, b.Break()),
	)))

	branches := blocksOfKind(g, BlockBranch)
	require.Len(t, branches, 1)
	// Two sections, and a default means no edge straight to the end.
	assert.Len(t, branches[0].Successors, 2)
	assert.Equal(t, 2, CyclomaticComplexity(g))
}

func TestBuild_SwitchWithoutDefaultFallsThrough(t *testing.T) {
	b := syntaxtest.New()
	b.Param("n", "int")
	g := build(t, b, b.Block(b.Switch(b.Ident("n"),
		b.Case([]syntax.Expr{b.Int(1)}, b.Break()),
		b.Case([]syntax.Expr{b.Int(2)}, &syntax.Goto{Span: b.Span(), Kind: syntax.GotoCase, Case: b.Int(1)}),
	)))

	branches := blocksOfKind(g, BlockBranch)
	require.Len(t, branches, 1)
	assert.Len(t, branches[0].Successors, 3)
}

func TestBuild_CatchAllStopsExceptionPropagation(t *testing.T) {
	b := syntaxtest.New()
	call := b.Call(nil, "M")
	handler := b.Catch("", b.Block(b.Expr(b.Call(nil, "Log"))))
	g := build(t, b, b.Block(b.Try(b.Block(b.Expr(call)), nil, handler)))

	blk := blockContaining(g, call)
	require.NotNil(t, blk)
	var exceptional []*Block
	for _, e := range blk.Successors {
		if e.Label == LabelException {
			exceptional = append(exceptional, e.To)
		}
	}
	require.Len(t, exceptional, 1)
	assert.NotEqual(t, g.Exit, exceptional[0])
	assert.Equal(t, blockContaining(g, handler), exceptional[0])
}

func TestBuild_TypedCatchAlsoReachesExit(t *testing.T) {
	b := syntaxtest.New()
	call := b.Call(nil, "M")
	g := build(t, b, b.Block(b.Try(b.Block(b.Expr(call)), nil, b.Catch("IOException", b.Block()))))

	blk := blockContaining(g, call)
	require.NotNil(t, blk)
	var targets []*Block
	for _, e := range blk.Successors {
		if e.Label == LabelException {
			targets = append(targets, e.To)
		}
	}
	require.Len(t, targets, 2)
	assert.Equal(t, g.Exit, targets[1])
}

func TestBuild_ReturnRunsFinally(t *testing.T) {
	b := syntaxtest.New()
	cleanup := b.Call(nil, "Cleanup")
	ret := b.Return(nil)
	g := build(t, b, b.Block(b.Try(b.Block(ret), b.Block(b.Expr(cleanup)))))

	var retBlk *Block
	for _, blk := range g.Blocks {
		if blk.Terminator == ret {
			retBlk = blk
		}
	}
	require.NotNil(t, retBlk)
	require.Len(t, retBlk.Successors, 1)

	e := retBlk.Successors[0]
	finEntry := blockContaining(g, cleanup)
	assert.Equal(t, finEntry, e.To)
	require.Len(t, e.Resume, 1)
	assert.Equal(t, BlockFinallyExit, e.Resume[0].Exit.Kind)
	assert.Equal(t, g.Exit, e.Resume[0].Target)
	assert.True(t, e.Resume[0].Exit.hasSuccessor(g.Exit, LabelPlain))
}

func TestBuild_ExceptionCrossesFinallyToOuterCatch(t *testing.T) {
	b := syntaxtest.New()
	call := b.Call(nil, "M")
	cleanup := b.Call(nil, "N")
	outer := b.Catch("", b.Block())
	g := build(t, b, b.Block(b.Try(
		b.Block(b.Try(b.Block(b.Expr(call)), b.Block(b.Expr(cleanup)))),
		nil,
		outer,
	)))

	blk := blockContaining(g, call)
	require.NotNil(t, blk)
	var exc *Edge
	for i := range blk.Successors {
		if blk.Successors[i].Label == LabelException {
			exc = &blk.Successors[i]
		}
	}
	require.NotNil(t, exc)
	assert.Equal(t, blockContaining(g, cleanup), exc.To)
	require.Len(t, exc.Resume, 1)
	assert.Equal(t, blockContaining(g, outer), exc.Resume[0].Target)
}

func TestBuild_ShortCircuitDesugaring(t *testing.T) {
	b := syntaxtest.New()
	b.Param("a", "bool")
	b.Param("c", "bool")
	cond := b.Bin("&&", b.Ident("a"), b.Ident("c"))
	g := build(t, b, b.Block(b.If(cond, b.Return(nil), nil)))

	var sc *Block
	for _, blk := range g.Blocks {
		if blk.Terminator == cond {
			sc = blk
		}
	}
	require.NotNil(t, sc)
	assert.Equal(t, "&& a", Describe(sc.Terminator))
	// The right operand is only evaluated on the true edge.
	rhs := sc.TrueSuccessor().To
	require.Len(t, rhs.Instructions, 1)
	assert.Equal(t, "c", Describe(rhs.Instructions[0]))
	assert.Len(t, blocksOfKind(g, BlockBinaryBranch), 2)
}

func TestBuild_PropertyPattern(t *testing.T) {
	b := syntaxtest.New()
	b.Param("s", "string")
	cond := b.Is(b.Ident("s"), b.PropPat("Length", b.ConstPat(b.Int(0))))
	g := build(t, b, b.Block(b.If(cond, b.Return(nil), nil)))

	var (
		junctions int
		reads     []string
	)
	for _, blk := range g.Blocks {
		if sc, ok := blk.Terminator.(*ShortCircuit); ok {
			junctions++
			assert.Equal(t, "&&", sc.Op)
		}
		for _, n := range blk.Instructions {
			if pr, ok := n.(*PropertyRead); ok {
				reads = append(reads, pr.Member)
			}
		}
	}
	assert.Equal(t, 1, junctions)
	assert.Equal(t, []string{"Length"}, reads)
}

func TestBuild_NotPatternOnLeafIsSingleTest(t *testing.T) {
	b := syntaxtest.New()
	b.Param("s", "string")
	cond := b.Is(b.Ident("s"), b.NotPat(b.ConstPat(b.Null())))
	g := build(t, b, b.Block(b.If(cond, b.Return(nil), nil)))

	out := Render(g)
	assert.Contains(t, out, "test is not null")
	assert.NotContains(t, out, "  not\n")
}

func TestBuild_LockAndUsingBlocks(t *testing.T) {
	b := syntaxtest.New()
	b.Param("o", "object")
	body := b.Block(
		b.Using(b.Var("r", "Resource", b.New("Resource")), b.Block(
			b.Lock(b.Ident("o"), b.Block(b.Expr(b.Call(b.Ident("r"), "Run")))),
		)),
	)
	g := build(t, b, body)

	assert.Len(t, blocksOfKind(g, BlockLock), 1)
	ends := blocksOfKind(g, BlockUsingEnd)
	require.Len(t, ends, 1)
	require.Len(t, ends[0].Successors, 1)
	assert.Equal(t, BlockFinallyExit, ends[0].Successors[0].To.Kind)
}

func TestPops(t *testing.T) {
	b := syntaxtest.New()
	b.Param("s", "string")

	assert.Equal(t, 3, Pops(b.Call(b.Ident("s"), "Replace", b.Str("a"), b.Str("b"))))
	assert.Equal(t, 1, Pops(b.Call(nil, "M", b.Int(1))))
	assert.Equal(t, 0, Pops(b.Call(nil, "nameof", b.Ident("s"))))
}

func TestAssignEvaluatesLeft(t *testing.T) {
	b := syntaxtest.New()
	b.Param("x", "int")

	assert.False(t, AssignEvaluatesLeft(b.Assign(b.Ident("x"), b.Int(1))))
	assert.True(t, AssignEvaluatesLeft(b.Assign(b.Member(&syntax.This{Span: b.Span()}, "F"), b.Int(1))))
	assert.True(t, AssignEvaluatesLeft(&syntax.Assign{Op: "+=", Left: b.Ident("x"), Right: b.Int(1)}))
	assert.False(t, AssignEvaluatesLeft(&syntax.Assign{Op: "??=", Left: b.Ident("x"), Right: b.Int(1)}))
}
