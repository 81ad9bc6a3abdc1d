package cfg

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-sharp-flow/pkg/syntax"
	"github.com/l3aro/go-sharp-flow/pkg/syntax/syntaxtest"
)

func guardedGraph(t *testing.T) *Graph {
	t.Helper()
	b := syntaxtest.New()
	b.Param("s", "string")
	body := b.Block(
		b.Try(
			b.Block(b.If(b.Bin("!=", b.Ident("s"), b.Null()),
				b.Expr(b.Call(b.Ident("s"), "Trim")), nil)),
			nil,
			b.Catch("IOException", b.Block()),
		),
	)
	return build(t, b, body)
}

func TestWriteDot(t *testing.T) {
	g := guardedGraph(t)

	var buf bytes.Buffer
	require.NoError(t, WriteDot(&buf, "Guarded", g))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph \"Guarded\" {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "shape=record")
	assert.Contains(t, out, `label="true"`)
	assert.Contains(t, out, `label="false"`)
	assert.Contains(t, out, `label="exception" style=dashed`)
	assert.Equal(t, len(g.Blocks), strings.Count(out, "shape=record"))
}

func TestEncodeDot(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`"quoted"`, `\"quoted\"`},
		{`a{b}|c`, `a\{b\}\|c`},
		{`x < y > z`, `x \< y \> z`},
		{"line\nbreak\r", `line\nbreak`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeDot(tt.in), "input %q", tt.in)
	}
}

func TestExport(t *testing.T) {
	g := guardedGraph(t)

	info := Export("Guarded", g)
	assert.Equal(t, "Guarded", info.FunctionName)
	assert.Equal(t, "B0", info.EntryBlockID)
	assert.Equal(t, []string{blockID(g.Exit)}, info.ExitBlockIDs)
	assert.Len(t, info.Blocks, len(g.Blocks))

	var edges int
	for _, blk := range g.Blocks {
		edges += len(blk.Successors)
	}
	assert.Len(t, info.Edges, edges)

	var conditioned int
	for _, e := range info.Edges {
		if e.Condition != "" {
			conditioned++
			assert.Equal(t, "if (s != null)", e.Condition)
		}
	}
	assert.Equal(t, 2, conditioned)
	assert.Equal(t, 2, info.CyclomaticComplexity)

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"binary_branch"`)
}

func TestDescribe(t *testing.T) {
	b := syntaxtest.New()
	b.Param("s", "string")

	tests := []struct {
		name string
		node syntax.Node
		want string
	}{
		{"declaration", b.Var("x", "int", b.Int(3)).Vars[0], "declare x = 3"},
		{"bare declaration", b.Declarator("y", "int"), "declare y"},
		{"discarded value", b.Expr(b.Call(b.Ident("s"), "Trim")), "pop s.Trim()"},
		{"coalesce", b.Bin("??", b.Ident("s"), b.Str("x")), "?? s"},
		{"or", b.Bin("||", b.Ident("s"), b.Ident("s")), "|| s"},
		{"arithmetic", b.Bin("+", b.Int(1), b.Int(2)), "1 + 2"},
		{"coalesce assignment", &syntax.Assign{Op: "??=", Left: b.Ident("s"), Right: b.Str("x")}, "??= s"},
		{"conditional access", b.CondAccess(b.Ident("s"), "Length"), "?. s"},
		{"temp", &TempLoad{Temp: &syntax.Symbol{Name: "%t1"}}, "load %t1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.node))
		})
	}
}

func TestValidate_DetectsBrokenGraphs(t *testing.T) {
	entry := &Block{ID: 0, Kind: BlockEntry}
	branch := &Block{ID: 1, Kind: BlockBinaryBranch}
	exit := &Block{ID: 2, Kind: BlockExit}
	entry.Successors = []Edge{{To: branch}}
	branch.Successors = []Edge{{To: exit, Label: LabelTrue}}
	g := &Graph{Blocks: []*Block{entry, branch, exit}, Entry: entry, Exit: exit}

	err := Validate(g)
	require.Error(t, err)
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 1, inv.Block)

	branch.Successors = append(branch.Successors, Edge{To: exit, Label: LabelFalse})
	branch.Terminator = &syntax.Literal{Kind: syntax.LitBool, Value: "true"}
	assert.NoError(t, Validate(g))

	orphan := &Block{ID: 2, Kind: BlockSimple, Successors: []Edge{{To: exit}}}
	exit.ID = 3
	g.Blocks = []*Block{entry, branch, orphan, exit}
	err = Validate(g)
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "unreachable")
}
