package csharp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-sharp-flow/pkg/cfg"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

const sample = `using System.Collections.Generic;
using System.Linq;

class Sample
{
    const int Limit = 10;
    private string name;

    int? Find() { return null; }

    void Nullable()
    {
        var r = Find();
        Use(r.Value);
    }

    void Guarded(int? r)
    {
        if (r.HasValue)
        {
            Use(r.Value);
        }
    }

    void Deref()
    {
        string s = null;
        s.Trim();
    }

    void Checked(string s)
    {
        if (s == null)
        {
            return;
        }
        s.Trim();
    }

    void Empty()
    {
        var list = new List<int>();
        list.First();
    }

    void Pattern(object o)
    {
        if (o is string t)
        {
            t.Trim();
        }
    }

    void Loop()
    {
        for (int i = 0; i < Limit; i++)
        {
            if (i == 3) break;
        }
        while (true)
        {
            break;
        }
    }

    void Safe(string s)
    {
        var n = s?.Length;
    }

    void Use(int value) { }

    string Name => name;
}
`

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := NewParser().Parse(context.Background(), "Sample.cs", []byte(src))
	require.NoError(t, err)
	require.Zero(t, f.SyntaxErrors)
	return f
}

func analyze(t *testing.T, f *File, name string) rules.Report {
	t.Helper()
	proc := f.Procedure(name)
	require.NotNil(t, proc, "procedure %s", name)
	runner, err := rules.NewRunner(nil, symexec.Options{})
	require.NoError(t, err)
	report, err := runner.Analyze(context.Background(), proc, f.Model)
	require.NoError(t, err)
	return report
}

func TestParse_Procedures(t *testing.T) {
	f := parse(t, sample)
	names := f.Names()
	for _, want := range []string{
		"Sample.Find", "Sample.Nullable", "Sample.Guarded", "Sample.Deref",
		"Sample.Checked", "Sample.Empty", "Sample.Pattern", "Sample.Loop",
		"Sample.Safe", "Sample.Use", "Sample.Name.get",
	} {
		assert.Contains(t, names, want)
	}
	assert.Nil(t, f.Procedure("Sample.Missing"))
}

func TestLower_LocalsBindToDeclarations(t *testing.T) {
	f := parse(t, sample)
	proc := f.Procedure("Sample.Deref")
	body, ok := proc.Body.(*syntax.Block)
	require.True(t, ok)
	require.Len(t, body.Stmts, 2)

	decl, ok := body.Stmts[0].(*syntax.LocalDecl)
	require.True(t, ok)
	require.Len(t, decl.Vars, 1)
	assert.Equal(t, "string", decl.Type)
	assert.True(t, syntax.IsNullLiteral(decl.Vars[0].Init))

	stmt, ok := body.Stmts[1].(*syntax.ExprStmt)
	require.True(t, ok)
	inv, ok := stmt.X.(*syntax.Invocation)
	require.True(t, ok)
	recv, ok := syntax.ReceiverOf(inv).(*syntax.Identifier)
	require.True(t, ok)

	sym := f.Model.SymbolOf(recv)
	require.NotNil(t, sym)
	assert.Same(t, sym, f.Model.SymbolOf(decl.Vars[0]))
	assert.Equal(t, syntax.SymbolLocal, sym.Kind)
	assert.Equal(t, syntax.TypeString, syntax.KindOf(sym.Type))
}

func TestLower_InfersVarFromInitializer(t *testing.T) {
	f := parse(t, sample)

	nullable := f.Procedure("Sample.Nullable").Body.(*syntax.Block)
	r := nullable.Stmts[0].(*syntax.LocalDecl).Vars[0]
	assert.Equal(t, syntax.TypeNullableValue, syntax.KindOf(f.Model.SymbolOf(r).Type))

	empty := f.Procedure("Sample.Empty").Body.(*syntax.Block)
	list := empty.Stmts[0].(*syntax.LocalDecl).Vars[0]
	assert.Equal(t, syntax.TypeCollection, syntax.KindOf(f.Model.SymbolOf(list).Type))

	first := empty.Stmts[1].(*syntax.ExprStmt).X.(*syntax.Invocation)
	assert.True(t, f.Model.IsExtensionMethod(first))
}

func TestLower_ConstantsAndPatterns(t *testing.T) {
	f := parse(t, sample)

	loop := f.Procedure("Sample.Loop").Body.(*syntax.Block)
	forStmt, ok := loop.Stmts[0].(*syntax.For)
	require.True(t, ok)
	require.Len(t, forStmt.Init, 1)
	require.Len(t, forStmt.Post, 1)
	cond := forStmt.Cond.(*syntax.Binary)
	v, ok := f.Model.ConstantValueOf(cond.Y)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)

	pattern := f.Procedure("Sample.Pattern").Body.(*syntax.Block)
	is := pattern.Stmts[0].(*syntax.If).Cond.(*syntax.IsPattern)
	decl, ok := is.Pattern.(*syntax.DeclarationPattern)
	require.True(t, ok)
	assert.Equal(t, "string", decl.Type)
	assert.Equal(t, "t", decl.Name)
	assert.NotNil(t, f.Model.SymbolOf(decl))
}

func TestLower_ConditionalAccess(t *testing.T) {
	f := parse(t, sample)
	body := f.Procedure("Sample.Safe").Body.(*syntax.Block)
	init := body.Stmts[0].(*syntax.LocalDecl).Vars[0].Init
	ca, ok := init.(*syntax.ConditionalAccess)
	require.True(t, ok)
	binding, ok := ca.WhenNotNull.(*syntax.MemberBinding)
	require.True(t, ok)
	assert.Equal(t, "Length", binding.Name)
}

func TestLower_EveryProcedureBuilds(t *testing.T) {
	f := parse(t, sample)
	for _, p := range f.Procedures {
		g, err := cfg.Build(p.Body, f.Model)
		require.NoError(t, err, p.Name)
		assert.NoError(t, cfg.Validate(g), p.Name)
	}
}

func TestAnalyze_Scenarios(t *testing.T) {
	f := parse(t, sample)
	tests := []struct {
		proc string
		want []string
		line int
	}{
		{proc: "Sample.Nullable", want: []string{rules.EmptyNullableValueAccessID}, line: 14},
		{proc: "Sample.Guarded"},
		{proc: "Sample.Deref", want: []string{rules.NullDereferenceID}, line: 28},
		{proc: "Sample.Checked"},
		{proc: "Sample.Empty", want: []string{rules.EmptyCollectionAccessID}, line: 43},
		{proc: "Sample.Pattern"},
		{proc: "Sample.Safe"},
	}
	for _, tt := range tests {
		t.Run(tt.proc, func(t *testing.T) {
			report := analyze(t, f, tt.proc)
			require.Equal(t, rules.Analyzed, report.Outcome)
			var got []string
			for _, d := range report.Diagnostics {
				got = append(got, d.RuleID)
			}
			assert.Equal(t, tt.want, got)
			if tt.line > 0 {
				assert.Equal(t, tt.line, report.Diagnostics[0].Span.StartLine)
			}
		})
	}
}

func TestAnalyze_LoopsTerminate(t *testing.T) {
	f := parse(t, sample)
	report := analyze(t, f, "Sample.Loop")
	assert.True(t, report.Result.FullyExplored())
	assert.Empty(t, report.Diagnostics)
}

const captures = `class Captures
{
    void Lambda()
    {
        string s = null;
        Action a = () => s = "x";
        a();
        s.Trim();
    }

    void LocalFunction()
    {
        string s = null;
        void Init() { s = "x"; }
        Init();
        s.Trim();
    }

    void NotCaptured()
    {
        string s = null;
        Action a = () => Console.WriteLine();
        a();
        s.Trim();
    }
}
`

func TestAnalyze_CapturedLocalsAreNotTracked(t *testing.T) {
	f := parse(t, captures)
	tests := []struct {
		proc string
		line int
	}{
		{proc: "Captures.Lambda"},
		{proc: "Captures.LocalFunction"},
		{proc: "Captures.NotCaptured", line: 24},
	}
	for _, tt := range tests {
		t.Run(tt.proc, func(t *testing.T) {
			report := analyze(t, f, tt.proc)
			require.Equal(t, rules.Analyzed, report.Outcome)
			if tt.line == 0 {
				assert.Empty(t, report.Diagnostics)
				return
			}
			require.Len(t, report.Diagnostics, 1)
			assert.Equal(t, rules.NullDereferenceID, report.Diagnostics[0].RuleID)
			assert.Equal(t, tt.line, report.Diagnostics[0].Span.StartLine)
		})
	}
}

func TestParse_UnsupportedStatementSkipsProcedure(t *testing.T) {
	f := parse(t, `class C
{
    System.Collections.Generic.IEnumerable<int> Items()
    {
        yield return 1;
    }
}
`)
	report := analyze(t, f, "C.Items")
	assert.Equal(t, rules.Skipped, report.Outcome)
}

func TestParse_TopLevelStatements(t *testing.T) {
	f := parse(t, `string s = null;
System.Console.WriteLine(s.Length);
`)
	report := analyze(t, f, "Program.<Main>$")
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, rules.NullDereferenceID, report.Diagnostics[0].RuleID)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Sample.cs")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := NewParser().ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.NotEmpty(t, f.Procedures)

	_, err = NewParser().ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.cs"))
	assert.Error(t, err)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"abc"`, "abc"},
		{`""`, ""},
		{`"a\"b"`, `a"b`},
		{`@"C:\dir"`, `C:\dir`},
		{`@"say ""hi"""`, `say "hi"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unquote(tt.in), tt.in)
	}
}
