package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-sharp-flow/internal/metrics"
	"github.com/l3aro/go-sharp-flow/internal/scanner"
	"github.com/l3aro/go-sharp-flow/pkg/cache"
	"github.com/l3aro/go-sharp-flow/pkg/external"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

var sources = map[string]string{
	"Deref.cs": `class A
{
    void Deref()
    {
        string s = null;
        s.Trim();
    }
}
`,
	"Clean.cs": `class B
{
    void Checked(string s)
    {
        if (s == null)
        {
            return;
        }
        s.Trim();
    }
}
`,
	"Iter.cs": `using System.Collections.Generic;

class C
{
    IEnumerable<int> Items()
    {
        yield return 1;
    }
}
`,
}

func project(t *testing.T) (string, []scanner.FileInfo) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	files, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, len(sources))
	return dir, files
}

func byPath(s *Summary) map[string]FileResult {
	out := make(map[string]FileResult, len(s.Files))
	for _, f := range s.Files {
		out[f.Path] = f
	}
	return out
}

func TestRun(t *testing.T) {
	dir, files := project(t)
	files = append(files, scanner.FileInfo{Path: "Gone.cs", FullPath: filepath.Join(dir, "Gone.cs")})

	e, err := New(Options{Workers: 2})
	require.NoError(t, err)
	summary, err := e.Run(context.Background(), files)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Files, 4)
	for i, f := range files {
		assert.Equal(t, f.Path, summary.Files[i].Path, "results keep input order")
	}

	got := byPath(summary)
	deref := got["Deref.cs"]
	require.NoError(t, deref.Err)
	require.Len(t, deref.Diagnostics, 1)
	assert.Equal(t, rules.NullDereferenceID, deref.Diagnostics[0].RuleID)
	assert.Equal(t, 6, deref.Diagnostics[0].Span.StartLine)
	assert.Equal(t, "A.Deref", deref.Diagnostics[0].Procedure)

	assert.Empty(t, got["Clean.cs"].Diagnostics)
	assert.Equal(t, 1, got["Clean.cs"].Procedures)

	iter := got["Iter.cs"]
	require.Len(t, iter.Skipped, 1)
	assert.True(t, strings.HasPrefix(iter.Skipped[0], "C.Items: "))

	assert.Error(t, got["Gone.cs"].Err)
	assert.Len(t, summary.Failed(), 1)
	assert.Equal(t, 1, summary.DiagnosticCount())
}

func TestRun_RuleSelection(t *testing.T) {
	_, files := project(t)

	e, err := New(Options{Rules: []string{rules.EmptyNullableValueAccessID}})
	require.NoError(t, err)
	summary, err := e.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DiagnosticCount())

	_, err = New(Options{Rules: []string{"S0000"}})
	assert.ErrorIs(t, err, rules.ErrUnknownRule)
}

func TestRun_Cache(t *testing.T) {
	_, files := project(t)
	c := cache.New(cache.Options{MaxEntries: 10})
	m := metrics.New()

	e, err := New(Options{Cache: c, Metrics: m})
	require.NoError(t, err)

	first, err := e.Run(context.Background(), files)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), files)
	require.NoError(t, err)

	for i := range first.Files {
		assert.False(t, first.Files[i].Cached)
		assert.True(t, second.Files[i].Cached)
		assert.Equal(t, first.Files[i].Diagnostics, second.Files[i].Diagnostics)
		assert.Equal(t, first.Files[i].Skipped, second.Files[i].Skipped)
	}
	assert.Equal(t, int64(len(files)), c.Stats().HitCount)

	// Different settings miss.
	other, err := New(Options{Cache: c, MaxSteps: 50})
	require.NoError(t, err)
	third, err := other.Run(context.Background(), files)
	require.NoError(t, err)
	for _, f := range third.Files {
		assert.False(t, f.Cached)
	}

	path := filepath.Join(t.TempDir(), "gsf.prom")
	require.NoError(t, m.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gsf_files_total{outcome="cached"} 3`)
	assert.Contains(t, string(data), `gsf_files_total{outcome="analyzed"} 3`)
}

// stoppedContext reports cancellation through Err only, so parsing
// completes while every walk stops before its first step.
type stoppedContext struct{ context.Context }

func (stoppedContext) Err() error { return context.Canceled }

func TestAnalyzeFile_CancelledWalksAreNotCached(t *testing.T) {
	_, files := project(t)
	var deref scanner.FileInfo
	for _, f := range files {
		if f.Path == "Deref.cs" {
			deref = f
		}
	}
	require.NotEmpty(t, deref.FullPath)

	c := cache.New(cache.Options{MaxEntries: 10})
	e, err := New(Options{Cache: c})
	require.NoError(t, err)

	a := e.analyzeFile(stoppedContext{context.Background()}, deref)
	require.NoError(t, a.result.Err)
	assert.True(t, a.cancelled)
	assert.Equal(t, 0, c.Len())

	a = e.analyzeFile(context.Background(), deref)
	require.NoError(t, a.result.Err)
	assert.False(t, a.cancelled)
	assert.Equal(t, 1, c.Len())
}

func TestRun_Cancelled(t *testing.T) {
	_, files := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(Options{})
	require.NoError(t, err)
	_, err = e.Run(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func fakeHelper(t *testing.T, script string) *external.Helper {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake helper needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	h, err := external.NewHelper(path, external.Options{WorkDir: t.TempDir()})
	require.NoError(t, err)
	return h
}

func TestRun_Helper(t *testing.T) {
	_, files := project(t)
	h := fakeHelper(t, `cat > "$4" <<'EOF'
<Results>
  <Issue key="S1234" message="From the helper." l="2" c="4" f="Clean.cs"/>
  <Issue key="S1234" message="Elsewhere." l="0" c="0" f="Other.cs"/>
</Results>
EOF
`)
	e, err := New(Options{Helper: h, Cache: cache.New(cache.Options{})})
	require.NoError(t, err)

	summary, err := e.Run(context.Background(), files)
	require.NoError(t, err)

	clean := byPath(summary)["Clean.cs"]
	require.Len(t, clean.Diagnostics, 1)
	assert.Equal(t, "S1234", clean.Diagnostics[0].RuleID)
	assert.Equal(t, 3, clean.Diagnostics[0].Span.StartLine)
	assert.False(t, clean.Cached)
	require.Len(t, summary.Unmatched, 1)
	assert.Equal(t, "Other.cs", summary.Unmatched[0].File)
	assert.Equal(t, 3, summary.DiagnosticCount())
}

func TestRun_HelperFailure(t *testing.T) {
	_, files := project(t)
	h := fakeHelper(t, `echo "no license" >&2
exit 2
`)
	e, err := New(Options{Helper: h})
	require.NoError(t, err)

	summary, err := e.Run(context.Background(), files)
	require.Error(t, err)
	var failure *external.ToolFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2, failure.ExitCode)

	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.DiagnosticCount(), "in-process findings survive a helper failure")
}

func TestAnalyzeSource(t *testing.T) {
	e, err := New(Options{})
	require.NoError(t, err)
	res := e.AnalyzeSource(context.Background(), "Deref.cs", []byte(sources["Deref.cs"]))
	require.NoError(t, res.Err)
	require.Len(t, res.Diagnostics, 1)
}
