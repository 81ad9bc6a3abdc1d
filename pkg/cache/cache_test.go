package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-sharp-flow/pkg/rules"
	"github.com/l3aro/go-sharp-flow/pkg/syntax"
)

func result(path string) Result {
	return Result{
		Path:       path,
		Procedures: 2,
		Diagnostics: []rules.Diagnostic{{
			RuleID:    rules.NullDereferenceID,
			Message:   "'s' is null on at least one execution path.",
			Span:      syntax.Span{StartLine: 3, StartCol: 9, EndLine: 3, EndCol: 17},
			Procedure: "C.M",
		}},
	}
}

func TestLRUCache_Basic(t *testing.T) {
	c := New(Options{MaxEntries: 3})

	c.Set("a", result("a.cs"))
	c.Set("b", result("b.cs"))
	c.Set("c", result("c.cs"))
	assert.Equal(t, 3, c.Len())

	val, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, "a.cs", val.Path)
	assert.Len(t, val.Diagnostics, 1)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestLRUCache_LRU_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options{MaxEntries: 3, OnEvict: func(key string, _ Result) { evicted = append(evicted, key) }})

	c.Set("a", result("a.cs"))
	c.Set("b", result("b.cs"))
	c.Set("c", result("c.cs"))

	// Access 'a' to make it most recently used
	c.Get("a")
	c.Set("d", result("d.cs"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)

	_, found := c.Get("b")
	assert.False(t, found, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, found = c.Get(k)
		assert.True(t, found, k)
	}
}

func TestLRUCache_MaxBytes(t *testing.T) {
	one := estimateSize(result("a.cs"))
	c := New(Options{MaxBytes: int64(2 * one)})

	c.Set("a", result("a.cs"))
	c.Set("b", result("b.cs"))
	c.Set("c", result("c.cs"))

	assert.Equal(t, 2, c.Len())
	assert.LessOrEqual(t, c.Stats().CurrentBytes, int64(2*one))
}

func TestLRUCache_UpdateAndDelete(t *testing.T) {
	c := New(Options{})
	c.Set("a", result("a.cs"))
	c.Set("a", Result{Path: "a.cs"})

	val, found := c.Get("a")
	require.True(t, found)
	assert.Empty(t, val.Diagnostics)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(estimateSize(Result{Path: "a.cs"})), c.Stats().CurrentBytes)

	c.Delete("a")
	c.Delete("a")
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().CurrentBytes)
}

func TestLRUCache_Stats(t *testing.T) {
	c := New(Options{})
	assert.Zero(t, c.HitRate())

	c.Set("a", result("a.cs"))
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	assert.Equal(t, int64(2), s.HitCount)
	assert.Equal(t, int64(1), s.MissCount)
	assert.InDelta(t, 2.0/3.0, c.HitRate(), 1e-9)

	c.Clear()
	assert.Equal(t, Stats{}, c.Stats())
}

func TestLRUCache_SaveLoad(t *testing.T) {
	c := New(Options{})
	c.Set("a", result("a.cs"))
	c.Set("b", result("b.cs"))
	c.Get("a")

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	// Recency survives the round trip: with room for one entry only the
	// most recently used is kept.
	restored := New(Options{MaxEntries: 1})
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 1, restored.Len())
	val, found := restored.Get("a")
	require.True(t, found)
	assert.Equal(t, result("a.cs").Diagnostics, val.Diagnostics)
}

func TestLRUCache_LoadRejectsOtherVersions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&snapshot{Version: formatVersion + 1}))

	err := New(Options{}).Load(&buf)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	err = New(Options{}).Load(bytes.NewBufferString("not msgpack"))
	assert.Error(t, err)
}

func TestLRUCache_Files(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.msgpack")

	c := New(Options{})
	require.NoError(t, c.LoadFile(path), "a missing file is an empty cache")
	c.Set("a", result("a.cs"))
	require.NoError(t, c.SaveFile(path))

	loaded := New(Options{})
	require.NoError(t, loaded.LoadFile(path))
	_, found := loaded.Get("a")
	assert.True(t, found)
}

func TestKey(t *testing.T) {
	src := []byte("class C {}")
	base := Settings{Rules: []string{"S2259", "S3655"}, MaxSteps: 100, MaxPointVisits: 6}

	assert.Equal(t, Key(src, base), Key(src, Settings{Rules: []string{"S3655", "S2259"}, MaxSteps: 100, MaxPointVisits: 6}))
	assert.NotEqual(t, Key(src, base), Key([]byte("class D {}"), base))
	assert.NotEqual(t, Key(src, base), Key(src, Settings{Rules: base.Rules, MaxSteps: 200, MaxPointVisits: 6}))
	assert.Len(t, Key(src, base), 64)
}
