package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: WarnLevel, Stderr: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "file", "a.cs")
	l.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown file=a.cs")
	assert.Contains(t, out, "ERROR: also shown")
	assert.NotContains(t, out, "\033[", "buffers are never colored")

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "DEBUG: now visible")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Stderr: &buf, JSONOutput: true})
	l.Info("walk finished", "procedure", "C.M", "steps", 12, "err", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "walk finished", entry["message"])
	assert.Equal(t, "C.M", entry["procedure"])
	assert.Equal(t, float64(12), entry["steps"])
	assert.Equal(t, "boom", entry["err"])
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "msg", formatMessage("msg"))
	assert.Equal(t, "msg a=1 b=x", formatMessage("msg", "a", 1, "b", "x"))
	assert.Equal(t, "msg extra=lonely a=1", formatMessage("msg", "lonely", "a", 1))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestContext(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	nop := Nop()
	ctx := WithLogger(context.Background(), nop)
	assert.Same(t, nop, FromContext(ctx))
	nop.Error("discarded")
}

func TestSpinner_DisabledOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "working")
	s.Start()
	s.Message("still working")
	s.Stop()
	s.Stop()
	assert.Empty(t, strings.TrimSpace(buf.String()))
}
