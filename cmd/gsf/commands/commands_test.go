package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `class Orders
{
    void Ship()
    {
        string id = null;
        id.Trim();
    }

    void Safe(string id)
    {
        if (id != null)
        {
            id.Trim();
        }
    }
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func workspace(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Orders.cs"), []byte(source), 0o644))
	configPath = filepath.Join(dir, "gsf.yaml")
	cfg := "cache_enabled: false\nlog_level: error\nworkers: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return dir, configPath
}

func TestAnalyze_JSON(t *testing.T) {
	dir, configPath := workspace(t)
	metricsPath := filepath.Join(dir, "out", "gsf.prom")

	out, err := execute(t, "analyze", "--config", configPath, "--format", "json", "--metrics-file", metricsPath, dir)
	require.ErrorIs(t, err, ErrFindings)

	var report jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Issues)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "Orders.cs", report.Files[0].Path)
	assert.Equal(t, 2, report.Files[0].Procedures)
	require.Len(t, report.Files[0].Diagnostics, 1)
	assert.Equal(t, "S2259", report.Files[0].Diagnostics[0].RuleID)
	assert.Equal(t, "Orders.Ship", report.Files[0].Diagnostics[0].Procedure)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gsf_files_total{outcome="analyzed"} 1`)
}

func TestAnalyze_TextAndRuleFilter(t *testing.T) {
	dir, configPath := workspace(t)

	out, err := execute(t, "analyze", "--config", configPath, "--format", "text", "--rules", "S2583", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 issue(s) in 1 file(s)")

	_, err = execute(t, "analyze", "--config", configPath, "--format", "text", "--rules", "S0000", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule")
}

func TestCFG(t *testing.T) {
	dir, _ := workspace(t)
	file := filepath.Join(dir, "Orders.cs")

	out, err := execute(t, "cfg", "--format", "dot", file, "Ship")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `digraph "Orders.Ship"`))

	out, err = execute(t, "cfg", "--format", "text", file)
	require.NoError(t, err)
	assert.Contains(t, out, "=== CFG for method: Orders.Ship ===")
	assert.Contains(t, out, "=== CFG for method: Orders.Safe ===")

	_, err = execute(t, "cfg", "--format", "text", file, "Shi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Did you mean: Orders.Ship?")

	_, err = execute(t, "cfg", "--format", "text", dir)
	assert.Error(t, err)
}

func TestSimilarNames(t *testing.T) {
	names := []string{"A.Run", "B.Runner", "C.Stop"}
	assert.Equal(t, []string{"A.Run", "B.Runner"}, similarNames(names, "run"))
	assert.Empty(t, similarNames(names, "zzz"))
}
