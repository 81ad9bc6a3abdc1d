package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/l3aro/go-sharp-flow/pkg/symexec"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"MaxSteps", cfg.MaxSteps, symexec.DefaultMaxSteps},
		{"MaxPointVisits", cfg.MaxPointVisits, 6},
		{"CacheDir", cfg.CacheDir, filepath.Join(".gsf", "cache")},
		{"CacheEnabled", cfg.CacheEnabled, true},
		{"HelperPath", cfg.HelperPath, ""},
		{"LogLevel", cfg.LogLevel, "info"},
		{"JSONLogs", cfg.JSONLogs, false},
		{"MetricsFile", cfg.MetricsFile, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"defaults", func(*Config) {}, ""},
		{"known rules", func(c *Config) { c.Rules = []string{"S2259", "S4158"} }, ""},
		{"zero steps", func(c *Config) { c.MaxSteps = 0 }, "max_steps"},
		{"negative visits", func(c *Config) { c.MaxPointVisits = -1 }, "max_point_visits"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"unknown rule", func(c *Config) { c.Rules = []string{"S9999"} }, `unknown rule "S9999"`},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"cache without dir", func(c *Config) { c.CacheDir = "" }, "cache_dir"},
		{"disabled cache without dir", func(c *Config) { c.CacheDir = ""; c.CacheEnabled = false }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "home", ".gsf", "config.yaml")
	project := filepath.Join(dir, "project", ".gsf", "config.yaml")

	writeFile(t, global, "max_steps: 100\nworkers: 2\nlog_level: debug\n")
	t.Setenv("GSF_MAX_STEPS", "200")
	t.Setenv("GSF_WORKERS", "3")
	t.Setenv("GSF_RULES", "S2259, S3655")
	writeFile(t, project, "max_steps: 300\n")

	cfg, err := load(global, project)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.MaxSteps != 300 {
		t.Errorf("MaxSteps = %d, want project value 300", cfg.MaxSteps)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want env value 3", cfg.Workers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want global value debug", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.Rules, []string{"S2259", "S3655"}) {
		t.Errorf("Rules = %v", cfg.Rules)
	}
}

func TestLoad_MissingFilesUseDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(filepath.Join(dir, "none.yaml"), filepath.Join(dir, "also-none.yaml"))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.MaxSteps != symexec.DefaultMaxSteps {
		t.Errorf("MaxSteps = %d", cfg.MaxSteps)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name        string
		project     string
		env         map[string]string
		errContains string
	}{
		{"malformed yaml", "max_steps: [", nil, "failed to parse config file"},
		{"invalid budget", "max_point_visits: 0\n", nil, "max_point_visits"},
		{"bad env int", "", map[string]string{"GSF_MAX_STEPS": "lots"}, "GSF_MAX_STEPS"},
		{"unknown rule from env", "", map[string]string{"GSF_RULES": "S0000"}, "unknown rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			project := filepath.Join(dir, "config.yaml")
			if tt.project != "" {
				writeFile(t, project, tt.project)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(filepath.Join(dir, "global.yaml"), project)
			if err == nil {
				t.Fatalf("load() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("load() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.MaxSteps = 5000
	cfg.Rules = []string{"S2583"}
	cfg.HelperPath = "/opt/helper"
	cfg.JSONLogs = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("LoadFromFile() = %+v, want %+v", loaded, cfg)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() on a missing file should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GSF_CACHE_ENABLED", "no")
	t.Setenv("GSF_JSON_LOGS", "1")
	t.Setenv("GSF_HELPER_PATH", "/usr/bin/helper")
	t.Setenv("GSF_HELPER_WORK_DIR", "/tmp/work")
	t.Setenv("GSF_METRICS_FILE", "gsf.prom")
	t.Setenv("GSF_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.CacheEnabled {
		t.Error("CacheEnabled should be false")
	}
	if !cfg.JSONLogs {
		t.Error("JSONLogs should be true")
	}
	if cfg.HelperPath != "/usr/bin/helper" || cfg.HelperWorkDir != "/tmp/work" {
		t.Errorf("helper settings = %q, %q", cfg.HelperPath, cfg.HelperWorkDir)
	}
	if cfg.MetricsFile != "gsf.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
	if cfg.Level().String() != "WARN" {
		t.Errorf("Level() = %v", cfg.Level())
	}
}
