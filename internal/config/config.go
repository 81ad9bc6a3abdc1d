package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-sharp-flow/internal/log"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
)

// DirName is the directory holding configuration, both in the project and
// in the home directory.
const DirName = ".gsf"

// Config holds all configuration for go-sharp-flow
type Config struct {
	// Exploration budgets per procedure
	MaxSteps       int `yaml:"max_steps" env:"GSF_MAX_STEPS"`
	MaxPointVisits int `yaml:"max_point_visits" env:"GSF_MAX_POINT_VISITS"`

	// Workers is the number of files analyzed in parallel
	Workers int `yaml:"workers" env:"GSF_WORKERS"`

	// Rules to run; empty means every registered rule
	Rules []string `yaml:"rules" env:"GSF_RULES"`

	// Result cache
	CacheDir     string `yaml:"cache_dir" env:"GSF_CACHE_DIR"`
	CacheEnabled bool   `yaml:"cache_enabled" env:"GSF_CACHE_ENABLED"`

	// External analysis helper; disabled when HelperPath is empty
	HelperPath    string `yaml:"helper_path" env:"GSF_HELPER_PATH"`
	HelperWorkDir string `yaml:"helper_work_dir" env:"GSF_HELPER_WORK_DIR"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GSF_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"GSF_JSON_LOGS"`

	// MetricsFile receives Prometheus text-format metrics after a run
	MetricsFile string `yaml:"metrics_file" env:"GSF_METRICS_FILE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxSteps:       symexec.DefaultMaxSteps,
		MaxPointVisits: symexec.DefaultMaxPointVisits,
		Workers:        runtime.NumCPU(),
		Rules:          nil,
		CacheDir:       filepath.Join(DirName, "cache"),
		CacheEnabled:   true,
		HelperPath:     "",
		HelperWorkDir:  "",
		LogLevel:       "info",
		JSONLogs:       false,
		MetricsFile:    "",
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gsf/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "config.yaml")
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gsf/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(DirName, "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.gsf/config.yaml)
// 2. Environment variables
// 3. Global config (~/.gsf/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return load(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	// The project file is applied last so that it wins over the environment.
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is not
// an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"GSF_MAX_STEPS", &cfg.MaxSteps},
		{"GSF_MAX_POINT_VISITS", &cfg.MaxPointVisits},
		{"GSF_WORKERS", &cfg.Workers},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", e.key, err)
			}
			*e.dst = i
		}
	}

	if v := os.Getenv("GSF_RULES"); v != "" {
		cfg.Rules = splitList(v)
	}
	if v := os.Getenv("GSF_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("GSF_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("GSF_HELPER_PATH"); v != "" {
		cfg.HelperPath = v
	}
	if v := os.Getenv("GSF_HELPER_WORK_DIR"); v != "" {
		cfg.HelperWorkDir = v
	}
	if v := os.Getenv("GSF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GSF_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	if v := os.Getenv("GSF_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if c.MaxPointVisits <= 0 {
		return fmt.Errorf("max_point_visits must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	registry := rules.NewRegistry()
	for _, id := range c.Rules {
		if !registry.Has(id) {
			return fmt.Errorf("unknown rule %q (available: %s)", id, strings.Join(registry.IDs(), ", "))
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.CacheEnabled && c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required when cache_enabled is true")
	}

	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// CacheFile is where analysis results are persisted between runs.
func (c *Config) CacheFile() string {
	return filepath.Join(c.CacheDir, "results.msgpack")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
