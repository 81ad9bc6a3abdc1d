package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sharp-flow/internal/config"
	"github.com/l3aro/go-sharp-flow/internal/engine"
	"github.com/l3aro/go-sharp-flow/internal/log"
	"github.com/l3aro/go-sharp-flow/internal/metrics"
	"github.com/l3aro/go-sharp-flow/internal/scanner"
	"github.com/l3aro/go-sharp-flow/pkg/cache"
	"github.com/l3aro/go-sharp-flow/pkg/external"
)

const cacheEntries = 50000

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [paths...]",
	Short: "Analyze C# files and report issues",
	Long: `Analyzes every .cs file under the given paths (default: the current
directory) and reports the issues found. Exits with status 1 when issues
were reported.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringSlice("rules", nil, "Rules to run (default: all)")
	f.Int("max-steps", 0, "Exploration steps per method")
	f.Int("max-point-visits", 0, "Distinct states kept per program point")
	f.Int("workers", 0, "Files analyzed in parallel")
	f.Bool("no-cache", false, "Ignore and do not update the result cache")
	f.String("helper", "", "External analysis helper binary")
	f.Bool("keep-helper-files", false, "Keep the helper's input and output files")
	f.String("metrics-file", "", "Write Prometheus metrics to this file")
	f.StringP("format", "f", "text", "Output format (text or json)")
	RootCmd.AddCommand(analyzeCmd)
}

// applyAnalyzeFlags overrides configuration with explicitly set flags.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("rules") {
		cfg.Rules, _ = f.GetStringSlice("rules")
	}
	if f.Changed("max-steps") {
		cfg.MaxSteps, _ = f.GetInt("max-steps")
	}
	if f.Changed("max-point-visits") {
		cfg.MaxPointVisits, _ = f.GetInt("max-point-visits")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if noCache, _ := f.GetBool("no-cache"); noCache {
		cfg.CacheEnabled = false
	}
	if f.Changed("helper") {
		cfg.HelperPath, _ = f.GetString("helper")
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile, _ = f.GetString("metrics-file")
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyAnalyzeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg)

	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("no C# files found", "paths", args)
	}

	opts := engine.Options{
		Rules:          cfg.Rules,
		MaxSteps:       cfg.MaxSteps,
		MaxPointVisits: cfg.MaxPointVisits,
		Workers:        cfg.Workers,
	}
	if cfg.CacheEnabled {
		opts.Cache = openCache(cfg, logger)
	}
	if cfg.HelperPath != "" {
		keep, _ := cmd.Flags().GetBool("keep-helper-files")
		opts.Helper, err = external.NewHelper(cfg.HelperPath, external.Options{
			WorkDir:   cfg.HelperWorkDir,
			KeepFiles: keep,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	}
	if cfg.MetricsFile != "" {
		opts.Metrics = metrics.New()
	}

	eng, err := engine.New(opts)
	if err != nil {
		return err
	}

	spinner := log.NewProgressSpinner(fmt.Sprintf("Analyzing %d files...", len(files)))
	spinner.Start()
	summary, runErr := eng.Run(log.WithLogger(cmd.Context(), logger), files)
	spinner.Stop()

	if summary == nil {
		return runErr
	}

	if opts.Cache != nil {
		logger.Debug("result cache", "entries", opts.Cache.Len(), "hit_rate", opts.Cache.HitRate())
		if err := opts.Cache.SaveFile(cfg.CacheFile()); err != nil {
			logger.Warn("cannot save cache", "path", cfg.CacheFile(), "error", err)
		}
	}
	if opts.Metrics != nil {
		if err := opts.Metrics.WriteFile(cfg.MetricsFile); err != nil {
			logger.Warn("cannot write metrics", "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if err := writeJSONReport(out, summary); err != nil {
			return err
		}
	} else {
		writeTextReport(out, summary)
	}

	if runErr != nil {
		var failure *external.ToolFailure
		if errors.As(runErr, &failure) && failure.Log != "" {
			logger.Error("helper log excerpt", "log", failure.Log)
		}
		return runErr
	}
	if summary.DiagnosticCount() > 0 {
		return ErrFindings
	}
	return nil
}

// collectFiles scans every path and drops duplicates.
func collectFiles(paths []string) ([]scanner.FileInfo, error) {
	var files []scanner.FileInfo
	seen := make(map[string]bool)
	for _, p := range paths {
		found, err := scanner.Scan(p)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		for _, f := range found {
			if seen[f.FullPath] {
				continue
			}
			seen[f.FullPath] = true
			if len(paths) > 1 {
				f.Path = f.FullPath
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// openCache loads the persisted cache. A cache that cannot be read is
// started afresh.
func openCache(cfg *config.Config, logger log.Logger) *cache.LRUCache {
	c := cache.New(cache.Options{MaxEntries: cacheEntries})
	if err := c.LoadFile(cfg.CacheFile()); err != nil {
		if errors.Is(err, cache.ErrVersionMismatch) || errors.Is(err, os.ErrPermission) {
			logger.Debug("discarding cache", "path", cfg.CacheFile(), "error", err)
		} else {
			logger.Warn("cannot load cache", "path", cfg.CacheFile(), "error", err)
		}
		c.Clear()
	}
	return c
}
