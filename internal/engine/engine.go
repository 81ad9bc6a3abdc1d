// Package engine analyzes a set of C# files: it parses each file, runs the
// configured rules over every procedure and gathers the findings, using the
// result cache, the optional external helper and run metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-sharp-flow/internal/log"
	"github.com/l3aro/go-sharp-flow/internal/metrics"
	"github.com/l3aro/go-sharp-flow/internal/scanner"
	"github.com/l3aro/go-sharp-flow/pkg/cache"
	"github.com/l3aro/go-sharp-flow/pkg/external"
	"github.com/l3aro/go-sharp-flow/pkg/frontend/csharp"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
	"github.com/l3aro/go-sharp-flow/pkg/symexec"
)

// Options configure an Engine. Cache, Helper and Metrics are optional.
type Options struct {
	Rules          []string
	MaxSteps       int
	MaxPointVisits int
	Workers        int

	Cache   *cache.LRUCache
	Helper  *external.Helper
	Metrics *metrics.Metrics
	// Logger defaults to the logger carried by the context passed to Run.
	Logger  log.Logger
}

// FileResult is the outcome of one file.
type FileResult struct {
	Path        string
	Procedures  int
	Skipped     []string
	Diagnostics []rules.Diagnostic
	Cached      bool
	// Err is set when the file could not be read or parsed, or when the
	// analysis of one of its procedures broke an internal invariant.
	Err error
}

// Summary is the outcome of a run.
type Summary struct {
	RunID    string
	Files    []FileResult
	Duration time.Duration
	// Unmatched holds helper findings whose file is not part of the run.
	Unmatched []external.Issue
}

// DiagnosticCount returns the number of findings across all files.
func (s *Summary) DiagnosticCount() int {
	n := len(s.Unmatched)
	for _, f := range s.Files {
		n += len(f.Diagnostics)
	}
	return n
}

// Failed returns the files whose analysis failed.
func (s *Summary) Failed() []FileResult {
	var out []FileResult
	for _, f := range s.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Engine runs analyses. It is safe for concurrent use.
type Engine struct {
	opts     Options
	runner   *rules.Runner
	parser   *csharp.Parser
	settings cache.Settings
	logger   log.Logger
}

// New validates the rule selection and prepares an engine.
func New(opts Options) (*Engine, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	runner, err := rules.NewRunner(nil, symexec.Options{
		MaxSteps:       opts.MaxSteps,
		MaxPointVisits: opts.MaxPointVisits,
	}, opts.Rules...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		opts:   opts,
		runner: runner,
		parser: csharp.NewParser(),
		settings: cache.Settings{
			Rules:          opts.Rules,
			MaxSteps:       opts.MaxSteps,
			MaxPointVisits: opts.MaxPointVisits,
		},
		logger: opts.Logger,
	}, nil
}

// loggerFor returns the configured logger, or the one carried by ctx.
func (e *Engine) loggerFor(ctx context.Context) log.Logger {
	if e.logger != nil {
		return e.logger
	}
	return log.FromContext(ctx)
}

// analysis is one file's result plus the graphs handed to the helper.
type analysis struct {
	result FileResult
	input  *external.Input
	// cancelled is set when a walk stopped on context cancellation, so
	// the result may be incomplete.
	cancelled bool
}

// Run analyzes files. Per-file failures are reported in the summary; the
// error is reserved for cancellation and helper failures. On a helper
// failure the summary still holds every in-process finding.
func (e *Engine) Run(ctx context.Context, files []scanner.FileInfo) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := e.loggerFor(ctx)
	logger.Debug("analysis started", "run", summary.RunID, "files", len(files), "workers", e.opts.Workers)

	results := make([]analysis, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = e.analyzeFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", ctx.Err())
	}

	summary.Files = make([]FileResult, len(results))
	var inputs []external.Input
	for i, r := range results {
		summary.Files[i] = r.result
		if r.input != nil {
			inputs = append(inputs, *r.input)
		}
	}

	var helperErr error
	if e.opts.Helper != nil && len(inputs) > 0 {
		helperErr = e.runHelper(ctx, inputs, summary)
	}

	summary.Duration = time.Since(start)
	logger.Info("analysis finished",
		"run", summary.RunID,
		"files", len(summary.Files),
		"diagnostics", summary.DiagnosticCount(),
		"failed", len(summary.Failed()),
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, helperErr
}

func (e *Engine) analyzeFile(ctx context.Context, f scanner.FileInfo) analysis {
	start := time.Now()
	res := FileResult{Path: f.Path}
	outcome := metrics.FileAnalyzed
	defer func() {
		if res.Cached {
			outcome = metrics.FileCached
		} else if res.Err != nil {
			outcome = metrics.FileFailed
		}
		if e.opts.Metrics != nil {
			e.opts.Metrics.FileDone(outcome, time.Since(start))
		}
	}()

	content, err := os.ReadFile(f.FullPath)
	if err != nil {
		res.Err = fmt.Errorf("reading file %s: %w", f.Path, err)
		e.loggerFor(ctx).Warn("cannot read file", "path", f.Path, "error", err)
		return analysis{result: res}
	}

	// Cached results carry no graphs, so runs with a helper always analyze.
	useCache := e.opts.Cache != nil && e.opts.Helper == nil
	key := cache.Key(content, e.settings)
	if useCache {
		if hit, ok := e.opts.Cache.Get(key); ok {
			res.Procedures = hit.Procedures
			res.Skipped = hit.Skipped
			res.Diagnostics = hit.Diagnostics
			res.Cached = true
			e.loggerFor(ctx).Debug("cache hit", "path", f.Path)
			return analysis{result: res}
		}
	}

	a := e.analyzeContent(ctx, f.Path, content)
	res = a.result
	if useCache && res.Err == nil && !a.cancelled {
		e.opts.Cache.Set(key, cache.Result{
			Path:        res.Path,
			Procedures:  res.Procedures,
			Skipped:     res.Skipped,
			Diagnostics: res.Diagnostics,
		})
	}
	return analysis{result: res, input: a.input}
}

// AnalyzeSource analyzes in-memory content as if it were the file at path.
func (e *Engine) AnalyzeSource(ctx context.Context, path string, content []byte) FileResult {
	return e.analyzeContent(ctx, path, content).result
}

func (e *Engine) analyzeContent(ctx context.Context, path string, content []byte) analysis {
	res := FileResult{Path: path}
	file, err := e.parser.Parse(ctx, path, content)
	if err != nil {
		res.Err = err
		e.loggerFor(ctx).Warn("cannot parse file", "path", path, "error", err)
		return analysis{result: res}
	}
	if file.SyntaxErrors > 0 {
		e.loggerFor(ctx).Debug("file has syntax errors", "path", path, "count", file.SyntaxErrors)
	}

	input := &external.Input{Path: path}
	cancelled := false
	res.Procedures = len(file.Procedures)
	for _, proc := range file.Procedures {
		report, err := e.runner.Analyze(ctx, proc, file.Model)
		if e.opts.Metrics != nil {
			e.opts.Metrics.ObserveReport(report, err)
		}
		if err != nil {
			if errors.Is(err, symexec.ErrInvariant) {
				e.loggerFor(ctx).Error("invariant violation", "path", path, "procedure", proc.Name, "error", err)
			} else {
				e.loggerFor(ctx).Warn("procedure analysis failed", "path", path, "procedure", proc.Name, "error", err)
			}
			if res.Err == nil {
				res.Err = fmt.Errorf("%s: %w", path, err)
			}
			continue
		}
		if report.Outcome == rules.Skipped {
			e.loggerFor(ctx).Debug("procedure skipped", "path", path, "procedure", proc.Name, "reason", report.SkipReason)
			res.Skipped = append(res.Skipped, proc.Name+": "+report.SkipReason)
			continue
		}
		if report.Result.Reason == symexec.Cancelled {
			cancelled = true
		}
		if report.Result.Reason == symexec.BudgetExceeded {
			e.loggerFor(ctx).Debug("exploration budget exceeded", "path", path, "procedure", proc.Name, "steps", report.Result.Steps)
		}
		res.Diagnostics = append(res.Diagnostics, report.Diagnostics...)
		input.Procedures = append(input.Procedures, external.Procedure{Name: proc.Name, Graph: report.Graph})
	}
	rules.SortDiagnostics(res.Diagnostics)

	if len(input.Procedures) == 0 {
		input = nil
	}
	return analysis{result: res, input: input, cancelled: cancelled}
}

// runHelper hands the graphs to the external helper and merges its findings
// into the matching files.
func (e *Engine) runHelper(ctx context.Context, inputs []external.Input, summary *Summary) error {
	issues, err := e.opts.Helper.Run(ctx, inputs)
	if e.opts.Metrics != nil {
		e.opts.Metrics.HelperRun(err)
	}
	if err != nil {
		return fmt.Errorf("external helper: %w", err)
	}

	byPath := make(map[string]int, len(summary.Files))
	for i, f := range summary.Files {
		byPath[filepath.ToSlash(f.Path)] = i
	}
	touched := make(map[int]bool)
	for _, issue := range issues {
		if e.opts.Metrics != nil {
			e.opts.Metrics.Diagnostic(issue.Key)
		}
		i, ok := byPath[filepath.ToSlash(issue.File)]
		if !ok {
			summary.Unmatched = append(summary.Unmatched, issue)
			continue
		}
		summary.Files[i].Diagnostics = append(summary.Files[i].Diagnostics, issue.Diagnostic())
		touched[i] = true
	}
	for i := range touched {
		rules.SortDiagnostics(summary.Files[i].Diagnostics)
	}
	e.loggerFor(ctx).Debug("helper findings merged", "issues", len(issues), "unmatched", len(summary.Unmatched))
	return nil
}
