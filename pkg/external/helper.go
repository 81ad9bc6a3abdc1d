// Package external runs an out-of-process analysis helper over rendered
// control flow graphs and converts its findings into diagnostics.
//
// The helper is located once per process with NewHelper and passed to
// whoever needs it. Each Run gets its own directory holding one input file
// per source file, the XML results file and the helper's own log.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/l3aro/go-sharp-flow/internal/log"
	"github.com/l3aro/go-sharp-flow/pkg/cfg"
)

// ErrHelperNotFound is returned by NewHelper when the helper binary cannot
// be located.
var ErrHelperNotFound = errors.New("analysis helper not found")

const (
	inputDirName    = "input"
	resultsFileName = "results.xml"
	logFileName     = "perf.log"
	maxLogExcerpt   = 4096
)

// Options configure a Helper.
type Options struct {
	// WorkDir is the parent of the per-run directories. Defaults to
	// <tmp>/gsf-helper.
	WorkDir string
	// KeepFiles leaves run directories on disk after Run returns.
	KeepFiles bool
	Logger    log.Logger
}

// Helper is a resolved helper binary.
type Helper struct {
	path    string
	workDir string
	keep    bool
	logger  log.Logger
}

// NewHelper resolves path (a file path or a name looked up in PATH).
func NewHelper(path string, opts Options) (*Helper, error) {
	if path == "" {
		return nil, ErrHelperNotFound
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHelperNotFound, path, err)
	}
	h := &Helper{
		path:    resolved,
		workDir: opts.WorkDir,
		keep:    opts.KeepFiles,
		logger:  opts.Logger,
	}
	if h.workDir == "" {
		h.workDir = filepath.Join(os.TempDir(), "gsf-helper")
	}
	if h.logger == nil {
		h.logger = log.Nop()
	}
	return h, nil
}

// Path returns the resolved helper binary.
func (h *Helper) Path() string { return h.path }

// Procedure is one graph to hand to the helper.
type Procedure struct {
	Name  string
	Graph *cfg.Graph
}

// Input groups the procedures of one source file.
type Input struct {
	Path       string
	Procedures []Procedure
}

// ToolFailure reports a helper run that exited non-zero or produced a
// results file that could not be read.
type ToolFailure struct {
	ExitCode int
	Stderr   string
	Log      string
	Sources  []string
	Err      error
}

func (f *ToolFailure) Error() string {
	var sb strings.Builder
	if f.ExitCode != 0 {
		fmt.Fprintf(&sb, "analysis helper failed with exit code %d", f.ExitCode)
	} else {
		sb.WriteString("analysis helper failed")
	}
	if f.Err != nil {
		fmt.Fprintf(&sb, ": %v", f.Err)
	}
	if s := strings.TrimSpace(f.Stderr); s != "" {
		fmt.Fprintf(&sb, "\nstderr:\n%s", s)
	}
	return sb.String()
}

func (f *ToolFailure) Unwrap() error { return f.Err }

// Run writes inputs, invokes the helper and returns the issues it found.
func (h *Helper) Run(ctx context.Context, inputs []Input) ([]Issue, error) {
	runDir := filepath.Join(h.workDir, uuid.NewString())
	inputDir := filepath.Join(runDir, inputDirName)
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if !h.keep {
		defer os.RemoveAll(runDir)
	}

	sources, err := writeInputs(inputDir, inputs)
	if err != nil {
		return nil, err
	}

	resultsPath := filepath.Join(runDir, resultsFileName)
	logPath := filepath.Join(runDir, logFileName)
	cmd := exec.CommandContext(ctx, h.path, "-i", inputDir, "-o", resultsPath, "-s", logPath)
	cmd.Dir = runDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	h.logger.Debug("running analysis helper", "helper", h.path, "dir", runDir, "files", len(sources))
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("running analysis helper: %w", ctx.Err())
	}
	if runErr != nil {
		failure := &ToolFailure{
			ExitCode: -1,
			Stderr:   stderr.String(),
			Log:      logExcerpt(logPath),
			Sources:  sources,
			Err:      runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		h.logger.Error("analysis helper failed", "exit_code", failure.ExitCode, "stderr", strings.TrimSpace(failure.Stderr))
		return nil, failure
	}

	issues, err := ReadIssuesFile(resultsPath)
	if err != nil {
		h.logger.Error("reading analysis helper results", "path", resultsPath, "error", err)
		return nil, &ToolFailure{
			Stderr:  stderr.String(),
			Log:     logExcerpt(logPath),
			Sources: sources,
			Err:     err,
		}
	}
	h.logger.Debug("analysis helper finished", "issues", len(issues), "duration", time.Since(start))
	return issues, nil
}

// writeInputs writes one file per input and returns the source paths in
// input order. Sources sharing a base name get distinct numbered files.
func writeInputs(dir string, inputs []Input) ([]string, error) {
	counts := make(map[string]int)
	sources := make([]string, 0, len(inputs))
	for _, in := range inputs {
		name := mangle(in.Path, counts) + ".cfg"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(renderInput(in)), 0o644); err != nil {
			return nil, fmt.Errorf("writing helper input %s: %w", name, err)
		}
		sources = append(sources, in.Path)
	}
	return sources, nil
}

// mangle turns a/b/Foo.cs into Foo_1, the next Foo.cs into Foo_2.
func mangle(path string, counts map[string]int) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	counts[base]++
	return fmt.Sprintf("%s_%d", base, counts[base])
}

func renderInput(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// source %s\n", in.Path)
	for _, p := range in.Procedures {
		fmt.Fprintf(&sb, "// procedure %s\n", p.Name)
		sb.WriteString(cfg.Render(p.Graph))
		sb.WriteString("\n")
	}
	return sb.String()
}

// logExcerpt returns the tail of the helper log, or "" if there is none.
func logExcerpt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > maxLogExcerpt {
		data = data[len(data)-maxLogExcerpt:]
	}
	return string(data)
}
