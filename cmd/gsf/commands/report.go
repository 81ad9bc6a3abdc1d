package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/l3aro/go-sharp-flow/internal/engine"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

var (
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	ruleStyle    = color.New(color.FgYellow, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	successStyle = color.New(color.FgGreen, color.Bold)
	dimStyle     = color.New(color.Faint)
)

// writeTextReport prints one line per finding followed by a summary.
func writeTextReport(w io.Writer, s *engine.Summary) {
	skipped := 0
	for _, f := range s.Files {
		skipped += len(f.Skipped)
		for _, d := range f.Diagnostics {
			printDiagnostic(w, f.Path, d)
		}
		if f.Err != nil {
			fmt.Fprintf(w, "%s %s\n", errorStyle.Sprint("error:"), f.Err)
		}
	}
	for _, issue := range s.Unmatched {
		printDiagnostic(w, issue.File, issue.Diagnostic())
	}

	n := s.DiagnosticCount()
	summary := fmt.Sprintf("%d issue(s) in %d file(s)", n, len(s.Files))
	if n == 0 {
		fmt.Fprintln(w, successStyle.Sprint(summary))
	} else {
		fmt.Fprintln(w, errorStyle.Sprint(summary))
	}
	var extra []string
	if skipped > 0 {
		extra = append(extra, fmt.Sprintf("%d method(s) skipped", skipped))
	}
	if failed := len(s.Failed()); failed > 0 {
		extra = append(extra, fmt.Sprintf("%d file(s) failed", failed))
	}
	extra = append(extra, s.Duration.Round(time.Millisecond).String())
	for _, e := range extra {
		fmt.Fprintln(w, dimStyle.Sprint("  "+e))
	}
}

func printDiagnostic(w io.Writer, path string, d rules.Diagnostic) {
	fmt.Fprintf(w, "%s:%s: %s %s",
		fileStyle.Sprint(path),
		lineStyle.Sprintf("%d:%d", d.Span.StartLine, d.Span.StartCol),
		ruleStyle.Sprint(d.RuleID),
		d.Message)
	if d.Procedure != "" {
		fmt.Fprint(w, dimStyle.Sprintf(" (%s)", d.Procedure))
	}
	fmt.Fprintln(w)
}

type jsonFile struct {
	Path        string             `json:"path"`
	Procedures  int                `json:"procedures"`
	Skipped     []string           `json:"skipped,omitempty"`
	Diagnostics []rules.Diagnostic `json:"diagnostics"`
	Cached      bool               `json:"cached,omitempty"`
	Error       string             `json:"error,omitempty"`
}

type jsonIssue struct {
	File string `json:"file"`
	rules.Diagnostic
}

type jsonReport struct {
	RunID      string      `json:"run_id"`
	Files      []jsonFile  `json:"files"`
	Unmatched  []jsonIssue `json:"unmatched,omitempty"`
	Issues     int         `json:"issues"`
	DurationMs int64       `json:"duration_ms"`
}

func writeJSONReport(w io.Writer, s *engine.Summary) error {
	report := jsonReport{
		RunID:      s.RunID,
		Files:      make([]jsonFile, 0, len(s.Files)),
		Issues:     s.DiagnosticCount(),
		DurationMs: s.Duration.Milliseconds(),
	}
	for _, f := range s.Files {
		jf := jsonFile{
			Path:        f.Path,
			Procedures:  f.Procedures,
			Skipped:     f.Skipped,
			Diagnostics: f.Diagnostics,
			Cached:      f.Cached,
		}
		if jf.Diagnostics == nil {
			jf.Diagnostics = []rules.Diagnostic{}
		}
		if f.Err != nil {
			jf.Error = f.Err.Error()
		}
		report.Files = append(report.Files, jf)
	}
	for _, issue := range s.Unmatched {
		report.Unmatched = append(report.Unmatched, jsonIssue{File: issue.File, Diagnostic: issue.Diagnostic()})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
