// Package metrics records analysis counters and timings in a Prometheus
// registry and writes them in the text exposition format, suitable for the
// node exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

const namespace = "gsf"

// File outcomes.
const (
	FileAnalyzed = "analyzed"
	FileCached   = "cached"
	FileFailed   = "failed"
)

// Metrics holds one run's collectors. Each run gets its own registry so
// that nothing leaks between runs or tests.
type Metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	fileDuration prometheus.Histogram
	procedures   *prometheus.CounterVec
	walks        *prometheus.CounterVec
	walkSteps    prometheus.Histogram
	droppedPaths prometheus.Counter
	diagnostics  *prometheus.CounterVec
	helperRuns   *prometheus.CounterVec
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Source files processed, by outcome",
		}, []string{"outcome"}),
		fileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time to parse and analyze one source file",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		procedures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "procedures_total",
			Help:      "Procedures seen, by outcome",
		}, []string{"outcome"}),
		walks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walk",
			Name:      "total",
			Help:      "Finished walks, by final status and abort reason",
		}, []string{"status", "reason"}),
		walkSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walk",
			Name:      "steps",
			Help:      "Exploded nodes processed per walk",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 7),
		}),
		droppedPaths: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walk",
			Name:      "dropped_paths_total",
			Help:      "Paths abandoned at operations with unknown effect",
		}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported, by rule",
		}, []string{"rule"}),
		helperRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "helper",
			Name:      "runs_total",
			Help:      "External helper invocations, by result",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FileDone records one processed file.
func (m *Metrics) FileDone(outcome string, d time.Duration) {
	m.files.WithLabelValues(outcome).Inc()
	if outcome != FileCached {
		m.fileDuration.Observe(d.Seconds())
	}
}

// ProcedureFailed is the procedure outcome recorded when analysis returned
// an error.
const ProcedureFailed = "failed"

// ObserveReport records the outcome of one procedure. A non-nil err counts
// the procedure as failed and ignores the report.
func (m *Metrics) ObserveReport(r rules.Report, err error) {
	if err != nil {
		m.procedures.WithLabelValues(ProcedureFailed).Inc()
		return
	}
	m.procedures.WithLabelValues(string(r.Outcome)).Inc()
	if r.Outcome != rules.Analyzed {
		return
	}
	reason := r.Result.Reason.String()
	if reason == "" {
		reason = "none"
	}
	m.walks.WithLabelValues(r.Result.Status.String(), reason).Inc()
	m.walkSteps.Observe(float64(r.Result.Steps))
	m.droppedPaths.Add(float64(r.Result.DroppedPaths))
	for _, d := range r.Diagnostics {
		m.diagnostics.WithLabelValues(d.RuleID).Inc()
	}
}

// Diagnostic counts a finding that did not come from a procedure report.
func (m *Metrics) Diagnostic(ruleID string) {
	m.diagnostics.WithLabelValues(ruleID).Inc()
}

// HelperRun records an external helper invocation.
func (m *Metrics) HelperRun(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.helperRuns.WithLabelValues(result).Inc()
}

// WriteFile writes all metrics to path in the text format.
func (m *Metrics) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics %s: %w", path, err)
	}
	return nil
}
