// Package metrics exports run metrics built from scenario reports and step
// latency statistics.
package metrics

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// ScenarioMetrics are the counts and row latency of one scenario report.
type ScenarioMetrics struct {
	Suite    string
	Scenario string
	Verdict  string
	Passed   int
	Failed   int
	Executed int
	Filtered int
	Duration time.Duration
	Latency  stats.Summary
}

// StepMetrics is the latency of every execution of one named step.
type StepMetrics struct {
	Suite   string
	Step    string
	Summary stats.Summary
}

// Snapshot is everything an exporter writes.
type Snapshot struct {
	StartedAt time.Time
	Duration  time.Duration
	Scenarios []ScenarioMetrics
	Steps     []StepMetrics
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	Export(s *Snapshot) error
}

// Collector accumulates metrics across suites. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	startedAt time.Time
	scenarios []ScenarioMetrics
	steps     []StepMetrics
	now       func() time.Time
}

func NewCollector() *Collector {
	return &Collector{startedAt: time.Now(), now: time.Now}
}

// AddReport records one scenario report.
func (c *Collector) AddReport(suite string, r *runner.Report) {
	passed, failed := r.Counts()
	m := ScenarioMetrics{
		Suite:    suite,
		Scenario: r.Scenario,
		Verdict:  r.Verdict().String(),
		Passed:   passed,
		Failed:   failed,
		Executed: r.RowsExecuted(),
		Filtered: r.Filtered,
		Duration: r.Duration,
		Latency:  r.Latency,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarios = append(c.scenarios, m)
}

// AddSteps records the per-step statistics of one suite, in the order steps
// first ran.
func (c *Collector) AddSteps(suite string, steps *stats.Collector) {
	named, names := steps.Named()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.steps = append(c.steps, StepMetrics{Suite: suite, Step: name, Summary: named[name]})
	}
}

func (c *Collector) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Snapshot{
		StartedAt: c.startedAt,
		Duration:  c.now().Sub(c.startedAt),
		Scenarios: append([]ScenarioMetrics(nil), c.scenarios...),
		Steps:     append([]StepMetrics(nil), c.steps...),
	}
}

// Formats lists the names NewExporter accepts.
var Formats = []string{"prometheus", "json"}

// NewExporter returns the exporter for format writing to w.
func NewExporter(format string, w io.Writer) (Exporter, error) {
	switch format {
	case "", "prometheus", "prom":
		return NewPrometheusExporter(w), nil
	case "json":
		return NewJSONExporter(w, true), nil
	}
	return nil, fmt.Errorf("unknown metrics format %q (want one of %v)", format, Formats)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
