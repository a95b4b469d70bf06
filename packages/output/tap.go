package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
)

// TAPFormatter formats reports in TAP (Test Anything Protocol) format.
// Every row is one test point; a scenario without rows is one skipped point.
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	error      string
	step       string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) add(tr tapResult) {
	f.testCount++
	tr.number = f.testCount
	f.results = append(f.results, tr)
}

func (f *TAPFormatter) FormatReport(suite string, report *runner.Report) {
	prefix := suite + " › " + report.Scenario

	if report.Verdict() == runner.VerdictNoRows {
		f.add(tapResult{name: prefix, skipped: true, skipReason: "no rows"})
		return
	}

	if report.SetupErr != nil && len(report.Outcomes) == 0 {
		f.add(tapResult{name: prefix + " › setup", error: report.SetupErr.Error()})
	}

	for _, o := range report.Outcomes {
		tr := tapResult{
			name:   prefix + " › " + o.Name,
			passed: o.Passed(),
		}
		if !o.Passed() {
			d := describe(o.Err)
			tr.step = d.Step
			tr.failures = d.lines()
			if d.Abort {
				tr.error = d.Message
			}
		}
		f.add(tr)
	}

	if report.TeardownErr != nil {
		f.add(tapResult{name: prefix + " › teardown", error: report.TeardownErr.Error()})
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, r.skipReason)
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		fmt.Fprintf(f.writer, "  ---\n")
		if r.step != "" {
			fmt.Fprintf(f.writer, "  step: %s\n", escapeYAML(r.step))
		}
		if r.error != "" {
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: error\n")
		}
		if len(r.failures) > 0 {
			fmt.Fprintf(f.writer, "  failures:\n")
			for _, a := range r.failures {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a))
			}
		}
		fmt.Fprintf(f.writer, "  ...\n")
	}

	fmt.Fprintf(f.writer, "# time %dms\n", totalDuration.Milliseconds())
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
