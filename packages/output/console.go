package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
)

type ConsoleFormatter struct {
	writer   io.Writer
	verbose  bool
	noColor  bool
	progress bool

	mu       sync.Mutex
	marks    int
	rows     int
	passed   int
	failed   int
	noRows   int
	filtered int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithProgress prints one mark per finished row while a scenario runs.
func WithProgress(p bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.progress = p
	}
}

func (f *ConsoleFormatter) RowStarted(string, *runner.Outcome) {}

func (f *ConsoleFormatter) RowFinished(_ string, o *runner.Outcome) {
	if !f.progress {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	mark := color.New(color.FgGreen).Sprint(".")
	if !o.Passed() {
		mark = color.New(color.FgRed).Sprint("F")
	}
	fmt.Fprint(f.writer, mark)
	f.marks++
}

func (f *ConsoleFormatter) FormatReport(suite string, report *runner.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marks > 0 {
		fmt.Fprintln(f.writer)
		f.marks = 0
	}

	fmt.Fprintf(f.writer, "\n%s\n", bold(suite+" › "+report.Scenario))

	if report.SetupErr != nil {
		fmt.Fprintf(f.writer, "  %s setup %s\n", red("x"), red(fmt.Sprintf("(%v)", report.SetupErr)))
	}

	for _, o := range report.Outcomes {
		if o.Passed() {
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), o.Name, cyan(fmt.Sprintf("(%dms)", o.Duration.Milliseconds())))
			continue
		}

		d := describe(o.Err)
		if d.Abort && len(d.Failures) == 0 && len(d.Violations) == 0 {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), o.Name, red(fmt.Sprintf("(%s)", d.Message)))
		} else {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), o.Name, cyan(fmt.Sprintf("(%dms)", o.Duration.Milliseconds())))
		}
		if d.Step != "" {
			fmt.Fprintf(f.writer, "    step: %s\n", d.Step)
		}
		for _, a := range d.Failures {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), a.Subject)
			if a.Expected != nil || a.Actual != nil {
				fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
				fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			}
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}
		for _, v := range d.Violations {
			fmt.Fprintf(f.writer, "    %s schema %s\n", red("→"), v.String())
		}
		if f.verbose && d.Curl != "" {
			fmt.Fprintf(f.writer, "    %s\n", yellow(d.Curl))
		}
	}

	if report.TeardownErr != nil {
		fmt.Fprintf(f.writer, "  %s teardown %s\n", red("x"), red(fmt.Sprintf("(%v)", report.TeardownErr)))
	}

	passed, failed := report.Counts()
	f.rows += len(report.Outcomes)
	f.passed += passed
	f.failed += failed
	f.filtered += report.Filtered

	switch report.Verdict() {
	case runner.VerdictNoRows:
		f.noRows++
		fmt.Fprintf(f.writer, "  %s\n", yellow("no rows: nothing was executed"))
	default:
		if f.verbose && report.Latency.Count > 0 {
			l := report.Latency
			fmt.Fprintf(f.writer, "  %s\n", cyan(fmt.Sprintf("latency p50=%v p95=%v p99=%v max=%v",
				l.P50, l.P95, l.P99, l.Max)))
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("contractkit"), version)
}

// Flush prints the totals of every report formatted so far.
func (f *ConsoleFormatter) Flush(totalDuration time.Duration) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Rows:  ")
	if f.passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", f.passed)))
	}
	if f.failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", f.failed)))
	}
	if f.filtered > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d filtered", f.filtered)))
	}
	fmt.Fprintf(f.writer, "%d total\n", f.rows)
	if f.noRows > 0 {
		fmt.Fprintf(f.writer, "Empty: %s\n", yellow(fmt.Sprintf("%d scenario(s) had no rows", f.noRows)))
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n", totalDuration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
	return nil
}
