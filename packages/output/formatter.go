package output

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/schema"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/workflow"
)

// Formatter renders scenario reports.
type Formatter interface {
	FormatHeader(version string)
	FormatReport(suite string, report *runner.Report)
	FormatError(err error)
	Flush(totalDuration time.Duration) error
}

// Formats lists the names New accepts.
var Formats = []string{"console", "json", "junit", "tap"}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
}

// rowDetail is what every format shows about a failed row.
type rowDetail struct {
	Step       string
	Message    string
	Failures   []spec.AssertionFailure
	Violations []schema.Violation
	Curl       string
	// Abort is set for failures that are not assertion or schema
	// mismatches, such as transport errors.
	Abort bool
}

func describe(err error) rowDetail {
	if err == nil {
		return rowDetail{}
	}
	d := rowDetail{Message: err.Error(), Abort: true}

	var sf *workflow.StepFailure
	if errors.As(err, &sf) {
		d.Step = sf.Step
		d.Failures = sf.Failures
		d.Violations = sf.Violations
		d.Curl = sf.Curl
		d.Abort = sf.Err != nil
		if sf.Err != nil {
			d.Message = sf.Err.Error()
		} else {
			d.Message = fmt.Sprintf("step %s failed", sf.Step)
		}
		return d
	}

	var ae *spec.AssertionError
	if errors.As(err, &ae) {
		d.Failures = ae.Failures
		d.Abort = false
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		d.Violations = ve.Violations
		d.Abort = false
	}
	return d
}

func (d rowDetail) lines() []string {
	var out []string
	for _, f := range d.Failures {
		out = append(out, f.Error())
	}
	for _, v := range d.Violations {
		out = append(out, "schema "+v.String())
	}
	return out
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
