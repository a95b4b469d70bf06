package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary   JSONSummary    `json:"summary"`
	Scenarios []JSONScenario `json:"scenarios"`
	Duration  float64        `json:"duration"`
	Time      string         `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Scenarios int `json:"scenarios"`
	Rows      int `json:"rows"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Filtered  int `json:"filtered"`
	NoRows    int `json:"noRows"`
}

// JSONScenario represents one scenario report
type JSONScenario struct {
	Suite        string      `json:"suite"`
	Name         string      `json:"name"`
	Verdict      string      `json:"verdict"`
	RowsExecuted int         `json:"rowsExecuted"`
	Filtered     int         `json:"filtered,omitempty"`
	Duration     float64     `json:"duration"`
	Latency      JSONLatency `json:"latency"`
	SetupError   string      `json:"setupError,omitempty"`
	TeardownErr  string      `json:"teardownError,omitempty"`
	Rows         []JSONRow   `json:"rows"`
}

// JSONLatency is in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// JSONRow represents a single row result
type JSONRow struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	State      string          `json:"state"`
	Ran        bool            `json:"ran"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Step       string          `json:"step,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Violations []JSONViolation `json:"violations,omitempty"`
	Curl       string          `json:"curl,omitempty"`
}

// JSONAssertion represents a failed assertion
type JSONAssertion struct {
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// JSONViolation represents a schema violation
type JSONViolation struct {
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// JSONFormatter formats reports as JSON
type JSONFormatter struct {
	writer    io.Writer
	scenarios []JSONScenario
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:    os.Stdout,
		scenarios: make([]JSONScenario, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (f *JSONFormatter) FormatReport(suite string, report *runner.Report) {
	l := report.Latency
	sc := JSONScenario{
		Suite:        suite,
		Name:         report.Scenario,
		Verdict:      report.Verdict().String(),
		RowsExecuted: report.RowsExecuted(),
		Filtered:     report.Filtered,
		Duration:     ms(report.Duration),
		Latency: JSONLatency{
			Min: ms(l.Min), Mean: ms(l.Mean), P50: ms(l.P50), P95: ms(l.P95), P99: ms(l.P99), Max: ms(l.Max),
		},
		Rows: make([]JSONRow, 0, len(report.Outcomes)),
	}
	if report.SetupErr != nil {
		sc.SetupError = report.SetupErr.Error()
	}
	if report.TeardownErr != nil {
		sc.TeardownErr = report.TeardownErr.Error()
	}

	for _, o := range report.Outcomes {
		row := JSONRow{
			Index:    o.Index,
			Name:     o.Name,
			State:    o.State.String(),
			Ran:      o.Ran,
			Duration: ms(o.Duration),
		}
		if o.Err != nil {
			d := describe(o.Err)
			row.Error = d.Message
			row.Step = d.Step
			row.Curl = d.Curl
			for _, a := range d.Failures {
				row.Assertions = append(row.Assertions, JSONAssertion{
					Kind:     string(a.Kind),
					Subject:  a.Subject,
					Expected: jsonSafe(a.Expected),
					Actual:   jsonSafe(a.Actual),
					Message:  a.Message,
				})
			}
			for _, v := range d.Violations {
				row.Violations = append(row.Violations, JSONViolation{Field: v.Field, Type: v.Type, Description: v.Description})
			}
		}
		sc.Rows = append(sc.Rows, row)
	}

	f.scenarios = append(f.scenarios, sc)
}

// jsonSafe keeps values encoding/json can render and stringifies the rest.
func jsonSafe(v any) any {
	switch val := v.(type) {
	case time.Duration:
		return val.String()
	case error:
		return val.Error()
	}
	if _, err := json.Marshal(v); err != nil {
		return formatValue(v, 200)
	}
	return v
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual rows
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	summary.Scenarios = len(f.scenarios)
	for _, sc := range f.scenarios {
		summary.Filtered += sc.Filtered
		if sc.Verdict == runner.VerdictNoRows.String() {
			summary.NoRows++
		}
		for _, r := range sc.Rows {
			summary.Rows++
			if r.State == runner.RowPassed.String() {
				summary.Passed++
			} else {
				summary.Failed++
			}
		}
	}

	output := JSONOutput{
		Summary:   summary,
		Scenarios: f.scenarios,
		Duration:  ms(totalDuration),
		Time:      time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
