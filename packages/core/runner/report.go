package runner

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// Row is one entry of a data table.
type Row struct {
	Name   string
	Values map[string]any
	// Expect is merged over the scenario's expectations for this row only.
	Expect spec.ResponseSpec
}

type RowState int

const (
	RowPending RowState = iota
	RowRunning
	RowPassed
	RowFailed
)

func (s RowState) String() string {
	switch s {
	case RowPending:
		return "pending"
	case RowRunning:
		return "running"
	case RowPassed:
		return "passed"
	case RowFailed:
		return "failed"
	}
	return fmt.Sprintf("RowState(%d)", int(s))
}

type ScenarioState int

const (
	ScenarioPending ScenarioState = iota
	ScenarioRunning
	ScenarioComplete
)

func (s ScenarioState) String() string {
	switch s {
	case ScenarioPending:
		return "pending"
	case ScenarioRunning:
		return "running"
	case ScenarioComplete:
		return "complete"
	}
	return fmt.Sprintf("ScenarioState(%d)", int(s))
}

type Verdict int

const (
	VerdictPassed Verdict = iota
	VerdictFailed
	VerdictNoRows
)

func (v Verdict) String() string {
	switch v {
	case VerdictPassed:
		return "passed"
	case VerdictFailed:
		return "failed"
	case VerdictNoRows:
		return "no rows"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Outcome is the result of one row.
type Outcome struct {
	// Index is the row's position in the scenario, counting filtered rows.
	Index    int
	Name     string
	State    RowState
	Err      error
	Duration time.Duration
	// Ran is false for rows that never started, such as rows cut off by
	// context cancellation or a failed setup hook.
	Ran      bool
	Panicked bool
}

func (o *Outcome) Passed() bool {
	return o.State == RowPassed
}

// Report is the result of one scenario execution.
type Report struct {
	Scenario string
	State    ScenarioState
	Outcomes []*Outcome
	Duration time.Duration
	Latency  stats.Summary
	// Filtered counts rows excluded by the executor's row filter.
	Filtered    int
	SetupErr    error
	TeardownErr error
}

func (r *Report) Verdict() Verdict {
	if r.SetupErr != nil || r.TeardownErr != nil {
		return VerdictFailed
	}
	if len(r.Outcomes) == 0 {
		return VerdictNoRows
	}
	for _, o := range r.Outcomes {
		if !o.Passed() {
			return VerdictFailed
		}
	}
	return VerdictPassed
}

// Passed is true for VerdictPassed and for the vacuous VerdictNoRows.
func (r *Report) Passed() bool {
	return r.Verdict() != VerdictFailed
}

func (r *Report) RowsExecuted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Ran {
			n++
		}
	}
	return n
}

// Counts returns the number of passed and failed rows.
func (r *Report) Counts() (passed, failed int) {
	for _, o := range r.Outcomes {
		if o.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

func (r *Report) Failures() []*Outcome {
	var out []*Outcome
	for _, o := range r.Outcomes {
		if !o.Passed() {
			out = append(out, o)
		}
	}
	return out
}
