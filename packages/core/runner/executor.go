package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

const (
	// DefaultConcurrency is the default number of concurrent rows in parallel mode
	DefaultConcurrency = 5
)

// RowFunc runs one row. A nil error passes the row.
type RowFunc func(ctx context.Context, row Row) error

// Scenario is a named data table and the function applied to each row.
type Scenario struct {
	Name string
	Rows []Row
	Run  RowFunc
	// WaitFor, Setup and Teardown run once around the rows.
	WaitFor  *WaitFor
	Setup    []Hook
	Teardown []Hook
	Dir      string
}

// Logger receives diagnostic messages.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Listener observes rows as they run. In parallel mode its methods are
// called from several goroutines.
type Listener interface {
	RowStarted(scenario string, o *Outcome)
	RowFinished(scenario string, o *Outcome)
}

type Executor struct {
	parallel    bool
	concurrency int
	rowsPerSec  float64
	filter      string
	listener    Listener
	logger      Logger
}

type Option func(*Executor)

func WithParallel(parallel bool) Option {
	return func(e *Executor) { e.parallel = parallel }
}

func WithConcurrency(n int) Option {
	return func(e *Executor) { e.concurrency = n }
}

// WithRate limits row starts per second. Zero or less disables pacing.
func WithRate(rowsPerSecond float64) Option {
	return func(e *Executor) { e.rowsPerSec = rowsPerSecond }
}

// WithRowFilter runs only rows whose name matches pattern. A leading or
// trailing * matches any suffix or prefix.
func WithRowFilter(pattern string) Option {
	return func(e *Executor) { e.filter = pattern }
}

func WithListener(l Listener) Option {
	return func(e *Executor) { e.listener = l }
}

func WithLogger(l Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		concurrency: DefaultConcurrency,
		logger:      nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}
	return e
}

// Execute runs every row of sc and returns a complete report. It never
// returns early: rows that cannot start because ctx is done are reported as
// failed with the context error.
func (e *Executor) Execute(ctx context.Context, sc Scenario) *Report {
	start := time.Now()
	report := &Report{Scenario: sc.Name, State: ScenarioRunning}

	var rows []Row
	report.Outcomes = make([]*Outcome, 0, len(sc.Rows))
	for i, row := range sc.Rows {
		row.Name = rowName(row, i)
		if !matchesPattern(row.Name, e.filter) {
			report.Filtered++
			continue
		}
		rows = append(rows, row)
		report.Outcomes = append(report.Outcomes, &Outcome{Index: i, Name: row.Name})
	}

	report.SetupErr = e.prepare(ctx, sc)
	if report.SetupErr != nil {
		for _, o := range report.Outcomes {
			o.State = RowFailed
			o.Err = fmt.Errorf("setup failed: %w", report.SetupErr)
		}
	} else if len(rows) > 0 {
		var limiter *rate.Limiter
		if e.rowsPerSec > 0 {
			limiter = rate.NewLimiter(rate.Limit(e.rowsPerSec), 1)
		}
		if e.parallel {
			e.runParallel(ctx, sc, rows, report.Outcomes, limiter)
		} else {
			e.runSequential(ctx, sc, rows, report.Outcomes, limiter)
		}
	}

	if len(sc.Teardown) > 0 {
		report.TeardownErr = RunHooks(context.WithoutCancel(ctx), sc.Teardown, sc.Dir, e.logger)
	}

	latency := stats.NewRecorder()
	for _, o := range report.Outcomes {
		if o.Ran {
			latency.Record(o.Duration, !o.Passed())
		}
	}
	report.Latency = latency.Summary()
	report.Duration = time.Since(start)
	report.State = ScenarioComplete
	return report
}

func (e *Executor) prepare(ctx context.Context, sc Scenario) error {
	if sc.WaitFor != nil {
		if err := sc.WaitFor.Wait(ctx, e.logger); err != nil {
			return err
		}
	}
	return RunHooks(ctx, sc.Setup, sc.Dir, e.logger)
}

func (e *Executor) runSequential(ctx context.Context, sc Scenario, rows []Row, outcomes []*Outcome, limiter *rate.Limiter) {
	for i, row := range rows {
		if err := e.admit(ctx, limiter); err != nil {
			e.cancelled(sc.Name, outcomes[i], err)
			continue
		}
		e.runRow(ctx, sc, row, outcomes[i])
	}
}

func (e *Executor) runParallel(ctx context.Context, sc Scenario, rows []Row, outcomes []*Outcome, limiter *rate.Limiter) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.concurrency)

	for i, row := range rows {
		if err := e.admit(ctx, limiter); err != nil {
			e.cancelled(sc.Name, outcomes[i], err)
			continue
		}
		select {
		case sem <- struct{}{}: // acquire semaphore
		case <-ctx.Done():
			e.cancelled(sc.Name, outcomes[i], ctx.Err())
			continue
		}

		wg.Add(1)
		go func(r Row, o *Outcome) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			e.runRow(ctx, sc, r, o)
		}(row, outcomes[i])
	}

	wg.Wait()
}

func (e *Executor) admit(ctx context.Context, limiter *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}

func (e *Executor) cancelled(scenario string, o *Outcome, err error) {
	o.State = RowFailed
	o.Err = err
	if e.listener != nil {
		e.listener.RowFinished(scenario, o)
	}
}

func (e *Executor) runRow(ctx context.Context, sc Scenario, row Row, o *Outcome) {
	o.State = RowRunning
	o.Ran = true
	if e.listener != nil {
		e.listener.RowStarted(sc.Name, o)
	}

	start := time.Now()
	err := e.call(ctx, sc.Run, row, o)
	o.Duration = time.Since(start)

	if err != nil {
		o.State = RowFailed
		o.Err = err
		e.logger.Printf("%s: row %s failed: %v", sc.Name, o.Name, err)
	} else {
		o.State = RowPassed
	}
	if e.listener != nil {
		e.listener.RowFinished(sc.Name, o)
	}
}

func (e *Executor) call(ctx context.Context, fn RowFunc, row Row, o *Outcome) (err error) {
	if fn == nil {
		return fmt.Errorf("scenario has no row function")
	}
	defer func() {
		if p := recover(); p != nil {
			o.Panicked = true
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, row)
}

// PanicError is the failure recorded for a row whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("row panicked: %v", e.Value)
}

func rowName(row Row, i int) string {
	if row.Name != "" {
		return row.Name
	}
	return fmt.Sprintf("row-%d", i+1)
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}
	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}
	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}
