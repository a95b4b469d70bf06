package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/capture"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/env"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/schema"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// Transport performs one HTTP exchange. *http.Client implements it.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

// StepHook observes each finished step.
type StepHook func(wf *Workflow, result *StepResult)

type Runner struct {
	transport Transport
	validator *schema.Validator
	resolver  *env.Resolver
	hook      StepHook
	baseDir   string
	stats     *stats.Collector
}

type Option func(*Runner)

// WithSchemaValidator enables the Schema field of steps.
func WithSchemaValidator(v *schema.Validator) Option {
	return func(r *Runner) { r.validator = v }
}

// WithResolver supplies variables and functions. Each run works on a clone
// with a fresh capture context.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) { r.resolver = res }
}

func WithStepHook(h StepHook) Option {
	return func(r *Runner) { r.hook = h }
}

// WithStepStats records every executed step's latency under its name.
func WithStepStats(c *stats.Collector) Option {
	return func(r *Runner) { r.stats = c }
}

// WithBaseDir sets the directory multipart file paths are relative to.
func WithBaseDir(dir string) Option {
	return func(r *Runner) { r.baseDir = dir }
}

func NewRunner(t Transport, opts ...Option) *Runner {
	r := &Runner{transport: t, resolver: env.NewResolver()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StepResult is the outcome of one step. A step that did not run because an
// earlier step failed is marked Skipped.
type StepResult struct {
	Name       string
	Request    *http.Request
	Response   *http.Response
	Failures   []spec.AssertionFailure
	Violations []schema.Violation
	Bindings   []capture.Binding
	Err        error
	Skipped    bool
	Duration   time.Duration
}

func (s *StepResult) Passed() bool {
	return !s.Skipped && s.Err == nil && len(s.Failures) == 0 && len(s.Violations) == 0
}

// Result is the outcome of one workflow run.
type Result struct {
	Workflow string
	Steps    []*StepResult
	Captured map[string]any
	Duration time.Duration
}

func (r *Result) Passed() bool {
	for _, s := range r.Steps {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// FailedStep returns the step that stopped the workflow, or nil.
func (r *Result) FailedStep() *StepResult {
	for _, s := range r.Steps {
		if !s.Skipped && !s.Passed() {
			return s
		}
	}
	return nil
}

// Err returns nil for a passing run and a *StepFailure otherwise.
func (r *Result) Err() error {
	s := r.FailedStep()
	if s == nil {
		return nil
	}
	return &StepFailure{
		Workflow:   r.Workflow,
		Step:       s.Name,
		Failures:   s.Failures,
		Violations: s.Violations,
		Err:        s.Err,
		Curl:       curlOf(s.Request),
	}
}

func curlOf(req *http.Request) string {
	if req == nil {
		return ""
	}
	return req.Curl()
}

// StepFailure describes why a workflow stopped. It unwraps to the step's
// error, *spec.AssertionError and *schema.ValidationError as applicable.
type StepFailure struct {
	Workflow   string
	Step       string
	Failures   []spec.AssertionFailure
	Violations []schema.Violation
	Err        error
	// Curl reproduces the failing request.
	Curl string
}

func (e *StepFailure) Error() string {
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	for _, err := range e.Unwrap() {
		if err != e.Err {
			parts = append(parts, err.Error())
		}
	}
	return fmt.Sprintf("%s: step %s failed: %s", e.Workflow, e.Step, strings.Join(parts, "; "))
}

func (e *StepFailure) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if len(e.Failures) > 0 {
		errs = append(errs, &spec.AssertionError{Failures: e.Failures})
	}
	if len(e.Violations) > 0 {
		errs = append(errs, &schema.ValidationError{Violations: e.Violations})
	}
	return errs
}

// Run validates wf against vars and then executes its steps in order,
// stopping at the first step that fails. The returned error is reserved for
// problems found before any request is sent; step failures are reported in
// the Result.
func (r *Runner) Run(ctx context.Context, wf *Workflow, vars map[string]any) (*Result, error) {
	res := r.resolver.Clone()
	res.SetVariables(vars)

	if err := wf.Validate(res.VariableNames()); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{Workflow: wf.Name}
	failed := false
	for i := range wf.Steps {
		name := wf.StepName(i)
		if failed {
			result.Steps = append(result.Steps, &StepResult{Name: name, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Steps = append(result.Steps, &StepResult{Name: name, Err: err})
			failed = true
			continue
		}

		sr := r.runStep(ctx, wf, i, res)
		result.Steps = append(result.Steps, sr)
		if r.stats != nil {
			r.stats.Record(name, sr.Duration, !sr.Passed())
		}
		if r.hook != nil {
			r.hook(wf, sr)
		}
		failed = !sr.Passed()
	}
	result.Captured = res.Context().Snapshot()
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, wf *Workflow, i int, res *env.Resolver) *StepResult {
	step := wf.Steps[i]
	sr := &StepResult{Name: wf.StepName(i)}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	req, err := r.buildRequest(wf, step, res)
	if err != nil {
		sr.Err = err
		return sr
	}
	sr.Request = req

	resp, err := r.transport.Send(ctx, req)
	if err != nil {
		sr.Err = err
		return sr
	}
	sr.Response = resp

	sr.Failures = spec.MergeResponse(wf.Expect, step.Expect).Verify(resp)

	if step.Schema != "" {
		if r.validator == nil {
			sr.Err = config.Fatalf("workflow", "step %s needs schema %s but no schema store is configured", sr.Name, step.Schema)
			return sr
		}
		violations, err := r.validator.Validate(resp.Body, step.Schema)
		if err != nil {
			sr.Err = err
			return sr
		}
		sr.Violations = violations
	}

	if len(sr.Failures) > 0 || len(sr.Violations) > 0 {
		return sr
	}

	bindings, err := capture.ExtractAll(resp, step.Captures)
	if err != nil {
		sr.Err = err
		return sr
	}
	for _, b := range bindings {
		res.SetCapture(sr.Name, b.Key, b.Value)
	}
	sr.Bindings = bindings
	return sr
}

func (r *Runner) buildRequest(wf *Workflow, step Step, res *env.Resolver) (*http.Request, error) {
	merged, err := spec.Merge(wf.Base, step.Request).MapStrings(res.Resolve)
	if err != nil {
		return nil, err
	}
	path, err := res.Resolve(step.Path)
	if err != nil {
		return nil, err
	}
	body, err := res.Resolve(step.Body)
	if err != nil {
		return nil, err
	}

	req, err := merged.Build(step.Method, path, body)
	if err != nil {
		return nil, err
	}

	for _, f := range step.Multipart {
		field := *f
		if field.Value, err = res.Resolve(f.Value); err != nil {
			return nil, err
		}
		if field.Path, err = res.Resolve(f.Path); err != nil {
			return nil, err
		}
		req.Multipart = append(req.Multipart, &field)
	}
	if len(req.Multipart) > 0 {
		req.BaseDir = r.baseDir
	}
	return req, nil
}

// IsAbort reports whether err stops a workflow without being an assertion
// or schema failure: a transport, extraction, unbound-variable or fatal
// configuration error.
func IsAbort(err error) bool {
	var (
		transport *http.TransportError
		extract   *capture.ExtractionError
		unbound   *capture.UnboundVariableError
		fatal     *config.FatalError
	)
	return errors.As(err, &transport) || errors.As(err, &extract) ||
		errors.As(err, &unbound) || errors.As(err, &fatal)
}
