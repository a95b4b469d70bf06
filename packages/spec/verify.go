package spec

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
)

// FailureKind says which expectation an AssertionFailure belongs to.
type FailureKind string

const (
	FailStatus      FailureKind = "status"
	FailLatency     FailureKind = "latency"
	FailContentType FailureKind = "content_type"
	FailHeader      FailureKind = "header"
	FailBody        FailureKind = "body"
)

// AssertionFailure is one violated expectation.
type AssertionFailure struct {
	Kind     FailureKind
	Subject  string
	Expected any
	Actual   any
	Message  string
	// Err is set when the subject did not resolve, for example a
	// *bodypath.ExtractionError for a missing field.
	Err error
}

func (f AssertionFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Subject, f.Message)
}

// AssertionError carries every failure found on a single response.
type AssertionError struct {
	Failures []AssertionFailure
}

func (e *AssertionError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	noun := "failures"
	if len(e.Failures) == 1 {
		noun = "failure"
	}
	return fmt.Sprintf("%d assertion %s: %s", len(e.Failures), noun, strings.Join(msgs, "; "))
}

// Verify evaluates every expectation in s against resp and returns all
// failures. A nil result means the response satisfies the spec.
func (s ResponseSpec) Verify(resp *http.Response) []AssertionFailure {
	var failures []AssertionFailure

	if len(s.statuses) > 0 && !slices.Contains(s.statuses, resp.StatusCode) {
		var expected any = s.statuses
		if len(s.statuses) == 1 {
			expected = s.statuses[0]
		}
		failures = append(failures, AssertionFailure{
			Kind: FailStatus, Subject: "status", Expected: expected, Actual: resp.StatusCode,
			Message: fmt.Sprintf("expected status %v, got %d", expected, resp.StatusCode),
		})
	}

	if limit, ok := s.MaxLatency(); ok && resp.Duration > limit {
		failures = append(failures, AssertionFailure{
			Kind: FailLatency, Subject: "duration", Expected: limit, Actual: resp.Duration,
			Message: fmt.Sprintf("expected response within %v, took %v", limit, resp.Duration),
		})
	}

	if want, ok := s.ContentType(); ok {
		got := resp.MediaType()
		if got != http.MediaType(want) {
			failures = append(failures, AssertionFailure{
				Kind: FailContentType, Subject: "content type", Expected: want, Actual: resp.ContentType(),
				Message: fmt.Sprintf("expected content type %s, got %q", http.MediaType(want), resp.ContentType()),
			})
		}
	}

	if len(s.headers) == 0 && len(s.body) == 0 {
		return failures
	}

	evaluator := assertions.NewEvaluator(resp)

	names := make([]string, 0, len(s.headers))
	for name := range s.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := evaluator.Evaluate(assertions.Assertion{Subject: "header " + name, Predicate: s.headers[name]})
		if !r.Passed {
			failures = append(failures, failureFrom(FailHeader, "header "+name, r))
		}
	}

	for _, a := range s.body {
		r := evaluator.Evaluate(assertions.Assertion{Subject: bodySubject(a.Path), Predicate: a.Predicate})
		if !r.Passed {
			failures = append(failures, failureFrom(FailBody, displayPath(a.Path), r))
		}
	}
	return failures
}

// Check is Verify reported as an error: nil, or an *AssertionError holding
// every failure.
func (s ResponseSpec) Check(resp *http.Response) error {
	if failures := s.Verify(resp); len(failures) > 0 {
		return &AssertionError{Failures: failures}
	}
	return nil
}

func failureFrom(kind FailureKind, subject string, r *assertions.Result) AssertionFailure {
	return AssertionFailure{
		Kind:     kind,
		Subject:  subject,
		Expected: r.Expected,
		Actual:   r.Actual,
		Message:  fmt.Sprintf("%s: %s", r.Operator, r.Message),
		Err:      r.Err,
	}
}

func bodySubject(path string) string {
	switch {
	case path == "" || path == "$":
		return "body"
	case strings.HasPrefix(path, "["):
		return "body" + path
	default:
		return "body." + strings.TrimPrefix(path, "$.")
	}
}

func displayPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
