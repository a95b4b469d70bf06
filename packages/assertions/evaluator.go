package assertions

import (
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/bodypath"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/tidwall/gjson"
)

// Assertion is one expectation on a response.
type Assertion struct {
	Subject   string
	Predicate Predicate
}

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
	// Err is set when the subject did not resolve.
	Err error
}

type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
	validDoc bool
}

func NewEvaluator(resp *http.Response) *Evaluator {
	e := &Evaluator{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.validDoc = true
	}
	return e
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Predicate.Op.String(),
		Expected: a.Predicate.Expected,
	}

	actual, err := e.Value(a.Subject)
	if err != nil {
		if a.Predicate.AllowsAbsence() {
			result.Passed = true
			return result
		}
		result.Err = err
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	result.Passed, result.Message = a.Predicate.Evaluate(actual)

	// For length operator, show the computed length as the actual value
	if a.Predicate.Op == OpLength {
		result.Actual = computeLength(actual)
	}
	return result
}

// Value resolves a subject against the response. A header that is not
// present or a body path that does not resolve is a *bodypath.ExtractionError.
func (e *Evaluator) Value(subject string) (any, error) {
	return e.resolve(subject, gjson.Result.Value)
}

// ExactValue is Value with body numbers kept as json.Number. Captures read
// through it so threaded ids keep their digits.
func (e *Evaluator) ExactValue(subject string) (any, error) {
	return e.resolve(subject, bodypath.Exact)
}

// BodyValue resolves a bodypath expression against the response body. The
// empty path on a body that is not JSON yields the raw body text.
func (e *Evaluator) BodyValue(expr string) (any, error) {
	return e.body(expr, gjson.Result.Value)
}

func (e *Evaluator) resolve(subject string, convert func(gjson.Result) any) (any, error) {
	subject = strings.TrimSpace(subject)
	switch {
	case subject == "status":
		return e.response.StatusCode, nil
	case subject == "duration":
		return e.response.DurationMs(), nil
	case strings.HasPrefix(subject, "header "):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header "))
		for k, v := range e.response.Headers {
			if strings.EqualFold(k, name) {
				return v, nil
			}
		}
		return nil, &bodypath.ExtractionError{Path: subject, Reason: bodypath.ReasonMissingField, Detail: "no header " + name}
	case subject == "body", strings.HasPrefix(subject, "body."), strings.HasPrefix(subject, "body["):
		path := strings.TrimPrefix(strings.TrimPrefix(subject, "body"), ".")
		return e.body(path, convert)
	default:
		return e.body(subject, convert)
	}
}

func (e *Evaluator) body(expr string, convert func(gjson.Result) any) (any, error) {
	p, err := bodypath.Parse(expr)
	if err != nil {
		return nil, err
	}
	if !e.validDoc {
		if p.IsRoot() {
			return e.response.BodyString(), nil
		}
		return nil, &bodypath.ExtractionError{Path: expr, Reason: bodypath.ReasonInvalidJSON, Detail: "body is not valid JSON"}
	}
	r, err := p.Resolve(e.bodyJSON)
	if err != nil {
		return nil, err
	}
	return convert(r), nil
}

func EvaluateAll(resp *http.Response, assertions []Assertion) []*Result {
	evaluator := NewEvaluator(resp)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = evaluator.Evaluate(a)
	}
	return results
}
