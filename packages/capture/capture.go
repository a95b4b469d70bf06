package capture

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/bodypath"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
)

// ExtractionError reports a capture expression that did not resolve.
type ExtractionError = bodypath.ExtractionError

// Source says where in the response a capture reads from.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	}
	return "body"
}

// Capture names a value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// ParseCapture reads an expression such as "data.id", "body.data.id",
// "header Location", "status" or "duration".
func ParseCapture(name, expr string) (Capture, error) {
	if strings.TrimSpace(name) == "" {
		return Capture{}, fmt.Errorf("capture needs a name")
	}
	expr = strings.TrimSpace(expr)
	c := Capture{Name: name}
	switch {
	case expr == "status":
		c.Source = SourceStatus
	case expr == "duration":
		c.Source = SourceDuration
	case strings.HasPrefix(expr, "header "):
		c.Source = SourceHeader
		c.Path = strings.TrimSpace(strings.TrimPrefix(expr, "header "))
		if c.Path == "" {
			return Capture{}, fmt.Errorf("capture %s: header name is empty", name)
		}
	default:
		c.Source = SourceBody
		c.Path = expr
		if expr == "body" {
			c.Path = ""
		} else if strings.HasPrefix(expr, "body.") || strings.HasPrefix(expr, "body[") {
			c.Path = strings.TrimPrefix(strings.TrimPrefix(expr, "body"), ".")
		}
		if _, err := bodypath.Parse(c.Path); err != nil {
			return Capture{}, fmt.Errorf("capture %s: %w", name, err)
		}
	}
	return c, nil
}

func (c Capture) String() string {
	switch c.Source {
	case SourceHeader:
		return "header " + c.Path
	case SourceBody:
		if c.Path == "" {
			return "body"
		}
		return c.Path
	}
	return c.Source.String()
}

// Extractor reads captures with the same subject resolution assertions use.
type Extractor struct {
	evaluator *assertions.Evaluator
}

func NewExtractor(resp *http.Response) *Extractor {
	return &Extractor{evaluator: assertions.NewEvaluator(resp)}
}

// Extract reads one capture. A value that is not present is an
// *ExtractionError; a present JSON null is returned as nil. Body numbers
// come back as json.Number carrying the literal from the response.
func (e *Extractor) Extract(c Capture) (any, error) {
	switch c.Source {
	case SourceBody, SourceHeader, SourceStatus, SourceDuration:
		return e.evaluator.ExactValue(c.subject())
	default:
		return nil, fmt.Errorf("unknown capture source %d", c.Source)
	}
}

// subject spells c as an assertion subject. Body paths always get the body
// prefix so a field called "status" is not read as the status code.
func (c Capture) subject() string {
	switch c.Source {
	case SourceHeader:
		return "header " + c.Path
	case SourceBody:
		if c.Path == "" || strings.HasPrefix(c.Path, "[") {
			return "body" + c.Path
		}
		return "body." + c.Path
	}
	return c.Source.String()
}

// Extract reads a single expression from resp.
func Extract(resp *http.Response, expr string) (any, error) {
	c, err := ParseCapture("value", expr)
	if err != nil {
		return nil, err
	}
	return NewExtractor(resp).Extract(c)
}

// Binding is one extracted value.
type Binding struct {
	Key   string
	Value any
}

// ExtractAll evaluates every capture against resp. It returns either all
// bindings in capture order or the first error with no bindings at all.
func ExtractAll(resp *http.Response, captures []Capture) ([]Binding, error) {
	extractor := NewExtractor(resp)
	results := make([]Binding, 0, len(captures))

	for _, c := range captures {
		value, err := extractor.Extract(c)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", c.Name, err)
		}
		results = append(results, Binding{Key: c.Name, Value: value})
	}
	return results, nil
}
