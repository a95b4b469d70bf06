package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Violation is one way a body fails its schema.
type Violation struct {
	Field       string
	Type        string
	Description string
	Value       any
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Description)
}

// ValidationError carries every violation found for one body.
type ValidationError struct {
	Ref        string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("schema %s: %d violation(s): %s", e.Ref, len(e.Violations), strings.Join(msgs, "; "))
}

type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate checks body against the schema named by ref and returns every
// violation, sorted so repeated calls on the same input are identical. The
// error is reserved for schemas that cannot be loaded.
func (v *Validator) Validate(body []byte, ref string) ([]Violation, error) {
	compiled, err := v.store.Schema(ref)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return []Violation{{Field: "(root)", Type: "invalid_json", Description: "body is not valid JSON"}}, nil
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return []Violation{{Field: "(root)", Type: "invalid_json", Description: err.Error()}}, nil
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, Violation{
			Field:       desc.Field(),
			Type:        desc.Type(),
			Description: desc.Description(),
			Value:       desc.Value(),
		})
	}
	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Description < b.Description
	})
	return violations, nil
}

// Check is Validate reported as an error: nil, a *ValidationError, or the
// store's error.
func (v *Validator) Check(body []byte, ref string) error {
	violations, err := v.Validate(body, ref)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &ValidationError{Ref: ref, Violations: violations}
	}
	return nil
}
