package workflow

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/capture"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/env"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
)

// Step is one request in a workflow.
type Step struct {
	Name   string
	Method string
	// Path is relative to the base URL or absolute, and may hold {param}
	// placeholders and {{template}} references.
	Path      string
	Body      string
	Request   spec.RequestSpec
	Expect    spec.ResponseSpec
	Schema    string
	Captures  []capture.Capture
	Multipart []*http.MultipartField
}

// Workflow is a named sequence of steps. Base and Expect apply to every
// step and are overridden by each step's own specs.
type Workflow struct {
	Name   string
	Base   spec.RequestSpec
	Expect spec.ResponseSpec
	Steps  []Step
}

// ForwardReferenceError reports a step that reads a key no strictly earlier
// step binds.
type ForwardReferenceError struct {
	Workflow string
	Step     string
	Index    int
	Key      string
	// CapturedBy names the later step that captures Key, if any.
	CapturedBy string
}

func (e *ForwardReferenceError) Error() string {
	if e.CapturedBy != "" {
		return fmt.Sprintf("workflow %s: step %d (%s) references {{%s}}, which is only captured later by step %s",
			e.Workflow, e.Index+1, e.Step, e.Key, e.CapturedBy)
	}
	return fmt.Sprintf("workflow %s: step %d (%s) references {{%s}}, which is never bound",
		e.Workflow, e.Index+1, e.Step, e.Key)
}

// StepName returns the step's name or a positional fallback.
func (w *Workflow) StepName(i int) string {
	if name := w.Steps[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("step-%d", i+1)
}

// Validate checks the workflow before anything is sent. known lists keys
// bound before the first step, such as row values and variables. It returns
// a *config.FatalError for malformed steps and a *ForwardReferenceError for
// the first reference to a key not yet bound.
func (w *Workflow) Validate(known []string) error {
	if len(w.Steps) == 0 {
		return config.Fatalf("workflow", "workflow %s has no steps", w.Name)
	}

	bound := make(map[string]bool, len(known))
	for _, k := range known {
		bound[k] = true
	}
	names := make(map[string]bool, len(w.Steps))

	for i, step := range w.Steps {
		name := w.StepName(i)
		if names[name] {
			return config.Fatalf("workflow", "workflow %s: duplicate step name %q", w.Name, name)
		}
		names[name] = true
		if strings.TrimSpace(step.Method) == "" {
			return config.Fatalf("workflow", "workflow %s: step %s has no method", w.Name, name)
		}

		for _, ref := range w.references(step) {
			if isBound(bound, ref) {
				continue
			}
			return &ForwardReferenceError{
				Workflow:   w.Name,
				Step:       name,
				Index:      i,
				Key:        ref,
				CapturedBy: w.capturedLater(i, ref),
			}
		}

		for _, c := range step.Captures {
			bound[c.Name] = true
			bound[name+"."+c.Name] = true
		}
	}
	return nil
}

func (w *Workflow) references(step Step) []string {
	sources := []string{step.Path, step.Body}
	sources = append(sources, spec.Merge(w.Base, step.Request).Strings()...)
	for _, f := range step.Multipart {
		sources = append(sources, f.Value, f.Path)
	}
	var refs []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, ref := range env.References(src) {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

func (w *Workflow) capturedLater(after int, ref string) string {
	for j := after + 1; j < len(w.Steps); j++ {
		name := w.StepName(j)
		later := map[string]bool{}
		for _, c := range w.Steps[j].Captures {
			later[c.Name] = true
			later[name+"."+c.Name] = true
		}
		if isBound(later, ref) {
			return name
		}
	}
	return ""
}

// isBound accepts a key or a path into a bound key such as user.address.city.
func isBound(bound map[string]bool, ref string) bool {
	if bound[ref] {
		return true
	}
	for i := 0; i < len(ref); i++ {
		if (ref[i] == '.' || ref[i] == '[') && bound[ref[:i]] {
			return true
		}
	}
	return false
}
