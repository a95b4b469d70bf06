package suite

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/workflow"
)

// Unit is one scenario of a suite with the workflow its rows run.
type Unit struct {
	Name     string
	Workflow *workflow.Workflow
	Rows     []runner.Row
	Setup    []runner.Hook
	Teardown []runner.Hook
}

// Units builds every scenario of the suite, followed by one single-row unit
// for each workflow that no scenario references.
func (s *Suite) Units() ([]Unit, error) {
	used := make(map[string]bool)
	var units []Unit
	for _, doc := range s.Scenarios {
		u, err := s.unit(doc)
		if err != nil {
			return nil, err
		}
		if doc.Workflow != "" {
			used[doc.Workflow] = true
		}
		units = append(units, u)
	}

	for _, doc := range s.Workflows {
		if used[doc.Name] {
			continue
		}
		wf, err := s.Workflow(doc.Name)
		if err != nil {
			return nil, err
		}
		units = append(units, Unit{Name: doc.Name, Workflow: wf, Rows: []runner.Row{{Name: doc.Name}}})
	}
	return units, nil
}

func (s *Suite) unit(doc ScenarioDoc) (Unit, error) {
	if doc.Name == "" {
		return Unit{}, config.Fatalf("suite", "scenario without a name")
	}

	var wf *workflow.Workflow
	var err error
	switch {
	case doc.Workflow != "" && len(doc.Steps) > 0:
		return Unit{}, config.Fatalf("suite", "scenario %s sets both workflow and steps", doc.Name)
	case doc.Workflow != "":
		wf, err = s.Workflow(doc.Workflow)
		if err != nil {
			return Unit{}, fmt.Errorf("scenario %s: %w", doc.Name, err)
		}
		if err := s.overlay(wf, doc); err != nil {
			return Unit{}, err
		}
	case len(doc.Steps) > 0:
		wf, err = s.buildWorkflow(doc.Name, doc.Request, doc.Expect, doc.Steps)
		if err != nil {
			return Unit{}, fmt.Errorf("scenario %s: %w", doc.Name, err)
		}
	default:
		return Unit{}, config.Fatalf("suite", "scenario %s needs a workflow or steps", doc.Name)
	}

	rows, err := s.Rows(doc)
	if err != nil {
		return Unit{}, err
	}
	return Unit{
		Name:     doc.Name,
		Workflow: wf,
		Rows:     rows,
		Setup:    hooks(doc.Setup),
		Teardown: hooks(doc.Teardown),
	}, nil
}

// overlay applies a scenario's own request and response specs over the
// workflow it references.
func (s *Suite) overlay(wf *workflow.Workflow, doc ScenarioDoc) error {
	if !doc.Request.IsZero() {
		req, err := s.request(doc.Request)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", doc.Name, err)
		}
		wf.Base = spec.Merge(wf.Base, req)
	}
	if !doc.Expect.IsZero() {
		exp, err := s.response(doc.Expect)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", doc.Name, err)
		}
		wf.Expect = spec.MergeResponse(wf.Expect, exp)
	}
	return nil
}

func hooks(commands []string) []runner.Hook {
	var out []runner.Hook
	for _, c := range commands {
		out = append(out, runner.Hook{Command: c})
	}
	return out
}

// Plan turns the suite into executor scenarios whose rows run through
// r with vars as the base variables.
func (s *Suite) Plan(r *workflow.Runner, vars map[string]any) ([]runner.Scenario, error) {
	units, err := s.Units()
	if err != nil {
		return nil, err
	}
	waitFor, err := s.waitFor()
	if err != nil {
		return nil, err
	}

	scenarios := make([]runner.Scenario, 0, len(units))
	for _, u := range units {
		scenarios = append(scenarios, runner.Scenario{
			Name:     u.Name,
			Rows:     u.Rows,
			Run:      r.RowFunc(u.Workflow, vars),
			WaitFor:  waitFor,
			Setup:    u.Setup,
			Teardown: u.Teardown,
			Dir:      s.Dir,
		})
	}
	return scenarios, nil
}

func (s *Suite) waitFor() (*runner.WaitFor, error) {
	if s.WaitFor == nil {
		return nil, nil
	}
	if s.WaitFor.URL == "" {
		return nil, config.Fatalf("suite", "waitFor needs a url")
	}
	w := &runner.WaitFor{URL: s.WaitFor.URL, Status: s.WaitFor.Status}
	var err error
	if s.WaitFor.Timeout != "" {
		if w.Timeout, err = parseDuration("waitFor.timeout", s.WaitFor.Timeout); err != nil {
			return nil, err
		}
	}
	if s.WaitFor.Interval != "" {
		if w.Interval, err = parseDuration("waitFor.interval", s.WaitFor.Interval); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Check builds the whole suite and validates every workflow against known
// plus the values of each row it runs with. All problems are returned
// together.
func (s *Suite) Check(known []string) error {
	units, err := s.Units()
	if err != nil {
		return err
	}
	if _, err := s.waitFor(); err != nil {
		return err
	}

	var errs []error
	for _, u := range units {
		checked := make(map[string]bool)
		for _, row := range u.Rows {
			keys := append(append([]string(nil), known...), rowKeys(row)...)
			sig := strings.Join(rowKeys(row), "\x00")
			if checked[sig] {
				continue
			}
			checked[sig] = true
			if err := u.Workflow.Validate(keys); err != nil {
				errs = append(errs, fmt.Errorf("scenario %s: %w", u.Name, err))
			}
		}
		if len(u.Rows) == 0 {
			if err := u.Workflow.Validate(known); err != nil {
				errs = append(errs, fmt.Errorf("scenario %s: %w", u.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func rowKeys(row runner.Row) []string {
	keys := make([]string, 0, len(row.Values))
	for k := range row.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
