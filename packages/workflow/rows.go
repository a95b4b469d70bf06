package workflow

import (
	"context"

	"github.com/abdul-hamid-achik/contractkit/packages/core/env"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
)

// RowFunc adapts wf for the data-driven executor. Each row runs the whole
// workflow with its values layered over vars and its expectations merged
// into the final step. Validation errors and the first failing step are
// returned as the row's error.
func (r *Runner) RowFunc(wf *Workflow, vars map[string]any) runner.RowFunc {
	return func(ctx context.Context, row runner.Row) error {
		result, err := r.Run(ctx, wf.expectLast(row.Expect), env.MergeVariables(vars, row.Values))
		if err != nil {
			return err
		}
		return result.Err()
	}
}

// expectLast returns a copy of w whose last step also expects e.
func (w *Workflow) expectLast(e spec.ResponseSpec) *Workflow {
	if e.IsZero() || len(w.Steps) == 0 {
		return w
	}
	cp := *w
	cp.Steps = append([]Step(nil), w.Steps...)
	last := &cp.Steps[len(cp.Steps)-1]
	last.Expect = spec.MergeResponse(last.Expect, e)
	return &cp
}
