package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/contractkit/packages/capture"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
)

func mustCapture(t *testing.T, name, expr string) capture.Capture {
	t.Helper()
	c, err := capture.ParseCapture(name, expr)
	require.NoError(t, err)
	return c
}

func TestValidate_ForwardReference(t *testing.T) {
	wf := &Workflow{
		Name: "post lifecycle",
		Steps: []Step{
			{Name: "fetch", Method: "GET", Path: "/posts/{{postId}}"},
			{Name: "create", Method: "POST", Path: "/posts", Captures: []capture.Capture{mustCapture(t, "postId", "id")}},
		},
	}

	err := wf.Validate(nil)

	var fwd *ForwardReferenceError
	require.ErrorAs(t, err, &fwd)
	assert.Equal(t, "postId", fwd.Key)
	assert.Equal(t, "fetch", fwd.Step)
	assert.Equal(t, 0, fwd.Index)
	assert.Equal(t, "create", fwd.CapturedBy)
	assert.Contains(t, err.Error(), "only captured later by step create")
}

func TestValidate_NeverBound(t *testing.T) {
	wf := &Workflow{
		Name:  "comments",
		Steps: []Step{{Method: "GET", Path: "/comments", Body: `{"postId": {{postId}}}`}},
	}

	err := wf.Validate(nil)

	var fwd *ForwardReferenceError
	require.ErrorAs(t, err, &fwd)
	assert.Empty(t, fwd.CapturedBy)
	assert.Equal(t, "step-1", fwd.Step)
	assert.Contains(t, err.Error(), "never bound")
}

func TestValidate_EarlierCapturesAndKnownKeys(t *testing.T) {
	wf := &Workflow{
		Name: "chain",
		Base: spec.NewRequest(spec.WithHeader("Authorization", "Bearer {{token}}")),
		Steps: []Step{
			{Name: "create", Method: "POST", Path: "/users", Captures: []capture.Capture{mustCapture(t, "user", "body")}},
			{Name: "posts", Method: "GET", Path: "/users/{{user.id}}/posts?limit={{create.user.limit}}"},
			{Name: "ids", Method: "GET", Path: "/uuid/{{$uuid()}}/{{$HOME}}"},
		},
	}

	assert.NoError(t, wf.Validate([]string{"token"}))

	err := wf.Validate(nil)
	var fwd *ForwardReferenceError
	require.ErrorAs(t, err, &fwd)
	assert.Equal(t, "token", fwd.Key)
	assert.Equal(t, "create", fwd.Step)
}

func TestValidate_SameStepCaptureIsNotVisible(t *testing.T) {
	wf := &Workflow{
		Name: "self",
		Steps: []Step{{
			Name:     "loop",
			Method:   "GET",
			Path:     "/posts/{{id}}",
			Captures: []capture.Capture{mustCapture(t, "id", "id")},
		}},
	}

	var fwd *ForwardReferenceError
	require.ErrorAs(t, wf.Validate(nil), &fwd)
	assert.Equal(t, "loop", fwd.Step)
	assert.Empty(t, fwd.CapturedBy)
}

func TestValidate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		wf   *Workflow
	}{
		{"no steps", &Workflow{Name: "empty"}},
		{"no method", &Workflow{Name: "m", Steps: []Step{{Path: "/x"}}}},
		{"duplicate names", &Workflow{Name: "d", Steps: []Step{
			{Name: "a", Method: "GET", Path: "/"},
			{Name: "a", Method: "GET", Path: "/"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wf.Validate(nil)
			var fatal *config.FatalError
			assert.True(t, errors.As(err, &fatal), "got %v", err)
		})
	}
}

func TestStepName(t *testing.T) {
	wf := &Workflow{Steps: []Step{{Name: "login"}, {}}}
	assert.Equal(t, "login", wf.StepName(0))
	assert.Equal(t, "step-2", wf.StepName(1))
}

func TestExpectLast(t *testing.T) {
	wf := &Workflow{Steps: []Step{
		{Name: "a", Method: "GET"},
		{Name: "b", Method: "GET", Expect: spec.NewResponse(spec.ExpectStatus(200))},
	}}

	assert.Same(t, wf, wf.expectLast(spec.ResponseSpec{}))

	cp := wf.expectLast(spec.NewResponse(spec.ExpectStatus(404)))
	assert.NotSame(t, wf, cp)
	assert.Equal(t, []int{404}, cp.Steps[1].Expect.Statuses())
	assert.Equal(t, []int{200}, wf.Steps[1].Expect.Statuses())
	assert.True(t, cp.Steps[0].Expect.IsZero())
}
