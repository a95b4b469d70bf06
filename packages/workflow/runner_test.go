package workflow

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/bodypath"
	"github.com/abdul-hamid-achik/contractkit/packages/capture"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/schema"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// postsAPI creates posts with id 101 and serves them back.
func postsAPI(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == nethttp.MethodPost && r.URL.Path == "/posts":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			in["id"] = 101
			w.Header().Set("Location", "/posts/101")
			w.WriteHeader(nethttp.StatusCreated)
			_ = json.NewEncoder(w).Encode(in)
		case r.Method == nethttp.MethodGet && r.URL.Path == "/posts/101":
			_, _ = w.Write([]byte(`{"id": 101, "title": "foo", "userId": 1}`))
		case r.URL.Path == "/broken":
			_, _ = w.Write([]byte(`{"data": []}`))
		default:
			w.WriteHeader(nethttp.StatusNotFound)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func postLifecycle(t *testing.T, baseURL string) *Workflow {
	return &Workflow{
		Name: "post lifecycle",
		Base: spec.NewRequest(spec.WithBaseURL(baseURL), spec.WithContentType("application/json")),
		Steps: []Step{
			{
				Name:     "create",
				Method:   "POST",
				Path:     "/posts",
				Body:     `{"title": "{{title}}", "userId": 1}`,
				Expect:   spec.CreatedResponse().With(spec.ExpectBody("userId", assertions.Equals(1))),
				Captures: []capture.Capture{mustCapture(t, "postId", "id"), mustCapture(t, "location", "header Location")},
			},
			{
				Name:   "fetch",
				Method: "GET",
				Path:   "/posts/{{postId}}",
				Expect: spec.SuccessResponse().With(spec.ExpectBody("id", assertions.Equals(101))),
			},
		},
	}
}

func TestRun_ChainsCaptures(t *testing.T) {
	server := postsAPI(t, nil)
	collector := stats.NewCollector()
	r := NewRunner(http.NewClient(), WithStepStats(collector))

	wf := postLifecycle(t, server.URL)
	result, err := r.Run(context.Background(), wf, map[string]any{"title": "foo"})
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.True(t, result.Passed(), "%v", result.Err())
	assert.NoError(t, result.Err())
	assert.Equal(t, server.URL+"/posts/101", result.Steps[1].Request.URL)
	assert.Equal(t, json.Number("101"), result.Captured["postId"])
	assert.Equal(t, json.Number("101"), result.Captured["create.postId"])
	assert.Equal(t, "/posts/101", result.Captured["location"])
	assert.Equal(t, []capture.Binding{{Key: "postId", Value: json.Number("101")}, {Key: "location", Value: "/posts/101"}}, result.Steps[0].Bindings)

	_, names := collector.Named()
	assert.Equal(t, []string{"create", "fetch"}, names)
}

func TestRun_ChainsNumericIdsVerbatim(t *testing.T) {
	var seen string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/users" {
			_, _ = w.Write([]byte(`{"data": {"id": 1000000, "big": 9007199254740993}}`))
			return
		}
		seen = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	wf := &Workflow{
		Name: "users",
		Base: spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{
			{
				Name:     "list",
				Method:   "GET",
				Path:     "/users",
				Captures: []capture.Capture{mustCapture(t, "id", "data.id"), mustCapture(t, "big", "data.big")},
			},
			{Name: "fetch", Method: "GET", Path: "/users/{{id}}/{{big}}"},
		},
	}

	result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, nil)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Equal(t, "/users/1000000/9007199254740993", seen)
}

func TestRun_RunsAreIsolated(t *testing.T) {
	server := postsAPI(t, nil)
	r := NewRunner(http.NewClient())
	wf := postLifecycle(t, server.URL)

	first, err := r.Run(context.Background(), wf, map[string]any{"title": "a"})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), wf, map[string]any{"title": "b"})
	require.NoError(t, err)

	assert.True(t, first.Passed())
	assert.True(t, second.Passed())
	assert.Len(t, second.Captured, 4)
}

func TestRun_ForwardReferenceSendsNothing(t *testing.T) {
	var hits int32
	server := postsAPI(t, &hits)
	wf := postLifecycle(t, server.URL)
	wf.Steps[0], wf.Steps[1] = wf.Steps[1], wf.Steps[0]

	result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, map[string]any{"title": "x"})

	assert.Nil(t, result)
	var fwd *ForwardReferenceError
	require.ErrorAs(t, err, &fwd)
	assert.Equal(t, "postId", fwd.Key)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestRun_StopsAtFirstFailingStep(t *testing.T) {
	var hits int32
	server := postsAPI(t, &hits)
	wf := &Workflow{
		Name: "stop",
		Base: spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{
			{Name: "missing", Method: "GET", Path: "/posts/999", Expect: spec.NewResponse(
				spec.ExpectStatus(200),
				spec.ExpectContentType("text/plain"),
				spec.ExpectBody("id", assertions.Exists()),
			)},
			{Name: "never", Method: "GET", Path: "/posts/101"},
		},
	}

	result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.False(t, result.Passed())
	failed := result.FailedStep()
	require.NotNil(t, failed)
	assert.Equal(t, "missing", failed.Name)
	assert.Len(t, failed.Failures, 3)
	assert.True(t, result.Steps[1].Skipped)
	assert.Nil(t, result.Steps[1].Request)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	err = result.Err()
	var sf *StepFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "missing", sf.Step)
	assert.True(t, strings.HasPrefix(sf.Curl, "curl "))
	var ae *spec.AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Failures, 3)
	assert.False(t, IsAbort(err))
}

func TestRun_ExtractionFailureBindsNothing(t *testing.T) {
	server := postsAPI(t, nil)
	wf := &Workflow{
		Name: "extract",
		Base: spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{
			{Name: "list", Method: "GET", Path: "/broken", Captures: []capture.Capture{
				mustCapture(t, "data", "data"),
				mustCapture(t, "first", "data[5]"),
			}},
			{Name: "next", Method: "GET", Path: "/posts/{{first}}"},
		},
	}

	result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	list := result.Steps[0]
	assert.Empty(t, list.Bindings)
	assert.Empty(t, result.Captured)
	var ee *bodypath.ExtractionError
	require.ErrorAs(t, list.Err, &ee)
	assert.Equal(t, bodypath.ReasonIndexOutOfRange, ee.Reason)
	assert.True(t, result.Steps[1].Skipped)
	assert.True(t, IsAbort(result.Err()))
}

func TestRun_TransportError(t *testing.T) {
	server := postsAPI(t, nil)
	url := server.URL
	server.Close()

	wf := &Workflow{Name: "down", Steps: []Step{{Method: "GET", Path: url + "/posts"}}}
	result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	var te *http.TransportError
	require.ErrorAs(t, result.Err(), &te)
	assert.True(t, IsAbort(result.Err()))
}

func TestRun_Schema(t *testing.T) {
	server := postsAPI(t, nil)
	store := schema.NewFSStore(fstest.MapFS{
		"post.json": {Data: []byte(`{
			"type": "object",
			"required": ["id", "title", "body"],
			"properties": {"id": {"type": "string"}, "title": {"type": "string"}}
		}`)},
	})
	wf := &Workflow{
		Name:  "schema",
		Base:  spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{{Name: "fetch", Method: "GET", Path: "/posts/101", Schema: "post"}},
	}

	t.Run("violations are reported", func(t *testing.T) {
		result, err := NewRunner(http.NewClient(), WithSchemaValidator(schema.NewValidator(store))).
			Run(context.Background(), wf, nil)
		require.NoError(t, err)

		step := result.Steps[0]
		assert.Len(t, step.Violations, 2)
		var ve *schema.ValidationError
		require.ErrorAs(t, result.Err(), &ve)
	})

	t.Run("no validator is fatal", func(t *testing.T) {
		result, err := NewRunner(http.NewClient()).Run(context.Background(), wf, nil)
		require.NoError(t, err)

		var fatal *config.FatalError
		require.ErrorAs(t, result.Err(), &fatal)
	})
}

func TestRun_CancelledContext(t *testing.T) {
	server := postsAPI(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf := &Workflow{
		Name:  "cancelled",
		Base:  spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{{Method: "GET", Path: "/posts/101"}, {Method: "GET", Path: "/posts/101"}},
	}
	result, err := NewRunner(http.NewClient()).Run(ctx, wf, nil)
	require.NoError(t, err)

	assert.True(t, errors.Is(result.Steps[0].Err, context.Canceled))
	assert.True(t, result.Steps[1].Skipped)
}

func TestRun_StepHook(t *testing.T) {
	server := postsAPI(t, nil)
	var seen []string
	r := NewRunner(http.NewClient(), WithStepHook(func(wf *Workflow, s *StepResult) {
		seen = append(seen, wf.Name+"/"+s.Name)
	}))

	wf := postLifecycle(t, server.URL)
	_, err := r.Run(context.Background(), wf, map[string]any{"title": "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"post lifecycle/create", "post lifecycle/fetch"}, seen)
}

func TestRowFunc_DataDriven(t *testing.T) {
	server := postsAPI(t, nil)
	wf := &Workflow{
		Name:  "lookup",
		Base:  spec.NewRequest(spec.WithBaseURL(server.URL)),
		Steps: []Step{{Name: "get", Method: "GET", Path: "/posts/{{id}}"}},
	}
	r := NewRunner(http.NewClient())

	report := runner.NewExecutor(runner.WithParallel(true)).Execute(context.Background(), runner.Scenario{
		Name: "posts",
		Rows: []runner.Row{
			{Name: "exists", Values: map[string]any{"id": 101}, Expect: spec.NewResponse(spec.ExpectStatus(200))},
			{Name: "missing", Values: map[string]any{"id": 5}, Expect: spec.NewResponse(spec.ExpectStatus(200))},
			{Name: "gone", Values: map[string]any{"id": 5}, Expect: spec.NewResponse(spec.ExpectStatus(404))},
			{Name: "unbound"},
		},
		Run: r.RowFunc(wf, nil),
	})

	require.Len(t, report.Outcomes, 4)
	assert.True(t, report.Outcomes[0].Passed())
	assert.False(t, report.Outcomes[1].Passed())
	var sf *StepFailure
	assert.ErrorAs(t, report.Outcomes[1].Err, &sf)
	assert.True(t, report.Outcomes[2].Passed())
	var fwd *ForwardReferenceError
	assert.ErrorAs(t, report.Outcomes[3].Err, &fwd)
	assert.Equal(t, runner.VerdictFailed, report.Verdict())
}
