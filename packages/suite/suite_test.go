package suite

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/workflow"
)

const postsSuite = `
name: posts
variables:
  baseUrl: http://localhost:1
environments:
  staging:
    baseUrl: https://staging.example.com
requests:
  base:
    baseUrl: "{{baseUrl}}"
    accept: application/json
    headers:
      X-Client: contractkit
  api:
    extends: base
    contentType: application/json
    timeout: 5s
    query:
      tag: [a, b]
    auth:
      type: bearer
      params: ["{{token}}"]
responses:
  ok:
    preset: success
  post:
    extends: ok
    headers:
      Content-Type: {op: contains, value: json}
    body:
      - {path: id, op: exists}
      - {path: title, op: type, value: string}
workflows:
  - name: post lifecycle
    request: base
    steps:
      - name: create
        method: POST
        path: /posts
        body: {title: "{{title}}", userId: 1}
        expect: {preset: created}
        capture: {postId: id}
      - name: fetch
        method: GET
        path: /posts/{{postId}}
        expect: post
  - name: health
    request: base
    steps:
      - {method: GET, path: /health, expect: {status: [204]}}
scenarios:
  - name: titles
    workflow: post lifecycle
    rows:
      - {name: short, values: {title: a}}
      - {name: long, values: {title: a long title}}
  - name: lookups
    request: base
    steps:
      - method: GET
        path: /posts/{{id}}
    data: {csv: ids.csv}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func loadPosts(t *testing.T) *Suite {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "ids.csv", "_name,id,_status,expect.id\nfound,101,200,101\n\nmissing,7,404,\n")
	s, err := Load(writeFile(t, dir, "posts.suite.yaml", postsSuite))
	require.NoError(t, err)
	return s
}

func TestLoad(t *testing.T) {
	s := loadPosts(t)
	assert.Equal(t, "posts", s.Name)
	assert.Len(t, s.Requests, 2)
	assert.Len(t, s.Workflows, 2)
	assert.Len(t, s.Scenarios, 2)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.suite.yaml"))
	var fatal *config.FatalError
	require.ErrorAs(t, err, &fatal)

	_, err = Load(writeFile(t, dir, "typo.suite.yaml", "workflow:\n  - name: x\n"))
	require.ErrorAs(t, err, &fatal)

	s, err := Load(writeFile(t, dir, "empty.suite.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, "empty.suite.yaml", s.Name)
}

func TestRequestSpec_Extends(t *testing.T) {
	s := loadPosts(t)

	api, err := s.RequestSpec("api")
	require.NoError(t, err)

	base, _ := api.BaseURL()
	assert.Equal(t, "{{baseUrl}}", base)
	accept, _ := api.Accept()
	assert.Equal(t, "application/json", accept)
	ct, _ := api.ContentType()
	assert.Equal(t, "application/json", ct)
	h, _ := api.Header("x-client")
	assert.Equal(t, "contractkit", h)
	timeout, _ := api.Timeout()
	assert.Equal(t, 5*time.Second, timeout)
	assert.Equal(t, []string{"a", "b"}, api.QueryValues("tag"))
	require.NotNil(t, api.Auth())
	assert.Equal(t, http.AuthBearer, api.Auth().Type)
}

func TestRequestSpec_Errors(t *testing.T) {
	s, err := Parse([]byte(`
requests:
  a: {extends: b}
  b: {extends: a}
  badAuth: {auth: {type: digest, params: [only-user]}}
  badTimeout: {timeout: soon}
`), "")
	require.NoError(t, err)

	tests := map[string]string{
		"a":          "extends itself",
		"badAuth":    "invalid auth",
		"badTimeout": "invalid timeout",
		"nope":       "unknown request spec",
	}
	for name, msg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.RequestSpec(name)
			require.Error(t, err)
			assert.Contains(t, err.Error(), msg)
			var fatal *config.FatalError
			assert.True(t, errors.As(err, &fatal))
		})
	}
}

func TestResponseSpec(t *testing.T) {
	s := loadPosts(t)

	post, err := s.ResponseSpec("post")
	require.NoError(t, err)
	assert.Equal(t, []int{200}, post.Statuses())
	ct, ok := post.ContentType()
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)
	assert.Len(t, post.BodyAssertions(), 2)
	assert.Contains(t, post.HeaderExpectations(), "Content-Type")

	_, err = (&Suite{File: File{Responses: map[string]ResponseDoc{"x": {Preset: "teapot"}}}}).ResponseSpec("x")
	assert.ErrorContains(t, err, "unknown response preset")
}

func TestRowsFromTable(t *testing.T) {
	rows, err := RowsFromTable([][]string{
		{"_name", "id", "_status", "expect.data.id"},
		{"first", "1", "200, 201", "1"},
		{"", "", "", ""},
		{"short", "2"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "first", rows[0].Name)
	assert.Equal(t, map[string]any{"id": "1"}, rows[0].Values)
	assert.Equal(t, []int{200, 201}, rows[0].Expect.Statuses())
	require.Len(t, rows[0].Expect.BodyAssertions(), 1)
	assert.Equal(t, "data.id", rows[0].Expect.BodyAssertions()[0].Path)
	assert.True(t, rows[1].Expect.IsZero())

	none, err := RowsFromTable([][]string{{"id"}})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = RowsFromTable([][]string{{"id", "_status"}, {"1", "abc"}})
	assert.ErrorContains(t, err, "invalid status")

	_, err = RowsFromTable([][]string{{"id", ""}})
	assert.ErrorContains(t, err, "no name")
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"_name", "email"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"alice", "alice@example.com"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := ReadXLSX(path, "")
	require.NoError(t, err)
	rows, err := RowsFromTable(table)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Name)
	assert.Equal(t, "alice@example.com", rows[0].Values["email"])

	_, err = ReadXLSX(path, "Missing")
	assert.Error(t, err)
}

func TestUnits(t *testing.T) {
	s := loadPosts(t)

	units, err := s.Units()
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, "titles", units[0].Name)
	assert.Len(t, units[0].Rows, 2)
	assert.Equal(t, "lookups", units[1].Name)
	require.Len(t, units[1].Rows, 2)
	assert.Equal(t, "missing", units[1].Rows[1].Name)
	assert.Equal(t, "health", units[2].Name)
	assert.Equal(t, []runner.Row{{Name: "health"}}, units[2].Rows)
}

func TestVariables(t *testing.T) {
	s := loadPosts(t)

	vars, err := s.Variables("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1", vars["baseUrl"])

	vars, err = s.Variables("staging")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", vars["baseUrl"])

	_, err = s.Variables("prod")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	s := loadPosts(t)
	assert.NoError(t, s.Check([]string{"baseUrl"}))

	err := s.Check(nil)
	require.Error(t, err)
	var fwd *workflow.ForwardReferenceError
	assert.ErrorAs(t, err, &fwd)

	bad, err := Parse([]byte(`
workflows:
  - name: backwards
    steps:
      - {name: get, method: GET, path: "http://x/{{id}}"}
      - {name: make, method: POST, path: "http://x", capture: {id: id}}
`), "")
	require.NoError(t, err)
	err = bad.Check(nil)
	require.ErrorAs(t, err, &fwd)
	assert.Equal(t, "make", fwd.CapturedBy)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.suite.yaml", "")
	writeFile(t, dir, "a.suite.yml", "")
	writeFile(t, dir, ".contractkit.yaml", "")
	writeFile(t, dir, "ids.csv", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "c.suite.yaml", "")

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.suite.yml"),
		filepath.Join(dir, "b.suite.yaml"),
		filepath.Join(dir, "nested", "c.suite.yaml"),
	}, files)

	single, err := Discover(filepath.Join(dir, "ids.csv"))
	require.NoError(t, err)
	assert.Len(t, single, 1)
}

func TestPlan_EndToEnd(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == nethttp.MethodPost && r.URL.Path == "/posts":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			in["id"] = 101
			w.WriteHeader(nethttp.StatusCreated)
			_ = json.NewEncoder(w).Encode(in)
		case r.URL.Path == "/posts/101":
			_, _ = w.Write([]byte(`{"id": 101, "title": "a"}`))
		case r.URL.Path == "/health":
			w.WriteHeader(nethttp.StatusNoContent)
		default:
			w.WriteHeader(nethttp.StatusNotFound)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	s := loadPosts(t)
	vars, err := s.Variables("")
	require.NoError(t, err)
	vars["baseUrl"] = server.URL

	scenarios, err := s.Plan(workflow.NewRunner(http.NewClient()), vars)
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	exec := runner.NewExecutor(runner.WithParallel(true))
	for _, sc := range scenarios {
		report := exec.Execute(context.Background(), sc)
		var msgs []string
		for _, o := range report.Failures() {
			msgs = append(msgs, o.Name+": "+o.Err.Error())
		}
		assert.Equal(t, runner.VerdictPassed, report.Verdict(), "%s: %s", sc.Name, strings.Join(msgs, "\n"))
	}
}
