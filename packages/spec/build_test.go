package spec

import (
	"testing"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	rs := NewRequest(
		WithBaseURL("https://jsonplaceholder.typicode.com/"),
		WithContentType("application/json"),
		WithAccept("application/json"),
		WithHeader("x-api-key", "k"),
		WithQueryParam("tag", "a", "b"),
		WithPathParam("id", "1"),
		WithCookie("theme", "dark"),
		WithCookie("session", "abc"),
		WithAuth(&http.Auth{Type: http.AuthBasic, Params: []string{"user", "passwd"}}),
	)

	req, err := rs.Build("get", "/posts/{id}/comments", "")

	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts/1/comments?tag=a&tag=b", req.URL)
	assert.Equal(t, "application/json", req.Header("Content-Type"))
	assert.Equal(t, "application/json", req.Header("accept"))
	assert.Equal(t, "k", req.Header("X-Api-Key"))
	assert.Equal(t, "session=abc; theme=dark", req.Header("Cookie"))
	require.NotNil(t, req.Auth)
	assert.Equal(t, http.AuthBasic, req.Auth.Type)
}

func TestBuild_EscapesPathParams(t *testing.T) {
	rs := NewRequest(WithBaseURL("https://httpbin.org"), WithPathParam("name", "a b/c"))

	req, err := rs.Build("GET", "/anything/{name}", "")

	require.NoError(t, err)
	assert.Equal(t, "https://httpbin.org/anything/a%20b%2Fc", req.URL)
}

func TestBuild_AbsolutePathIgnoresBase(t *testing.T) {
	req, err := NewRequest().Build("POST", "https://httpbin.org/post", `{"a": 1}`)

	require.NoError(t, err)
	assert.Equal(t, "https://httpbin.org/post", req.URL)
	assert.Equal(t, `{"a": 1}`, req.Body)
}

func TestBuild_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		spec RequestSpec
		path string
	}{
		{"no base for relative path", NewRequest(), "/users"},
		{"bad scheme", NewRequest(WithBaseURL("ftp://example.com")), "/users"},
		{"no host", NewRequest(WithBaseURL("https://")), "/users"},
		{"no host without path", NewRequest(WithBaseURL("http://")), ""},
		{"no host absolute", NewRequest(), "https:///users"},
		{"malformed", NewRequest(WithBaseURL("http://[::1")), "/users"},
		{"unbound path param", NewRequest(WithBaseURL("https://httpbin.org")), "/users/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Build("GET", tt.path, "")
			var fatal *config.FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, "spec", fatal.Component)
		})
	}
}

func TestBuild_LeavesTemplatesAlone(t *testing.T) {
	rs := NewRequest(WithBaseURL("https://httpbin.org"), WithPathParam("id", "9"))

	req, err := rs.Build("GET", "/anything/{id}/{{literal}}", "")

	require.NoError(t, err)
	assert.Equal(t, "https://httpbin.org/anything/9/%7B%7Bliteral%7D%7D", req.URL)
}

func TestMapStrings(t *testing.T) {
	rs := NewRequest(
		WithBaseURL("{{baseUrl}}"),
		WithHeader("Authorization", "Bearer {{token}}"),
		WithQueryParam("user", "{{userId}}"),
		WithAuth(&http.Auth{Type: http.AuthBasic, Params: []string{"{{user}}", "pw"}}),
	)
	vars := map[string]string{"{{baseUrl}}": "https://httpbin.org", "Bearer {{token}}": "Bearer t", "{{userId}}": "1", "{{user}}": "admin"}

	mapped, err := rs.MapStrings(func(v string) (string, error) {
		if r, ok := vars[v]; ok {
			return r, nil
		}
		return v, nil
	})

	require.NoError(t, err)
	base, _ := mapped.BaseURL()
	assert.Equal(t, "https://httpbin.org", base)
	h, _ := mapped.Header("authorization")
	assert.Equal(t, "Bearer t", h)
	assert.Equal(t, []string{"1"}, mapped.QueryValues("user"))
	assert.Equal(t, "admin", mapped.Auth().Params[0])
	assert.Equal(t, "{{user}}", rs.Auth().Params[0], "the original is unchanged")
	assert.Len(t, rs.Strings(), 5)
}
