package spec

import (
	"testing"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/stretchr/testify/assert"
)

func sampleSpecs() (a, b, c RequestSpec) {
	a = NewRequest(
		WithBaseURL("https://jsonplaceholder.typicode.com"),
		WithHeader("Accept-Language", "en"),
		WithHeader("X-Trace", "a"),
		WithQueryParam("tag", "x", "y"),
		WithQueryParam("page", "1"),
		WithPathParam("id", "1"),
		WithCookie("session", "a"),
	)
	b = NewRequest(
		WithContentType("application/json"),
		WithHeader("x-trace", "b"),
		WithQueryParam("tag", "z"),
		WithAuth(&http.Auth{Type: http.AuthBearer, Params: []string{"tok"}}),
	)
	c = NewRequest(
		WithBaseURL("https://httpbin.org"),
		WithHeader("X-Other", "c"),
		WithQueryParam("page", "2"),
		WithPathParam("id", "3"),
		WithTimeout(2*time.Second),
	)
	return a, b, c
}

func TestMerge_Identity(t *testing.T) {
	a, b, c := sampleSpecs()
	for _, s := range []RequestSpec{a, b, c, {}} {
		assert.True(t, Merge(s, RequestSpec{}).Equal(s))
		assert.True(t, Merge(RequestSpec{}, s).Equal(s))
	}
}

func TestMerge_Associative(t *testing.T) {
	a, b, c := sampleSpecs()

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))

	assert.True(t, left.Equal(right))
	assert.True(t, left.Equal(Merge(a, b, c)))
}

func TestMerge_FieldSemantics(t *testing.T) {
	a, b, c := sampleSpecs()
	m := Merge(a, b, c)

	base, _ := m.BaseURL()
	assert.Equal(t, "https://httpbin.org", base)

	ct, ok := m.ContentType()
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)

	trace, _ := m.Header("X-TRACE")
	assert.Equal(t, "b", trace, "headers merge case-insensitively, last write wins")
	lang, _ := m.Header("accept-language")
	assert.Equal(t, "en", lang)

	assert.Equal(t, []string{"z"}, m.QueryValues("tag"))
	assert.Equal(t, []string{"2"}, m.QueryValues("page"))
	assert.Equal(t, []Param{{Key: "tag", Value: "z"}, {Key: "page", Value: "2"}}, m.QueryParams())

	id, _ := m.PathParam("id")
	assert.Equal(t, "3", id)

	assert.Equal(t, http.AuthBearer, m.Auth().Type)
	d, ok := m.Timeout()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestMerge_EmptyStringOverridesWhenSet(t *testing.T) {
	base := NewRequest(WithContentType("application/json"))
	over := NewRequest(WithContentType(""))

	ct, ok := Merge(base, over).ContentType()
	assert.True(t, ok)
	assert.Equal(t, "", ct)

	ct, ok = Merge(base, RequestSpec{}).ContentType()
	assert.True(t, ok)
	assert.Equal(t, "application/json", ct)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a, b, _ := sampleSpecs()
	before := a.Headers()
	beforeQuery := a.QueryParams()

	m := Merge(a, b)
	m.Headers()["X-Trace"] = "mutated"

	assert.Equal(t, before, a.Headers())
	assert.Equal(t, beforeQuery, a.QueryParams())

	auth := b.Auth()
	auth.Params[0] = "changed"
	assert.Equal(t, "tok", b.Auth().Params[0])
}

func TestWith(t *testing.T) {
	base := NewRequest(WithBaseURL("https://jsonplaceholder.typicode.com"))
	derived := base.With(WithHeader("X-Api-Key", "k"))

	_, ok := base.Header("X-Api-Key")
	assert.False(t, ok)
	v, ok := derived.Header("x-api-key")
	assert.True(t, ok)
	assert.Equal(t, "k", v)
	assert.True(t, RequestSpec{}.IsZero())
	assert.False(t, derived.IsZero())
}

func TestMergeResponse(t *testing.T) {
	base := SuccessResponse().With(ExpectBody("id", present()))
	over := NewResponse(ExpectStatus(201), ExpectBody("title", present()))

	m := MergeResponse(base, over)

	assert.Equal(t, []int{201}, m.Statuses())
	latency, ok := m.MaxLatency()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, latency)
	ct, _ := m.ContentType()
	assert.Equal(t, "application/json", ct)

	paths := []string{}
	for _, a := range m.BodyAssertions() {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{"id", "title"}, paths)
	assert.Len(t, base.BodyAssertions(), 1)
	assert.True(t, MergeResponse().IsZero())
}
