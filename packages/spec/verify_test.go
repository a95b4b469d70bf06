package spec

import (
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/bodypath"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func present() assertions.Predicate { return assertions.Exists() }

func jsonResponse(status int, body string, elapsed time.Duration) *http.Response {
	return &http.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
		Body:       []byte(body),
		Duration:   elapsed,
	}
}

func TestVerify_Passes(t *testing.T) {
	rs := SuccessResponse().With(
		ExpectBody("id", assertions.Equals(1)),
		ExpectBody("email", assertions.Contains("@")),
		ExpectHeader("content-type", assertions.Contains("json")),
	)

	failures := rs.Verify(jsonResponse(200, `{"id": 1, "email": "Sincere@april.biz"}`, 120*time.Millisecond))

	assert.Empty(t, failures)
	assert.NoError(t, rs.Check(jsonResponse(200, `{"id": 1, "email": "a@b.c"}`, time.Millisecond)))
}

func TestVerify_CollectsEveryFailure(t *testing.T) {
	rs := NewResponse(
		ExpectStatus(200),
		ExpectMaxLatency(100*time.Millisecond),
		ExpectContentType("application/xml"),
		ExpectBody("id", assertions.Equals(2)),
		ExpectBody("name", assertions.Equals("Ervin")),
		ExpectBody("address.city", assertions.Exists()),
	)
	resp := jsonResponse(404, `{"id": 1, "name": "Leanne"}`, 250*time.Millisecond)

	failures := rs.Verify(resp)

	require.Len(t, failures, 6)
	kinds := make([]FailureKind, len(failures))
	for i, f := range failures {
		kinds[i] = f.Kind
	}
	assert.Equal(t, []FailureKind{FailStatus, FailLatency, FailContentType, FailBody, FailBody, FailBody}, kinds)

	var extractErr *bodypath.ExtractionError
	require.True(t, errors.As(failures[5].Err, &extractErr))
	assert.Equal(t, bodypath.ReasonMissingField, extractErr.Reason)

	err := rs.Check(resp)
	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Len(t, assertErr.Failures, 6)
	assert.Contains(t, err.Error(), "6 assertion failures")
}

func TestVerify_KIndependentViolations(t *testing.T) {
	body := `{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}`
	paths := []string{"a", "b", "c", "d", "e"}

	for k := 0; k <= len(paths); k++ {
		opts := []ResponseOption{ExpectStatus(200)}
		for i, p := range paths {
			want := i + 1
			if i < k {
				want = -1
			}
			opts = append(opts, ExpectBody(p, assertions.Equals(want)))
		}
		failures := NewResponse(opts...).Verify(jsonResponse(200, body, 0))
		assert.Len(t, failures, k, "k=%d", k)
	}
}

func TestVerify_EmptyAssertionsDoNotRequireEmptyBody(t *testing.T) {
	rs := NewResponse(ExpectStatus(200))
	assert.Empty(t, rs.Verify(jsonResponse(200, `{"lots": "of content"}`, 0)))
}

func TestVerify_StatusSet(t *testing.T) {
	rs := NewResponse(ExpectStatus(200, 201, 204))
	assert.Empty(t, rs.Verify(jsonResponse(204, ``, 0)))

	failures := rs.Verify(jsonResponse(500, ``, 0))
	require.Len(t, failures, 1)
	assert.Equal(t, []int{200, 201, 204}, failures[0].Expected)
}

func TestVerify_NotExistsAcceptsAbsence(t *testing.T) {
	rs := NewResponse(
		ExpectBody("password", assertions.NotExists()),
		ExpectHeader("X-Powered-By", assertions.NotExists()),
	)
	assert.Empty(t, rs.Verify(jsonResponse(200, `{"id": 1}`, 0)))
}

func TestVerify_ArrayRootPaths(t *testing.T) {
	rs := NewResponse(
		ExpectBody("$", assertions.HasLength(2)),
		ExpectBody("[0].email", assertions.EndsWith(".biz")),
		ExpectBody("[5].email", assertions.Exists()),
	)

	failures := rs.Verify(jsonResponse(200, `[{"email": "Sincere@april.biz"}, {"email": "Shanna@melissa.tv"}]`, 0))

	require.Len(t, failures, 1)
	assert.Equal(t, "[5].email", failures[0].Subject)
	var extractErr *bodypath.ExtractionError
	require.ErrorAs(t, failures[0].Err, &extractErr)
	assert.Equal(t, bodypath.ReasonIndexOutOfRange, extractErr.Reason)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []int{200}, SuccessResponse().Statuses())
	assert.Equal(t, []int{201}, CreatedResponse().Statuses())

	d, ok := DefaultResponse().MaxLatency()
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)
	assert.Nil(t, DefaultResponse().Statuses())
}
