package bodypath

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr string
		want []Segment
	}{
		{"", nil},
		{"$", nil},
		{"data.id", []Segment{{Kind: SegmentField, Field: "data"}, {Kind: SegmentField, Field: "id"}}},
		{"[0].email", []Segment{{Kind: SegmentIndex, Index: 0}, {Kind: SegmentField, Field: "email"}}},
		{"data[5]", []Segment{{Kind: SegmentField, Field: "data"}, {Kind: SegmentIndex, Index: 5}}},
		{"$.items[2].tags[0]", []Segment{
			{Kind: SegmentField, Field: "items"},
			{Kind: SegmentIndex, Index: 2},
			{Kind: SegmentField, Field: "tags"},
			{Kind: SegmentIndex, Index: 0},
		}},
		{"meta.next-page", []Segment{{Kind: SegmentField, Field: "meta"}, {Kind: SegmentField, Field: "next-page"}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Segments())
			assert.Equal(t, tt.expr, p.String())
		})
	}
}

func TestParse_BadPath(t *testing.T) {
	for _, expr := range []string{"data..id", "data.", ".id", "data[", "data[x]", "data[-1]", "data]", "data[0]id", "data.[0]"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			var extractErr *ExtractionError
			require.ErrorAs(t, err, &extractErr)
			assert.Equal(t, ReasonBadPath, extractErr.Reason)
		})
	}
}

func TestLookup(t *testing.T) {
	users := []byte(`[{"id": 1, "email": "Sincere@april.biz"}, {"id": 2, "email": "Shanna@melissa.tv"}]`)

	r, err := Lookup([]byte(`{"data": {"id": 7}}`), "data.id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Int())

	r, err = Lookup(users, "[0].email")
	require.NoError(t, err)
	assert.Equal(t, "Sincere@april.biz", r.String())

	r, err = Lookup(users, "[1].id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Int())

	r, err = Lookup(users, "$")
	require.NoError(t, err)
	assert.True(t, r.IsArray())
	assert.Len(t, r.Array(), 2)
}

func TestLookup_PresentNullIsNotMissing(t *testing.T) {
	r, err := Lookup([]byte(`{"data": {"id": null}}`), "data.id")
	require.NoError(t, err)
	assert.Equal(t, "null", Kind(r))
}

func TestLookup_KeysWithPathSyntax(t *testing.T) {
	r, err := Lookup([]byte(`{"a*b": {"x|y": "ok"}}`), "a*b.x|y")
	require.NoError(t, err)
	assert.Equal(t, "ok", r.String())
}

func TestLookup_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		expr   string
		reason Reason
		at     string
	}{
		{"missing field", `{"data": {}}`, "data.id", ReasonMissingField, "$.data"},
		{"index out of range", `{"data": [1, 2]}`, "data[5]", ReasonIndexOutOfRange, "$.data"},
		{"index into scalar", `{"data": 3}`, "data[0]", ReasonTypeMismatch, "$.data"},
		{"field of array", `[{"id": 1}]`, "id", ReasonTypeMismatch, "$"},
		{"field of string", `{"name": "Leanne"}`, "name.first", ReasonTypeMismatch, "$.name"},
		{"invalid json", `<html>`, "data.id", ReasonInvalidJSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup([]byte(tt.body), tt.expr)

			var extractErr *ExtractionError
			require.True(t, errors.As(err, &extractErr), "expected ExtractionError, got %v", err)
			assert.Equal(t, tt.reason, extractErr.Reason)
			assert.Equal(t, tt.at, extractErr.At)
			assert.Equal(t, tt.expr, extractErr.Path)
		})
	}
}

func TestValue(t *testing.T) {
	v, err := Value([]byte(`{"data": {"tags": ["a", "b"], "ok": true}}`), "data")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tags": []any{"a", "b"}, "ok": true}, v)
}

func TestValue_ExactNumbers(t *testing.T) {
	body := []byte(`{"data": {"id": 1000000, "big": 9007199254740993, "ratio": 0.25, "ids": [1, 2]}}`)

	id, err := Value(body, "data.id")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1000000"), id)

	big, err := Value(body, "data.big")
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), big)

	data, err := Value(body, "data")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":    json.Number("1000000"),
		"big":   json.Number("9007199254740993"),
		"ratio": json.Number("0.25"),
		"ids":   []any{json.Number("1"), json.Number("2")},
	}, data)
}
