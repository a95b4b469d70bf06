package bodypath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup parses expr and resolves it against body.
func Lookup(body []byte, expr string) (gjson.Result, error) {
	p, err := Parse(expr)
	if err != nil {
		return gjson.Result{}, err
	}
	return p.Lookup(body)
}

// Value resolves expr against body and returns it the way Exact does.
func Value(body []byte, expr string) (any, error) {
	r, err := Lookup(body, expr)
	if err != nil {
		return nil, err
	}
	return Exact(r), nil
}

// Exact converts r to a plain Go value like r.Value, except that numbers at
// any depth become json.Number holding the literal from the document, so
// 1000000 stays 1000000 and integers past 2^53 keep every digit.
func Exact(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.JSON:
		dec := json.NewDecoder(strings.NewReader(r.Raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return r.Value()
}

// Lookup resolves the path against a raw JSON body.
func (p Path) Lookup(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &ExtractionError{Path: p.raw, Reason: ReasonInvalidJSON, Detail: "body is not valid JSON"}
	}
	return p.Resolve(gjson.ParseBytes(body))
}

// Resolve walks an already parsed document one segment at a time.
func (p Path) Resolve(doc gjson.Result) (gjson.Result, error) {
	cur := doc
	for i, seg := range p.segments {
		at := formatSegments(p.segments[:i])
		switch seg.Kind {
		case SegmentField:
			if !cur.IsObject() {
				return gjson.Result{}, &ExtractionError{
					Path: p.raw, Reason: ReasonTypeMismatch, At: at,
					Detail: fmt.Sprintf("cannot read field %q of %s", seg.Field, kindOf(cur)),
				}
			}
			next, ok := field(cur, seg.Field)
			if !ok {
				return gjson.Result{}, &ExtractionError{
					Path: p.raw, Reason: ReasonMissingField, At: at,
					Detail: fmt.Sprintf("no field %q", seg.Field),
				}
			}
			cur = next
		case SegmentIndex:
			if !cur.IsArray() {
				return gjson.Result{}, &ExtractionError{
					Path: p.raw, Reason: ReasonTypeMismatch, At: at,
					Detail: fmt.Sprintf("cannot index %s", kindOf(cur)),
				}
			}
			elems := cur.Array()
			if seg.Index >= len(elems) {
				return gjson.Result{}, &ExtractionError{
					Path: p.raw, Reason: ReasonIndexOutOfRange, At: at,
					Detail: "index " + strconv.Itoa(seg.Index) + " of array with length " + strconv.Itoa(len(elems)),
				}
			}
			cur = elems[seg.Index]
		}
	}
	return cur, nil
}

// field matches keys exactly, so names containing gjson syntax characters
// need no escaping.
func field(obj gjson.Result, name string) (gjson.Result, bool) {
	var found gjson.Result
	ok := false
	obj.ForEach(func(key, value gjson.Result) bool {
		if key.String() == name {
			found, ok = value, true
			return false
		}
		return true
	})
	return found, ok
}

// Kind names the JSON type of r the way error messages and the "type"
// predicate spell it.
func Kind(r gjson.Result) string {
	return kindOf(r)
}

func kindOf(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	if r.IsArray() {
		return "array"
	}
	return "object"
}
