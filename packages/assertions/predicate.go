package assertions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Predicate is an operator paired with the value it compares against. For
// OpEach the expected value is itself a Predicate applied to every element.
type Predicate struct {
	Op       Operator
	Expected any
}

func Equals(v any) Predicate { return Predicate{Op: OpEquals, Expected: v} }
func EqualsIgnoreCase(s string) Predicate { return Predicate{Op: OpEqualsIgnoreCase, Expected: s} }
func NotEquals(v any) Predicate { return Predicate{Op: OpNotEquals, Expected: v} }
func Exists() Predicate { return Predicate{Op: OpExists} }
func NotNull() Predicate { return Predicate{Op: OpNotNull} }
func NotExists() Predicate { return Predicate{Op: OpNotExists} }
func NotEmpty() Predicate { return Predicate{Op: OpNotEmpty} }
func Contains(s any) Predicate { return Predicate{Op: OpContains, Expected: s} }
func StartsWith(s string) Predicate { return Predicate{Op: OpStartsWith, Expected: s} }
func EndsWith(s string) Predicate { return Predicate{Op: OpEndsWith, Expected: s} }
func Matches(pattern string) Predicate { return Predicate{Op: OpMatches, Expected: pattern} }
func GreaterThan(n any) Predicate { return Predicate{Op: OpGreaterThan, Expected: n} }
func GreaterOrEqual(n any) Predicate { return Predicate{Op: OpGreaterOrEqual, Expected: n} }
func LessThan(n any) Predicate { return Predicate{Op: OpLessThan, Expected: n} }
func LessOrEqual(n any) Predicate { return Predicate{Op: OpLessOrEqual, Expected: n} }
func HasLength(n int) Predicate { return Predicate{Op: OpLength, Expected: n} }
func IsType(name string) Predicate { return Predicate{Op: OpType, Expected: name} }
func In(values ...any) Predicate { return Predicate{Op: OpIn, Expected: values} }
func Includes(v any) Predicate { return Predicate{Op: OpIncludes, Expected: v} }
func Each(p Predicate) Predicate { return Predicate{Op: OpEach, Expected: p} }

// ParsePredicate builds a predicate from an operator name and a decoded
// value, as found in suite files. For "each" the value may be a map with
// "operator" and "value" keys; any other value means each element equals it.
func ParsePredicate(op string, expected any) (Predicate, error) {
	o, err := ParseOperator(op)
	if err != nil {
		return Predicate{}, err
	}
	switch o {
	case OpEach:
		if m, ok := expected.(map[string]any); ok {
			if innerOp, hasOp := m["operator"]; hasOp {
				inner, err := ParsePredicate(fmt.Sprintf("%v", innerOp), m["value"])
				if err != nil {
					return Predicate{}, fmt.Errorf("each: %w", err)
				}
				return Each(inner), nil
			}
		}
		return Each(Equals(expected)), nil
	case OpIn, OpNotIn:
		if _, ok := asSlice(expected); !ok {
			return Predicate{}, fmt.Errorf("%s needs a list, got %T", o, expected)
		}
	case OpMatches:
		if _, err := compilePattern(expected); err != nil {
			return Predicate{}, err
		}
	case OpLength:
		if _, ok := toInt(expected); !ok {
			return Predicate{}, fmt.Errorf("length needs a number, got %v", expected)
		}
	}
	if o.takesNoValue() {
		expected = nil
	}
	return Predicate{Op: o, Expected: expected}, nil
}

func (p Predicate) String() string {
	if p.Op.takesNoValue() {
		return p.Op.String()
	}
	if inner, ok := p.Expected.(Predicate); ok {
		return p.Op.String() + " " + inner.String()
	}
	return fmt.Sprintf("%s %v", p.Op, p.Expected)
}

// AllowsAbsence reports whether an unresolvable subject satisfies p.
func (p Predicate) AllowsAbsence() bool {
	return p.Op == OpNotExists
}

// Evaluate applies p to a value that is present in the response. The
// message describes the mismatch when ok is false.
func (p Predicate) Evaluate(actual any) (ok bool, msg string) {
	switch p.Op {
	case OpEquals:
		return equals(actual, p.Expected)
	case OpEqualsIgnoreCase:
		if strings.EqualFold(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", p.Expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v (ignoring case), got %v", p.Expected, actual)
	case OpNotEquals:
		return negate(passes(equals, actual, p.Expected), fmt.Sprintf("expected not to equal %v", p.Expected))
	case OpExists:
		return true, ""
	case OpNotNull:
		if actual == nil {
			return false, "expected a non-null value"
		}
		return true, ""
	case OpNotExists:
		return false, fmt.Sprintf("expected not to exist, got %v", actual)
	case OpNotEmpty:
		return notEmpty(actual)
	case OpContains:
		return contains(actual, p.Expected)
	case OpNotContains:
		return negate(passes(contains, actual, p.Expected), fmt.Sprintf("expected not to contain %v", p.Expected))
	case OpStartsWith:
		return startsWith(actual, p.Expected)
	case OpEndsWith:
		return endsWith(actual, p.Expected)
	case OpMatches:
		return matches(actual, p.Expected)
	case OpGreaterThan:
		return compareNumeric(actual, p.Expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, p.Expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, p.Expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, p.Expected, "<=")
	case OpLength:
		return length(actual, p.Expected)
	case OpType:
		return typeCheck(actual, p.Expected)
	case OpIn:
		return in(actual, p.Expected)
	case OpNotIn:
		return negate(passes(in, actual, p.Expected), fmt.Sprintf("expected not to be in %v", p.Expected))
	case OpIncludes:
		return includes(actual, p.Expected)
	case OpNotIncludes:
		return negate(passes(includes, actual, p.Expected), fmt.Sprintf("expected not to include %v", p.Expected))
	case OpEach:
		return each(actual, p.Expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", p.Op)
	}
}

func negate(ok bool, msg string) (bool, string) {
	if ok {
		return false, msg
	}
	return true, ""
}

func passes(check func(actual, expected any) (bool, string), actual, expected any) bool {
	ok, _ := check(actual, expected)
	return ok
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if actual != nil && expected != nil && fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual, expected any) (bool, string) {
	if arr, ok := asSlice(actual); ok {
		for _, item := range arr {
			if passed, _ := equals(item, expected); passed {
				return true, ""
			}
		}
		return false, fmt.Sprintf("expected %v to contain %v", actual, expected)
	}
	if strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func startsWith(actual, expected any) (bool, string) {
	if strings.HasPrefix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func endsWith(actual, expected any) (bool, string) {
	if strings.HasSuffix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func compilePattern(expected any) (*regexp.Regexp, error) {
	pattern := fmt.Sprintf("%v", expected)
	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %v", err)
	}
	return re, nil
}

func matches(actual, expected any) (bool, string) {
	re, err := compilePattern(expected)
	if err != nil {
		return false, err.Error()
	}
	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, re)
}

func notEmpty(actual any) (bool, string) {
	if actual == nil {
		return false, "expected a non-empty value, got null"
	}
	if n := computeLength(actual); n == 0 {
		return false, "expected a non-empty value"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len([]rune(v))
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	case nil:
		return -1
	}
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	}
	return -1
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %s", typeName(actual))
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func includes(actual, expected any) (bool, string) {
	arr, ok := asSlice(actual)
	if !ok {
		return false, fmt.Sprintf("expected array, got %s", typeName(actual))
	}

	for _, item := range arr {
		if passed, _ := equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := asSlice(expected)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := strings.ToLower(fmt.Sprintf("%v", expected))
	actualType := typeName(actual)
	if expectedType == "integer" {
		if f, ok := actual.(float64); ok && f == float64(int64(f)) {
			return true, ""
		}
		if n, ok := actual.(json.Number); ok {
			if _, err := n.Int64(); err == nil {
				return true, ""
			}
		}
	}
	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

// typeName names a decoded JSON value by its JSON type.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(v).String()
}

func each(actual, expected any) (bool, string) {
	arr, ok := asSlice(actual)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %s", typeName(actual))
	}

	inner, isPredicate := expected.(Predicate)
	if !isPredicate {
		inner = Equals(expected)
	}
	for i, item := range arr {
		if passed, msg := inner.Evaluate(item); !passed {
			return false, fmt.Sprintf("item[%d]: %s", i, msg)
		}
	}
	return true, ""
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
