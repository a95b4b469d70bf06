package fixture

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

// Kind names a fixture shape.
type Kind string

const (
	KindUser    Kind = "user"
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindEmail   Kind = "email"
	KindText    Kind = "text"
	KindInt     Kind = "int"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindUser, KindPost, KindComment, KindEmail, KindText, KindInt}

// ParseKind is case-insensitive. An unknown kind is a *config.FatalError.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", config.Fatalf("fixture", "unknown fixture kind %q", name)
}

// Fixture is a generated value object. Its fields are read through
// accessors and never change after generation.
type Fixture struct {
	Kind   Kind
	Token  string
	fields map[string]any
}

func (f Fixture) Get(name string) (any, bool) {
	v, ok := f.fields[name]
	return v, ok
}

// String returns the field formatted as text, or "" if it is absent.
func (f Fixture) String(name string) string {
	v, ok := f.fields[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the field as an int, or 0 if it is absent or not numeric.
func (f Fixture) Int(name string) int {
	switch v := f.fields[name].(type) {
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Fields returns a copy of every field.
func (f Fixture) Fields() map[string]any {
	return maps.Clone(f.fields)
}

// Value is the fixture's primary scalar: the email for KindEmail, the
// value for KindText and KindInt, and the field map otherwise.
func (f Fixture) Value() any {
	switch f.Kind {
	case KindEmail:
		return f.fields["email"]
	case KindText, KindInt:
		return f.fields["value"]
	}
	return f.Fields()
}

// JSON encodes the fields as a request body.
func (f Fixture) JSON() ([]byte, error) {
	return json.Marshal(f.fields)
}

func (f Fixture) MarshalJSON() ([]byte, error) {
	return f.JSON()
}
