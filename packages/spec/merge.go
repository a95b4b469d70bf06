package spec

import (
	"maps"

	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Merge folds specs left to right into a new spec. Later specs win: scalar
// fields are replaced wholesale when set, headers and cookies merge key by
// key, and a query or path key present in the override replaces every base
// value for that key. Inputs are never modified.
func Merge(specs ...RequestSpec) RequestSpec {
	var out RequestSpec
	for _, s := range specs {
		out = merge(out, s)
	}
	return out
}

func merge(base, over RequestSpec) RequestSpec {
	return RequestSpec{
		baseURL:     pickString(base.baseURL, over.baseURL),
		contentType: pickString(base.contentType, over.contentType),
		accept:      pickString(base.accept, over.accept),
		timeoutMS:   pickInt(base.timeoutMS, over.timeoutMS),
		headers:     mergeMap(base.headers, over.headers),
		cookies:     mergeMap(base.cookies, over.cookies),
		query:       mergeParams(base.query, over.query),
		pathParams:  mergeParams(base.pathParams, over.pathParams),
		auth:        cloneAuth(pickAuth(base, over)),
	}
}

func pickAuth(base, over RequestSpec) *http.Auth {
	if over.auth != nil {
		return over.auth
	}
	return base.auth
}

func pickString(base, over ldvalue.OptionalString) ldvalue.OptionalString {
	if over.IsDefined() {
		return over
	}
	return base
}

func pickInt(base, over ldvalue.OptionalInt) ldvalue.OptionalInt {
	if over.IsDefined() {
		return over
	}
	return base
}

func mergeMap(base, over map[string]string) map[string]string {
	if len(base)+len(over) == 0 {
		return nil
	}
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(over))
	}
	maps.Copy(out, over)
	return out
}

// mergeParams keeps base entries whose key the override does not mention,
// in order, followed by every override entry in order.
func mergeParams(base, over []Param) []Param {
	if len(base)+len(over) == 0 {
		return nil
	}
	overridden := make(map[string]struct{}, len(over))
	for _, p := range over {
		overridden[p.Key] = struct{}{}
	}
	out := make([]Param, 0, len(base)+len(over))
	for _, p := range base {
		if _, ok := overridden[p.Key]; !ok {
			out = append(out, p)
		}
	}
	return append(out, over...)
}
