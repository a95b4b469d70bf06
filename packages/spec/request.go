package spec

import (
	"maps"
	"net/textproto"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Param is one key/value binding. Query parameters may repeat a key.
type Param struct {
	Key   string
	Value string
}

// RequestSpec describes how to talk to an API. The zero value is the empty
// spec, which is the identity for Merge.
type RequestSpec struct {
	baseURL     ldvalue.OptionalString
	contentType ldvalue.OptionalString
	accept      ldvalue.OptionalString
	timeoutMS   ldvalue.OptionalInt
	headers     map[string]string
	cookies     map[string]string
	query       []Param
	pathParams  []Param
	auth        *http.Auth
}

// Option sets one field of a RequestSpec under construction.
type Option func(*RequestSpec)

// NewRequest builds a RequestSpec from options.
func NewRequest(opts ...Option) RequestSpec {
	var s RequestSpec
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// With returns a copy of s with opts applied on top.
func (s RequestSpec) With(opts ...Option) RequestSpec {
	return Merge(s, NewRequest(opts...))
}

// WithBaseURL sets scheme, host and optional path prefix.
func WithBaseURL(u string) Option {
	return func(s *RequestSpec) { s.baseURL = ldvalue.NewOptionalString(u) }
}

func WithContentType(ct string) Option {
	return func(s *RequestSpec) { s.contentType = ldvalue.NewOptionalString(ct) }
}

func WithAccept(accept string) Option {
	return func(s *RequestSpec) { s.accept = ldvalue.NewOptionalString(accept) }
}

func WithTimeout(d time.Duration) Option {
	return func(s *RequestSpec) { s.timeoutMS = ldvalue.NewOptionalInt(int(d.Milliseconds())) }
}

// WithHeader sets a default header. Names are case-insensitive.
func WithHeader(name, value string) Option {
	return func(s *RequestSpec) {
		if s.headers == nil {
			s.headers = make(map[string]string)
		}
		s.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	}
}

func WithHeaders(headers map[string]string) Option {
	return func(s *RequestSpec) {
		for k, v := range headers {
			WithHeader(k, v)(s)
		}
	}
}

func WithCookie(name, value string) Option {
	return func(s *RequestSpec) {
		if s.cookies == nil {
			s.cookies = make(map[string]string)
		}
		s.cookies[name] = value
	}
}

// WithQueryParam appends one or more values for key.
func WithQueryParam(key string, values ...string) Option {
	return func(s *RequestSpec) {
		for _, v := range values {
			s.query = append(s.query, Param{Key: key, Value: v})
		}
	}
}

// WithPathParam binds a {key} placeholder. Binding a key twice keeps the last value.
func WithPathParam(key, value string) Option {
	return func(s *RequestSpec) {
		s.pathParams = slices.DeleteFunc(s.pathParams, func(p Param) bool { return p.Key == key })
		s.pathParams = append(s.pathParams, Param{Key: key, Value: value})
	}
}

func WithAuth(auth *http.Auth) Option {
	return func(s *RequestSpec) { s.auth = cloneAuth(auth) }
}

func (s RequestSpec) BaseURL() (string, bool) { return s.baseURL.Get() }
func (s RequestSpec) ContentType() (string, bool) { return s.contentType.Get() }
func (s RequestSpec) Accept() (string, bool) { return s.accept.Get() }

func (s RequestSpec) Timeout() (time.Duration, bool) {
	ms, ok := s.timeoutMS.Get()
	return time.Duration(ms) * time.Millisecond, ok
}

// Header looks a default header up case-insensitively.
func (s RequestSpec) Header(name string) (string, bool) {
	v, ok := s.headers[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Headers returns a copy of the default headers keyed by canonical name.
func (s RequestSpec) Headers() map[string]string { return maps.Clone(s.headers) }
func (s RequestSpec) Cookies() map[string]string { return maps.Clone(s.cookies) }
func (s RequestSpec) QueryParams() []Param { return slices.Clone(s.query) }
func (s RequestSpec) PathParams() []Param { return slices.Clone(s.pathParams) }
func (s RequestSpec) Auth() *http.Auth { return cloneAuth(s.auth) }

// PathParam returns the value bound to key.
func (s RequestSpec) PathParam(key string) (string, bool) {
	for _, p := range s.pathParams {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// QueryValues returns every value bound to key in order.
func (s RequestSpec) QueryValues(key string) []string {
	var out []string
	for _, p := range s.query {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// IsZero reports whether s sets nothing.
func (s RequestSpec) IsZero() bool {
	return s.Equal(RequestSpec{})
}

// Equal reports whether two specs would build identical requests.
func (s RequestSpec) Equal(o RequestSpec) bool {
	return s.baseURL == o.baseURL &&
		s.contentType == o.contentType &&
		s.accept == o.accept &&
		s.timeoutMS == o.timeoutMS &&
		maps.Equal(s.headers, o.headers) &&
		maps.Equal(s.cookies, o.cookies) &&
		slices.Equal(s.query, o.query) &&
		slices.Equal(s.pathParams, o.pathParams) &&
		authEqual(s.auth, o.auth)
}

func cloneAuth(a *http.Auth) *http.Auth {
	if a == nil {
		return nil
	}
	return &http.Auth{Type: a.Type, Params: slices.Clone(a.Params)}
}

func authEqual(a, b *http.Auth) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type == b.Type && slices.Equal(a.Params, b.Params)
}

// MapStrings returns a copy of s with fn applied to every string value: the
// base URL, content type, accept, header, cookie, query and path parameter
// values, and auth parameters. Keys are left alone. The first error stops
// the walk.
func (s RequestSpec) MapStrings(fn func(string) (string, error)) (RequestSpec, error) {
	out := Merge(s)
	var err error
	apply := func(v string) string {
		if err != nil {
			return v
		}
		var mapped string
		mapped, err = fn(v)
		return mapped
	}
	mapOpt := func(o ldvalue.OptionalString) ldvalue.OptionalString {
		if v, ok := o.Get(); ok {
			return ldvalue.NewOptionalString(apply(v))
		}
		return o
	}

	out.baseURL = mapOpt(out.baseURL)
	out.contentType = mapOpt(out.contentType)
	out.accept = mapOpt(out.accept)
	for k, v := range out.headers {
		out.headers[k] = apply(v)
	}
	for k, v := range out.cookies {
		out.cookies[k] = apply(v)
	}
	for i := range out.query {
		out.query[i].Value = apply(out.query[i].Value)
	}
	for i := range out.pathParams {
		out.pathParams[i].Value = apply(out.pathParams[i].Value)
	}
	if out.auth != nil {
		for i := range out.auth.Params {
			out.auth.Params[i] = apply(out.auth.Params[i])
		}
	}
	if err != nil {
		return RequestSpec{}, err
	}
	return out, nil
}

// Strings lists every string value MapStrings would visit.
func (s RequestSpec) Strings() []string {
	var out []string
	_, _ = s.MapStrings(func(v string) (string, error) {
		out = append(out, v)
		return v, nil
	})
	return out
}
