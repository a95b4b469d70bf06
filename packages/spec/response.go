package spec

import (
	"maps"
	"net/textproto"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// BodyAssertion is a path into the parsed body and the predicate its value
// must satisfy.
type BodyAssertion struct {
	Path      string
	Predicate assertions.Predicate
}

// ResponseSpec describes a correct response. An empty body assertion list
// checks no body shape; it does not require an empty body.
type ResponseSpec struct {
	statuses     []int
	maxLatencyMS ldvalue.OptionalInt
	contentType  ldvalue.OptionalString
	headers      map[string]assertions.Predicate
	body         []BodyAssertion
}

// ResponseOption sets one expectation of a ResponseSpec under construction.
type ResponseOption func(*ResponseSpec)

// NewResponse builds a ResponseSpec from options.
func NewResponse(opts ...ResponseOption) ResponseSpec {
	var s ResponseSpec
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// With returns a copy of s with opts applied on top.
func (s ResponseSpec) With(opts ...ResponseOption) ResponseSpec {
	return MergeResponse(s, NewResponse(opts...))
}

// ExpectStatus sets the acceptable status codes.
func ExpectStatus(codes ...int) ResponseOption {
	return func(s *ResponseSpec) { s.statuses = slices.Clone(codes) }
}

// ExpectMaxLatency bounds the observed elapsed time. The check is made after
// the response arrives and never cancels the call.
func ExpectMaxLatency(d time.Duration) ResponseOption {
	return func(s *ResponseSpec) { s.maxLatencyMS = ldvalue.NewOptionalInt(int(d.Milliseconds())) }
}

// ExpectContentType compares media types, ignoring parameters such as charset.
func ExpectContentType(ct string) ResponseOption {
	return func(s *ResponseSpec) { s.contentType = ldvalue.NewOptionalString(ct) }
}

func ExpectHeader(name string, p assertions.Predicate) ResponseOption {
	return func(s *ResponseSpec) {
		if s.headers == nil {
			s.headers = make(map[string]assertions.Predicate)
		}
		s.headers[textproto.CanonicalMIMEHeaderKey(name)] = p
	}
}

func ExpectBody(path string, p assertions.Predicate) ResponseOption {
	return func(s *ResponseSpec) {
		s.body = append(s.body, BodyAssertion{Path: path, Predicate: p})
	}
}

func (s ResponseSpec) Statuses() []int { return slices.Clone(s.statuses) }

func (s ResponseSpec) MaxLatency() (time.Duration, bool) {
	ms, ok := s.maxLatencyMS.Get()
	return time.Duration(ms) * time.Millisecond, ok
}

func (s ResponseSpec) ContentType() (string, bool) { return s.contentType.Get() }

func (s ResponseSpec) HeaderExpectations() map[string]assertions.Predicate {
	return maps.Clone(s.headers)
}

func (s ResponseSpec) BodyAssertions() []BodyAssertion { return slices.Clone(s.body) }

// IsZero reports whether s expects nothing.
func (s ResponseSpec) IsZero() bool {
	return len(s.statuses) == 0 && !s.maxLatencyMS.IsDefined() && !s.contentType.IsDefined() &&
		len(s.headers) == 0 && len(s.body) == 0
}

// MergeResponse folds specs left to right. Statuses, latency and content
// type are replaced wholesale when set, header expectations merge by name,
// and body assertions accumulate with earlier specs first.
func MergeResponse(specs ...ResponseSpec) ResponseSpec {
	var out ResponseSpec
	for _, s := range specs {
		if s.statuses != nil {
			out.statuses = slices.Clone(s.statuses)
		}
		if s.maxLatencyMS.IsDefined() {
			out.maxLatencyMS = s.maxLatencyMS
		}
		if s.contentType.IsDefined() {
			out.contentType = s.contentType
		}
		if len(s.headers) > 0 {
			merged := maps.Clone(out.headers)
			if merged == nil {
				merged = make(map[string]assertions.Predicate, len(s.headers))
			}
			maps.Copy(merged, s.headers)
			out.headers = merged
		}
		if len(s.body) > 0 {
			out.body = append(slices.Clip(out.body), s.body...)
		}
	}
	return out
}

// SuccessResponse expects 200 with a JSON body within three seconds.
func SuccessResponse() ResponseSpec {
	return NewResponse(
		ExpectStatus(200),
		ExpectMaxLatency(3*time.Second),
		ExpectContentType("application/json"),
	)
}

// CreatedResponse expects 201 with a JSON body within three seconds.
func CreatedResponse() ResponseSpec {
	return NewResponse(
		ExpectStatus(201),
		ExpectMaxLatency(3*time.Second),
		ExpectContentType("application/json"),
	)
}

// DefaultResponse only bounds latency at five seconds.
func DefaultResponse() ResponseSpec {
	return NewResponse(ExpectMaxLatency(5 * time.Second))
}
