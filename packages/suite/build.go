package suite

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/capture"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
	"github.com/abdul-hamid-achik/contractkit/packages/workflow"
)

// RequestSpec returns the named request spec merged over everything it
// extends, in order.
func (s *Suite) RequestSpec(name string) (spec.RequestSpec, error) {
	return s.requestSpec(name, nil)
}

func (s *Suite) requestSpec(name string, seen []string) (spec.RequestSpec, error) {
	if slices.Contains(seen, name) {
		return spec.RequestSpec{}, config.Fatalf("suite", "request spec %q extends itself: %s", name, strings.Join(append(seen, name), " -> "))
	}
	doc, ok := s.Requests[name]
	if !ok {
		return spec.RequestSpec{}, config.Fatalf("suite", "unknown request spec %q", name)
	}
	rs, err := s.buildRequest(doc, append(slices.Clip(seen), name))
	if err != nil {
		return spec.RequestSpec{}, fmt.Errorf("request spec %s: %w", name, err)
	}
	return rs, nil
}

func (s *Suite) buildRequest(doc RequestDoc, seen []string) (spec.RequestSpec, error) {
	parts := make([]spec.RequestSpec, 0, len(doc.Extends)+1)
	for _, parent := range doc.Extends {
		p, err := s.requestSpec(parent, seen)
		if err != nil {
			return spec.RequestSpec{}, err
		}
		parts = append(parts, p)
	}
	own, err := requestFromDoc(doc)
	if err != nil {
		return spec.RequestSpec{}, err
	}
	return spec.Merge(append(parts, own)...), nil
}

func requestFromDoc(doc RequestDoc) (spec.RequestSpec, error) {
	var opts []spec.Option
	if doc.BaseURL != "" {
		opts = append(opts, spec.WithBaseURL(doc.BaseURL))
	}
	if doc.ContentType != "" {
		opts = append(opts, spec.WithContentType(doc.ContentType))
	}
	if doc.Accept != "" {
		opts = append(opts, spec.WithAccept(doc.Accept))
	}
	if doc.Timeout != "" {
		d, err := parseDuration("timeout", doc.Timeout)
		if err != nil {
			return spec.RequestSpec{}, err
		}
		opts = append(opts, spec.WithTimeout(d))
	}
	for _, k := range sortedKeys(doc.Headers) {
		opts = append(opts, spec.WithHeader(k, doc.Headers[k]))
	}
	for _, k := range sortedKeys(doc.Cookies) {
		opts = append(opts, spec.WithCookie(k, doc.Cookies[k]))
	}
	for _, k := range sortedKeys(doc.Query) {
		opts = append(opts, spec.WithQueryParam(k, doc.Query[k]...))
	}
	for _, k := range sortedKeys(doc.PathParams) {
		opts = append(opts, spec.WithPathParam(k, doc.PathParams[k]))
	}
	if doc.Auth != nil {
		t, err := http.ParseAuthType(doc.Auth.Type)
		if err != nil {
			return spec.RequestSpec{}, config.WrapFatal("suite", "invalid auth", err)
		}
		auth := &http.Auth{Type: t, Params: doc.Auth.Params}
		if err := auth.Validate(); err != nil {
			return spec.RequestSpec{}, config.WrapFatal("suite", "invalid auth", err)
		}
		opts = append(opts, spec.WithAuth(auth))
	}
	return spec.NewRequest(opts...), nil
}

func (s *Suite) request(ref RequestRef) (spec.RequestSpec, error) {
	if ref.Inline != nil {
		return s.buildRequest(*ref.Inline, nil)
	}
	parts := make([]spec.RequestSpec, 0, len(ref.Names))
	for _, name := range ref.Names {
		p, err := s.RequestSpec(name)
		if err != nil {
			return spec.RequestSpec{}, err
		}
		parts = append(parts, p)
	}
	return spec.Merge(parts...), nil
}

// ResponseSpec returns the named response spec merged over everything it
// extends, in order.
func (s *Suite) ResponseSpec(name string) (spec.ResponseSpec, error) {
	return s.responseSpec(name, nil)
}

func (s *Suite) responseSpec(name string, seen []string) (spec.ResponseSpec, error) {
	if slices.Contains(seen, name) {
		return spec.ResponseSpec{}, config.Fatalf("suite", "response spec %q extends itself: %s", name, strings.Join(append(seen, name), " -> "))
	}
	doc, ok := s.Responses[name]
	if !ok {
		return spec.ResponseSpec{}, config.Fatalf("suite", "unknown response spec %q", name)
	}
	rs, err := s.buildResponse(doc, append(slices.Clip(seen), name))
	if err != nil {
		return spec.ResponseSpec{}, fmt.Errorf("response spec %s: %w", name, err)
	}
	return rs, nil
}

func (s *Suite) buildResponse(doc ResponseDoc, seen []string) (spec.ResponseSpec, error) {
	parts := make([]spec.ResponseSpec, 0, len(doc.Extends)+1)
	for _, parent := range doc.Extends {
		p, err := s.responseSpec(parent, seen)
		if err != nil {
			return spec.ResponseSpec{}, err
		}
		parts = append(parts, p)
	}
	own, err := responseFromDoc(doc)
	if err != nil {
		return spec.ResponseSpec{}, err
	}
	return spec.MergeResponse(append(parts, own)...), nil
}

func responseFromDoc(doc ResponseDoc) (spec.ResponseSpec, error) {
	var preset spec.ResponseSpec
	switch strings.ToLower(doc.Preset) {
	case "":
	case "success":
		preset = spec.SuccessResponse()
	case "created":
		preset = spec.CreatedResponse()
	case "default":
		preset = spec.DefaultResponse()
	default:
		return spec.ResponseSpec{}, config.Fatalf("suite", "unknown response preset %q (want success, created or default)", doc.Preset)
	}

	var opts []spec.ResponseOption
	if len(doc.Status) > 0 {
		opts = append(opts, spec.ExpectStatus(doc.Status...))
	}
	if doc.MaxLatency != "" {
		d, err := parseDuration("maxLatency", doc.MaxLatency)
		if err != nil {
			return spec.ResponseSpec{}, err
		}
		opts = append(opts, spec.ExpectMaxLatency(d))
	}
	if doc.ContentType != "" {
		opts = append(opts, spec.ExpectContentType(doc.ContentType))
	}
	for _, name := range sortedKeys(doc.Headers) {
		h := doc.Headers[name]
		p, err := assertions.ParsePredicate(h.Op, h.Value)
		if err != nil {
			return spec.ResponseSpec{}, config.WrapFatal("suite", "header "+name, err)
		}
		opts = append(opts, spec.ExpectHeader(name, p))
	}
	for _, b := range doc.Body {
		op := b.Op
		if op == "" {
			op = "exists"
			if b.Value != nil {
				op = "equals"
			}
		}
		p, err := assertions.ParsePredicate(op, b.Value)
		if err != nil {
			return spec.ResponseSpec{}, config.WrapFatal("suite", "body "+b.Path, err)
		}
		opts = append(opts, spec.ExpectBody(b.Path, p))
	}
	return spec.MergeResponse(preset, spec.NewResponse(opts...)), nil
}

func (s *Suite) response(ref ResponseRef) (spec.ResponseSpec, error) {
	if ref.Inline != nil {
		return s.buildResponse(*ref.Inline, nil)
	}
	parts := make([]spec.ResponseSpec, 0, len(ref.Names))
	for _, name := range ref.Names {
		p, err := s.ResponseSpec(name)
		if err != nil {
			return spec.ResponseSpec{}, err
		}
		parts = append(parts, p)
	}
	return spec.MergeResponse(parts...), nil
}

// Workflow builds the named workflow.
func (s *Suite) Workflow(name string) (*workflow.Workflow, error) {
	for _, doc := range s.Workflows {
		if doc.Name == name {
			return s.buildWorkflow(doc.Name, doc.Request, doc.Expect, doc.Steps)
		}
	}
	return nil, config.Fatalf("suite", "unknown workflow %q", name)
}

func (s *Suite) buildWorkflow(name string, reqRef RequestRef, expRef ResponseRef, steps []StepDoc) (*workflow.Workflow, error) {
	base, err := s.request(reqRef)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", name, err)
	}
	expect, err := s.response(expRef)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", name, err)
	}

	wf := &workflow.Workflow{Name: name, Base: base, Expect: expect}
	for i, doc := range steps {
		step, err := s.buildStep(doc)
		if err != nil {
			return nil, fmt.Errorf("workflow %s step %d: %w", name, i+1, err)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}

func (s *Suite) buildStep(doc StepDoc) (workflow.Step, error) {
	req, err := s.request(doc.Request)
	if err != nil {
		return workflow.Step{}, err
	}
	expect, err := s.response(doc.Expect)
	if err != nil {
		return workflow.Step{}, err
	}
	body, err := encodeBody(doc.Body)
	if err != nil {
		return workflow.Step{}, err
	}

	step := workflow.Step{
		Name:    doc.Name,
		Method:  doc.Method,
		Path:    doc.Path,
		Body:    body,
		Request: req,
		Expect:  expect,
		Schema:  doc.Schema,
	}
	for _, key := range sortedKeys(doc.Capture) {
		c, err := capture.ParseCapture(key, doc.Capture[key])
		if err != nil {
			return workflow.Step{}, config.WrapFatal("suite", "invalid capture", err)
		}
		step.Captures = append(step.Captures, c)
	}
	for _, m := range doc.Multipart {
		field := &http.MultipartField{Name: m.Name, Value: m.Value, ContentType: m.ContentType}
		if m.File != "" {
			field.Type = http.MultipartFieldFile
			field.Path = m.File
		}
		step.Multipart = append(step.Multipart, field)
	}
	return step, nil
}

// encodeBody sends strings verbatim and JSON-encodes any other YAML value.
func encodeBody(body any) (string, error) {
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", config.WrapFatal("suite", "cannot encode body as JSON", err)
	}
	return string(data), nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, config.WrapFatal("suite", "invalid "+field, err)
	}
	if d < 0 {
		return 0, config.Fatalf("suite", "%s must not be negative, got %s", field, value)
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
