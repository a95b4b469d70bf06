package http

import (
	"net/url"
	"time"
)

type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      string
	Timeout   time.Duration
	Auth      *Auth
	Multipart []*MultipartField
	BaseDir   string // Base directory for resolving relative file paths
}

// MultipartFieldType distinguishes plain form values from file uploads.
type MultipartFieldType int

const (
	MultipartFieldValue MultipartFieldType = iota
	MultipartFieldFile
)

// MultipartField is one part of a multipart/form-data body.
type MultipartField struct {
	Type        MultipartFieldType
	Name        string
	Value       string
	Path        string
	ContentType string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// Header returns the value of a request header, matching the name case-insensitively.
func (r *Request) Header(key string) string {
	return lookupHeader(r.Headers, key)
}

// SetQueryParam adds key=value to the request URL, keeping existing values
// for the same key.
func (r *Request) SetQueryParam(key, value string) *Request {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r
	}
	q := u.Query()
	q.Add(key, value)
	u.RawQuery = q.Encode()
	r.URL = u.String()
	return r
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		c.Headers[k] = v
	}
	if r.Auth != nil {
		auth := *r.Auth
		auth.Params = append([]string(nil), r.Auth.Params...)
		c.Auth = &auth
	}
	if r.Multipart != nil {
		c.Multipart = make([]*MultipartField, len(r.Multipart))
		for i, f := range r.Multipart {
			field := *f
			c.Multipart[i] = &field
		}
	}
	return &c
}
