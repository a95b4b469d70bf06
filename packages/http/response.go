package http

import (
	"encoding/json"
	"mime"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	return lookupHeader(r.Headers, key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// MediaType returns the Content-Type without parameters such as charset.
func (r *Response) MediaType() string {
	return MediaType(r.ContentType())
}

func (r *Response) IsJSON() bool {
	mt := r.MediaType()
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// MediaType strips parameters from a Content-Type value and lowercases it.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func lookupHeader(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
