package spec

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// Build turns the spec into a concrete request for method and path. Path may
// be relative to the base URL or absolute. {name} placeholders in the base
// URL and path are replaced with escaped path parameters. A base URL that
// does not parse or a placeholder with no binding is a *config.FatalError.
func (s RequestSpec) Build(method, path, body string) (*http.Request, error) {
	target, err := s.resolveURL(path)
	if err != nil {
		return nil, err
	}

	req := http.NewRequest(strings.ToUpper(method), target)
	for k, v := range s.headers {
		req.SetHeader(k, v)
	}
	if ct, ok := s.ContentType(); ok && req.Header("Content-Type") == "" {
		req.SetHeader("Content-Type", ct)
	}
	if accept, ok := s.Accept(); ok && req.Header("Accept") == "" {
		req.SetHeader("Accept", accept)
	}
	if cookie := s.cookieHeader(); cookie != "" {
		req.SetHeader("Cookie", cookie)
	}
	if d, ok := s.Timeout(); ok {
		req.SetTimeout(d)
	}
	req.Auth = s.Auth()
	req.SetBody(body)
	return req, nil
}

func (s RequestSpec) resolveURL(path string) (string, error) {
	base, hasBase := s.BaseURL()
	switch {
	case strings.Contains(path, "://"):
		base, path = path, ""
	case !hasBase:
		return "", config.Fatalf("spec", "no base URL for relative path %q", path)
	}

	base, err := s.substitute(base)
	if err != nil {
		return "", err
	}
	if err := checkBase(base); err != nil {
		return "", err
	}

	raw := base
	if path != "" {
		if path, err = s.substitute(path); err != nil {
			return "", err
		}
		raw = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", config.WrapFatal("spec", "malformed URL", err)
	}

	if len(s.query) > 0 {
		q := u.Query()
		for _, p := range s.query {
			q.Add(p.Key, p.Value)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// checkBase parses the URL a request is sent relative to. It must be http or
// https and name a host.
func checkBase(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return config.WrapFatal("spec", "malformed base URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return config.Fatalf("spec", "base URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return config.Fatalf("spec", "base URL %q has no host", raw)
	}
	return nil
}

// substitute replaces {name} placeholders. Braces that belong to a
// {{template}} are left alone.
func (s RequestSpec) substitute(raw string) (string, error) {
	var (
		b       strings.Builder
		missing []string
		last    int
	)
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(raw, -1) {
		start, end := m[0], m[1]
		if (start > 0 && raw[start-1] == '{') || (end < len(raw) && raw[end] == '}') {
			continue
		}
		key := raw[m[2]:m[3]]
		v, ok := s.PathParam(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		b.WriteString(raw[last:start])
		b.WriteString(url.PathEscape(v))
		last = end
	}
	if len(missing) > 0 {
		return "", config.Fatalf("spec", "unbound path parameter(s) %s in %q", strings.Join(missing, ", "), raw)
	}
	b.WriteString(raw[last:])
	return b.String(), nil
}

func (s RequestSpec) cookieHeader() string {
	if len(s.cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(s.cookies))
	for k := range s.cookies {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + s.cookies[k]
	}
	return strings.Join(parts, "; ")
}
