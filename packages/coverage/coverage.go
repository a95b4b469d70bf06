// Package coverage reports which operations of an OpenAPI document the
// steps of a set of suites exercise.
package coverage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

// Report represents an API coverage report.
type Report struct {
	TotalEndpoints   int                   `json:"totalEndpoints"`
	CoveredEndpoints int                   `json:"coveredEndpoints"`
	CoveragePercent  float64               `json:"coveragePercent"`
	ByTag            map[string]*TagReport `json:"byTag,omitempty"`
	Endpoints        []EndpointStatus      `json:"endpoints"`
	// Unmatched holds calls no documented operation accepts.
	Unmatched []Call `json:"unmatched,omitempty"`
}

// TagReport represents coverage for a specific tag.
type TagReport struct {
	Tag              string  `json:"tag"`
	TotalEndpoints   int     `json:"totalEndpoints"`
	CoveredEndpoints int     `json:"coveredEndpoints"`
	CoveragePercent  float64 `json:"coveragePercent"`
}

// EndpointStatus represents the coverage status of an endpoint.
type EndpointStatus struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Covered     bool     `json:"covered"`
	Sources     []string `json:"sources,omitempty"`
}

// Call is one workflow step as written in a suite. Path may be absolute and
// may hold {param} placeholders and {{template}} references.
type Call struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

type endpoint struct {
	method      string
	path        string
	operationID string
	tags        []string
	pattern     *regexp.Regexp
	literals    int
}

// Analyzer matches calls against the operations of one OpenAPI document.
type Analyzer struct {
	endpoints []endpoint
	prefixes  []string
}

var (
	paramPattern    = regexp.MustCompile(`\{[^}/]+\}`)
	templatePattern = regexp.MustCompile(`\{\{[^}]*\}\}`)
	baseURLPattern  = regexp.MustCompile(`^(\{\{[^}]*\}\})+(/|$)`)
)

// LoadAnalyzer reads the OpenAPI document at path.
func LoadAnalyzer(path string) (*Analyzer, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, config.WrapFatal("openapi", "cannot load "+path, err)
	}
	return NewAnalyzer(doc), nil
}

func NewAnalyzer(doc *openapi3.T) *Analyzer {
	a := &Analyzer{}

	for _, server := range doc.Servers {
		u, err := url.Parse(paramPattern.ReplaceAllString(server.URL, "x"))
		if err != nil {
			continue
		}
		if p := strings.TrimSuffix(u.Path, "/"); p != "" {
			a.prefixes = append(a.prefixes, p)
		}
	}

	if doc.Paths == nil {
		return a
	}
	for path, item := range doc.Paths.Map() {
		quoted := regexp.QuoteMeta(paramPattern.ReplaceAllString(path, "\x00"))
		pattern := "^" + strings.ReplaceAll(quoted, "\x00", `[^/]+`) + "/?$"
		literals := 0
		for _, seg := range strings.Split(path, "/") {
			if seg != "" && !paramPattern.MatchString(seg) {
				literals++
			}
		}
		for method, op := range item.Operations() {
			a.endpoints = append(a.endpoints, endpoint{
				method:      strings.ToUpper(method),
				path:        path,
				operationID: op.OperationID,
				tags:        op.Tags,
				pattern:     regexp.MustCompile(pattern),
				literals:    literals,
			})
		}
	}

	// Literal segments win over parameters, so /users/me is preferred to
	// /users/{id}.
	sort.Slice(a.endpoints, func(i, j int) bool {
		ei, ej := a.endpoints[i], a.endpoints[j]
		if ei.literals != ej.literals {
			return ei.literals > ej.literals
		}
		if ei.path != ej.path {
			return ei.path < ej.path
		}
		return ei.method < ej.method
	})
	return a
}

// normalize reduces a step path to the request path the server sees, with
// every placeholder replaced by a single segment value.
func normalize(raw string) string {
	p := baseURLPattern.ReplaceAllString(strings.TrimSpace(raw), "/")
	p = templatePattern.ReplaceAllString(p, "x")
	p = paramPattern.ReplaceAllString(p, "x")
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (a *Analyzer) match(c Call) (int, bool) {
	method := strings.ToUpper(c.Method)
	if method == "" {
		method = "GET"
	}
	path := normalize(c.Path)
	candidates := []string{path}
	for _, prefix := range a.prefixes {
		if strings.HasPrefix(path, prefix+"/") {
			candidates = append(candidates, strings.TrimPrefix(path, prefix))
		}
	}

	for i, e := range a.endpoints {
		if e.method != method {
			continue
		}
		for _, p := range candidates {
			if e.pattern.MatchString(p) {
				return i, true
			}
		}
	}
	return 0, false
}

// Analyze compares calls against the documented operations.
func (a *Analyzer) Analyze(calls []Call) *Report {
	report := &Report{
		TotalEndpoints: len(a.endpoints),
		ByTag:          make(map[string]*TagReport),
		Endpoints:      make([]EndpointStatus, 0, len(a.endpoints)),
	}

	sources := make(map[int][]string)
	for _, c := range calls {
		i, ok := a.match(c)
		if !ok {
			report.Unmatched = append(report.Unmatched, c)
			continue
		}
		sources[i] = append(sources[i], c.Source)
	}

	for i, e := range a.endpoints {
		covered := len(sources[i]) > 0
		report.Endpoints = append(report.Endpoints, EndpointStatus{
			Method:      e.method,
			Path:        e.path,
			OperationID: e.operationID,
			Tags:        e.tags,
			Covered:     covered,
			Sources:     sources[i],
		})
		if covered {
			report.CoveredEndpoints++
		}

		for _, tag := range e.tags {
			tagReport, exists := report.ByTag[tag]
			if !exists {
				tagReport = &TagReport{Tag: tag}
				report.ByTag[tag] = tagReport
			}
			tagReport.TotalEndpoints++
			if covered {
				tagReport.CoveredEndpoints++
			}
		}
	}

	if report.TotalEndpoints > 0 {
		report.CoveragePercent = float64(report.CoveredEndpoints) / float64(report.TotalEndpoints) * 100
	}
	for _, tagReport := range report.ByTag {
		if tagReport.TotalEndpoints > 0 {
			tagReport.CoveragePercent = float64(tagReport.CoveredEndpoints) / float64(tagReport.TotalEndpoints) * 100
		}
	}

	sort.Slice(report.Endpoints, func(i, j int) bool {
		if report.Endpoints[i].Path != report.Endpoints[j].Path {
			return report.Endpoints[i].Path < report.Endpoints[j].Path
		}
		return report.Endpoints[i].Method < report.Endpoints[j].Method
	})

	return report
}

// FormatConsole formats the report for console output.
func (r *Report) FormatConsole() string {
	var sb strings.Builder

	sb.WriteString("\nAPI Coverage Report\n")
	sb.WriteString("===================\n\n")

	sb.WriteString(fmt.Sprintf("Total Endpoints:   %d\n", r.TotalEndpoints))
	sb.WriteString(fmt.Sprintf("Covered Endpoints: %d\n", r.CoveredEndpoints))
	sb.WriteString(fmt.Sprintf("Coverage:          %.1f%%\n\n", r.CoveragePercent))

	if len(r.ByTag) > 0 {
		sb.WriteString("Coverage by Tag:\n")

		tags := make([]string, 0, len(r.ByTag))
		for tag := range r.ByTag {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			tagReport := r.ByTag[tag]
			sb.WriteString(fmt.Sprintf("  %s: %d/%d (%.1f%%)\n",
				tag, tagReport.CoveredEndpoints, tagReport.TotalEndpoints, tagReport.CoveragePercent))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Endpoint Details:\n")
	for _, endpoint := range r.Endpoints {
		status := "[ ]"
		if endpoint.Covered {
			status = "[x]"
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s", status, endpoint.Method, endpoint.Path))
		if len(endpoint.Sources) > 1 {
			sb.WriteString(fmt.Sprintf(" (x%d)", len(endpoint.Sources)))
		}
		sb.WriteString("\n")
	}

	if len(r.Unmatched) > 0 {
		sb.WriteString("\nUndocumented Calls:\n")
		for _, c := range r.Unmatched {
			sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", c.Method, c.Path, c.Source))
		}
	}

	return sb.String()
}

// FormatJSON formats the report as JSON.
func (r *Report) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
