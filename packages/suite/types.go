package suite

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// File is the YAML document of one suite.
type File struct {
	Name         string                    `yaml:"name"`
	Variables    map[string]any            `yaml:"variables,omitempty"`
	Environments map[string]map[string]any `yaml:"environments,omitempty"`
	WaitFor      *WaitForDoc               `yaml:"waitFor,omitempty"`
	Requests     map[string]RequestDoc     `yaml:"requests,omitempty"`
	Responses    map[string]ResponseDoc    `yaml:"responses,omitempty"`
	Workflows    []WorkflowDoc             `yaml:"workflows,omitempty"`
	Scenarios    []ScenarioDoc             `yaml:"scenarios,omitempty"`
}

// WaitForDoc makes every scenario wait until a service answers.
type WaitForDoc struct {
	URL      string `yaml:"url"`
	Status   int    `yaml:"status,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// RequestDoc describes a request spec. Empty fields are left unset so that
// merging keeps the values of the specs it extends.
type RequestDoc struct {
	Extends     Names             `yaml:"extends,omitempty"`
	BaseURL     string            `yaml:"baseUrl,omitempty"`
	ContentType string            `yaml:"contentType,omitempty"`
	Accept      string            `yaml:"accept,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Cookies     map[string]string `yaml:"cookies,omitempty"`
	Query       map[string]Names  `yaml:"query,omitempty"`
	PathParams  map[string]string `yaml:"pathParams,omitempty"`
	Auth        *AuthDoc          `yaml:"auth,omitempty"`
}

type AuthDoc struct {
	Type   string   `yaml:"type"`
	Params []string `yaml:"params"`
}

// ResponseDoc describes a response spec. Preset is one of success, created
// or default and is applied before the doc's own fields.
type ResponseDoc struct {
	Extends     Names                   `yaml:"extends,omitempty"`
	Preset      string                  `yaml:"preset,omitempty"`
	Status      []int                   `yaml:"status,omitempty"`
	MaxLatency  string                  `yaml:"maxLatency,omitempty"`
	ContentType string                  `yaml:"contentType,omitempty"`
	Headers     map[string]PredicateDoc `yaml:"headers,omitempty"`
	Body        []BodyDoc               `yaml:"body,omitempty"`
}

// PredicateDoc is either a bare value, meaning equals, or an op/value pair.
type PredicateDoc struct {
	Op    string `yaml:"op"`
	Value any    `yaml:"value,omitempty"`
}

func (p *PredicateDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		type plain PredicateDoc
		return node.Decode((*plain)(p))
	}
	p.Op = "equals"
	return node.Decode(&p.Value)
}

type BodyDoc struct {
	Path  string `yaml:"path"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value,omitempty"`
}

type WorkflowDoc struct {
	Name    string      `yaml:"name"`
	Request RequestRef  `yaml:"request,omitempty"`
	Expect  ResponseRef `yaml:"expect,omitempty"`
	Steps   []StepDoc   `yaml:"steps"`
}

type StepDoc struct {
	Name   string `yaml:"name,omitempty"`
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	// Body is sent as is when it is a string and JSON-encoded otherwise.
	Body      any               `yaml:"body,omitempty"`
	Request   RequestRef        `yaml:"request,omitempty"`
	Expect    ResponseRef       `yaml:"expect,omitempty"`
	Schema    string            `yaml:"schema,omitempty"`
	Capture   map[string]string `yaml:"capture,omitempty"`
	Multipart []MultipartDoc    `yaml:"multipart,omitempty"`
}

type MultipartDoc struct {
	Name        string `yaml:"name"`
	Value       string `yaml:"value,omitempty"`
	File        string `yaml:"file,omitempty"`
	ContentType string `yaml:"contentType,omitempty"`
}

// ScenarioDoc runs a named workflow, or its own steps, once per row. Setup
// and teardown are shell commands run around the rows.
type ScenarioDoc struct {
	Name     string      `yaml:"name"`
	Workflow string      `yaml:"workflow,omitempty"`
	Request  RequestRef  `yaml:"request,omitempty"`
	Expect   ResponseRef `yaml:"expect,omitempty"`
	Steps    []StepDoc   `yaml:"steps,omitempty"`
	Rows     []RowDoc    `yaml:"rows,omitempty"`
	Data     *DataDoc    `yaml:"data,omitempty"`
	Setup    []string    `yaml:"setup,omitempty"`
	Teardown []string    `yaml:"teardown,omitempty"`
}

type RowDoc struct {
	Name   string         `yaml:"name,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`
	Expect ResponseRef    `yaml:"expect,omitempty"`
}

// DataDoc points at a CSV file or an XLSX sheet holding rows.
type DataDoc struct {
	CSV   string `yaml:"csv,omitempty"`
	XLSX  string `yaml:"xlsx,omitempty"`
	Sheet string `yaml:"sheet,omitempty"`
}

// Names accepts a single scalar or a list of scalars.
type Names []string

func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*n = Names{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("line %d: expected a name or a list of names", node.Line)
}

// RequestRef refers to named request specs or holds one inline.
type RequestRef struct {
	Names  Names
	Inline *RequestDoc
}

func (r *RequestRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		r.Inline = &RequestDoc{}
		return node.Decode(r.Inline)
	}
	return node.Decode(&r.Names)
}

func (r RequestRef) IsZero() bool {
	return len(r.Names) == 0 && r.Inline == nil
}

// ResponseRef refers to named response specs or holds one inline.
type ResponseRef struct {
	Names  Names
	Inline *ResponseDoc
}

func (r *ResponseRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		r.Inline = &ResponseDoc{}
		return node.Decode(r.Inline)
	}
	return node.Decode(&r.Names)
}

func (r ResponseRef) IsZero() bool {
	return len(r.Names) == 0 && r.Inline == nil
}
