package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
)

const componentPrefix = "#/components/schemas/"

// ErrUnknownSchema marks a reference no store defines.
var ErrUnknownSchema = errors.New("unknown schema")

// OpenAPIStore serves the component schemas of an OpenAPI 3 document. A
// reference is either a component name such as "User" or its pointer
// "#/components/schemas/User". It is safe for concurrent use.
type OpenAPIStore struct {
	components map[string]any

	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// LoadOpenAPIStore reads the OpenAPI document at path. External references
// are resolved relative to it.
func LoadOpenAPIStore(path string) (*OpenAPIStore, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, config.WrapFatal("schema", "cannot load OpenAPI document "+path, err)
	}
	return NewOpenAPIStore(doc)
}

// ParseOpenAPIStore parses an OpenAPI document in JSON or YAML.
func ParseOpenAPIStore(data []byte) (*OpenAPIStore, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, config.WrapFatal("schema", "cannot parse OpenAPI document", err)
	}
	return NewOpenAPIStore(doc)
}

func NewOpenAPIStore(doc *openapi3.T) (*OpenAPIStore, error) {
	s := &OpenAPIStore{components: map[string]any{}, cache: make(map[string]*gojsonschema.Schema)}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return s, nil
	}

	data, err := json.Marshal(doc.Components.Schemas)
	if err != nil {
		return nil, config.WrapFatal("schema", "cannot encode OpenAPI component schemas", err)
	}
	if err := json.Unmarshal(data, &s.components); err != nil {
		return nil, config.WrapFatal("schema", "cannot encode OpenAPI component schemas", err)
	}
	for _, c := range s.components {
		nullable(c)
	}
	return s, nil
}

// Names lists the component schemas the document defines.
func (s *OpenAPIStore) Names() []string {
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	return names
}

func (s *OpenAPIStore) Schema(ref string) (*gojsonschema.Schema, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), componentPrefix)
	if _, ok := s.components[name]; !ok {
		return nil, config.WrapFatal("schema", "cannot resolve schema "+ref, ErrUnknownSchema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if compiled, ok := s.cache[name]; ok {
		return compiled, nil
	}

	// The component is compiled inside a document that carries every
	// component, so references between them resolve.
	root := map[string]any{
		"$ref":       componentPrefix + name,
		"components": map[string]any{"schemas": s.components},
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(root))
	if err != nil {
		return nil, config.WrapFatal("schema", "invalid schema "+ref, err)
	}
	s.cache[name] = compiled
	return compiled, nil
}

// nullable rewrites OpenAPI 3.0 "nullable: true" into a JSON Schema type
// union that also admits null.
func nullable(v any) {
	switch node := v.(type) {
	case map[string]any:
		if n, ok := node["nullable"].(bool); ok {
			if t, isType := node["type"].(string); n && isType {
				node["type"] = []any{t, "null"}
			}
			delete(node, "nullable")
		}
		for _, child := range node {
			nullable(child)
		}
	case []any:
		for _, child := range node {
			nullable(child)
		}
	}
}

// Chain resolves each reference with the first store that defines it.
type Chain []Store

func (c Chain) Schema(ref string) (*gojsonschema.Schema, error) {
	var err error
	for _, store := range c {
		var compiled *gojsonschema.Schema
		compiled, err = store.Schema(ref)
		if err == nil || !errors.Is(err, ErrUnknownSchema) {
			return compiled, err
		}
	}
	if err == nil {
		err = config.WrapFatal("schema", "cannot resolve schema "+ref, ErrUnknownSchema)
	}
	return nil, err
}
