package env

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/contractkit/packages/bodypath"
	"github.com/abdul-hamid-achik/contractkit/packages/builtin"
	"github.com/abdul-hamid-achik/contractkit/packages/capture"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver expands templates against variables, a capture context, built-in
// functions and the OS environment. Variables are guarded for concurrent
// use; the capture context belongs to a single workflow run.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  *capture.Context
	funcs     *builtin.Registry
	warnFunc  WarnFunc
	lookupEnv func(string) (string, bool)
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  capture.NewContext(),
		funcs:     builtin.NewRegistry(nil),
		lookupEnv: os.LookupEnv,
	}
}

// SetWarnFunc sets a function to be called when lenient resolution leaves a
// template unresolved.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// SetFuncs replaces the built-in function registry.
func (r *Resolver) SetFuncs(funcs *builtin.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs = funcs
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetContext makes ctx the capture context templates read from.
func (r *Resolver) SetContext(ctx *capture.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = ctx
}

func (r *Resolver) Context() *capture.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.captures
}

// SetCapture binds a value under both "step.name" and "name".
func (r *Resolver) SetCapture(stepName, captureName string, value any) {
	ctx := r.Context()
	if stepName != "" {
		ctx.Bind(stepName+"."+captureName, value)
	}
	ctx.Bind(captureName, value)
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	ctx := r.Context()
	if !ctx.Has(name) {
		return nil, false
	}
	v, _ := ctx.Resolve(name)
	return v, true
}

// Resolve expands every template in input. The first reference that cannot
// be resolved is returned as an error: *capture.UnboundVariableError for an
// unknown key or unset environment variable, *bodypath.ExtractionError for
// a path into a captured value that does not resolve.
func (r *Resolver) Resolve(input string) (string, error) {
	var firstErr error
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		v, err := r.evaluate(strings.TrimSpace(match[2 : len(match)-2]))
		if err != nil {
			firstErr = err
			return match
		}
		return formatValue(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveValue is Resolve for an input that is exactly one template, in
// which case the referenced value is returned with its type intact.
func (r *Resolver) ResolveValue(input string) (any, error) {
	trimmed := strings.TrimSpace(input)
	if m := variablePattern.FindStringSubmatchIndex(trimmed); m != nil && m[0] == 0 && m[1] == len(trimmed) {
		return r.evaluate(strings.TrimSpace(trimmed[m[2]:m[3]]))
	}
	return r.Resolve(input)
}

// ResolveLenient leaves unresolvable templates in place and reports each
// through the warn function. It is meant for display, never for requests.
func (r *Resolver) ResolveLenient(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		v, err := r.evaluate(expr)
		if err != nil {
			r.warn("unresolved %s: %v", expr, err)
			return match
		}
		return formatValue(v)
	})
}

func (r *Resolver) ResolveAll(values map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(values))
	for k, v := range values {
		resolved, err := r.Resolve(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		result[k] = resolved
	}
	return result, nil
}

func (r *Resolver) evaluate(expr string) (any, error) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if val, ok := r.lookupEnv(name); ok {
			return val, nil
		}
		return nil, &capture.UnboundVariableError{Key: expr}
	}

	if builtin.IsCall(expr) {
		r.mu.RLock()
		funcs := r.funcs
		r.mu.RUnlock()
		v, ok, err := funcs.Call(expr)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
		return nil, fmt.Errorf("unknown function in {{%s}}", expr)
	}

	return r.lookup(expr)
}

// lookup finds expr as a whole key first, then as a bound key followed by a
// path into its structured value.
func (r *Resolver) lookup(expr string) (any, error) {
	if v, ok := r.GetVariable(expr); ok {
		return v, nil
	}

	if head, rest, ok := splitPath(expr); ok {
		if root, found := r.GetVariable(head); found {
			data, err := json.Marshal(root)
			if err != nil {
				return nil, fmt.Errorf("{{%s}}: %w", expr, err)
			}
			return bodypath.Value(data, rest)
		}
	}

	return nil, &capture.UnboundVariableError{Key: expr, Bound: r.Context().Keys()}
}

func splitPath(expr string) (head, rest string, ok bool) {
	i := strings.IndexAny(expr, ".[")
	if i <= 0 {
		return "", "", false
	}
	if expr[i] == '.' {
		return expr[:i], expr[i+1:], true
	}
	return expr[:i], expr[i:], true
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// References lists the variable keys input refers to, in order, skipping
// function calls and environment lookups. Duplicates are kept once.
func References(input string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) || seen[expr] {
			continue
		}
		seen[expr] = true
		refs = append(refs, expr)
	}
	return refs
}

// HasUnresolvedVariables reports whether any variable reference in input is
// not currently bound.
func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

// GetUnresolvedVariables returns the variable references in input that are
// not currently bound, in order of appearance.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, ref := range References(input) {
		if _, err := r.lookup(ref); err != nil {
			missing = append(missing, ref)
		}
	}
	return missing
}

// VariableNames lists variables and captured keys in sorted order.
func (r *Resolver) VariableNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.variables))
	for k := range r.variables {
		names = append(names, k)
	}
	r.mu.RUnlock()
	names = append(names, r.Context().Keys()...)
	sort.Strings(names)
	return names
}

// HasVariable reports whether name is a captured value or a variable.
func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// GetVariable looks name up in the capture context first, then variables.
func (r *Resolver) GetVariable(name string) (any, bool) {
	if v, ok := r.GetCapture(name); ok {
		return v, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

// Clone copies variables and functions. The clone gets its own empty
// capture context so workflow runs never share captured values.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	clone.lookupEnv = r.lookupEnv
	return clone
}
