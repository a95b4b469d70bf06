package capture

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// UnboundVariableError reports a lookup of a key no earlier step bound.
type UnboundVariableError struct {
	Key   string
	Bound []string
}

func (e *UnboundVariableError) Error() string {
	if len(e.Bound) == 0 {
		return fmt.Sprintf("unbound variable %q: nothing has been captured yet", e.Key)
	}
	return fmt.Sprintf("unbound variable %q (bound: %s)", e.Key, strings.Join(e.Bound, ", "))
}

// Context maps keys to values captured earlier in one workflow run. It is
// owned by that run and is not safe for concurrent use.
type Context struct {
	values map[string]any
	order  []string
}

func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Bind stores value under key. Rebinding replaces the value and keeps the
// key's original position.
func (c *Context) Bind(key string, value any) {
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = value
}

// BindAll binds every binding in order.
func (c *Context) BindAll(bindings []Binding) {
	for _, b := range bindings {
		c.Bind(b.Key, b.Value)
	}
}

func (c *Context) Resolve(key string) (any, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, &UnboundVariableError{Key: key, Bound: c.Keys()}
	}
	return v, nil
}

func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns bound keys in the order they were first bound.
func (c *Context) Keys() []string {
	return slices.Clone(c.order)
}

func (c *Context) Len() int {
	return len(c.order)
}

// Snapshot returns a copy of every binding.
func (c *Context) Snapshot() map[string]any {
	return maps.Clone(c.values)
}
