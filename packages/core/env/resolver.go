package env

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is called for placeholders that cannot be resolved.
type WarnFunc func(format string, args ...any)

// Resolver replaces {{...}} placeholders. Resolvers form a chain of scopes:
// a child sees its own variables first and then its parent's.
type Resolver struct {
	mu        sync.RWMutex
	parent    *Resolver
	variables map[string]any
	funcs     map[string]Func
	lookupEnv func(string) (string, bool)
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		funcs:     defaultFuncs(),
		lookupEnv: os.LookupEnv,
	}
}

// Child returns a new scope whose lookups fall back to r.
func (r *Resolver) Child(vars map[string]any) *Resolver {
	child := &Resolver{
		parent:    r,
		variables: make(map[string]any, len(vars)),
		funcs:     r.funcs,
		lookupEnv: r.lookupEnv,
		warnFunc:  r.warnFunc,
	}
	for k, v := range vars {
		child.variables[k] = v
	}
	return child
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// SetLookupEnv replaces the environment lookup, mostly for tests.
func (r *Resolver) SetLookupEnv(fn func(string) (string, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupEnv = fn
}

// Register adds or replaces a built-in function.
func (r *Resolver) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	funcs := make(map[string]Func, len(r.funcs)+1)
	for k, v := range r.funcs {
		funcs[k] = v
	}
	funcs[name] = fn
	r.funcs = funcs
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
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

// GetVariable looks name up through the scope chain. Dotted names descend
// into structured values: "row.user.id" reads the path user.id of "row".
func (r *Resolver) GetVariable(name string) (any, bool) {
	if v, ok := r.lookup(name); ok {
		return v, true
	}
	head, path, dotted := strings.Cut(name, ".")
	if !dotted {
		return nil, false
	}
	root, ok := r.lookup(head)
	if !ok {
		return nil, false
	}
	return lookupPath(root, path)
}

func (r *Resolver) lookup(name string) (any, bool) {
	for scope := r; scope != nil; scope = scope.parent {
		scope.mu.RLock()
		v, ok := scope.variables[name]
		scope.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

func lookupPath(root any, path string) (any, bool) {
	var result gjson.Result
	switch v := root.(type) {
	case string:
		if !gjson.Valid(v) {
			return nil, false
		}
		result = gjson.Get(v, path)
	default:
		data, err := json.Marshal(toJSONCompatible(v))
		if err != nil {
			return nil, false
		}
		result = gjson.GetBytes(data, path)
	}
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// toJSONCompatible converts the map[any]any values yaml can produce.
func toJSONCompatible(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = toJSONCompatible(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toJSONCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toJSONCompatible(val)
		}
		return out
	}
	return v
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// evaluate resolves the expression inside one placeholder.
func (r *Resolver) evaluate(expr string) (any, bool) {
	if strings.HasPrefix(expr, "$") {
		name := expr[1:]
		if name == "uuid" {
			return callFunc(r.funcs, "uuid()")
		}
		name = strings.TrimPrefix(name, "env.")
		if val, ok := r.lookupEnv(name); ok {
			return val, true
		}
		return nil, false
	}
	if strings.Contains(expr, "(") {
		return callFunc(r.funcs, expr)
	}
	return r.GetVariable(expr)
}

// Resolve replaces every placeholder it can resolve. Unresolved ones are
// left in place and reported through the warn function.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.evaluate(expr); ok {
			return stringify(val)
		}
		r.warn("unresolved placeholder: %s", expr)
		return match
	})
}

// ResolveValue resolves a single value. A string consisting of exactly one
// placeholder yields the raw value, so numbers and objects keep their type.
func (r *Resolver) ResolveValue(v any) any {
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if loc := variablePattern.FindStringIndex(trimmed); loc != nil && loc[0] == 0 && loc[1] == len(trimmed) {
			if val, ok := r.evaluate(strings.TrimSpace(trimmed[2 : len(trimmed)-2])); ok {
				return val
			}
		}
		return r.Resolve(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = r.ResolveValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = r.ResolveValue(item)
		}
		return out
	}
	return v
}

// Unresolved lists the placeholder expressions of input that cannot be
// resolved, in order of appearance.
func (r *Resolver) Unresolved(input string) []string {
	var out []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok := r.evaluate(expr); !ok {
			out = append(out, expr)
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case map[string]any, []any, map[any]any:
		data, err := json.Marshal(toJSONCompatible(t))
		if err == nil {
			return string(data)
		}
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprintf("%v", v)
}
