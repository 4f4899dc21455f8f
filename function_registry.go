package scenarios

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Function is a custom helper callable from rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores rule helpers keyed by lower case name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// DefaultFunctionRegistry returns a registry holding the planning helpers:
//
//	same_length(a, b)         both lists have the same number of entries
//	between(year, lo, hi)     lo <= year <= hi
//	one_of(value, options...) value equals one of options
func DefaultFunctionRegistry() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("same_length", sameLength)
	_ = registry.Register("between", between)
	_ = registry.Register("one_of", oneOf)
	return registry
}

// Register stores fn under name, rejecting duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("scenarios: function %q is nil", name)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("scenarios: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("scenarios: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("scenarios: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("scenarios: function %q not registered", name)
	}
	return fn(args...)
}

func (r *FunctionRegistry) bind(name string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameLength(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("same_length expects 2 arguments, got %d", len(args))
	}
	return listLen(args[0]) == listLen(args[1]), nil
}

// listLen treats scalars as one element lists, matching how planning period
// parameters accept either form.
func listLen(value any) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len()
	}
	return 1
}

func between(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("between expects 3 arguments, got %d", len(args))
	}
	values := make([]float64, 3)
	for i, arg := range args {
		number, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("between argument %d is not numeric: %T", i+1, arg)
		}
		values[i] = number
	}
	return values[0] >= values[1] && values[0] <= values[2], nil
}

func oneOf(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("one_of expects at least 2 arguments, got %d", len(args))
	}
	target := fmt.Sprint(args[0])
	for _, option := range args[1:] {
		if list, ok := option.([]any); ok {
			for _, item := range list {
				if fmt.Sprint(item) == target {
					return true, nil
				}
			}
			continue
		}
		if fmt.Sprint(option) == target {
			return true, nil
		}
	}
	return false, nil
}

func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
