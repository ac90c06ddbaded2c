package operations

import (
	"context"
	"sort"
	"sync"

	"github.com/helixir/citation-index-service/internal/table"
)

// TransformFunc rewrites a table. The boolean tells the dispatcher whether
// the returned table replaces the original one (true) or is an
// intermediate result (false).
type TransformFunc func(ctx context.Context, t *table.Table, args ...string) (*table.Table, bool, error)

// ParamFunc rewrites a request parameter before it is substituted into the
// upstream query.
type ParamFunc func(ctx context.Context, value string) (string, error)

// Registry holds the named transforms and parameter preprocessors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]TransformFunc
	params     map[string]ParamFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transforms: make(map[string]TransformFunc),
		params:     make(map[string]ParamFunc),
	}
}

// RegisterTransform adds a transform, replacing any previous one with the
// same name.
func (r *Registry) RegisterTransform(name string, fn TransformFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// RegisterParam adds a parameter preprocessor, replacing any previous one
// with the same name.
func (r *Registry) RegisterParam(name string, fn ParamFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[name] = fn
}

// Transform returns the named transform.
func (r *Registry) Transform(name string) (TransformFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.transforms[name]
	return fn, ok
}

// Param returns the named parameter preprocessor.
func (r *Registry) Param(name string) (ParamFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.params[name]
	return fn, ok
}

// TransformNames returns the registered transform names, sorted.
func (r *Registry) TransformNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.transforms)
}

// ParamNames returns the registered preprocessor names, sorted.
func (r *Registry) ParamNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.params)
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
