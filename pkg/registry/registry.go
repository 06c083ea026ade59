// Package registry provides the name-to-factory maps the session
// synchronizer dispatches through.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

// Registry maps names to handler factories. Lookups of unregistered names
// fail with the registry's error code.
type Registry[K ~string, F any] struct {
	kind string
	code string

	mu      sync.RWMutex
	entries map[K]F
}

// New creates a registry. kind names the entries in errors (e.g.,
// "event handler"); code is the error code for unregistered names.
func New[K ~string, F any](kind, code string) *Registry[K, F] {
	return &Registry[K, F]{
		kind:    kind,
		code:    code,
		entries: make(map[K]F),
	}
}

// Register adds factory under name. Registering a name twice panics.
func (r *Registry[K, F]) Register(name K, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("registry: %s %q registered twice", r.kind, name))
	}
	r.entries[name] = factory
}

// Lookup returns the factory for name.
func (r *Registry[K, F]) Lookup(name K) (F, error) {
	r.mu.RLock()
	factory, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		var zero F
		return zero, errors.New(r.code).WithSubject(string(name))
	}
	return factory, nil
}

// Has reports whether name is registered.
func (r *Registry[K, F]) Has(name K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Keys returns the registered names, sorted.
func (r *Registry[K, F]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of registered names.
func (r *Registry[K, F]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Missing returns the names in want that are not registered.
func (r *Registry[K, F]) Missing(want []K) []K {
	var out []K
	for _, k := range want {
		if !r.Has(k) {
			out = append(out, k)
		}
	}
	return out
}
