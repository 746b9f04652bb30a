package adapter

import (
	"fmt"
	"sort"
)

// Registry is an explicit lookup table from adapter id to adapter instance.
// It is built at startup and injected into the components that need it, so
// tests can construct isolated registries with fakes.
type Registry struct {
	adapters map[string]CollegeAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]CollegeAdapter),
	}
}

// Register adds an adapter. Registering the same id twice is a configuration
// bug and fails loudly.
func (r *Registry) Register(a CollegeAdapter) error {
	id := a.AdapterID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %q is already registered", id)
	}
	r.adapters[id] = a
	return nil
}

// Get returns the adapter for an id, or false if none is registered
func (r *Registry) Get(adapterID string) (CollegeAdapter, bool) {
	a, ok := r.adapters[adapterID]
	return a, ok
}

// GetOrError returns the adapter for an id, or an error if none is registered
func (r *Registry) GetOrError(adapterID string) (CollegeAdapter, error) {
	a, ok := r.adapters[adapterID]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %q", adapterID)
	}
	return a, nil
}

// IDs returns the registered adapter ids in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
