package provider

import (
	"sort"
	"sync"

	"opengoat/internal/errs"
)

// DefaultID is the provider assigned when an agent does not name one.
const DefaultID = "openclaw"

// Registry resolves provider ids to descriptors.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Builtins returns a registry pre-loaded with the supported providers.
func Builtins() *Registry {
	r := NewRegistry()
	for _, p := range builtinProviders() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider descriptor.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// Get resolves a provider id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return Provider{}, errs.NotFound("provider %q is not registered", id)
	}
	return p, nil
}

// Default returns the descriptor agents fall back to.
func (r *Registry) Default() Provider {
	p, err := r.Get(DefaultID)
	if err != nil {
		panic("default provider not registered")
	}
	return p
}

// List returns every descriptor sorted by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
