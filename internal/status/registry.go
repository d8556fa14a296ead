// Package status aggregates per-component counters and publishes them
// to the remote status endpoint. Publishing is observational only: a
// dead status endpoint never slows the pipeline down.
package status

import "sync"

// Provider returns a component's current snapshot. Implementations
// must be safe to call from the reporter goroutine; the pipeline
// components back them with their Stats() copies.
type Provider func() any

// Registry maps component names to snapshot providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider for name.
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Snapshot invokes every provider and returns the results keyed by
// component name.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]any, len(r.providers))
	for name, provider := range r.providers {
		snapshot[name] = provider()
	}
	return snapshot
}
