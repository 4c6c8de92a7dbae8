package providers

import (
	"fmt"
	"sync/atomic"
)

// ProviderRecord is the registry's metadata about a configured provider,
// separate from the Provider interface itself: the dialect it speaks, how it
// authenticates, its declared capability set, cost and rate budget, and any
// region/compliance tags a router or admin surface needs without calling
// into the live adapter.
type ProviderRecord struct {
	Name           string
	Dialect        string // e.g. "openai-compatible", "anthropic-messages", "bedrock-invoke"
	AuthScheme     string // e.g. "bearer", "sigv4", "api-key-header"
	Capabilities   []string
	CostPerMille   float64 // declared USD per 1000 completion tokens, 0 if unknown
	RateBudget     float64 // declared requests/minute, 0 if unbounded
	Regions        []string
	ComplianceTags []string
}

type registryEntry struct {
	provider Provider
	record   ProviderRecord
}

type registrySnapshot struct {
	entries map[string]registryEntry
}

// Registry manages a collection of providers for lookup by name. Mutation
// publishes a new immutable snapshot via copy-on-write so readers never see
// a partially-updated map; Register/Unregister take no lock, they just swap
// the pointer.
type Registry struct {
	snapshot atomic.Pointer[registrySnapshot]
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snapshot.Store(&registrySnapshot{entries: map[string]registryEntry{}})
	return r
}

func (r *Registry) current() *registrySnapshot {
	snap := r.snapshot.Load()
	if snap == nil {
		return &registrySnapshot{entries: map[string]registryEntry{}}
	}
	return snap
}

// Register adds a provider to the registry with a blank ProviderRecord. Use
// RegisterWithRecord to carry dialect/capability/cost metadata alongside it.
func (r *Registry) Register(p Provider) {
	r.RegisterWithRecord(p, ProviderRecord{Name: p.Name()})
}

// RegisterWithRecord adds a provider and its registry metadata, publishing a
// new copy-on-write snapshot.
func (r *Registry) RegisterWithRecord(p Provider, rec ProviderRecord) {
	if rec.Name == "" {
		rec.Name = p.Name()
	}
	for {
		old := r.current()
		next := make(map[string]registryEntry, len(old.entries)+1)
		for k, v := range old.entries {
			next[k] = v
		}
		next[p.Name()] = registryEntry{provider: p, record: rec}
		newSnap := &registrySnapshot{entries: next}
		if r.snapshot.CompareAndSwap(old, newSnap) {
			return
		}
	}
}

// Unregister removes a provider by name, publishing a new snapshot.
func (r *Registry) Unregister(name string) {
	for {
		old := r.current()
		if _, ok := old.entries[name]; !ok {
			return
		}
		next := make(map[string]registryEntry, len(old.entries))
		for k, v := range old.entries {
			if k != name {
				next[k] = v
			}
		}
		newSnap := &registrySnapshot{entries: next}
		if r.snapshot.CompareAndSwap(old, newSnap) {
			return
		}
	}
}

// Get returns a provider by name and whether it was found.
func (r *Registry) Get(name string) (Provider, bool) {
	e, ok := r.current().entries[name]
	return e.provider, ok
}

// Record returns the ProviderRecord for a registered provider.
func (r *Registry) Record(name string) (ProviderRecord, bool) {
	e, ok := r.current().entries[name]
	return e.record, ok
}

// MustGet returns a provider by name or panics if not found.
func (r *Registry) MustGet(name string) Provider {
	p, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("provider not found: %s", name))
	}
	return p
}

// List returns the names of all registered providers.
func (r *Registry) List() []string {
	snap := r.current()
	names := make([]string, 0, len(snap.entries))
	for name := range snap.entries {
		names = append(names, name)
	}
	return names
}

// Records returns the ProviderRecord for every registered provider.
func (r *Registry) Records() []ProviderRecord {
	snap := r.current()
	out := make([]ProviderRecord, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, e.record)
	}
	return out
}

// AllModels returns ModelInfo from all registered providers.
func (r *Registry) AllModels() []ModelInfo {
	var models []ModelInfo
	for _, e := range r.current().entries {
		models = append(models, e.provider.Models()...)
	}
	return models
}

// FindByModel returns the first provider that supports the given model.
func (r *Registry) FindByModel(model string) (Provider, bool) {
	for _, e := range r.current().entries {
		if e.provider.SupportsModel(model) {
			return e.provider, true
		}
	}
	return nil, false
}
