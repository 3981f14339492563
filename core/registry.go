package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AdapterRegistry maps provider keys to adapter instances. Registration
// happens at wiring time; lookups are read-only afterward.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[string]Adapter)}
}

func (r *AdapterRegistry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	id := strings.TrimSpace(strings.ToLower(adapter.ID()))
	if id == "" {
		return fmt.Errorf("core: adapter provider key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("core: adapter already registered: %s", id)
	}
	r.adapters[id] = adapter
	return nil
}

func (r *AdapterRegistry) Resolve(providerKey string) (Adapter, error) {
	id := strings.TrimSpace(strings.ToLower(providerKey))
	if id == "" {
		return nil, NewBadInputError("core: provider key is required")
	}
	r.mu.RLock()
	adapter, ok := r.adapters[id]
	r.mu.RUnlock()
	if !ok {
		return nil, NewUnknownProviderError(id)
	}
	return adapter, nil
}

func (r *AdapterRegistry) List() []Adapter {
	r.mu.RLock()
	keys := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		keys = append(keys, id)
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	adapters := make([]Adapter, 0, len(keys))
	r.mu.RLock()
	for _, id := range keys {
		adapters = append(adapters, r.adapters[id])
	}
	r.mu.RUnlock()
	return adapters
}

var _ Registry = (*AdapterRegistry)(nil)
