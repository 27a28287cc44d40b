package adaptor

import (
	"maps"
	"slices"
	"sync"
)

// Entry locates an adaptor: the render surface it belongs to and the layer
// it draws into.
type Entry struct {
	Surface string
	Layer   string
}

// Registry maps adaptor ids to their surface and layer. It is filled while
// scene descriptors are parsed, before any surface starts, and read when
// adaptors start. Entries are only inserted or overwritten, so callers must
// tolerate entries pointing at a surface that has since stopped.
//
// One Registry is shared by every surface of a process and passed to each of
// them explicitly.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Set records where adaptor id lives, overwriting any previous entry
func (r *Registry) Set(id string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = e
}

// Lookup returns the entry of adaptor id, if any
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// IDs returns every registered adaptor id, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Entries returns a copy of the whole map
func (r *Registry) Entries() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.entries)
}

// Len returns the number of registered adaptors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
