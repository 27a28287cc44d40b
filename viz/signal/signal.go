package signal

import (
	"slices"
	"sync"
)

// Kind identifies a notification emitted by a render surface
type Kind int

const (
	// CompositorUpdated carries the layer id and its new chain
	CompositorUpdated Kind = iota
	FullscreenSet
	FullscreenUnset
	// Rendered follows every effective immediate draw
	Rendered
	// BufferModified follows every offscreen capture
	BufferModified
)

func (k Kind) String() string {
	switch k {
	case CompositorUpdated:
		return "compositor_updated"
	case FullscreenSet:
		return "fullscreen_set"
	case FullscreenUnset:
		return "fullscreen_unset"
	case Rendered:
		return "rendered"
	case BufferModified:
		return "buffer_modified"
	}
	return "unknown"
}

// Payload is the data attached to a notification. Fields not relevant to a
// kind are zero.
type Payload struct {
	Surface string
	Layer   string
	Chain   []string
	Screen  int
	Frame   uint64
}

// Hub dispatches notifications to registered callbacks.
// Callbacks run synchronously on the emitting goroutine.
type Hub struct {
	mu       sync.RWMutex
	handlers map[Kind][]func(Payload)
}

func NewHub() *Hub {
	return &Hub{handlers: make(map[Kind][]func(Payload))}
}

// On registers a callback for a notification kind
func (h *Hub) On(kind Kind, callback func(Payload)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = append(h.handlers[kind], callback)
}

// Emit calls every callback registered for kind
func (h *Hub) Emit(kind Kind, p Payload) {
	h.mu.RLock()
	callbacks := slices.Clone(h.handlers[kind])
	h.mu.RUnlock()

	for _, callback := range callbacks {
		callback(p)
	}
}

// Count returns the number of callbacks registered for kind
func (h *Hub) Count(kind Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[kind])
}
