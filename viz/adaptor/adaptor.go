package adaptor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"cogentcore.org/core/math32"
	"github.com/valerio/go-viz/viz/layer"
)

// Adaptor is a visual element attached to one layer of a render surface
type Adaptor interface {
	ID() string
	// SetLazy is called by the surface with true when it renders manually
	SetLazy(lazy bool)
	Lazy() bool
	// RequestUpdate asks the adaptor to refresh its content
	RequestUpdate()
}

// Bounded is implemented by adaptors whose content may have a known extent,
// used to frame layer cameras.
type Bounded interface {
	Bounds() (math32.Box3, bool)
}

// Host is the render surface an adaptor attaches to
type Host interface {
	ID() string
	HasLayer(id string) bool
	Layer(id string) *layer.Layer
	RegisterAdaptor(a Adaptor)
	UnregisterAdaptor(a Adaptor)
	RequestRender()
}

var (
	ErrUnresolved = errors.New("adaptor has no registry entry")
	ErrForeign    = errors.New("adaptor belongs to another surface")
	ErrNoLayer    = errors.New("adaptor layer does not exist")
	ErrStarted    = errors.New("adaptor already started")
)

// Base carries the bookkeeping shared by all adaptors: identity, lazy flag
// and attachment to a host layer. Embed it and call Start/Stop from the
// concrete adaptor.
type Base struct {
	id   string
	lazy atomic.Bool

	mu      sync.Mutex
	host    Host
	layerID string
}

func NewBase(id string) *Base {
	return &Base{id: id}
}

func (b *Base) ID() string        { return b.id }
func (b *Base) SetLazy(lazy bool) { b.lazy.Store(lazy) }
func (b *Base) Lazy() bool        { return b.lazy.Load() }

// LayerID returns the layer the adaptor is attached to, empty when stopped
func (b *Base) LayerID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layerID
}

// Host returns the surface the adaptor is registered on, nil when stopped
func (b *Base) Host() Host {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.host
}

// Start resolves self's layer through reg, attaches it and registers it on
// host. self is the concrete adaptor embedding b.
func (b *Base) Start(self Adaptor, host Host, reg *Registry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.host != nil {
		return fmt.Errorf("%s: %w", b.id, ErrStarted)
	}
	entry, ok := reg.Lookup(b.id)
	if !ok {
		return fmt.Errorf("%s: %w", b.id, ErrUnresolved)
	}
	if entry.Surface != host.ID() {
		return fmt.Errorf("%s on %s, not %s: %w", b.id, entry.Surface, host.ID(), ErrForeign)
	}
	if !host.HasLayer(entry.Layer) {
		return fmt.Errorf("%s: layer %q: %w", b.id, entry.Layer, ErrNoLayer)
	}

	l := host.Layer(entry.Layer)
	l.Attach(b.id)
	if bounded, ok := self.(Bounded); ok {
		if box, ok := bounded.Bounds(); ok {
			l.SetContent(b.id, box)
		}
	}

	b.host = host
	b.layerID = entry.Layer
	host.RegisterAdaptor(self)

	slog.Debug("Adaptor started", "adaptor", b.id, "surface", entry.Surface, "layer", entry.Layer)
	return nil
}

// Stop unregisters self and detaches it from its layer
func (b *Base) Stop(self Adaptor) {
	b.mu.Lock()
	host, layerID := b.host, b.layerID
	b.host = nil
	b.layerID = ""
	b.mu.Unlock()

	if host == nil {
		return
	}
	host.UnregisterAdaptor(self)
	if host.HasLayer(layerID) {
		host.Layer(layerID).Detach(b.id)
	}
	slog.Debug("Adaptor stopped", "adaptor", b.id)
}

// Render asks the host to draw unless the adaptor is lazy
func (b *Base) Render() {
	if b.Lazy() {
		return
	}
	if host := b.Host(); host != nil {
		host.RequestRender()
	}
}

// Func is an adaptor running a callback on every update
type Func struct {
	*Base
	update func()
	box    *math32.Box3
}

var (
	_ Adaptor = (*Func)(nil)
	_ Bounded = (*Func)(nil)
)

// NewFunc creates an adaptor calling update on RequestUpdate
func NewFunc(id string, update func()) *Func {
	return &Func{Base: NewBase(id), update: update}
}

// WithBounds declares the extent of the adaptor's content
func (f *Func) WithBounds(box math32.Box3) *Func {
	f.box = &box
	return f
}

func (f *Func) Start(host Host, reg *Registry) error { return f.Base.Start(f, host, reg) }
func (f *Func) Stop()                                { f.Base.Stop(f) }

func (f *Func) RequestUpdate() {
	if f.update != nil {
		f.update()
	}
	f.Render()
}

// Bounds returns the declared content extent
func (f *Func) Bounds() (math32.Box3, bool) {
	if f.box == nil {
		return math32.Box3{}, false
	}
	return *f.box, true
}
