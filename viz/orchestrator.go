// Package viz orchestrates one render surface: its ordered layers, the
// adaptors attached to them and when the scene is actually drawn.
package viz

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/valerio/go-viz/viz/adaptor"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/config"
	"github.com/valerio/go-viz/viz/input"
	"github.com/valerio/go-viz/viz/interactor"
	"github.com/valerio/go-viz/viz/layer"
	"github.com/valerio/go-viz/viz/output"
	"github.com/valerio/go-viz/viz/signal"
	"github.com/valerio/go-viz/viz/timing"
)

// Orchestrator owns a render surface. Configure, Start, Stop and adaptor
// registration are expected from one goroutine; render requests may come
// from any goroutine and are marshalled onto the surface's render goroutine
// by its interactor manager.
type Orchestrator struct {
	id        string
	opts      Options
	signals   *signal.Hub
	shortcuts *input.Manager

	mu       sync.RWMutex
	scene    *config.Scene
	output   *output.Image
	mode     Mode
	layers   map[string]*layer.Layer
	ordered  []*layer.Layer
	adaptors []adaptor.Adaptor
	index    map[string]int
	manager  *interactor.Manager
	limiter  timing.Limiter
	backend  backend.Backend

	// renderMu keeps an offscreen draw and its capture together
	renderMu sync.Mutex
}

var _ adaptor.Host = (*Orchestrator)(nil)

// New creates an unconfigured surface
func New(id string, opts Options) *Orchestrator {
	opts.withDefaults()
	o := &Orchestrator{
		id:        id,
		opts:      opts,
		signals:   signal.NewHub(),
		shortcuts: input.NewManager(input.DefaultDebounce),
		index:     make(map[string]int),
		output:    opts.Output,
	}
	o.bindShortcuts()
	return o
}

func (o *Orchestrator) ID() string { return o.id }

// Signals returns the notification hub of the surface
func (o *Orchestrator) Signals() *signal.Hub { return o.signals }

// Registry returns the adaptor registry the surface resolves adaptors with
func (o *Orchestrator) Registry() *adaptor.Registry { return o.opts.Registry }

// Configure validates desc and records its adaptor mappings in the registry.
// On error the surface is left unconfigured.
func (o *Orchestrator) Configure(desc *config.Descriptor) error {
	if o.Running() {
		return fmt.Errorf("surface %s: %w", o.id, ErrRunning)
	}

	scene, err := desc.Normalize()
	if err != nil {
		slog.Error("Scene configuration failed", "surface", o.id, "error", err)
		o.mu.Lock()
		o.scene = nil
		o.mu.Unlock()
		return fmt.Errorf("surface %s: %w", o.id, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.scene = scene
	o.mode = scene.Mode
	o.configureOutput(scene)

	for _, a := range scene.Adaptors {
		o.opts.Registry.Set(a.UID, adaptor.Entry{Surface: o.id, Layer: a.Layer})
		if _, ok := o.index[a.UID]; !ok {
			o.index[a.UID] = len(o.adaptors)
			o.adaptors = append(o.adaptors, nil)
		}
	}

	slog.Info("Surface configured",
		"surface", o.id,
		"offscreen", scene.IsOffscreen(),
		"mode", scene.Mode,
		"layers", len(scene.Layers),
		"adaptors", len(scene.Adaptors))
	return nil
}

// configureOutput picks the image offscreen frames are copied to. An image
// passed in the options is always kept.
func (o *Orchestrator) configureOutput(scene *config.Scene) {
	injected := o.opts.Output
	switch {
	case !scene.IsOffscreen():
		if injected != nil {
			slog.Warn("On-screen surface ignores the output image", "surface", o.id, "key", injected.Key())
		}
		o.output = nil
	case injected != nil:
		if injected.Key() != scene.Offscreen {
			slog.Warn("Output image key differs from the offscreen key",
				"surface", o.id,
				"key", injected.Key(),
				"offscreen", scene.Offscreen)
		}
		o.output = injected
	case o.output == nil || o.output.Key() != scene.Offscreen:
		o.output = output.New(scene.Offscreen, scene.Width, scene.Height)
	}
}

// Start creates the layers and the interactor manager, then initializes the
// backend on its render goroutine.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.scene == nil {
		return fmt.Errorf("surface %s: %w", o.id, ErrNotConfigured)
	}
	if o.manager != nil {
		return fmt.Errorf("surface %s: %w", o.id, ErrRunning)
	}

	b, err := o.opts.Backends(o.scene)
	if err != nil {
		return fmt.Errorf("surface %s: create backend: %w", o.id, err)
	}

	layers, ordered := o.buildLayers()
	cfg := backend.Config{
		Title:      "viz - " + o.id,
		Width:      o.scene.Width,
		Height:     o.scene.Height,
		Fullscreen: o.scene.Fullscreen && !o.scene.IsOffscreen(),
		Offscreen:  o.scene.IsOffscreen(),
	}
	limiter := o.opts.Limiter(o.scene)
	manager := interactor.NewManager(o.id, b, cfg, frameSource(ordered), o.router(ordered), limiter)
	manager.PauseDeferred(o.mode == Manual)

	for _, l := range ordered {
		l.SetReleaseFunc(manager.Release)
		if l.ID() == layer.BackgroundID || (o.scene.Background == nil && l.ID() == layer.GridID) {
			continue
		}
		tb := interactor.NewTrackball(l, o.RequestRender)
		tb.SetSurfaceSize(manager.Size)
		l.AddInteractor(tb)
	}

	if err := manager.Start(context.Background()); err != nil {
		stopLimiter(limiter)
		slog.Error("Surface start failed", "surface", o.id, "error", err)
		return err
	}

	o.layers = layers
	o.ordered = ordered
	o.manager = manager
	o.limiter = limiter
	o.backend = b

	slog.Info("Surface started", "surface", o.id, "layers", len(ordered), "mode", o.mode)
	if cfg.Fullscreen {
		o.signals.Emit(signal.FullscreenSet, signal.Payload{Surface: o.id})
	}
	return nil
}

// buildLayers creates the implicit layers when the scene declares no
// background, then the declared ones in order.
func (o *Orchestrator) buildLayers() (map[string]*layer.Layer, []*layer.Layer) {
	var ordered []*layer.Layer

	if o.scene.Background == nil {
		bg := layer.New(layer.BackgroundID, 0)
		def := layer.DefaultBackground()
		bg.SetBackgroundColor(def.Top, def.Bottom)
		bg.SetBackgroundScales(def.TopScale, def.BottomScale)
		ordered = append(ordered, bg, layer.New(layer.GridID, 1))
	} else {
		bg := layer.New(layer.BackgroundID, 0)
		applyBackground(bg, *o.scene.Background)
		ordered = append(ordered, bg)
	}

	first := len(ordered)
	for i, spec := range o.scene.Layers {
		l := layer.New(spec.ID, first+i)
		l.SetCoreCompositor(spec.Compositor.Transparency, spec.Compositor.Peels, spec.Compositor.Stereo)
		l.SetCompositorChainEnabled(spec.Compositors)
		l.SetOverlays(spec.Overlays)
		l.SetDefaultLight(spec.DefaultLight)
		l.SetViewportConfig(spec.Viewport)
		ordered = append(ordered, l)
	}

	layers := make(map[string]*layer.Layer, len(ordered))
	for _, l := range ordered {
		l.SetCompositorHook(o.compositorUpdated)
		layers[l.ID()] = l
	}
	return layers, ordered
}

func applyBackground(l *layer.Layer, bg backend.Background) {
	switch bg.Kind {
	case backend.BackgroundMaterial:
		l.SetBackgroundMaterial(bg.Material)
	case backend.BackgroundColor:
		l.SetBackgroundColor(bg.Top, bg.Bottom)
		l.SetBackgroundScales(bg.TopScale, bg.BottomScale)
	}
}

func (o *Orchestrator) compositorUpdated(id string, chain []string) {
	slog.Debug("Compositor chain updated", "surface", o.id, "layer", id, "chain", chain)
	o.signals.Emit(signal.CompositorUpdated, signal.Payload{Surface: o.id, Layer: id, Chain: chain})
}

// frameSource snapshots the layers in ascending order
func frameSource(ordered []*layer.Layer) interactor.FrameSource {
	return func() backend.Frame {
		frame := backend.Frame{Layers: make([]backend.LayerFrame, 0, len(ordered))}
		for _, l := range ordered {
			frame.Layers = append(frame.Layers, l.Frame())
		}
		return frame
	}
}

// Stop releases every layer's backend content and shuts the render
// goroutine down.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	manager, layers, limiter := o.manager, o.layers, o.limiter
	if manager == nil {
		o.mu.Unlock()
		return fmt.Errorf("surface %s: %w", o.id, ErrNotRunning)
	}
	o.mu.Unlock()

	// sorted ids keep the release order deterministic
	for _, id := range slices.Sorted(maps.Keys(layers)) {
		layers[id].Destroy()
	}

	// the render goroutine and the input router may be waiting on the
	// surface, so the lock is not held while the manager stops
	err := manager.Stop()
	stopLimiter(limiter)

	o.mu.Lock()
	o.layers = nil
	o.ordered = nil
	o.manager = nil
	o.limiter = nil
	o.backend = nil
	o.mu.Unlock()

	if err != nil {
		return fmt.Errorf("surface %s: %w", o.id, err)
	}
	slog.Info("Surface stopped", "surface", o.id)
	return nil
}

func stopLimiter(l timing.Limiter) {
	if s, ok := l.(interface{ Stop() }); ok {
		s.Stop()
	}
}

// Running reports whether the surface is started
func (o *Orchestrator) Running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.manager != nil
}

// Backend returns the backend of the running surface, nil when stopped
func (o *Orchestrator) Backend() backend.Backend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backend
}

// Offscreen returns the output image of an offscreen surface, nil on-screen
func (o *Orchestrator) Offscreen() *output.Image {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.output
}

// Layers returns a copy of the id to layer map
func (o *Orchestrator) Layers() map[string]*layer.Layer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.layers)
}

// OrderedLayers returns the layers sorted by ascending order
func (o *Orchestrator) OrderedLayers() []*layer.Layer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.ordered)
}

// HasLayer reports whether the running surface has layer id
func (o *Orchestrator) HasLayer(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.layers[id]
	return ok
}

// Layer returns layer id. Asking for a layer the surface does not have is a
// programming error and panics.
func (o *Orchestrator) Layer(id string) *layer.Layer {
	o.mu.RLock()
	l, ok := o.layers[id]
	o.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("viz: surface %s has no layer %q", o.id, id))
	}
	return l
}

// RegisterAdaptor stores a in the slot reserved for its id, or a new one,
// and sets its lazy flag from the render mode.
func (o *Orchestrator) RegisterAdaptor(a adaptor.Adaptor) {
	o.mu.Lock()
	idx, ok := o.index[a.ID()]
	if ok {
		o.adaptors[idx] = a
	} else {
		idx = len(o.adaptors)
		o.index[a.ID()] = idx
		o.adaptors = append(o.adaptors, a)
	}
	lazy := o.mode == Manual
	o.mu.Unlock()

	a.SetLazy(lazy)
	slog.Debug("Adaptor registered", "surface", o.id, "adaptor", a.ID(), "index", idx)
}

// UnregisterAdaptor empties the slot of a. Indices are never reused.
func (o *Orchestrator) UnregisterAdaptor(a adaptor.Adaptor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if idx, ok := o.index[a.ID()]; ok {
		o.adaptors[idx] = nil
	}
}

// AdaptorIndex returns the slot index of adaptor id
func (o *Orchestrator) AdaptorIndex(id string) (int, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	idx, ok := o.index[id]
	return idx, ok
}

// Adaptor returns the adaptor registered in slot idx, nil when empty
func (o *Orchestrator) Adaptor(idx int) adaptor.Adaptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if idx < 0 || idx >= len(o.adaptors) {
		return nil
	}
	return o.adaptors[idx]
}

// registered snapshots the non-empty adaptor slots in index order
func (o *Orchestrator) registered() []adaptor.Adaptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var list []adaptor.Adaptor
	for _, a := range o.adaptors {
		if a != nil {
			list = append(list, a)
		}
	}
	return list
}

// Updating asks every registered adaptor to update, then renders. Adaptors
// registered or unregistered during the pass do not affect it.
func (o *Orchestrator) Updating() {
	for _, a := range o.registered() {
		a.RequestUpdate()
	}
	o.RenderNow()
}

// ResetCameraCoordinates reframes the camera of layer id
func (o *Orchestrator) ResetCameraCoordinates(id string) {
	o.Layer(id).ResetCameraCoordinates()
	o.RequestRender()
}

// ResetCameras reframes every layer's camera
func (o *Orchestrator) ResetCameras() {
	for _, l := range o.OrderedLayers() {
		l.ResetCameraCoordinates()
	}
	o.RequestRender()
}
