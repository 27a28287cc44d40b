package layer

import (
	"image/color"
	"maps"
	"slices"
	"sync"

	"cogentcore.org/core/math32"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/viewport"
)

// Reserved layer identifiers
const (
	BackgroundID = "background"
	GridID       = "grid"
)

// Interactor receives the input events routed to a layer.
// HandleInput returns true when the event was consumed.
type Interactor interface {
	HandleInput(ev backend.InputEvent) bool
}

// Layer is one ordered rendering surface of a scene. Identity (id and
// order) never changes after creation, the rest is guarded by mu because the
// render goroutine snapshots it while the owner mutates it.
type Layer struct {
	id    string
	order int

	mu           sync.RWMutex
	background   backend.Background
	compositor   Compositor
	chain        []string
	overlays     map[string]struct{}
	defaultLight bool
	viewport     viewport.Config
	camera       Camera
	content      map[string]math32.Box3
	adaptors     map[string]struct{}
	interactors  []Interactor

	onCompositor func(id string, chain []string)
	release      func(id string)
	destroyed    bool
}

// New creates a layer with no background, the default compositor,
// the default light on and a full-surface viewport.
func New(id string, order int) *Layer {
	return &Layer{
		id:           id,
		order:        order,
		compositor:   DefaultCompositor(),
		overlays:     make(map[string]struct{}),
		defaultLight: true,
		viewport:     viewport.Full(),
		camera:       DefaultCamera(),
		content:      make(map[string]math32.Box3),
		adaptors:     make(map[string]struct{}),
	}
}

func (l *Layer) ID() string { return l.id }
func (l *Layer) Order() int { return l.order }

// DefaultBackground is solid black split at half height
func DefaultBackground() backend.Background {
	black := color.RGBA{A: 0xff}
	return backend.Background{
		Kind:        backend.BackgroundColor,
		Top:         black,
		Bottom:      black,
		TopScale:    0.5,
		BottomScale: 0.5,
	}
}

// SetBackgroundColor clears the layer with a vertical gradient from top to
// bottom. It replaces a material background.
func (l *Layer) SetBackgroundColor(top, bottom color.RGBA) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.background.Kind = backend.BackgroundColor
	l.background.Top = top
	l.background.Bottom = bottom
	l.background.Material = ""
	if l.background.TopScale == 0 && l.background.BottomScale == 0 {
		l.background.TopScale, l.background.BottomScale = 0.5, 0.5
	}
}

// SetBackgroundScales sets where the gradient starts and ends
func (l *Layer) SetBackgroundScales(top, bottom float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.background.TopScale = top
	l.background.BottomScale = bottom
}

// SetBackgroundMaterial clears the layer with a named material. It replaces
// a color background.
func (l *Layer) SetBackgroundMaterial(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.background.Kind = backend.BackgroundMaterial
	l.background.Material = name
}

// Background returns the current background description
func (l *Layer) Background() backend.Background {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.background
}

// SetCoreCompositor configures the mandatory final-color pass
func (l *Layer) SetCoreCompositor(t Technique, peels int, stereo StereoMode) {
	if peels <= 0 {
		peels = DefaultPeels
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compositor = Compositor{Transparency: t, Peels: peels, Stereo: stereo}
}

// CoreCompositor returns the core compositor settings
func (l *Layer) CoreCompositor() Compositor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.compositor
}

// SetCompositorChainEnabled sets the ordered optional passes applied after
// the core compositor and notifies the compositor hook.
func (l *Layer) SetCompositorChainEnabled(names []string) {
	chain := slices.Clone(names)

	l.mu.Lock()
	l.chain = chain
	hook := l.onCompositor
	l.mu.Unlock()

	if hook != nil {
		hook(l.id, slices.Clone(chain))
	}
}

// CompositorChain returns a copy of the optional pass chain
func (l *Layer) CompositorChain() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.chain)
}

// SetCompositorHook installs the callback fired on chain changes
func (l *Layer) SetCompositorHook(fn func(id string, chain []string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCompositor = fn
}

// SetOverlays replaces the set of enabled overlays
func (l *Layer) SetOverlays(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overlays = make(map[string]struct{}, len(names))
	for _, n := range names {
		l.overlays[n] = struct{}{}
	}
}

// Overlays returns the enabled overlay names, sorted
func (l *Layer) Overlays() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.overlays))
}

// HasOverlay reports whether name is enabled
func (l *Layer) HasOverlay(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.overlays[name]
	return ok
}

func (l *Layer) SetDefaultLight(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaultLight = on
}

func (l *Layer) DefaultLight() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.defaultLight
}

func (l *Layer) SetViewportConfig(cfg viewport.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.viewport = cfg
}

func (l *Layer) ViewportConfig() viewport.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.viewport
}

// Attach records adaptor id as drawing into this layer. The layer does not
// own the adaptor.
func (l *Layer) Attach(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adaptors[id] = struct{}{}
}

// Detach forgets adaptor id and any content bounds it declared
func (l *Layer) Detach(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.adaptors, id)
	delete(l.content, id)
}

// Adaptors returns the attached adaptor ids, sorted
func (l *Layer) Adaptors() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.adaptors))
}

// SetContent declares the bounds of what adaptor id draws
func (l *Layer) SetContent(id string, box math32.Box3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.content[id] = box
}

// Camera returns the current camera
func (l *Layer) Camera() Camera {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.camera
}

// SetCamera replaces the camera, used by interactors
func (l *Layer) SetCamera(c Camera) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.camera = c
}

// UpdateCamera applies fn to the camera atomically
func (l *Layer) UpdateCamera(fn func(Camera) Camera) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.camera = fn(l.camera)
}

// ResetCameraCoordinates frames all declared content. Without content the
// camera goes back to its default placement.
func (l *Layer) ResetCameraCoordinates() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.content) == 0 {
		fov := l.camera.FOV
		l.camera = DefaultCamera()
		if fov > 0 {
			l.camera.FOV = fov
		}
		return
	}

	// sorted ids keep the union bit-identical between calls
	box := math32.B3Empty()
	for _, id := range slices.Sorted(maps.Keys(l.content)) {
		box.ExpandByBox(l.content[id])
	}
	l.camera = l.camera.Frame(box)
}

// AddInteractor appends an input handler to this layer
func (l *Layer) AddInteractor(i Interactor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interactors = append(l.interactors, i)
}

// Interactors returns a copy of the layer's input handlers
func (l *Layer) Interactors() []Interactor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.interactors)
}

// SetReleaseFunc installs the callback releasing backend scene content
func (l *Layer) SetReleaseFunc(fn func(id string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release = fn
}

// Destroy releases the layer's backend scene content. Later calls do nothing.
func (l *Layer) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	l.destroyed = true
	release := l.release
	l.interactors = nil
	l.mu.Unlock()

	if release != nil {
		release(l.id)
	}
}

// Frame snapshots the layer for one draw
func (l *Layer) Frame() backend.LayerFrame {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return backend.LayerFrame{
		ID:           l.id,
		Order:        l.order,
		Viewport:     l.viewport,
		Background:   l.background,
		Technique:    l.compositor.Transparency.String(),
		Passes:       l.compositor.Passes(),
		Stereo:       l.compositor.Stereo.String(),
		Chain:        slices.Clone(l.chain),
		Overlays:     slices.Sorted(maps.Keys(l.overlays)),
		DefaultLight: l.defaultLight,
		Adaptors:     len(l.adaptors),
	}
}
