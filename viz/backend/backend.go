package backend

import (
	"image"

	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
)

// Backend represents a render target (window, terminal or offscreen buffer).
// Backends are responsible for:
// - Rasterizing the layer frames they receive, in ascending layer order
// - Translating platform-specific input events to InputEvents
// - Handling target-specific features (fullscreen, snapshots)
//
// A Backend is only ever called from the goroutine that owns it.
type Backend interface {
	// Init configures the backend with the provided configuration.
	// This is a required step before calling Draw.
	Init(config Config) error

	// Draw renders one frame. Layers are already sorted by order.
	Draw(frame Frame) error

	// PollEvents returns the input events received since the last call.
	// It must not block.
	PollEvents() []InputEvent

	// Cleanup resources when shutting down
	Cleanup() error
}

// Capturer is implemented by backends whose last frame can be read back
type Capturer interface {
	Capture() (*image.RGBA, error)
}

// Fullscreener is implemented by backends that can switch to fullscreen
type Fullscreener interface {
	SetFullscreen(on bool, screen int) error
}

// Visibility is implemented by on-screen backends that know if their
// container is currently shown.
type Visibility interface {
	Visible() bool
}

// Sizer is implemented by backends that know their drawable size in
// pixels. Pointer coordinates of InputEvents are relative to that size.
type Sizer interface {
	Size() (width, height int)
}

// SceneReleaser is implemented by backends holding per-layer scene content
type SceneReleaser interface {
	ReleaseLayer(id string)
}

// Config holds configuration for backends
type Config struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	Offscreen  bool
}

// InputEvent is a platform event already translated to an action
type InputEvent struct {
	Action action.Action
	Type   event.Type
	// Pointer position in surface pixels, valid for pointer actions
	X, Y int
	// Pointer motion or wheel steps
	DX, DY int
}
