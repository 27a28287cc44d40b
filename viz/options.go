package viz

import (
	"github.com/valerio/go-viz/viz/adaptor"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/backend/headless"
	"github.com/valerio/go-viz/viz/backend/terminal"
	"github.com/valerio/go-viz/viz/config"
	"github.com/valerio/go-viz/viz/output"
	"github.com/valerio/go-viz/viz/timing"
)

// BackendFactory creates the backend of a surface when it starts
type BackendFactory func(scene *config.Scene) (backend.Backend, error)

// Options holds the collaborators of an Orchestrator. Zero values are
// replaced with defaults by New.
type Options struct {
	// Registry is shared by every surface of the process
	Registry *adaptor.Registry
	Backends BackendFactory
	// Output receives offscreen frames even when its key differs from the
	// offscreen block. When nil an image keyed after the block is created on
	// Configure.
	Output *output.Image
	// Limiter paces deferred draws, called on every Start
	Limiter func(scene *config.Scene) timing.Limiter

	// OnQuit runs when the user asks to quit the surface
	OnQuit      func()
	SnapshotDir string
}

// DefaultBackends renders offscreen scenes headless and on-screen scenes in
// the terminal.
func DefaultBackends(scene *config.Scene) (backend.Backend, error) {
	if scene.IsOffscreen() {
		return headless.New(0, headless.SnapshotConfig{}), nil
	}
	return terminal.New(), nil
}

// DefaultLimiter draws offscreen frames as soon as they are requested and
// paces on-screen ones at timing.DefaultFPS.
func DefaultLimiter(scene *config.Scene) timing.Limiter {
	if scene.IsOffscreen() {
		return timing.NewNoOpLimiter()
	}
	return timing.NewTickerLimiter(timing.DefaultFPS)
}

func (o *Options) withDefaults() {
	if o.Registry == nil {
		o.Registry = adaptor.NewRegistry()
	}
	if o.Backends == nil {
		o.Backends = DefaultBackends
	}
	if o.Limiter == nil {
		o.Limiter = DefaultLimiter
	}
	if o.OnQuit == nil {
		o.OnQuit = func() {}
	}
}
