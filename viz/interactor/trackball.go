package interactor

import (
	"cogentcore.org/core/math32"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
	"github.com/valerio/go-viz/viz/layer"
)

const (
	OrbitStep = 5    // degrees per key press
	PanStep   = 0.05 // fraction of the target distance per key press
	ZoomStep  = 1.1
	// DragDegrees is the rotation per pixel of pointer drag
	DragDegrees = 0.5
)

// Trackball moves a layer's camera from navigation input and asks for a
// redraw after every change.
type Trackball struct {
	layer   *layer.Layer
	request func()
	// surface size in pixels, pointer events outside the layer viewport are
	// ignored when set
	size     func() (width, height int)
	dragging bool
}

// NewTrackball creates a trackball for l. request is called after each
// camera change, usually the surface's RequestRender.
func NewTrackball(l *layer.Layer, request func()) *Trackball {
	if request == nil {
		request = func() {}
	}
	return &Trackball{layer: l, request: request}
}

// SetSurfaceSize enables pointer hit testing against the layer viewport.
// size reports the current surface size in pixels.
func (t *Trackball) SetSurfaceSize(size func() (width, height int)) {
	t.size = size
}

// HandleInput implements layer.Interactor
func (t *Trackball) HandleInput(ev backend.InputEvent) bool {
	switch ev.Action {
	case action.CameraOrbitLeft:
		t.update(func(c layer.Camera) layer.Camera { return c.Orbit(-OrbitStep, 0) })
	case action.CameraOrbitRight:
		t.update(func(c layer.Camera) layer.Camera { return c.Orbit(OrbitStep, 0) })
	case action.CameraOrbitUp:
		t.update(func(c layer.Camera) layer.Camera { return c.Orbit(0, OrbitStep) })
	case action.CameraOrbitDown:
		t.update(func(c layer.Camera) layer.Camera { return c.Orbit(0, -OrbitStep) })
	case action.CameraPanLeft:
		t.update(func(c layer.Camera) layer.Camera { return c.Pan(-PanStep, 0) })
	case action.CameraPanRight:
		t.update(func(c layer.Camera) layer.Camera { return c.Pan(PanStep, 0) })
	case action.CameraPanUp:
		t.update(func(c layer.Camera) layer.Camera { return c.Pan(0, PanStep) })
	case action.CameraPanDown:
		t.update(func(c layer.Camera) layer.Camera { return c.Pan(0, -PanStep) })
	case action.CameraZoomIn:
		t.update(func(c layer.Camera) layer.Camera { return c.Zoom(1 / ZoomStep) })
	case action.CameraZoomOut:
		t.update(func(c layer.Camera) layer.Camera { return c.Zoom(ZoomStep) })
	case action.CameraReset:
		t.layer.ResetCameraCoordinates()
		t.request()
	case action.PointerDrag:
		return t.handleDrag(ev)
	case action.PointerWheel:
		if !t.hit(ev) {
			return false
		}
		factor := math32.Pow(ZoomStep, float32(ev.DY))
		t.update(func(c layer.Camera) layer.Camera { return c.Zoom(factor) })
	default:
		return false
	}
	return true
}

func (t *Trackball) handleDrag(ev backend.InputEvent) bool {
	switch ev.Type {
	case event.Press:
		if !t.hit(ev) {
			return false
		}
		t.dragging = true
	case event.Move:
		if !t.dragging {
			return false
		}
		yaw := -float32(ev.DX) * DragDegrees
		pitch := float32(ev.DY) * DragDegrees
		t.update(func(c layer.Camera) layer.Camera { return c.Orbit(yaw, pitch) })
	case event.Release:
		if !t.dragging {
			return false
		}
		t.dragging = false
	default:
		return false
	}
	return true
}

func (t *Trackball) hit(ev backend.InputEvent) bool {
	if t.size == nil {
		return true
	}
	w, h := t.size()
	if w <= 0 || h <= 0 {
		return true
	}
	return t.layer.ViewportConfig().Contains(ev.X, ev.Y, w, h)
}

func (t *Trackball) update(fn func(layer.Camera) layer.Camera) {
	t.layer.UpdateCamera(fn)
	t.request()
}

var _ layer.Interactor = (*Trackball)(nil)
