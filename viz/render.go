package viz

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-viz/viz/interactor"
	"github.com/valerio/go-viz/viz/output"
	"github.com/valerio/go-viz/viz/signal"
)

// surfaceState is what a render call needs, read under the lock once
type surfaceState struct {
	manager   *interactor.Manager
	mode      Mode
	offscreen bool
	flip      bool
}

func (o *Orchestrator) state() surfaceState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := surfaceState{manager: o.manager, mode: o.mode}
	if o.scene != nil {
		st.offscreen = o.scene.IsOffscreen()
		st.flip = o.scene.Flip
	}
	return st
}

// RenderNow draws immediately and emits Rendered. It only has an effect in
// manual mode, automatic surfaces draw on every RequestRender.
// Callbacks run after the surface lock is released, so they may render again.
func (o *Orchestrator) RenderNow() {
	st := o.state()
	if st.manager == nil || st.mode != Manual {
		return
	}

	if !st.offscreen {
		if err := st.manager.RenderNow(); err != nil {
			slog.Error("Render failed", "surface", o.id, "error", err)
			return
		}
		o.signals.Emit(signal.Rendered, signal.Payload{Surface: o.id, Frame: st.manager.Draws()})
		return
	}

	o.renderMu.Lock()
	if err := st.manager.RenderNow(); err != nil {
		o.renderMu.Unlock()
		slog.Error("Render failed", "surface", o.id, "error", err)
		return
	}
	draws := st.manager.Draws()
	out, frame := o.capture(st)
	o.renderMu.Unlock()

	o.signals.Emit(signal.Rendered, signal.Payload{Surface: o.id, Frame: draws})
	o.notify(out, frame)
}

// RequestRender asks for a draw in automatic mode and does nothing in
// manual mode. On-screen draws are deferred and coalesced, offscreen draws
// happen synchronously and are copied into the output image.
func (o *Orchestrator) RequestRender() {
	st := o.state()
	if st.manager == nil || st.mode != Auto {
		return
	}

	if !st.offscreen {
		st.manager.RequestRender()
		return
	}

	o.renderMu.Lock()
	if err := st.manager.RenderNow(); err != nil {
		o.renderMu.Unlock()
		slog.Error("Offscreen render failed", "surface", o.id, "error", err)
		return
	}
	out, frame := o.capture(st)
	o.renderMu.Unlock()

	o.notify(out, frame)
}

// capture copies the last frame into the output image and returns it with
// its frame count. It returns nil when the read back failed and the frame
// was dropped.
func (o *Orchestrator) capture(st surfaceState) (*output.Image, uint64) {
	img, err := st.manager.Capture()
	if err != nil {
		slog.Warn("Offscreen capture failed, dropping frame", "surface", o.id, "error", err)
		return nil, 0
	}

	out := o.Offscreen()
	if out == nil {
		return nil, 0
	}
	out.Update(img, st.flip)
	return out, out.Frames()
}

// notify tells output listeners and BufferModified handlers about a new frame
func (o *Orchestrator) notify(out *output.Image, frame uint64) {
	if out == nil {
		return
	}
	out.NotifyModified()
	o.signals.Emit(signal.BufferModified, signal.Payload{Surface: o.id, Frame: frame})
}

// Mode returns the current render mode
func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// SetManualMode makes every registered adaptor lazy, only RenderNow draws
func (o *Orchestrator) SetManualMode() {
	o.setMode(Manual)
}

// SetAutoMode makes every render request draw
func (o *Orchestrator) SetAutoMode() {
	o.setMode(Auto)
}

func (o *Orchestrator) setMode(mode Mode) {
	o.mu.Lock()
	o.mode = mode
	manager := o.manager
	o.mu.Unlock()

	if manager != nil {
		manager.PauseDeferred(mode == Manual)
	}
	for _, a := range o.registered() {
		a.SetLazy(mode == Manual)
	}
	slog.Debug("Render mode changed", "surface", o.id, "mode", mode)
}

// IsShownOnScreen reports whether the surface is visible: always for
// offscreen surfaces, otherwise when fullscreen or the container is shown.
func (o *Orchestrator) IsShownOnScreen() bool {
	st := o.state()
	if st.offscreen {
		return true
	}
	if st.manager == nil {
		return false
	}
	return st.manager.Fullscreen() || st.manager.Visible()
}

// EnableFullscreen shows the surface fullscreen on screen and emits
// FullscreenSet.
func (o *Orchestrator) EnableFullscreen(screen int) error {
	st := o.state()
	if st.manager == nil {
		return fmt.Errorf("surface %s: %w", o.id, ErrNotRunning)
	}
	if err := st.manager.SetFullscreen(true, screen); err != nil {
		return fmt.Errorf("surface %s: enable fullscreen: %w", o.id, err)
	}
	o.signals.Emit(signal.FullscreenSet, signal.Payload{Surface: o.id, Screen: screen})
	return nil
}

// DisableFullscreen leaves fullscreen and emits FullscreenUnset
func (o *Orchestrator) DisableFullscreen() error {
	st := o.state()
	if st.manager == nil {
		return fmt.Errorf("surface %s: %w", o.id, ErrNotRunning)
	}
	if err := st.manager.SetFullscreen(false, 0); err != nil {
		return fmt.Errorf("surface %s: disable fullscreen: %w", o.id, err)
	}
	o.signals.Emit(signal.FullscreenUnset, signal.Payload{Surface: o.id})
	return nil
}

// Fullscreen reports whether the surface is fullscreen
func (o *Orchestrator) Fullscreen() bool {
	st := o.state()
	return st.manager != nil && st.manager.Fullscreen()
}

// Draws returns the number of frames drawn since the surface started
func (o *Orchestrator) Draws() uint64 {
	st := o.state()
	if st.manager == nil {
		return 0
	}
	return st.manager.Draws()
}
