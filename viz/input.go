package viz

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
	"github.com/valerio/go-viz/viz/interactor"
	"github.com/valerio/go-viz/viz/layer"
)

// router offers each event to the layer interactors from the top layer
// down. Events nobody consumes go to the surface shortcuts.
func (o *Orchestrator) router(ordered []*layer.Layer) interactor.Router {
	return func(ev backend.InputEvent) {
		for i := len(ordered) - 1; i >= 0; i-- {
			for _, it := range ordered[i].Interactors() {
				if it.HandleInput(ev) {
					return
				}
			}
		}
		if !o.shortcuts.Trigger(ev.Action, ev.Type) {
			slog.Debug("Unhandled input", "surface", o.id, "action", ev.Action, "type", ev.Type)
		}
	}
}

func (o *Orchestrator) bindShortcuts() {
	o.shortcuts.On(action.SurfaceFullscreenToggle, event.Press, func() {
		var err error
		if o.Fullscreen() {
			err = o.DisableFullscreen()
		} else {
			err = o.EnableFullscreen(0)
		}
		if err != nil {
			slog.Error("Fullscreen toggle failed", "surface", o.id, "error", err)
		}
	})

	o.shortcuts.On(action.SurfaceResetCameras, event.Press, o.ResetCameras)

	o.shortcuts.On(action.SurfaceRenderModeToggle, event.Press, func() {
		if o.Mode() == Manual {
			o.SetAutoMode()
			o.RequestRender()
		} else {
			o.SetManualMode()
		}
		slog.Info("Render mode toggled", "surface", o.id, "mode", o.Mode())
	})

	o.shortcuts.On(action.SurfaceRenderNow, event.Press, o.RenderNow)

	o.shortcuts.On(action.SurfaceSnapshot, event.Press, func() {
		out := o.Offscreen()
		if out == nil {
			slog.Warn("Snapshots need an offscreen surface", "surface", o.id)
			return
		}
		name := fmt.Sprintf("%s_%s", o.id, time.Now().Format("20060102_150405"))
		path, err := out.SavePNG(o.opts.SnapshotDir, name)
		if err != nil {
			slog.Error("Failed to save snapshot", "surface", o.id, "error", err)
			return
		}
		slog.Info("Saved snapshot", "surface", o.id, "path", path)
	})

	o.shortcuts.On(action.SurfaceQuit, event.Press, func() {
		slog.Info("Quit requested", "surface", o.id)
		o.opts.OnQuit()
	})
}
