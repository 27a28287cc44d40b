package input

import "github.com/valerio/go-viz/viz/input/action"

// DefaultKeyMap provides default key mappings that work across backends.
// Backends can use these mappings as a base and override/extend as needed.
var DefaultKeyMap = map[string]action.Action{
	// Camera navigation
	"Left":  action.CameraOrbitLeft,
	"Right": action.CameraOrbitRight,
	"Up":    action.CameraOrbitUp,
	"Down":  action.CameraOrbitDown,
	"a":     action.CameraPanLeft,
	"d":     action.CameraPanRight,
	"w":     action.CameraPanUp,
	"s":     action.CameraPanDown,
	"+":     action.CameraZoomIn,
	"=":     action.CameraZoomIn, // Alternative without shift
	"-":     action.CameraZoomOut,
	"Space": action.CameraReset,

	// Surface controls
	"f":      action.SurfaceFullscreenToggle,
	"F11":    action.SurfaceFullscreenToggle,
	"r":      action.SurfaceResetCameras,
	"m":      action.SurfaceRenderModeToggle,
	"Enter":  action.SurfaceRenderNow,
	"F12":    action.SurfaceSnapshot,
	"Escape": action.SurfaceQuit,
	"q":      action.SurfaceQuit,

	// Debug
	"F9":  action.DebugLogLevelDecrease,
	"F10": action.DebugLogLevelIncrease,
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (action.Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}
