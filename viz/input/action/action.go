package action

// Action represents input actions that can be performed on a scene
type Action int

const (
	None Action = iota

	// Camera navigation, routed to layer interactors
	CameraOrbitLeft
	CameraOrbitRight
	CameraOrbitUp
	CameraOrbitDown
	CameraPanLeft
	CameraPanRight
	CameraPanUp
	CameraPanDown
	CameraZoomIn
	CameraZoomOut
	CameraReset

	// Pointer input, carries a position
	PointerDrag
	PointerWheel

	// Surface features
	SurfaceFullscreenToggle
	SurfaceResetCameras
	SurfaceRenderModeToggle
	SurfaceRenderNow
	SurfaceSnapshot
	SurfaceQuit

	// Debug controls
	DebugLogLevelIncrease
	DebugLogLevelDecrease
)

// Category groups actions by who consumes them
type Category int

const (
	CategoryNone Category = iota
	CategoryCamera
	CategoryPointer
	CategorySurface
	CategoryDebug
)

// Info describes an action for logging and help screens
type Info struct {
	Description string
	Category    Category
}

var infos = map[Action]Info{
	None:                    {"none", CategoryNone},
	CameraOrbitLeft:         {"orbit left", CategoryCamera},
	CameraOrbitRight:        {"orbit right", CategoryCamera},
	CameraOrbitUp:           {"orbit up", CategoryCamera},
	CameraOrbitDown:         {"orbit down", CategoryCamera},
	CameraPanLeft:           {"pan left", CategoryCamera},
	CameraPanRight:          {"pan right", CategoryCamera},
	CameraPanUp:             {"pan up", CategoryCamera},
	CameraPanDown:           {"pan down", CategoryCamera},
	CameraZoomIn:            {"zoom in", CategoryCamera},
	CameraZoomOut:           {"zoom out", CategoryCamera},
	CameraReset:             {"reset camera", CategoryCamera},
	PointerDrag:             {"pointer drag", CategoryPointer},
	PointerWheel:            {"pointer wheel", CategoryPointer},
	SurfaceFullscreenToggle: {"toggle fullscreen", CategorySurface},
	SurfaceResetCameras:     {"reset all cameras", CategorySurface},
	SurfaceRenderModeToggle: {"toggle render mode", CategorySurface},
	SurfaceRenderNow:        {"render now", CategorySurface},
	SurfaceSnapshot:         {"snapshot", CategorySurface},
	SurfaceQuit:             {"quit", CategorySurface},
	DebugLogLevelIncrease:   {"more verbose logs", CategoryDebug},
	DebugLogLevelDecrease:   {"less verbose logs", CategoryDebug},
}

// GetInfo returns the description and category of act
func GetInfo(act Action) Info {
	if info, ok := infos[act]; ok {
		return info
	}
	return Info{Description: "unknown", Category: CategoryNone}
}

func (a Action) String() string {
	return GetInfo(a).Description
}
