package viz

import "github.com/valerio/go-viz/viz/config"

// Mode is the render mode of a surface
type Mode = config.Mode

const (
	// Auto draws on every render request
	Auto = config.ModeAuto
	// Manual draws only on explicit RenderNow calls
	Manual = config.ModeManual
)

// ParseMode accepts auto, manual and the legacy sync spelling of manual
func ParseMode(s string) (Mode, error) {
	return config.ParseMode(s)
}
