package backend

import (
	"image/color"

	"github.com/valerio/go-viz/viz/viewport"
)

// BackgroundKind selects how a layer clears its viewport
type BackgroundKind int

const (
	BackgroundNone BackgroundKind = iota
	BackgroundColor
	BackgroundMaterial
)

// Background is the clear description of one layer
type Background struct {
	Kind        BackgroundKind
	Top         color.RGBA
	Bottom      color.RGBA
	TopScale    float64
	BottomScale float64
	Material    string
}

// At returns the gradient color at normalized height t (0 = top, 1 = bottom).
// The top color holds until TopScale, the bottom color from BottomScale on.
func (b Background) At(t float64) color.RGBA {
	if b.TopScale >= b.BottomScale {
		if t < b.TopScale {
			return b.Top
		}
		return b.Bottom
	}
	switch {
	case t <= b.TopScale:
		return b.Top
	case t >= b.BottomScale:
		return b.Bottom
	}
	f := (t - b.TopScale) / (b.BottomScale - b.TopScale)
	return color.RGBA{
		R: lerp(b.Top.R, b.Bottom.R, f),
		G: lerp(b.Top.G, b.Bottom.G, f),
		B: lerp(b.Top.B, b.Bottom.B, f),
		A: lerp(b.Top.A, b.Bottom.A, f),
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

// LayerFrame is an immutable snapshot of one layer for a single draw
type LayerFrame struct {
	ID           string
	Order        int
	Viewport     viewport.Config
	Background   Background
	Technique    string
	Passes       int
	Stereo       string
	Chain        []string
	Overlays     []string
	DefaultLight bool
	Adaptors     int
}

// Frame is everything a backend needs to draw once
type Frame struct {
	Number uint64
	Layers []LayerFrame
}
