package backend

import (
	"image"
	"image/color"
	"log/slog"
)

// Composite clears dst and paints every layer background of frame into its
// viewport, in frame order. Material backgrounds are left to GPU targets.
func Composite(dst *image.RGBA, frame Frame) {
	clear(dst.Pix)
	b := dst.Bounds()
	for _, l := range frame.Layers {
		rect := l.Viewport.Rect(b.Dx(), b.Dy()).Add(b.Min)
		if rect.Empty() {
			continue
		}

		switch l.Background.Kind {
		case BackgroundColor:
			for y := rect.Min.Y; y < rect.Max.Y; y++ {
				c := l.Background.At(float64(y-rect.Min.Y) / float64(rect.Dy()))
				for x := rect.Min.X; x < rect.Max.X; x++ {
					dst.SetRGBA(x, y, over(c, dst.RGBAAt(x, y)))
				}
			}
		case BackgroundMaterial:
			slog.Debug("Material background skipped", "layer", l.ID, "material", l.Background.Material)
		}
	}
}

// over blends src on top of dst, non-premultiplied alpha
func over(src, dst color.RGBA) color.RGBA {
	if src.A == 0xff {
		return src
	}
	a := float64(src.A) / 255
	mix := func(s, d uint8) uint8 {
		return uint8(float64(s)*a + float64(d)*(1-a) + 0.5)
	}
	return color.RGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: uint8(float64(src.A) + float64(dst.A)*(1-a) + 0.5),
	}
}
