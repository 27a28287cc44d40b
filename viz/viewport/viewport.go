package viewport

import (
	"fmt"
	"image"
	"strings"
)

// HAlign anchors a viewport horizontally within its surface
type HAlign int

const (
	Left HAlign = iota
	HCenter
	Right
)

// VAlign anchors a viewport vertically within its surface
type VAlign int

const (
	Top VAlign = iota
	VCenter
	Bottom
)

func (h HAlign) String() string {
	switch h {
	case Left:
		return "left"
	case HCenter:
		return "center"
	case Right:
		return "right"
	}
	return fmt.Sprintf("HAlign(%d)", int(h))
}

func (v VAlign) String() string {
	switch v {
	case Top:
		return "top"
	case VCenter:
		return "center"
	case Bottom:
		return "bottom"
	}
	return fmt.Sprintf("VAlign(%d)", int(v))
}

// ParseHAlign accepts left, center and right. An empty string means left.
func ParseHAlign(s string) (HAlign, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return Left, nil
	case "center":
		return HCenter, nil
	case "right":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown horizontal alignment %q", s)
}

// ParseVAlign accepts top, center and bottom. An empty string means top.
func ParseVAlign(s string) (VAlign, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top":
		return Top, nil
	case "center":
		return VCenter, nil
	case "bottom":
		return Bottom, nil
	}
	return Top, fmt.Errorf("unknown vertical alignment %q", s)
}

// Config is a normalized sub-region of a render surface.
// X and Y give the top-left corner, all values are in [0,1] surface units.
type Config struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Full returns the viewport covering the whole surface
func Full() Config {
	return Config{Width: 1, Height: 1}
}

// Align computes the top-left origin of a width x height viewport anchored
// with h and v. Offsets push the viewport away from the anchored edge.
func Align(h HAlign, v VAlign, width, height, hOffset, vOffset float64) Config {
	cfg := Config{Width: width, Height: height}

	switch h {
	case Left:
		cfg.X = hOffset
	case HCenter:
		cfg.X = 0.5 - width/2 + hOffset
	case Right:
		cfg.X = 1 - width - hOffset
	}

	switch v {
	case Top:
		cfg.Y = vOffset
	case VCenter:
		cfg.Y = 0.5 - height/2 + vOffset
	case Bottom:
		cfg.Y = 1 - height - vOffset
	}

	return cfg
}

// Validate reports an error for empty viewports
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("viewport size must be positive, got %gx%g", c.Width, c.Height)
	}
	return nil
}

// IsFull reports whether c covers the whole surface
func (c Config) IsFull() bool {
	return c == Full()
}

// Rect converts c to pixel coordinates on a w x h surface, clipped to the surface.
func (c Config) Rect(w, h int) image.Rectangle {
	x0 := int(c.X*float64(w) + 0.5)
	y0 := int(c.Y*float64(h) + 0.5)
	x1 := int((c.X+c.Width)*float64(w) + 0.5)
	y1 := int((c.Y+c.Height)*float64(h) + 0.5)
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, w, h))
}

// Contains reports whether the pixel (x, y) on a w x h surface lies inside c
func (c Config) Contains(x, y, w, h int) bool {
	return image.Pt(x, y).In(c.Rect(w, h))
}
