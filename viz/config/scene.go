package config

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/layer"
	"github.com/valerio/go-viz/viz/viewport"
)

// DefaultOffscreenKey names the output image when the offscreen block has no key
const DefaultOffscreenKey = "offscreen"

// Scene is the canonical, validated form of a descriptor
type Scene struct {
	Width      int
	Height     int
	Flip       bool
	Fullscreen bool
	Mode       Mode

	// Background is nil when the scene declares none, the surface then
	// creates its implicit background and grid layers.
	Background *backend.Background

	// Layers in declaration order
	Layers []LayerSpec

	// Offscreen is the output image key, empty for on-screen surfaces
	Offscreen string

	// Adaptors in declaration order, nested declarations first per layer
	Adaptors []AdaptorSpec
}

// IsOffscreen reports whether the scene renders to an output image
func (s *Scene) IsOffscreen() bool {
	return s.Offscreen != ""
}

// LayerSpec is one validated layer block
type LayerSpec struct {
	ID           string
	Compositors  []string
	Compositor   layer.Compositor
	DefaultLight bool
	Overlays     []string
	Viewport     viewport.Config
}

// AdaptorSpec maps an adaptor uid to its layer
type AdaptorSpec struct {
	UID   string
	Layer string
}

// Normalize validates the descriptor and maps legacy spellings to the
// canonical model.
func (d *Descriptor) Normalize() (*Scene, error) {
	if len(d.Scene) != 1 {
		return nil, newError("", ErrSceneCount, "found %d", len(d.Scene))
	}
	if len(d.Offscreen) > 1 {
		return nil, newError("", ErrOffscreenCount, "found %d", len(d.Offscreen))
	}

	raw := d.Scene[0]
	scene := &Scene{
		Fullscreen: raw.Fullscreen,
	}

	if len(d.Offscreen) == 1 {
		scene.Offscreen = d.Offscreen[0].Key
		if scene.Offscreen == "" {
			scene.Offscreen = DefaultOffscreenKey
		}
		scene.Width = raw.Width
		scene.Height = raw.Height
		scene.Flip = raw.Flip
	} else if raw.Width != 0 || raw.Height != 0 || raw.Flip {
		slog.Warn("Scene width, height and flip only apply to offscreen surfaces, ignoring")
	}
	if scene.Width < 0 || scene.Height < 0 {
		return nil, newError("scene", ErrValue, "negative size %dx%d", scene.Width, scene.Height)
	}

	modeStr := raw.RenderMode
	if raw.LegacyRenderMode != "" {
		slog.Warn("Deprecated scene key renderMode, use render_mode")
		if modeStr == "" {
			modeStr = raw.LegacyRenderMode
		}
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, &Error{Path: "scene.render_mode", Err: fmt.Errorf("%w: %v", ErrValue, err)}
	}
	scene.Mode = mode

	if n := len(raw.Background); n > 0 {
		if n > 1 {
			slog.Warn("Multiple background blocks, the last one wins", "count", n)
		}
		bg, err := normalizeBackground(raw.Background[n-1])
		if err != nil {
			return nil, err
		}
		scene.Background = &bg
	}

	if err := scene.normalizeLayers(raw); err != nil {
		return nil, err
	}

	return scene, nil
}

func normalizeBackground(raw BackgroundBlock) (backend.Background, error) {
	const path = "scene.background"

	bg := backend.Background{TopScale: 0.5, BottomScale: 0.5}
	if raw.TopScale != nil {
		bg.TopScale = *raw.TopScale
	}
	if raw.BottomScale != nil {
		bg.BottomScale = *raw.BottomScale
	}
	if bg.TopScale < 0 || bg.TopScale > 1 || bg.BottomScale < 0 || bg.BottomScale > 1 {
		return bg, newError(path, ErrBackground, "scales must be within [0, 1]")
	}

	gradient := raw.TopColor != "" || raw.BottomColor != ""
	kinds := 0
	for _, set := range []bool{raw.Material != "", raw.Color != "", gradient} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return bg, newError(path, ErrBackground, "exactly one of material, color or top_color/bottom_color is required")
	}

	switch {
	case raw.Material != "":
		bg.Kind = backend.BackgroundMaterial
		bg.Material = raw.Material
		return bg, nil

	case raw.Color != "":
		c, err := ParseColor(raw.Color)
		if err != nil {
			return bg, newError(path, ErrBackground, "%v", err)
		}
		bg.Kind = backend.BackgroundColor
		bg.Top, bg.Bottom = c, c
		return bg, nil
	}

	if raw.TopColor == "" || raw.BottomColor == "" {
		return bg, newError(path, ErrBackground, "top_color and bottom_color go together")
	}
	top, err := ParseColor(raw.TopColor)
	if err != nil {
		return bg, newError(path, ErrBackground, "%v", err)
	}
	bottom, err := ParseColor(raw.BottomColor)
	if err != nil {
		return bg, newError(path, ErrBackground, "%v", err)
	}
	bg.Kind = backend.BackgroundColor
	bg.Top, bg.Bottom = top, bottom
	return bg, nil
}

func (s *Scene) normalizeLayers(raw SceneBlock) error {
	if len(raw.Layers) == 0 {
		return newError("scene", ErrNoLayer, "")
	}

	blocks := slices.Clone([]LayerBlock(raw.Layers))
	if slices.ContainsFunc(blocks, func(b LayerBlock) bool { return b.Order != nil }) {
		slog.Warn("Deprecated layer key order, layers are ordered by declaration")
		// layers without an explicit order keep their declaration index
		orderOf := func(i int) int {
			if blocks[i].Order != nil {
				return *blocks[i].Order
			}
			return i
		}
		idx := make([]int, len(blocks))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(orderOf(a), orderOf(b)) })
		sorted := make([]LayerBlock, len(blocks))
		for i, j := range idx {
			sorted[i] = blocks[j]
		}
		blocks = sorted
	}

	seen := make(map[string]bool)
	if s.Background == nil {
		seen[layer.BackgroundID] = true
		seen[layer.GridID] = true
	} else {
		seen[layer.BackgroundID] = true
	}

	for i, b := range blocks {
		path := fmt.Sprintf("scene.layer[%d]", i)
		spec, err := normalizeLayer(path, b)
		if err != nil {
			return err
		}
		if seen[spec.ID] {
			return newError(path, ErrDuplicateLayer, "%q", spec.ID)
		}
		seen[spec.ID] = true
		s.Layers = append(s.Layers, spec)

		for j, a := range b.Adaptors {
			if a.UID == "" {
				return newError(fmt.Sprintf("%s.adaptor[%d]", path, j), ErrAdaptor, "uid is required")
			}
			if a.Layer != "" && a.Layer != spec.ID {
				return newError(fmt.Sprintf("%s.adaptor[%d]", path, j), ErrAdaptor, "nested adaptor %q names layer %q", a.UID, a.Layer)
			}
			s.Adaptors = append(s.Adaptors, AdaptorSpec{UID: a.UID, Layer: spec.ID})
		}
	}

	if len(raw.Adaptors) > 0 {
		slog.Warn("Deprecated scene-level adaptor blocks, declare adaptors inside their layer", "count", len(raw.Adaptors))
	}
	for j, a := range raw.Adaptors {
		path := fmt.Sprintf("scene.adaptor[%d]", j)
		if a.UID == "" {
			return newError(path, ErrAdaptor, "uid is required")
		}
		if !s.HasLayer(a.Layer) {
			return newError(path, ErrAdaptor, "adaptor %q names unknown layer %q", a.UID, a.Layer)
		}
		s.Adaptors = append(s.Adaptors, AdaptorSpec{UID: a.UID, Layer: a.Layer})
	}

	return nil
}

// HasLayer reports whether id is a layer of the scene, implicit ones included
func (s *Scene) HasLayer(id string) bool {
	if id == layer.BackgroundID || (s.Background == nil && id == layer.GridID) {
		return true
	}
	return slices.ContainsFunc(s.Layers, func(l LayerSpec) bool { return l.ID == id })
}

func normalizeLayer(path string, b LayerBlock) (LayerSpec, error) {
	id := strings.TrimSpace(b.ID)
	if id == "" {
		return LayerSpec{}, newError(path, ErrLayerID, "")
	}

	tech, err := layer.ParseTechnique(b.Transparency)
	if err != nil {
		return LayerSpec{}, newError(path, ErrValue, "%v", err)
	}
	stereo, err := layer.ParseStereoMode(flagString(b.StereoMode))
	if err != nil {
		return LayerSpec{}, newError(path, ErrValue, "%v", err)
	}
	peels := layer.DefaultPeels
	if b.NumPeels != nil {
		if *b.NumPeels < 1 {
			return LayerSpec{}, newError(path, ErrValue, "numPeels must be positive, got %d", *b.NumPeels)
		}
		peels = *b.NumPeels
	}

	light := true
	switch v := strings.ToLower(flagString(b.DefaultLight)); v {
	case "", "true":
	case "false":
		light = false
	default:
		return LayerSpec{}, newError(path, ErrValue, "defaultLight must be empty or false, got %q", v)
	}

	vp := viewport.Full()
	if b.Viewport != nil {
		vp, err = normalizeViewport(*b.Viewport)
		if err != nil {
			return LayerSpec{}, newError(path+".viewport", ErrValue, "%v", err)
		}
	}

	return LayerSpec{
		ID:           id,
		Compositors:  splitNames(b.Compositors),
		Compositor:   layer.Compositor{Transparency: tech, Peels: peels, Stereo: stereo},
		DefaultLight: light,
		Overlays:     splitNames(b.Overlays),
		Viewport:     vp,
	}, nil
}

func normalizeViewport(b ViewportBlock) (viewport.Config, error) {
	h, err := viewport.ParseHAlign(b.HAlign)
	if err != nil {
		return viewport.Config{}, err
	}
	v, err := viewport.ParseVAlign(b.VAlign)
	if err != nil {
		return viewport.Config{}, err
	}

	width, height := b.Width, b.Height
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}

	cfg := viewport.Align(h, v, width, height, b.HOffset, b.VOffset)
	return cfg, cfg.Validate()
}

// flagString renders attributes that accept strings or the boolean false
func flagString(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// splitNames splits semicolon or space separated name lists
func splitNames(s string) []string {
	names := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == ','
	})
	if len(names) == 0 {
		return nil
	}
	return names
}
