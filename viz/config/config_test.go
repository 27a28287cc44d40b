package config_test

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/config"
	"github.com/valerio/go-viz/viz/layer"
	"github.com/valerio/go-viz/viz/viewport"
)

func normalize(t *testing.T, src string, format config.Format) (*config.Scene, error) {
	t.Helper()
	desc, err := config.Parse([]byte(src), format)
	require.NoError(t, err)
	return desc.Normalize()
}

const fullYAML = `
scene:
  render_mode: manual
  fullscreen: true
  background:
    top_color: "#000000"
    bottom_color: "#ffffff80"
    top_scale: 0.2
    bottom_scale: 0.8
  layer:
    - id: volume
      transparency: DepthPeeling
      numPeels: 6
      stereoMode: AutoStereo5
      compositors: "Cel;SSAO"
      overlays: "axes; stats"
      adaptor:
        - uid: negato
        - uid: mesh
    - id: inset
      defaultLight: false
      stereoMode: false
      viewport:
        hAlign: right
        vAlign: bottom
        width: 0.3
        height: 0.25
        hOffset: 0.05
`

func TestNormalizeFullScene(t *testing.T) {
	scene, err := normalize(t, fullYAML, config.YAML)
	require.NoError(t, err)

	want := &config.Scene{
		Fullscreen: true,
		Mode:       config.ModeManual,
		Background: &backend.Background{
			Kind:        backend.BackgroundColor,
			Top:         color.RGBA{A: 0xff},
			Bottom:      color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x80},
			TopScale:    0.2,
			BottomScale: 0.8,
		},
		Layers: []config.LayerSpec{
			{
				ID:           "volume",
				Compositors:  []string{"Cel", "SSAO"},
				Compositor:   layer.Compositor{Transparency: layer.DepthPeeling, Peels: 6, Stereo: layer.AutoStereo5},
				DefaultLight: true,
				Overlays:     []string{"axes", "stats"},
				Viewport:     viewport.Full(),
			},
			{
				ID:           "inset",
				Compositor:   layer.DefaultCompositor(),
				DefaultLight: false,
				Viewport:     viewport.Align(viewport.Right, viewport.Bottom, 0.3, 0.25, 0.05, 0),
			},
		},
		Adaptors: []config.AdaptorSpec{
			{UID: "negato", Layer: "volume"},
			{UID: "mesh", Layer: "volume"},
		},
	}
	if diff := cmp.Diff(want, scene); diff != "" {
		t.Errorf("normalized scene mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.65, scene.Layers[1].Viewport.X, 1e-9)
	assert.False(t, scene.IsOffscreen())
}

func TestNormalizeTOML(t *testing.T) {
	src := `
[[offscreen]]
key = "frames"

[[scene]]
width = 320
height = 240
flip = true
renderMode = "sync"

[[scene.background]]
color = "#112233"

[[scene.layer]]
id = "A"
stereoMode = false

[[scene.layer.adaptor]]
uid = "a1"

[[scene.layer]]
id = "B"
numPeels = 2
transparency = "dualdepthpeeling"
`
	scene, err := normalize(t, src, config.TOML)
	require.NoError(t, err)

	assert.Equal(t, "frames", scene.Offscreen)
	assert.True(t, scene.IsOffscreen())
	assert.Equal(t, 320, scene.Width)
	assert.Equal(t, 240, scene.Height)
	assert.True(t, scene.Flip)
	assert.Equal(t, config.ModeManual, scene.Mode)

	c := color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}
	require.NotNil(t, scene.Background)
	assert.Equal(t, c, scene.Background.Top)
	assert.Equal(t, c, scene.Background.Bottom)

	require.Len(t, scene.Layers, 2)
	assert.Equal(t, "A", scene.Layers[0].ID)
	assert.Equal(t, layer.DualDepthPeeling, scene.Layers[1].Compositor.Transparency)
	assert.Equal(t, 2, scene.Layers[1].Compositor.Peels)
	assert.Equal(t, []config.AdaptorSpec{{UID: "a1", Layer: "A"}}, scene.Adaptors)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"no scene", `offscreen: {key: out}`, config.ErrSceneCount},
		{"two scenes", `
scene:
  - layer: {id: A}
  - layer: {id: B}
`, config.ErrSceneCount},
		{"two offscreen sinks", `
offscreen: [{key: a}, {key: b}]
scene:
  layer: {id: A}
`, config.ErrOffscreenCount},
		{"no layer", `scene: {fullscreen: true}`, config.ErrNoLayer},
		{"missing id", `scene: {layer: {transparency: DepthPeeling}}`, config.ErrLayerID},
		{"duplicate id", `
scene:
  layer: [{id: A}, {id: A}]
`, config.ErrDuplicateLayer},
		{"implicit grid clash", `scene: {layer: {id: grid}}`, config.ErrDuplicateLayer},
		{"explicit background clash", `
scene:
  background: {color: "#000000"}
  layer: {id: background}
`, config.ErrDuplicateLayer},
		{"unknown stereo", `scene: {layer: {id: A, stereoMode: Anaglyph}}`, config.ErrValue},
		{"unknown technique", `scene: {layer: {id: A, transparency: Magic}}`, config.ErrValue},
		{"bad peels", `scene: {layer: {id: A, numPeels: 0}}`, config.ErrValue},
		{"bad default light", `scene: {layer: {id: A, defaultLight: maybe}}`, config.ErrValue},
		{"bad align", `scene: {layer: {id: A, viewport: {hAlign: middle}}}`, config.ErrValue},
		{"bad render mode", `scene: {render_mode: eager, layer: {id: A}}`, config.ErrValue},
		{"material and color", `
scene:
  background: {material: sky, color: "#000000"}
  layer: {id: A}
`, config.ErrBackground},
		{"half gradient", `
scene:
  background: {top_color: "#000000"}
  layer: {id: A}
`, config.ErrBackground},
		{"bad color", `
scene:
  background: {color: "blue"}
  layer: {id: A}
`, config.ErrBackground},
		{"empty background", `
scene:
  background: {top_scale: 0.3}
  layer: {id: A}
`, config.ErrBackground},
		{"adaptor without uid", `scene: {layer: {id: A, adaptor: {}}}`, config.ErrAdaptor},
		{"legacy adaptor unknown layer", `
scene:
  layer: {id: A}
  adaptor: {uid: x, layer: Z}
`, config.ErrAdaptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalize(t, tt.src, config.YAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cfgErr *config.Error
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLegacySpellings(t *testing.T) {
	src := `
scene:
  renderMode: sync
  layer:
    - {id: C, order: 3}
    - {id: A, order: 1}
    - {id: B}
  adaptor:
    - {uid: legacy, layer: B}
    - {uid: onGrid, layer: grid}
`
	scene, err := normalize(t, src, config.YAML)
	require.NoError(t, err)

	assert.Equal(t, config.ModeManual, scene.Mode)

	ids := make([]string, 0, len(scene.Layers))
	for _, l := range scene.Layers {
		ids = append(ids, l.ID)
	}
	// B keeps its declaration index 2, between A (1) and C (3)
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Equal(t, []config.AdaptorSpec{{UID: "legacy", Layer: "B"}, {UID: "onGrid", Layer: "grid"}}, scene.Adaptors)
}

func TestLegacyOrderExtremes(t *testing.T) {
	src := `
scene:
  layer:
    - {id: High, order: 9223372036854775807}
    - {id: Low, order: -9223372036854775808}
    - {id: Mid}
`
	scene, err := normalize(t, src, config.YAML)
	require.NoError(t, err)

	ids := make([]string, 0, len(scene.Layers))
	for _, l := range scene.Layers {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"Low", "Mid", "High"}, ids)
}

func TestMultipleBackgroundsLastWins(t *testing.T) {
	src := `
scene:
  background:
    - {color: "#000000"}
    - {material: sky}
  layer: {id: A}
`
	scene, err := normalize(t, src, config.YAML)
	require.NoError(t, err)
	require.NotNil(t, scene.Background)
	assert.Equal(t, backend.BackgroundMaterial, scene.Background.Kind)
	assert.Equal(t, "sky", scene.Background.Material)
}

func TestOnScreenIgnoresOffscreenOptions(t *testing.T) {
	scene, err := normalize(t, `scene: {width: 10, height: 10, flip: true, layer: {id: A}}`, config.YAML)
	require.NoError(t, err)
	assert.Zero(t, scene.Width)
	assert.False(t, scene.Flip)

	scene, err = normalize(t, `{offscreen: {}, scene: {layer: {id: A}}}`, config.YAML)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultOffscreenKey, scene.Offscreen)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := config.Parse([]byte(`scene: {layers: {id: A}}`), config.YAML)
	assert.Error(t, err)

	_, err = config.Parse([]byte("[[scene]]\nlayers = 1\n"), config.TOML)
	assert.Error(t, err)

	desc, err := config.Parse(nil, config.YAML)
	require.NoError(t, err)
	_, err = desc.Normalize()
	assert.ErrorIs(t, err, config.ErrSceneCount)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "scene.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`scene: {layer: {id: A}}`), 0o644))
	desc, err := config.Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, desc.Scene, 1)

	tomlPath := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[[scene]]\n[[scene.layer]]\nid = \"A\"\n"), 0o644))
	desc, err = config.Load(tomlPath)
	require.NoError(t, err)
	assert.Len(t, desc.Scene[0].Layers, 1)

	_, err = config.Load(filepath.Join(dir, "scene.json"))
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		err  bool
	}{
		{"#112233", color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}, false},
		{"#fff", color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, false},
		{"#11223344", color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, false},
		{"#1122334G", color.RGBA{}, true},
		{"red", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseColor(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]config.Mode{"": config.ModeAuto, "auto": config.ModeAuto, "Manual": config.ModeManual, "sync": config.ModeManual} {
		got, err := config.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := config.ParseMode("lazy")
	assert.Error(t, err)
	assert.Equal(t, "manual", config.ModeManual.String())
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`scene: {layer: {id: A}}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	require.NoError(t, config.Watch(ctx, path, func() { changes.Add(1) }))

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`scene: {layer: {id: B}}`), 0o644))

	assert.Eventually(t, func() bool { return changes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}
