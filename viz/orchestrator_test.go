package viz_test

import (
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-viz/viz"
	"github.com/valerio/go-viz/viz/adaptor"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/backend/headless"
	"github.com/valerio/go-viz/viz/config"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
	"github.com/valerio/go-viz/viz/layer"
	"github.com/valerio/go-viz/viz/output"
	"github.com/valerio/go-viz/viz/signal"
	"github.com/valerio/go-viz/viz/timing"
)

const twoLayers = `
offscreen:
  key: frames
scene:
  width: 8
  height: 4
  layer:
    - id: A
      adaptor:
        - uid: mesh
    - id: B
      compositors: "Cel;SSAO"
`

const explicitBackground = `
offscreen: {}
scene:
  width: 8
  height: 4
  background:
    color: "#112233"
  layer:
    - id: A
    - id: B
`

// testSurface wires an orchestrator to headless backends it can inspect
type testSurface struct {
	*viz.Orchestrator
	registry *adaptor.Registry

	mu       sync.Mutex
	backends []*headless.Backend
}

func (s *testSurface) backend() *headless.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backends[len(s.backends)-1]
}

func newSurface(t *testing.T, src string, opts viz.Options) *testSurface {
	t.Helper()
	s := &testSurface{registry: adaptor.NewRegistry()}
	opts.Registry = s.registry
	opts.Backends = func(*config.Scene) (backend.Backend, error) {
		h := headless.New(0, headless.SnapshotConfig{})
		s.mu.Lock()
		s.backends = append(s.backends, h)
		s.mu.Unlock()
		return h, nil
	}
	s.Orchestrator = viz.New("surface", opts)

	desc, err := config.Parse([]byte(src), config.YAML)
	require.NoError(t, err)
	require.NoError(t, s.Configure(desc))
	return s
}

func startSurface(t *testing.T, src string) *testSurface {
	t.Helper()
	s := newSurface(t, src, viz.Options{})
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		if s.Running() {
			assert.NoError(t, s.Stop())
		}
	})
	return s
}

func orders(layers map[string]*layer.Layer) map[string]int {
	out := make(map[string]int, len(layers))
	for id, l := range layers {
		out[id] = l.Order()
	}
	return out
}

func countSignals(hub *signal.Hub, kind signal.Kind) *atomic.Int32 {
	var n atomic.Int32
	hub.On(kind, func(signal.Payload) { n.Add(1) })
	return &n
}

func TestStartCreatesImplicitLayers(t *testing.T) {
	s := startSurface(t, twoLayers)

	assert.Equal(t, map[string]int{
		layer.BackgroundID: 0,
		layer.GridID:       1,
		"A":                2,
		"B":                3,
	}, orders(s.Layers()))

	bg := s.Layer(layer.BackgroundID).Background()
	assert.Equal(t, layer.DefaultBackground(), bg)
	assert.Equal(t, []string{"Cel", "SSAO"}, s.Layer("B").CompositorChain())
}

func TestStartExplicitBackground(t *testing.T) {
	s := startSurface(t, explicitBackground)

	assert.Equal(t, map[string]int{
		layer.BackgroundID: 0,
		"A":                1,
		"B":                2,
	}, orders(s.Layers()))

	bg := s.Layer(layer.BackgroundID).Background()
	want := color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}
	assert.Equal(t, backend.BackgroundColor, bg.Kind)
	assert.Equal(t, want, bg.Top)
	assert.Equal(t, want, bg.Bottom)
	assert.False(t, s.HasLayer(layer.GridID))
}

func TestLayersReturnsCopy(t *testing.T) {
	s := startSurface(t, twoLayers)

	layers := s.Layers()
	delete(layers, "A")
	assert.True(t, s.HasLayer("A"))
	assert.Len(t, s.Layers(), 4)
}

func TestLayerPanicsOnUnknownID(t *testing.T) {
	s := startSurface(t, twoLayers)
	assert.PanicsWithValue(t, `viz: surface surface has no layer "missing"`, func() {
		s.Layer("missing")
	})
}

func TestConfigureErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "two scenes",
			src: `
scene:
  - layer: {id: A}
  - layer: {id: B}
`,
			want: config.ErrSceneCount,
		},
		{
			name: "no scene",
			src:  "offscreen: {}\n",
			want: config.ErrSceneCount,
		},
		{
			name: "second offscreen sink",
			src: `
offscreen:
  - key: first
  - key: second
scene:
  layer: {id: A}
`,
			want: config.ErrOffscreenCount,
		},
		{
			name: "unknown stereo mode",
			src: `
scene:
  layer: {id: A, stereoMode: Anaglyph}
`,
			want: config.ErrValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := config.Parse([]byte(tt.src), config.YAML)
			require.NoError(t, err)

			o := viz.New("surface", viz.Options{})
			err = o.Configure(desc)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, o.Start(), viz.ErrNotConfigured)
			assert.False(t, o.Running())
		})
	}
}

func TestLifecycleErrors(t *testing.T) {
	s := newSurface(t, twoLayers, viz.Options{})
	assert.ErrorIs(t, s.Stop(), viz.ErrNotRunning)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), viz.ErrRunning)

	desc, err := config.Parse([]byte(twoLayers), config.YAML)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Configure(desc), viz.ErrRunning)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), viz.ErrNotRunning)
	assert.Empty(t, s.Layers())
}

func TestRestartReproducesLayers(t *testing.T) {
	s := startSurface(t, twoLayers)
	first := orders(s.Layers())

	require.NoError(t, s.Stop())
	assert.Equal(t, []string{"A", "B", layer.BackgroundID, layer.GridID}, s.backend().Released())

	require.NoError(t, s.Start())
	assert.Equal(t, first, orders(s.Layers()))
	assert.Len(t, s.backends, 2)
}

func TestAdaptorSlotsAreStable(t *testing.T) {
	s := startSurface(t, twoLayers)

	// mesh is declared in the descriptor, its slot exists before it starts
	idx, ok := s.AdaptorIndex("mesh")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Nil(t, s.Adaptor(0))

	entry, ok := s.registry.Lookup("mesh")
	require.True(t, ok)
	assert.Equal(t, adaptor.Entry{Surface: "surface", Layer: "A"}, entry)

	mesh := adaptor.NewFunc("mesh", nil)
	require.NoError(t, mesh.Start(s, s.registry))
	assert.Equal(t, mesh, s.Adaptor(0))
	assert.Equal(t, []string{"mesh"}, s.Layer("A").Adaptors())

	s.registry.Set("label", adaptor.Entry{Surface: "surface", Layer: "B"})
	label := adaptor.NewFunc("label", nil)
	require.NoError(t, label.Start(s, s.registry))
	idx, _ = s.AdaptorIndex("label")
	assert.Equal(t, 1, idx)

	mesh.Stop()
	assert.Nil(t, s.Adaptor(0))
	idx, ok = s.AdaptorIndex("mesh")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Empty(t, s.Layer("A").Adaptors())

	s.registry.Set("axes", adaptor.Entry{Surface: "surface", Layer: "B"})
	axes := adaptor.NewFunc("axes", nil)
	require.NoError(t, axes.Start(s, s.registry))
	idx, _ = s.AdaptorIndex("axes")
	assert.Equal(t, 2, idx, "emptied slots are never reused")

	require.NoError(t, mesh.Start(s, s.registry))
	assert.Equal(t, mesh, s.Adaptor(0))
}

func TestAdaptorStartRejectsOtherSurface(t *testing.T) {
	s := startSurface(t, twoLayers)

	s.registry.Set("foreign", adaptor.Entry{Surface: "elsewhere", Layer: "A"})
	assert.ErrorIs(t, adaptor.NewFunc("foreign", nil).Start(s, s.registry), adaptor.ErrForeign)

	s.registry.Set("lost", adaptor.Entry{Surface: "surface", Layer: "Z"})
	assert.ErrorIs(t, adaptor.NewFunc("lost", nil).Start(s, s.registry), adaptor.ErrNoLayer)
}

func TestManualModeDrawsOnlyOnRenderNow(t *testing.T) {
	s := startSurface(t, twoLayers)
	rendered := countSignals(s.Signals(), signal.Rendered)
	modified := countSignals(s.Signals(), signal.BufferModified)

	mesh := adaptor.NewFunc("mesh", nil)
	require.NoError(t, mesh.Start(s, s.registry))

	s.SetManualMode()
	assert.Equal(t, viz.Manual, s.Mode())
	assert.True(t, mesh.Lazy())

	for range 50 {
		s.RequestRender()
		mesh.RequestUpdate()
	}
	assert.Zero(t, s.Draws())
	assert.Zero(t, rendered.Load())

	s.RenderNow()
	assert.Equal(t, uint64(1), s.Draws())
	assert.Equal(t, int32(1), rendered.Load())
	assert.Equal(t, int32(1), modified.Load())
	assert.Equal(t, 1, s.backend().Frames())
}

func TestAutoModeRenders(t *testing.T) {
	s := startSurface(t, twoLayers)
	rendered := countSignals(s.Signals(), signal.Rendered)
	assert.Equal(t, viz.Auto, s.Mode())

	s.RenderNow()
	assert.Zero(t, s.Draws(), "RenderNow only draws in manual mode")

	s.RequestRender()
	s.RequestRender()
	assert.Equal(t, uint64(2), s.Draws())
	assert.Zero(t, rendered.Load())

	mesh := adaptor.NewFunc("mesh", nil)
	require.NoError(t, mesh.Start(s, s.registry))
	assert.False(t, mesh.Lazy())
	mesh.RequestUpdate()
	assert.Equal(t, uint64(3), s.Draws())
}

func TestModeChangesUpdateLazyFlags(t *testing.T) {
	s := startSurface(t, `
offscreen: {}
scene:
  render_mode: sync
  layer:
    - id: A
      adaptor: {uid: mesh}
`)
	assert.Equal(t, viz.Manual, s.Mode())

	mesh := adaptor.NewFunc("mesh", nil)
	require.NoError(t, mesh.Start(s, s.registry))
	assert.True(t, mesh.Lazy(), "registering copies the current mode")

	s.SetAutoMode()
	assert.False(t, mesh.Lazy())
	s.SetManualMode()
	assert.True(t, mesh.Lazy())
}

func TestOffscreenCaptureFlips(t *testing.T) {
	s := startSurface(t, `
offscreen:
  key: frames
scene:
  width: 4
  height: 4
  flip: true
  background:
    top_color: "#ff0000"
    bottom_color: "#0000ff"
  layer: {id: A}
`)
	var got *output.Image
	s.Offscreen().OnModified(func(img *output.Image) { got = img })
	payloads := make(chan signal.Payload, 1)
	s.Signals().On(signal.BufferModified, func(p signal.Payload) { payloads <- p })

	s.RequestRender()

	require.NotNil(t, got)
	assert.Equal(t, "frames", got.Key())
	snap := got.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, snap.RGBAAt(0, 0), "flipped, bottom color on top")
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, snap.RGBAAt(0, 3))

	p := <-payloads
	assert.Equal(t, "surface", p.Surface)
	assert.Equal(t, uint64(1), p.Frame)
}

func TestCaptureFailureDropsFrame(t *testing.T) {
	s := startSurface(t, twoLayers)
	modified := countSignals(s.Signals(), signal.BufferModified)

	s.backend().FailNextCapture(errors.New("read back failed"))
	s.RequestRender()
	assert.Equal(t, uint64(1), s.Draws())
	assert.Zero(t, modified.Load())
	assert.Zero(t, s.Offscreen().Frames())

	s.RequestRender()
	assert.Equal(t, int32(1), modified.Load())
	assert.Equal(t, uint64(1), s.Offscreen().Frames())
}

// returnsWithin runs fn and fails the test if it does not return in time
func returnsWithin(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("call did not return")
	}
}

func TestRenderFromBufferModifiedHandler(t *testing.T) {
	s := startSurface(t, twoLayers)

	var handled atomic.Int32
	s.Signals().On(signal.BufferModified, func(signal.Payload) {
		if handled.Add(1) == 1 {
			s.RequestRender()
		}
	})
	var notified atomic.Int32
	s.Offscreen().OnModified(func(*output.Image) {
		if notified.Add(1) == 1 {
			s.RequestRender()
		}
	})

	returnsWithin(t, 2*time.Second, s.RequestRender)
	assert.Equal(t, uint64(3), s.Draws())
	assert.Equal(t, int32(3), handled.Load())
	assert.Equal(t, int32(3), notified.Load())
}

func TestRenderNowFromRenderedHandler(t *testing.T) {
	s := startSurface(t, twoLayers)
	s.SetManualMode()

	var handled atomic.Int32
	s.Signals().On(signal.Rendered, func(signal.Payload) {
		if handled.Add(1) == 1 {
			s.RenderNow()
		}
	})

	returnsWithin(t, 2*time.Second, s.RenderNow)
	assert.Equal(t, uint64(2), s.Draws())
	assert.Equal(t, int32(2), handled.Load())
	assert.Equal(t, uint64(2), s.Offscreen().Frames())
}

func TestUpdatingIteratesSnapshot(t *testing.T) {
	s := startSurface(t, twoLayers)
	s.SetManualMode()
	for _, id := range []string{"first", "second", "late"} {
		s.registry.Set(id, adaptor.Entry{Surface: "surface", Layer: "A"})
	}

	var calls []string
	var second, late *adaptor.Func
	first := adaptor.NewFunc("first", func() {
		calls = append(calls, "first")
		second.Stop()
		require.NoError(t, late.Start(s, s.registry))
	})
	second = adaptor.NewFunc("second", func() { calls = append(calls, "second") })
	late = adaptor.NewFunc("late", func() { calls = append(calls, "late") })

	require.NoError(t, first.Start(s, s.registry))
	require.NoError(t, second.Start(s, s.registry))

	s.Updating()
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, uint64(1), s.Draws())

	calls = nil
	late.Stop()
	s.Updating()
	assert.Equal(t, []string{"first"}, calls)
}

func TestResetCamerasIsIdempotent(t *testing.T) {
	s := startSurface(t, twoLayers)

	box := math32.B3(-1, -2, -3, 4, 2, 1)
	mesh := adaptor.NewFunc("mesh", nil).WithBounds(box)
	require.NoError(t, mesh.Start(s, s.registry))

	s.ResetCameras()
	first := s.Layer("A").Camera()
	s.ResetCameras()
	assert.Equal(t, first, s.Layer("A").Camera())
	assert.Equal(t, box.Center(), first.Target)
	assert.Equal(t, uint64(2), s.Draws())

	s.ResetCameraCoordinates("A")
	assert.Equal(t, first, s.Layer("A").Camera())
}

func TestFullscreenSignals(t *testing.T) {
	s := startSurface(t, twoLayers)
	screens := make(chan int, 1)
	s.Signals().On(signal.FullscreenSet, func(p signal.Payload) { screens <- p.Screen })
	unset := countSignals(s.Signals(), signal.FullscreenUnset)

	assert.True(t, s.IsShownOnScreen(), "offscreen surfaces are always shown")

	require.NoError(t, s.EnableFullscreen(1))
	assert.Equal(t, 1, <-screens)
	assert.True(t, s.Fullscreen())

	require.NoError(t, s.DisableFullscreen())
	assert.Equal(t, int32(1), unset.Load())
	assert.False(t, s.Fullscreen())
}

func TestOnScreenVisibility(t *testing.T) {
	// headless has no container, so only fullscreen makes it shown
	s := startSurface(t, `
scene:
  layer: {id: A}
`)
	assert.Nil(t, s.Offscreen())
	assert.False(t, s.IsShownOnScreen())

	require.NoError(t, s.EnableFullscreen(0))
	assert.True(t, s.IsShownOnScreen())
}

func TestCompositorUpdatedSignal(t *testing.T) {
	s := startSurface(t, twoLayers)
	payloads := make(chan signal.Payload, 1)
	s.Signals().On(signal.CompositorUpdated, func(p signal.Payload) { payloads <- p })

	s.Layer("A").SetCompositorChainEnabled([]string{"Blur"})

	p := <-payloads
	assert.Equal(t, "A", p.Layer)
	assert.Equal(t, []string{"Blur"}, p.Chain)
}

func TestInputRouting(t *testing.T) {
	var quit atomic.Bool
	s := newSurface(t, twoLayers, viz.Options{OnQuit: func() { quit.Store(true) }})
	require.NoError(t, s.Start())
	defer func() { assert.NoError(t, s.Stop()) }()

	before := s.Layer("A").Camera()
	s.backend().Inject(backend.InputEvent{Action: action.CameraOrbitLeft, Type: event.Press})

	// the top layer consumes camera input
	assert.Eventually(t, func() bool {
		return s.Layer("B").Camera() != before
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, before, s.Layer("A").Camera())

	s.backend().Inject(backend.InputEvent{Action: action.SurfaceRenderModeToggle, Type: event.Press})
	assert.Eventually(t, func() bool { return s.Mode() == viz.Manual }, time.Second, 5*time.Millisecond)

	s.backend().Inject(backend.InputEvent{Action: action.SurfaceQuit, Type: event.Press})
	assert.Eventually(t, quit.Load, time.Second, 5*time.Millisecond)
}

const sideBySide = `
scene:
  layer:
    - id: A
      viewport: {width: 0.5, hAlign: left}
    - id: B
      viewport: {width: 0.5, hAlign: right}
`

func drag(b *headless.Backend, x, y int) {
	b.Inject(backend.InputEvent{Action: action.PointerDrag, Type: event.Press, X: x, Y: y})
	b.Inject(backend.InputEvent{Action: action.PointerDrag, Type: event.Move, X: x + 10, Y: y, DX: 10})
	b.Inject(backend.InputEvent{Action: action.PointerDrag, Type: event.Release, X: x + 10, Y: y})
}

func TestPointerRoutingFollowsViewports(t *testing.T) {
	// on screen, headless reports its default 640x480 size
	s := startSurface(t, sideBySide)
	require.Nil(t, s.Offscreen())

	beforeA, beforeB := s.Layer("A").Camera(), s.Layer("B").Camera()
	drag(s.backend(), 10, 10)
	assert.Eventually(t, func() bool {
		return s.Layer("A").Camera() != beforeA
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, beforeB, s.Layer("B").Camera())

	movedA := s.Layer("A").Camera()
	drag(s.backend(), 630, 10)
	assert.Eventually(t, func() bool {
		return s.Layer("B").Camera() != beforeB
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, movedA, s.Layer("A").Camera())
}

// gateLimiter holds deferred draws until release is closed
type gateLimiter struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateLimiter) WaitForNextFrame() {
	g.entered <- struct{}{}
	<-g.release
}

func (g *gateLimiter) Reset() {}

func TestManualModeDropsDeferredDraws(t *testing.T) {
	gate := &gateLimiter{entered: make(chan struct{}, 8), release: make(chan struct{})}
	s := newSurface(t, sideBySide, viz.Options{
		Limiter: func(*config.Scene) timing.Limiter { return gate },
	})
	require.NoError(t, s.Start())
	defer func() { assert.NoError(t, s.Stop()) }()

	s.RequestRender()
	<-gate.entered
	// queued behind the draw waiting for its frame slot
	s.RequestRender()

	s.SetManualMode()
	close(gate.release)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.Draws())
	assert.Empty(t, gate.entered)

	s.RenderNow()
	assert.Equal(t, uint64(1), s.Draws())

	s.SetAutoMode()
	s.RequestRender()
	assert.Eventually(t, func() bool { return s.Draws() == 2 }, time.Second, 5*time.Millisecond)
}

func TestInjectedOutputIsKept(t *testing.T) {
	custom := output.New("custom", 0, 0)
	s := newSurface(t, twoLayers, viz.Options{Output: custom})
	assert.Same(t, custom, s.Offscreen())

	require.NoError(t, s.Start())
	s.RequestRender()
	assert.Equal(t, uint64(1), custom.Frames())
	require.NoError(t, s.Stop())

	onScreen, err := config.Parse([]byte(sideBySide), config.YAML)
	require.NoError(t, err)
	require.NoError(t, s.Configure(onScreen))
	assert.Nil(t, s.Offscreen())

	offscreen, err := config.Parse([]byte(twoLayers), config.YAML)
	require.NoError(t, err)
	require.NoError(t, s.Configure(offscreen))
	assert.Same(t, custom, s.Offscreen())
}

func TestParseMode(t *testing.T) {
	mode, err := viz.ParseMode("sync")
	require.NoError(t, err)
	assert.Equal(t, viz.Manual, mode)

	_, err = viz.ParseMode("sometimes")
	assert.Error(t, err)
}
