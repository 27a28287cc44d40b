//go:build sdl2

package sdl2

import (
	"fmt"
	"image"
	"log/slog"
	"unsafe"

	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/input"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// Backend implements the Backend interface using SDL2 bindings
// Note: building this requires SDL2 development libraries installed.
// Default builds skip this and use a stubbed renderer, see build tags (sdl2)
type Backend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	canvas   *image.RGBA
	config   backend.Config

	events   []backend.InputEvent
	dragging bool
}

// New creates a new SDL2 backend
func New() *Backend {
	return &Backend{}
}

// Init initializes the SDL2 backend
func (s *Backend) Init(config backend.Config) error {
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}
	s.config = config

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %w", err)
	}

	window, err := sdl.CreateWindow(
		config.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(config.Width),
		int32(config.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("failed to create window: %w", err)
	}
	s.window = window

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	s.renderer = renderer

	if config.Fullscreen {
		if err := s.SetFullscreen(true, 0); err != nil {
			slog.Warn("Failed to enter fullscreen", "error", err)
		}
	}

	slog.Info("SDL2 backend initialized", "size", fmt.Sprintf("%dx%d", config.Width, config.Height))
	return nil
}

// Size returns the current window size
func (s *Backend) Size() (int, int) {
	if s.window == nil {
		return 0, 0
	}
	w, h := s.window.GetSize()
	return int(w), int(h)
}

// Draw composites the frame into a streaming texture and presents it
func (s *Backend) Draw(frame backend.Frame) error {
	if s.window == nil {
		return fmt.Errorf("SDL2 backend not initialized")
	}

	w, h := s.window.GetSize()
	if err := s.ensureTarget(int(w), int(h)); err != nil {
		return err
	}
	backend.Composite(s.canvas, frame)

	// ABGR8888 matches image.RGBA byte order on little-endian hosts
	if err := s.texture.Update(nil, unsafe.Pointer(&s.canvas.Pix[0]), s.canvas.Stride); err != nil {
		return fmt.Errorf("failed to update texture: %w", err)
	}

	s.renderer.SetDrawColor(0, 0, 0, 0xff)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
	return nil
}

func (s *Backend) ensureTarget(w, h int) error {
	if s.canvas != nil && s.canvas.Bounds().Dx() == w && s.canvas.Bounds().Dy() == h {
		return nil
	}
	if s.texture != nil {
		s.texture.Destroy()
	}
	texture, err := s.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(w),
		int32(h),
	)
	if err != nil {
		return fmt.Errorf("failed to create texture: %w", err)
	}
	s.texture = texture
	s.canvas = image.NewRGBA(image.Rect(0, 0, w, h))
	return nil
}

// PollEvents processes pending SDL events
func (s *Backend) PollEvents() []backend.InputEvent {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		s.handleEvent(ev)
	}
	events := s.events
	s.events = nil
	return events
}

func (s *Backend) handleEvent(ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.QuitEvent:
		s.events = append(s.events, backend.InputEvent{Action: action.SurfaceQuit, Type: event.Press})

	case *sdl.KeyboardEvent:
		// Ignore key repeat events
		if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
			return
		}
		if act, ok := keyMapping[e.Keysym.Sym]; ok {
			s.events = append(s.events, backend.InputEvent{Action: act, Type: event.Press})
		}

	case *sdl.MouseButtonEvent:
		if e.Button != sdl.BUTTON_LEFT {
			return
		}
		typ := event.Release
		s.dragging = e.Type == sdl.MOUSEBUTTONDOWN
		if s.dragging {
			typ = event.Press
		}
		s.events = append(s.events, backend.InputEvent{Action: action.PointerDrag, Type: typ, X: int(e.X), Y: int(e.Y)})

	case *sdl.MouseMotionEvent:
		if !s.dragging {
			return
		}
		s.events = append(s.events, backend.InputEvent{
			Action: action.PointerDrag, Type: event.Move,
			X: int(e.X), Y: int(e.Y), DX: int(e.XRel), DY: int(e.YRel),
		})

	case *sdl.MouseWheelEvent:
		x, y, _ := sdl.GetMouseState()
		// SDL reports wheel up as positive
		s.events = append(s.events, backend.InputEvent{
			Action: action.PointerWheel, Type: event.Scroll,
			X: int(x), Y: int(y), DY: -int(e.Y),
		})
	}
}

// SetFullscreen moves the window to the given display and toggles fullscreen
func (s *Backend) SetFullscreen(on bool, screen int) error {
	if s.window == nil {
		return fmt.Errorf("SDL2 backend not initialized")
	}
	if !on {
		return s.window.SetFullscreen(0)
	}

	if n, err := sdl.GetNumVideoDisplays(); err == nil && screen >= 0 && screen < n {
		if bounds, err := sdl.GetDisplayBounds(screen); err == nil {
			s.window.SetPosition(bounds.X, bounds.Y)
		}
	} else {
		slog.Warn("Unknown display, using current one", "screen", screen)
	}
	return s.window.SetFullscreen(sdl.WINDOW_FULLSCREEN_DESKTOP)
}

// Visible reports whether the window is shown and not minimized
func (s *Backend) Visible() bool {
	if s.window == nil {
		return false
	}
	flags := s.window.GetFlags()
	return flags&sdl.WINDOW_SHOWN != 0 && flags&sdl.WINDOW_MINIMIZED == 0
}

// Capture returns a copy of the last composited frame
func (s *Backend) Capture() (*image.RGBA, error) {
	if s.canvas == nil {
		return nil, fmt.Errorf("no frame rendered yet")
	}
	cp := image.NewRGBA(s.canvas.Bounds())
	copy(cp.Pix, s.canvas.Pix)
	return cp, nil
}

// Cleanup cleans up SDL2 resources
func (s *Backend) Cleanup() error {
	slog.Info("Cleaning up SDL2 backend")

	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	s.texture, s.renderer, s.window = nil, nil, nil
	sdl.Quit()

	return nil
}

// sdlKeyNames converts SDL keys to key names used in default mappings
var sdlKeyNames = map[sdl.Keycode]string{
	sdl.K_LEFT:   "Left",
	sdl.K_RIGHT:  "Right",
	sdl.K_UP:     "Up",
	sdl.K_DOWN:   "Down",
	sdl.K_a:      "a",
	sdl.K_d:      "d",
	sdl.K_w:      "w",
	sdl.K_s:      "s",
	sdl.K_PLUS:   "+",
	sdl.K_EQUALS: "=",
	sdl.K_MINUS:  "-",
	sdl.K_SPACE:  "Space",
	sdl.K_f:      "f",
	sdl.K_F11:    "F11",
	sdl.K_r:      "r",
	sdl.K_m:      "m",
	sdl.K_RETURN: "Enter",
	sdl.K_F12:    "F12",
	sdl.K_ESCAPE: "Escape",
	sdl.K_q:      "q",
	sdl.K_F9:     "F9",
	sdl.K_F10:    "F10",
}

// keyMapping maps SDL2 keys to actions
var keyMapping = func() map[sdl.Keycode]action.Action {
	mapping := make(map[sdl.Keycode]action.Action)
	for key, name := range sdlKeyNames {
		if act, ok := input.GetDefaultMapping(name); ok {
			mapping[key] = act
		}
	}
	return mapping
}()
