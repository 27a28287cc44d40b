package headless

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
	"github.com/valerio/go-viz/viz/output"
)

// DefaultWidth and DefaultHeight size offscreen targets without explicit size
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrNoFrame is returned by Capture before anything was drawn
var ErrNoFrame = errors.New("no frame rendered yet")

// Backend is an offscreen render target compositing layer backgrounds in
// software. It is used for batch rendering (frame export) and tests.
type Backend struct {
	config         backend.Config
	maxFrames      int
	snapshotConfig SnapshotConfig

	canvas   *image.RGBA
	frames   int
	released []string

	mu       sync.Mutex
	pending  []backend.InputEvent
	quitSent bool
	// captureErr makes the next Capture fail, used to exercise frame drops
	captureErr error
}

// SnapshotConfig holds configuration for frame snapshots
type SnapshotConfig struct {
	Enabled   bool
	Interval  int    // Save snapshot every N frames
	Directory string // Directory to save snapshots
	Name      string // Prefix of snapshot filenames
}

// New creates an offscreen backend. With maxFrames > 0 a quit event is
// produced once that many frames were drawn.
func New(maxFrames int, snapshotConfig SnapshotConfig) *Backend {
	return &Backend{
		maxFrames:      maxFrames,
		snapshotConfig: snapshotConfig,
	}
}

func (h *Backend) Init(config backend.Config) error {
	if config.Width <= 0 {
		config.Width = DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = DefaultHeight
	}
	h.config = config
	h.canvas = image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))

	slog.Info("Running headless mode",
		"size", fmt.Sprintf("%dx%d", config.Width, config.Height),
		"frames", h.maxFrames,
		"snapshot_interval", h.snapshotConfig.Interval,
		"snapshot_dir", h.snapshotConfig.Directory)

	return nil
}

// Size returns the canvas size, zero before Init
func (h *Backend) Size() (int, int) {
	return h.config.Width, h.config.Height
}

// Draw composites the frame and handles snapshots
func (h *Backend) Draw(frame backend.Frame) error {
	if h.canvas == nil {
		return errors.New("headless backend not initialized")
	}

	backend.Composite(h.canvas, frame)
	h.frames++

	// Save snapshot if needed
	if h.snapshotConfig.Enabled && h.frames%h.snapshotConfig.Interval == 0 {
		h.saveSnapshot()
	}

	// Log progress periodically
	if h.frames%10 == 0 {
		slog.Debug("Frame progress", "completed", h.frames, "total", h.maxFrames)
	}

	return nil
}

// PollEvents returns injected events, plus a quit event once the frame
// budget is spent.
func (h *Backend) PollEvents() []backend.InputEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := h.pending
	h.pending = nil

	if h.maxFrames > 0 && h.frames >= h.maxFrames && !h.quitSent {
		h.quitSent = true
		if h.snapshotConfig.Enabled {
			slog.Info("Headless execution completed", "frames", h.frames, "png_snapshots_saved_to", h.snapshotConfig.Directory)
		} else {
			slog.Info("Headless execution completed", "frames", h.frames)
		}
		events = append(events, backend.InputEvent{Action: action.SurfaceQuit, Type: event.Press})
	}
	return events
}

// Inject queues an input event as if a user produced it
func (h *Backend) Inject(ev backend.InputEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, ev)
}

// Capture returns a copy of the last drawn frame
func (h *Backend) Capture() (*image.RGBA, error) {
	h.mu.Lock()
	err := h.captureErr
	h.captureErr = nil
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if h.frames == 0 {
		return nil, ErrNoFrame
	}
	cp := image.NewRGBA(h.canvas.Bounds())
	copy(cp.Pix, h.canvas.Pix)
	return cp, nil
}

// FailNextCapture makes the next Capture return err
func (h *Backend) FailNextCapture(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.captureErr = err
}

// ReleaseLayer records that a layer's scene content was dropped
func (h *Backend) ReleaseLayer(id string) {
	h.released = append(h.released, id)
}

// Released lists released layers in release order
func (h *Backend) Released() []string {
	return append([]string(nil), h.released...)
}

// Frames returns the number of frames drawn
func (h *Backend) Frames() int {
	return h.frames
}

func (h *Backend) Cleanup() error {
	h.canvas = nil
	return nil
}

// CreateSnapshotConfig creates a snapshot configuration from CLI parameters
func CreateSnapshotConfig(interval int, directory, name string) (SnapshotConfig, error) {
	config := SnapshotConfig{
		Enabled:  interval > 0,
		Interval: interval,
		Name:     name,
	}

	if !config.Enabled {
		return config, nil
	}

	// Set up snapshot directory
	if directory == "" {
		tempDir, err := os.MkdirTemp("", "viz-snapshots-*")
		if err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0755); err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = directory
	}

	return config, nil
}

// saveSnapshot saves a PNG snapshot of the current canvas
func (h *Backend) saveSnapshot() {
	path := filepath.Join(h.snapshotConfig.Directory, fmt.Sprintf("%s_frame_%d.png", h.snapshotConfig.Name, h.frames))
	if err := output.WritePNG(path, h.canvas); err != nil {
		slog.Error("Failed to save PNG snapshot", "frame", h.frames, "error", err)
	}
}
