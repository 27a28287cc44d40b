package interactor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/timing"
)

var (
	ErrRunning    = errors.New("interactor manager already running")
	ErrNotRunning = errors.New("interactor manager not running")
	// ErrNoCapture is returned by Capture when the backend cannot read back frames
	ErrNoCapture = errors.New("backend does not support capture")
)

// PollInterval is how often the render goroutine polls the backend for input
const PollInterval = 10 * time.Millisecond

// eventQueueSize bounds input batches waiting for the router
const eventQueueSize = 64

// FrameSource builds the frame to draw. It is called on the render goroutine.
type FrameSource func() backend.Frame

// Router receives input events. It runs on its own goroutine, so it may call
// back into the Manager.
type Router func(ev backend.InputEvent)

type job struct {
	fn   func() error
	done chan error
}

// Manager owns a backend on a dedicated render goroutine. Every backend call
// is marshalled onto that goroutine, other goroutines only post requests.
type Manager struct {
	surface string
	backend backend.Backend
	config  backend.Config
	frames  FrameSource
	router  Router
	limiter timing.Limiter

	// lifecycle serializes Start and Stop, mu guards the fields below
	lifecycle sync.Mutex
	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup

	jobs   chan job
	wake   chan struct{}
	events chan []backend.InputEvent

	frameNo    uint64
	draws      atomic.Uint64
	fullscreen atomic.Bool
	paused     atomic.Bool
	// last size reported by a backend.Sizer
	width, height atomic.Int64
}

// NewManager creates a manager for surface. A nil limiter draws deferred
// frames as fast as they are requested.
func NewManager(surface string, b backend.Backend, config backend.Config, frames FrameSource, router Router, limiter timing.Limiter) *Manager {
	if limiter == nil {
		limiter = timing.NewNoOpLimiter()
	}
	if router == nil {
		router = func(backend.InputEvent) {}
	}
	return &Manager{
		surface: surface,
		backend: b,
		config:  config,
		frames:  frames,
		router:  router,
		limiter: limiter,
	}
}

// Start initializes the backend on a new render goroutine and begins polling
// for input. It returns once the backend is initialized.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.Running() {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.jobs = make(chan job)
	m.wake = make(chan struct{}, 1)
	m.events = make(chan []backend.InputEvent, eventQueueSize)
	m.mu.Unlock()
	m.fullscreen.Store(m.config.Fullscreen)

	initErr := make(chan error, 1)
	m.wg.Add(2)
	go m.loop(ctx, initErr)
	go m.dispatch(ctx)

	if err := <-initErr; err != nil {
		cancel()
		m.wg.Wait()
		return fmt.Errorf("surface %s: backend init: %w", m.surface, err)
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	slog.Debug("Interactor manager started", "surface", m.surface, "offscreen", m.config.Offscreen)
	return nil
}

// Stop shuts the render goroutine down and cleans up the backend
func (m *Manager) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	// the router may be blocked in a call back into the manager, so the
	// lock is not held while waiting
	cancel()
	m.wg.Wait()

	slog.Debug("Interactor manager stopped", "surface", m.surface, "draws", m.draws.Load())
	return nil
}

// Running reports whether the render goroutine is active
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) loop(ctx context.Context, initErr chan<- error) {
	defer m.wg.Done()
	defer close(m.done)

	// windowing backends expect every call from the same OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := m.backend.Init(m.config); err != nil {
		initErr <- err
		return
	}
	m.updateSize()
	initErr <- nil

	defer func() {
		if err := m.backend.Cleanup(); err != nil {
			slog.Error("Backend cleanup failed", "surface", m.surface, "error", err)
		}
	}()

	poll := time.NewTicker(PollInterval)
	defer poll.Stop()
	m.limiter.Reset()

	for {
		select {
		case <-ctx.Done():
			return

		case j := <-m.jobs:
			j.done <- j.fn()

		case <-m.wake:
			m.limiter.WaitForNextFrame()
			if m.paused.Load() {
				continue
			}
			if err := m.draw(); err != nil {
				slog.Error("Deferred draw failed", "surface", m.surface, "error", err)
			}

		case <-poll.C:
			m.updateSize()
			evs := m.backend.PollEvents()
			if len(evs) == 0 {
				continue
			}
			select {
			case m.events <- evs:
			default:
				slog.Warn("Input queue full, dropping events", "surface", m.surface, "count", len(evs))
			}
		}
	}
}

func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evs := <-m.events:
			for _, ev := range evs {
				m.router(ev)
			}
		}
	}
}

// updateSize runs on the render goroutine
func (m *Manager) updateSize() {
	s, ok := m.backend.(backend.Sizer)
	if !ok {
		return
	}
	w, h := s.Size()
	m.width.Store(int64(w))
	m.height.Store(int64(h))
}

// Size returns the backend's drawable size in pixels as of the last input
// poll. It is zero when the backend does not report one.
func (m *Manager) Size() (int, int) {
	return int(m.width.Load()), int(m.height.Load())
}

// draw runs on the render goroutine
func (m *Manager) draw() error {
	frame := m.frames()
	frame.Number = m.frameNo
	m.frameNo++
	if err := m.backend.Draw(frame); err != nil {
		return err
	}
	m.draws.Add(1)
	return nil
}

// do runs fn on the render goroutine and waits for it
func (m *Manager) do(fn func() error) error {
	m.mu.Lock()
	running, jobs, done := m.running, m.jobs, m.done
	m.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case jobs <- j:
	case <-done:
		return ErrNotRunning
	}
	select {
	case err := <-j.done:
		return err
	case <-done:
		return ErrNotRunning
	}
}

// RenderNow draws one frame synchronously
func (m *Manager) RenderNow() error {
	return m.do(m.draw)
}

// RequestRender schedules a draw on the render goroutine. Requests made
// before the pending draw starts are coalesced into it.
func (m *Manager) RequestRender() {
	m.mu.Lock()
	running, wake := m.running, m.wake
	m.mu.Unlock()
	if !running || m.paused.Load() {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// PauseDeferred stops or resumes deferred draws. Pausing drops a pending
// request, and a deferred draw already waiting for its frame slot is skipped.
// RenderNow is not affected.
func (m *Manager) PauseDeferred(paused bool) {
	m.paused.Store(paused)
	if !paused {
		return
	}
	m.mu.Lock()
	wake := m.wake
	m.mu.Unlock()
	select {
	case <-wake:
	default:
	}
}

// Capture reads back the last drawn frame
func (m *Manager) Capture() (*image.RGBA, error) {
	c, ok := m.backend.(backend.Capturer)
	if !ok {
		return nil, ErrNoCapture
	}
	var img *image.RGBA
	err := m.do(func() error {
		var err error
		img, err = c.Capture()
		return err
	})
	return img, err
}

// SetFullscreen switches the backend to or from fullscreen on screen.
// Backends without fullscreen support only record the state.
func (m *Manager) SetFullscreen(on bool, screen int) error {
	if f, ok := m.backend.(backend.Fullscreener); ok {
		if err := m.do(func() error { return f.SetFullscreen(on, screen) }); err != nil {
			return err
		}
	}
	m.fullscreen.Store(on)
	return nil
}

// Fullscreen reports the last fullscreen state set
func (m *Manager) Fullscreen() bool {
	return m.fullscreen.Load()
}

// Visible reports whether the backend's container is shown
func (m *Manager) Visible() bool {
	v, ok := m.backend.(backend.Visibility)
	if !ok {
		return false
	}
	var visible bool
	if err := m.do(func() error {
		visible = v.Visible()
		return nil
	}); err != nil {
		return false
	}
	return visible
}

// Release drops the backend scene content of a layer
func (m *Manager) Release(layerID string) {
	r, ok := m.backend.(backend.SceneReleaser)
	if !ok {
		return
	}
	if err := m.do(func() error {
		r.ReleaseLayer(layerID)
		return nil
	}); err != nil {
		slog.Debug("Layer release skipped", "surface", m.surface, "layer", layerID, "error", err)
	}
}

// Draws returns the number of successful backend draws
func (m *Manager) Draws() uint64 {
	return m.draws.Load()
}
