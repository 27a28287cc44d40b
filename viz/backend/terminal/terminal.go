package terminal

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/input"
	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
)

const (
	// upper half block, foreground paints the top pixel row of a cell
	halfBlock = '▀'

	logBufferSize = 100
	// rows reserved for the log pane when the terminal is tall enough
	logPaneHeight = 6
	minLogRows    = 24
)

// Backend draws frames in a terminal with tcell. Every cell holds two pixel
// rows, so a w x h terminal is a w x 2h surface.
type Backend struct {
	screen    tcell.Screen
	config    backend.Config
	logBuffer *LogBuffer
	logLevel  slog.Level
	showLogs  bool

	canvas *image.RGBA

	mu         sync.Mutex
	eventQueue []backend.InputEvent

	dragging     bool
	lastX, lastY int

	stopSignals chan struct{}
}

// New creates a terminal backend on the controlling terminal
func New() *Backend {
	return &Backend{logLevel: slog.LevelInfo, showLogs: true}
}

// NewWithScreen creates a backend drawing on an existing screen, typically a
// tcell.SimulationScreen.
func NewWithScreen(screen tcell.Screen) *Backend {
	return &Backend{screen: screen, logLevel: slog.LevelInfo}
}

// Init initializes the terminal backend
func (t *Backend) Init(config backend.Config) error {
	t.config = config

	screen := t.screen
	if screen == nil {
		var err error
		screen, err = tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	screen.EnableMouse()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	t.screen = screen

	if t.showLogs {
		// logs would otherwise corrupt the screen
		t.logBuffer = NewLogBuffer(logBufferSize)
		slog.SetDefault(slog.New(NewLogBufferHandler(t.logBuffer, slog.LevelDebug)))

		t.stopSignals = make(chan struct{})
		go t.handleSignals()
	}

	slog.Info("Terminal backend initialized", "title", config.Title)
	return nil
}

// Draw renders a frame and shows it
func (t *Backend) Draw(frame backend.Frame) error {
	if t.screen == nil {
		return fmt.Errorf("terminal backend not initialized")
	}

	cols, rows := t.screen.Size()
	sceneRows := t.sceneRows(rows)
	if t.canvas == nil || t.canvas.Bounds().Dx() != cols || t.canvas.Bounds().Dy() != sceneRows*2 {
		t.canvas = image.NewRGBA(image.Rect(0, 0, cols, sceneRows*2))
	}
	backend.Composite(t.canvas, frame)

	for y := 0; y < sceneRows; y++ {
		for x := 0; x < cols; x++ {
			top := t.canvas.RGBAAt(x, 2*y)
			bottom := t.canvas.RGBAAt(x, 2*y+1)
			style := tcell.StyleDefault.Foreground(toColor(top)).Background(toColor(bottom))
			t.screen.SetContent(x, y, halfBlock, nil, style)
		}
	}

	if sceneRows < rows {
		t.drawLogs(sceneRows, cols, rows)
	}

	t.screen.Show()
	return nil
}

// sceneRows is how many terminal rows the scene gets, the rest shows logs
func (t *Backend) sceneRows(rows int) int {
	if t.logBuffer != nil && rows >= minLogRows {
		return rows - logPaneHeight
	}
	return rows
}

// Size returns the pixel size of the scene area
func (t *Backend) Size() (int, int) {
	if t.screen == nil {
		return 0, 0
	}
	cols, rows := t.screen.Size()
	return cols, t.sceneRows(rows) * 2
}

func toColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// PollEvents drains pending terminal events without blocking
func (t *Backend) PollEvents() []backend.InputEvent {
	if t.screen == nil {
		return nil
	}

	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			t.processKeyEvent(ev)
		case *tcell.EventMouse:
			t.processMouseEvent(ev)
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.eventQueue
	t.eventQueue = nil
	return events
}

func (t *Backend) queue(ev backend.InputEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventQueue = append(t.eventQueue, ev)
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey) {
	act, ok := keyMapping[ev.Key()]
	if !ok && ev.Key() == tcell.KeyRune {
		act, ok = runeMapping[ev.Rune()]
	}
	if !ok {
		return
	}

	switch act {
	case action.DebugLogLevelIncrease:
		t.changeLogLevel(1)
		return
	case action.DebugLogLevelDecrease:
		t.changeLogLevel(-1)
		return
	}

	slog.Debug("Key event", "action", action.GetInfo(act).Description)
	t.queue(backend.InputEvent{Action: act, Type: event.Press})
}

func (t *Backend) processMouseEvent(ev *tcell.EventMouse) {
	x, y := ev.Position()
	// pixel coordinates, each cell is two rows tall
	py := y * 2
	buttons := ev.Buttons()

	switch {
	case buttons&tcell.WheelUp != 0:
		t.queue(backend.InputEvent{Action: action.PointerWheel, Type: event.Scroll, X: x, Y: py, DY: -1})
	case buttons&tcell.WheelDown != 0:
		t.queue(backend.InputEvent{Action: action.PointerWheel, Type: event.Scroll, X: x, Y: py, DY: 1})
	case buttons&tcell.Button1 != 0:
		if !t.dragging {
			t.dragging = true
			t.queue(backend.InputEvent{Action: action.PointerDrag, Type: event.Press, X: x, Y: py})
		} else if x != t.lastX || y != t.lastY {
			t.queue(backend.InputEvent{
				Action: action.PointerDrag, Type: event.Move,
				X: x, Y: py, DX: x - t.lastX, DY: (y - t.lastY) * 2,
			})
		}
		t.lastX, t.lastY = x, y
	case t.dragging:
		t.dragging = false
		t.queue(backend.InputEvent{Action: action.PointerDrag, Type: event.Release, X: x, Y: py})
	}
}

// Visible is always true, a terminal cannot hide its contents
func (t *Backend) Visible() bool {
	return t.screen != nil
}

// SetFullscreen is accepted but has no effect, the terminal decides its size
func (t *Backend) SetFullscreen(on bool, screen int) error {
	slog.Debug("Fullscreen request ignored by terminal backend", "on", on, "screen", screen)
	return nil
}

// Cleanup cleans up terminal resources
func (t *Backend) Cleanup() error {
	if t.stopSignals != nil {
		close(t.stopSignals)
		t.stopSignals = nil
	}
	if t.screen != nil {
		slog.Info("Cleaning up terminal backend")
		t.screen.Fini()
		t.screen = nil
	}
	return nil
}

func (t *Backend) handleSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(signals)

	select {
	case <-signals:
		t.queue(backend.InputEvent{Action: action.SurfaceQuit, Type: event.Press})
	case <-t.stopSignals:
	}
}

func (t *Backend) changeLogLevel(direction int) {
	oldLevel := t.logLevel
	switch direction {
	case -1:
		switch t.logLevel {
		case slog.LevelDebug:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelError
		}
	case 1:
		switch t.logLevel {
		case slog.LevelError:
			t.logLevel = slog.LevelWarn
		case slog.LevelWarn:
			t.logLevel = slog.LevelInfo
		case slog.LevelInfo:
			t.logLevel = slog.LevelDebug
		}
	}
	if oldLevel != t.logLevel {
		slog.Info("Log filter changed", "from", oldLevel, "to", t.logLevel)
	}
}

func (t *Backend) drawLogs(startY, width, termHeight int) {
	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	for y := startY; y < termHeight; y++ {
		for x := 0; x < width; x++ {
			t.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}

	available := termHeight - startY
	logs := make([]LogEntry, 0, available)
	for _, entry := range t.logBuffer.GetRecent(available * 2) {
		if entry.Level >= t.logLevel {
			logs = append(logs, entry)
			if len(logs) >= available {
				break
			}
		}
	}

	for i, entry := range logs {
		style := infoStyle
		switch entry.Level {
		case slog.LevelDebug:
			style = debugStyle
		case slog.LevelWarn:
			style = warnStyle
		case slog.LevelError:
			style = errStyle
		}

		x := 0
		for _, ch := range FormatLogEntry(entry) {
			if x >= width {
				break
			}
			t.screen.SetContent(x, startY+i, ch, nil, style)
			x++
		}
	}
}

// tcellKeyNameMap converts tcell keys to key names used in default mappings
var tcellKeyNameMap = map[tcell.Key]string{
	tcell.KeyEnter:  "Enter",
	tcell.KeyUp:     "Up",
	tcell.KeyDown:   "Down",
	tcell.KeyLeft:   "Left",
	tcell.KeyRight:  "Right",
	tcell.KeyEscape: "Escape",
	tcell.KeyF9:     "F9",
	tcell.KeyF10:    "F10",
	tcell.KeyF11:    "F11",
	tcell.KeyF12:    "F12",
}

// buildKeyMapping creates the key mapping from default mappings
func buildKeyMapping() map[tcell.Key]action.Action {
	mapping := make(map[tcell.Key]action.Action)
	for key, keyName := range tcellKeyNameMap {
		if act, ok := input.GetDefaultMapping(keyName); ok {
			mapping[key] = act
		}
	}
	mapping[tcell.KeyCtrlC] = action.SurfaceQuit
	return mapping
}

// buildRuneMapping creates the rune mapping from default mappings
func buildRuneMapping() map[rune]action.Action {
	mapping := make(map[rune]action.Action)
	for keyName, act := range input.DefaultKeyMap {
		if keyName == "Space" {
			mapping[' '] = act
			continue
		}
		runes := []rune(keyName)
		if len(runes) == 1 {
			mapping[runes[0]] = act
		}
	}
	return mapping
}

// keyMapping maps tcell keys to actions
var keyMapping = buildKeyMapping()

// runeMapping maps runes to actions
var runeMapping = buildRuneMapping()
