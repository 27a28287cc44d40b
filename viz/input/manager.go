package input

import (
	"sync"
	"time"

	"github.com/valerio/go-viz/viz/input/action"
	"github.com/valerio/go-viz/viz/input/event"
)

// DefaultDebounce is the minimum time between two debounced surface events
const DefaultDebounce = 300 * time.Millisecond

// Manager dispatches surface-level actions to their callbacks.
// Press and Release events of surface actions are debounced so that key
// repeat from terminals does not toggle fullscreen several times.
type Manager struct {
	mu            sync.Mutex
	handlers      map[action.Action]map[event.Type][]func()
	lastTriggered map[action.Action]map[event.Type]time.Time
	debounce      time.Duration
}

func NewManager(debounce time.Duration) *Manager {
	return &Manager{
		handlers:      make(map[action.Action]map[event.Type][]func()),
		lastTriggered: make(map[action.Action]map[event.Type]time.Time),
		debounce:      debounce,
	}
}

// On registers a callback for a specific action and event type
func (m *Manager) On(act action.Action, evt event.Type, callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handlers[act] == nil {
		m.handlers[act] = make(map[event.Type][]func())
	}
	m.handlers[act][evt] = append(m.handlers[act][evt], callback)
}

// Trigger runs the callbacks bound to act and evt.
// Returns false if nothing is bound or the event was debounced.
func (m *Manager) Trigger(act action.Action, evt event.Type) bool {
	m.mu.Lock()

	if m.debounced(act, evt) {
		m.mu.Unlock()
		return false
	}

	callbacks := append([]func(){}, m.handlers[act][evt]...)
	m.mu.Unlock()

	// Callbacks run unlocked, they may register further handlers
	for _, callback := range callbacks {
		callback()
	}
	return len(callbacks) > 0
}

func (m *Manager) debounced(act action.Action, evt event.Type) bool {
	if evt != event.Press && evt != event.Release {
		return false
	}
	if action.GetInfo(act).Category != action.CategorySurface {
		return false
	}

	now := time.Now()
	if m.lastTriggered[act] == nil {
		m.lastTriggered[act] = make(map[event.Type]time.Time)
	}
	lastTime, seen := m.lastTriggered[act][evt]
	if seen && now.Sub(lastTime) < m.debounce {
		return true
	}
	m.lastTriggered[act][evt] = now
	return false
}
