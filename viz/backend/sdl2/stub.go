//go:build !sdl2

package sdl2

import (
	"errors"

	"github.com/valerio/go-viz/viz/backend"
)

// ErrUnavailable is returned when the binary was built without SDL2
var ErrUnavailable = errors.New("SDL2 backend not available - build with -tags sdl2 to enable")

// Backend stub for when SDL2 is not available
type Backend struct{}

// New creates a stub SDL2 backend that returns an error
func New() *Backend {
	return &Backend{}
}

// Init returns an error indicating SDL2 is not available
func (s *Backend) Init(config backend.Config) error {
	return ErrUnavailable
}

// Draw returns an error
func (s *Backend) Draw(frame backend.Frame) error {
	return ErrUnavailable
}

// PollEvents returns nothing
func (s *Backend) PollEvents() []backend.InputEvent {
	return nil
}

// Cleanup does nothing
func (s *Backend) Cleanup() error {
	return nil
}
