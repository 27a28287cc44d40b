package config

import (
	"errors"
	"fmt"
)

var (
	ErrSceneCount     = errors.New("exactly one scene block is required")
	ErrOffscreenCount = errors.New("at most one offscreen output is accepted")
	ErrNoLayer        = errors.New("at least one layer block is required")
	ErrDuplicateLayer = errors.New("duplicate layer id")
	ErrLayerID        = errors.New("layer id is required")
	ErrBackground     = errors.New("invalid background")
	ErrAdaptor        = errors.New("invalid adaptor declaration")
	ErrValue          = errors.New("invalid value")
)

// Error is a configuration error tied to a location in the descriptor
type Error struct {
	// Path locates the offending block, e.g. "scene.layer[2]"
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(path string, sentinel error, format string, args ...any) *Error {
	if format == "" {
		return &Error{Path: path, Err: sentinel}
	}
	return &Error{Path: path, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}
