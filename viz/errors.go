package viz

import "errors"

var (
	ErrNotConfigured = errors.New("surface not configured")
	ErrRunning       = errors.New("surface already started")
	ErrNotRunning    = errors.New("surface not started")
)
