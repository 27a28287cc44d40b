package config

import (
	"fmt"
	"strings"
)

// Mode is the render mode of a surface
type Mode int

const (
	// ModeAuto draws on every render request
	ModeAuto Mode = iota
	// ModeManual only draws on explicit render-now calls
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

// ParseMode accepts auto, manual and the legacy synonym sync. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "manual", "sync":
		return ModeManual, nil
	}
	return ModeAuto, fmt.Errorf("unknown render mode %q", s)
}
