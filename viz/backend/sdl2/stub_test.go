//go:build !sdl2

package sdl2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-viz/viz/backend"
	"github.com/valerio/go-viz/viz/backend/sdl2"
)

func TestStubReportsUnavailable(t *testing.T) {
	var b backend.Backend = sdl2.New()
	assert.ErrorIs(t, b.Init(backend.Config{}), sdl2.ErrUnavailable)
	assert.ErrorIs(t, b.Draw(backend.Frame{}), sdl2.ErrUnavailable)
	assert.Nil(t, b.PollEvents())
	assert.NoError(t, b.Cleanup())
}
