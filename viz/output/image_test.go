package output

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoRows is red on top, blue at the bottom
func twoRows(w, h int) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: 255, A: 255}
		if y >= h/2 {
			c = color.RGBA{B: 255, A: 255}
		}
		for x := 0; x < w; x++ {
			m.SetRGBA(x, y, c)
		}
	}
	return m
}

func TestUpdateCopy(t *testing.T) {
	img := New("frame", 0, 0)
	assert.Nil(t, img.Snapshot())

	img.Update(twoRows(4, 4), false)
	snap := img.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, image.Rect(0, 0, 4, 4), snap.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, snap.RGBAAt(0, 0))
	assert.Equal(t, uint64(1), img.Frames())
}

func TestUpdateFlip(t *testing.T) {
	img := New("frame", 0, 0)
	img.Update(twoRows(4, 4), true)

	snap := img.Snapshot()
	assert.Equal(t, color.RGBA{B: 255, A: 255}, snap.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, snap.RGBAAt(0, 3))
}

func TestUpdateScales(t *testing.T) {
	img := New("frame", 2, 2)
	img.Update(twoRows(8, 8), false)

	snap := img.Snapshot()
	assert.Equal(t, image.Rect(0, 0, 2, 2), snap.Bounds())
}

func TestModifiedCallbacks(t *testing.T) {
	img := New("frame", 0, 0)
	var seen []uint64
	img.OnModified(func(i *Image) { seen = append(seen, i.Frames()) })

	img.Update(twoRows(2, 2), false)
	img.NotifyModified()
	img.Update(twoRows(2, 2), false)
	img.NotifyModified()

	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestSavePNG(t *testing.T) {
	img := New("frame", 0, 0)
	_, err := img.SavePNG(t.TempDir(), "empty")
	assert.Error(t, err)

	img.Update(twoRows(4, 2), false)
	path, err := img.SavePNG(t.TempDir(), "frame_1")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), decoded.Bounds())
}
