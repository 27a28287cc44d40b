package output

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/image/draw"
)

// Image is the data sink of an offscreen surface. Every captured frame is
// copied into it before its modified callbacks run, so callbacks always see
// a complete frame.
type Image struct {
	key string

	mu       sync.RWMutex
	pix      *image.RGBA
	width    int
	height   int
	frames   uint64
	modified []func(*Image)
}

// New creates a sink. A zero width or height adopts the size of the first
// captured frame.
func New(key string, width, height int) *Image {
	return &Image{key: key, width: width, height: height}
}

func (img *Image) Key() string { return img.key }

// Update copies src into the buffer, scaling when the sizes differ, and
// optionally flips it vertically. It does not notify.
func (img *Image) Update(src *image.RGBA, flip bool) {
	img.mu.Lock()
	defer img.mu.Unlock()

	w, h := img.width, img.height
	if w == 0 || h == 0 {
		w, h = src.Bounds().Dx(), src.Bounds().Dy()
	}
	if img.pix == nil || img.pix.Bounds().Dx() != w || img.pix.Bounds().Dy() != h {
		img.pix = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	if src.Bounds().Size() == img.pix.Bounds().Size() {
		draw.Copy(img.pix, image.Point{}, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(img.pix, img.pix.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	if flip {
		flipRows(img.pix)
	}
	img.frames++
}

// flipRows mirrors an image around its horizontal axis in place
func flipRows(m *image.RGBA) {
	h := m.Bounds().Dy()
	rowLen := m.Bounds().Dx() * 4
	tmp := make([]byte, rowLen)
	for y := 0; y < h/2; y++ {
		top := m.Pix[y*m.Stride : y*m.Stride+rowLen]
		bottom := m.Pix[(h-1-y)*m.Stride : (h-1-y)*m.Stride+rowLen]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}

// OnModified registers a callback run after each captured frame
func (img *Image) OnModified(callback func(*Image)) {
	img.mu.Lock()
	defer img.mu.Unlock()
	img.modified = append(img.modified, callback)
}

// NotifyModified runs the modified callbacks
func (img *Image) NotifyModified() {
	img.mu.RLock()
	callbacks := slices.Clone(img.modified)
	img.mu.RUnlock()

	for _, callback := range callbacks {
		callback(img)
	}
}

// Snapshot returns a copy of the current frame, nil before the first one
func (img *Image) Snapshot() *image.RGBA {
	img.mu.RLock()
	defer img.mu.RUnlock()

	if img.pix == nil {
		return nil
	}
	cp := image.NewRGBA(img.pix.Bounds())
	copy(cp.Pix, img.pix.Pix)
	return cp
}

// Frames returns how many frames were copied in so far
func (img *Image) Frames() uint64 {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.frames
}

// SavePNG writes the current frame to directory/baseName.png
func (img *Image) SavePNG(directory, baseName string) (string, error) {
	snap := img.Snapshot()
	if snap == nil {
		return "", fmt.Errorf("output %s has no frame yet", img.key)
	}

	if directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		directory = cwd
	}

	filePath := filepath.Join(directory, baseName+".png")
	if err := WritePNG(filePath, snap); err != nil {
		return "", err
	}

	slog.Debug("Snapshot saved", "path", filePath, "size", fmt.Sprintf("%dx%d", snap.Bounds().Dx(), snap.Bounds().Dy()))
	return filePath, nil
}

// WritePNG encodes m to filePath
func WritePNG(filePath string, m image.Image) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	if err := png.Encode(file, m); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
