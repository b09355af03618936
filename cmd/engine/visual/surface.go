package visual

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
)

// Surface is where a loop presents its frames. Size is in logical pixels; scale
// is the device pixel ratio.
type Surface interface {
	Size() (w, h int, scale float64)
	Present(img image.Image) error
}

// PNGSurface writes each frame to Dir as <prefix>-00000.png, <prefix>-00001.png, ...
type PNGSurface struct {
	Dir    string
	Prefix string
	W, H   int
	Scale  float64

	mu sync.Mutex
	n  int
}

// NewPNGSurface creates dir if needed.
func NewPNGSurface(dir, prefix string, w, h int, scale float64) (*PNGSurface, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if scale <= 0 {
		scale = 1
	}
	return &PNGSurface{Dir: dir, Prefix: prefix, W: w, H: h, Scale: scale}, nil
}

func (s *PNGSurface) Size() (int, int, float64) { return s.W, s.H, s.Scale }

func (s *PNGSurface) Present(img image.Image) error {
	s.mu.Lock()
	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%05d.png", s.Prefix, s.n))
	s.n++
	s.mu.Unlock()

	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to write frame %s: %w", path, err)
	}
	return nil
}

// Frames returns how many frames were presented.
func (s *PNGSurface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// FuncSurface adapts a callback. SizeFunc, when set, is asked for the size on
// every frame so the surface can follow a resizing host.
type FuncSurface struct {
	W, H     int
	Scale    float64
	SizeFunc func() (int, int)
	Fn       func(img image.Image) error
}

func (s *FuncSurface) Size() (int, int, float64) {
	w, h := s.W, s.H
	if s.SizeFunc != nil {
		w, h = s.SizeFunc()
	}
	scale := s.Scale
	if scale <= 0 {
		scale = 1
	}
	return w, h, scale
}

func (s *FuncSurface) Present(img image.Image) error {
	if s.Fn == nil {
		return nil
	}
	return s.Fn(img)
}
