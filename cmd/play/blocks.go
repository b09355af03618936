package play

import (
	"fmt"
	"image"
	"strings"
	"sync"
)

// Blocks draws img with "▀" half blocks: each cell shows two pixel rows, the
// upper one as foreground and the lower one as background, in 24-bit colour.
func Blocks(img image.Image) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			tr, tg, tb := rgb8(img, x, y)
			br, bg, bb := 0, 0, 0
			if y+1 < b.Max.Y {
				br, bg, bb = rgb8(img, x, y+1)
			}
			fmt.Fprintf(&sb, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
		}
		sb.WriteString("\033[0m\n")
	}
	return sb.String()
}

// rgb8 composites over black; RGBA is already premultiplied.
func rgb8(img image.Image, x, y int) (int, int, int) {
	r, g, b, _ := img.At(x, y).RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8)
}

// screen holds the latest visualizer frame for the view.
type screen struct {
	mu   sync.Mutex
	text string
	w, h int
}

func (s *screen) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *screen) resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w, s.h = cols, rows*2
}

func (s *screen) present(img image.Image) error {
	text := Blocks(img)
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	return nil
}

func (s *screen) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}
