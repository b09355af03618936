package visual

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fogleman/gg"
)

// Mode names a visualizer.
type Mode string

const (
	ModeBars      Mode = "bars"
	ModeWaveform  Mode = "waveform"
	ModeLightning Mode = "lightning"
	ModeFlame     Mode = "flame"
	ModeWater     Mode = "water"
	ModeTendrils  Mode = "tendrils"
)

var allModes = []Mode{ModeBars, ModeWaveform, ModeLightning, ModeFlame, ModeWater, ModeTendrils}

// ParseMode accepts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(allModes, m) {
		return "", fmt.Errorf("unknown visualizer mode %q", s)
	}
	return m, nil
}

// Profile selects element counts for the host. Constrained hosts draw fewer
// elements and skip the flame mode.
type Profile struct {
	Constrained bool
}

func (p Profile) pick(constrained, full int) int {
	if p.Constrained {
		return constrained
	}
	return full
}

// Bins is the snapshot length the renderers ask for.
func (p Profile) Bins() int { return p.pick(64, 128) }

// Modes lists the modes available on the profile, in cycling order.
func Modes(p Profile) []Mode {
	if p.Constrained {
		return slices.DeleteFunc(slices.Clone(allModes), func(m Mode) bool { return m == ModeFlame })
	}
	return slices.Clone(allModes)
}

// NextMode returns the mode after current. A mode the profile does not offer
// restarts the cycle.
func NextMode(current Mode, p Profile) Mode {
	modes := Modes(p)
	i := slices.Index(modes, current)
	if i < 0 {
		return modes[0]
	}
	return modes[(i+1)%len(modes)]
}

// Frame is everything a renderer needs for one picture. Width and Height are in
// logical pixels; the context is already scaled for the device.
type Frame struct {
	Levels []float64 // per-bin intensity, [0, 1]
	Time   float64   // seconds since the loop started
	Width  float64
	Height float64
}

// level reads a bin, treating out-of-range as silence.
func (f Frame) level(i int) float64 {
	if i < 0 || i >= len(f.Levels) {
		return 0
	}
	return f.Levels[i]
}

// Renderer draws one mode.
type Renderer interface {
	Mode() Mode
	Bins() int
	Draw(dc *gg.Context, f Frame)
}

// NewRenderer creates a fresh renderer for mode.
func NewRenderer(mode Mode, p Profile) (Renderer, error) {
	switch mode {
	case ModeBars:
		return NewBars(p), nil
	case ModeWaveform:
		return NewWaveform(p), nil
	case ModeLightning:
		return NewLightning(p), nil
	case ModeFlame:
		return NewFlame(p), nil
	case ModeWater:
		return NewWater(p), nil
	case ModeTendrils:
		return NewTendrils(p), nil
	default:
		return nil, fmt.Errorf("unknown visualizer mode %q", mode)
	}
}
