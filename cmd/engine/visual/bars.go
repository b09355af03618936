package visual

import (
	"math"

	"github.com/fogleman/gg"
)

// spectrumShare is the part of the spectrum spread across the width; the top of
// the range carries little energy in music.
const spectrumShare = 0.7

// binFor maps element i of count onto the lowest share of n bins, low frequencies left.
func binFor(i, count, n int, share float64) int {
	return int(math.Floor(float64(i) / float64(count) * float64(n) * share))
}

// Bars is the EQ view: one rounded bar per band with a soft glow.
type Bars struct {
	count int
	bins  int
}

func NewBars(p Profile) *Bars {
	return &Bars{count: p.pick(32, 64), bins: p.Bins()}
}

func (b *Bars) Mode() Mode { return ModeBars }
func (b *Bars) Bins() int { return b.bins }

// Count is the number of bars drawn.
func (b *Bars) Count() int { return b.count }

// Heights returns the bar heights for f, left to right.
func (b *Bars) Heights(f Frame) []float64 {
	out := make([]float64, b.count)
	for i := range out {
		out[i] = f.level(binFor(i, b.count, len(f.Levels), spectrumShare)) * f.Height * 0.9
	}
	return out
}

func (b *Bars) Draw(dc *gg.Context, f Frame) {
	barW := f.Width/float64(b.count) - 1
	for i, h := range b.Heights(f) {
		if h < 0.5 {
			continue
		}
		intensity := h / (f.Height * 0.9)
		c := Color(intensity)
		x := float64(i) * (barW + 1)
		y := f.Height - h

		dc.SetColor(alpha(c, 0.3))
		dc.DrawRoundedRectangle(x-2, y-2, barW+4, h+4, 4)
		dc.Fill()

		dc.SetColor(alpha(c, 0.8))
		dc.DrawRoundedRectangle(x, y, barW, h, 2)
		dc.Fill()
	}
}

// Waveform draws a trace through consecutive bins and a fainter mirrored copy.
type Waveform struct {
	bins int
}

func NewWaveform(p Profile) *Waveform { return &Waveform{bins: p.Bins()} }

func (w *Waveform) Mode() Mode { return ModeWaveform }
func (w *Waveform) Bins() int { return w.bins }

func (w *Waveform) Draw(dc *gg.Context, f Frame) {
	n := len(f.Levels)
	if n < 2 {
		return
	}
	slice := f.Width / float64(n)
	dc.SetLineCapRound()

	for _, mirrored := range []bool{false, true} {
		for i := 0; i < n-1; i++ {
			v1, v2 := f.Levels[i], f.Levels[i+1]
			intensity := math.Abs(v1-0.5) * 2
			y1, y2 := v1*f.Height, v2*f.Height
			c := Color(intensity)
			if mirrored {
				y1, y2 = f.Height-y1, f.Height-y2
				dc.SetColor(alpha(c, 0.4))
				dc.SetLineWidth(1 + intensity)
			} else {
				dc.SetColor(alpha(c, 0.8))
				dc.SetLineWidth(2 + intensity*2)
			}
			dc.MoveTo(float64(i)*slice, y1)
			dc.LineTo(float64(i+1)*slice, y2)
			dc.Stroke()
		}
	}
}
