package visual

import (
	"image/color"
	"math"

	"github.com/samber/lo"
)

// Color maps an intensity in [0, 1] onto the shared ramp: white through blue
// up to 0.5, then blue towards red.
func Color(intensity float64) color.NRGBA {
	i := lo.Clamp(intensity, 0, 1)
	if i < 0.5 {
		t := i * 2
		return color.NRGBA{
			R: uint8(math.Floor(255 - t*155)),
			G: uint8(math.Floor(255 - t*155)),
			B: 255,
			A: 255,
		}
	}
	t := (i - 0.5) * 2
	return color.NRGBA{
		R: uint8(math.Floor(100 + t*155)),
		G: uint8(math.Floor(100 - t*100)),
		B: uint8(math.Floor(255 - t*155)),
		A: 255,
	}
}

// PlasmaColor is the tendril ramp: white-blue with a red glow above 0.5. The
// returned emissive factor is the effective intensity after per-element jitter.
func PlasmaColor(intensity float64, seed int64) (color.NRGBA, float64) {
	jitter := 0.9 + Noise(seed, 0)*0.2
	eff := math.Min(1, lo.Clamp(intensity, 0, 1)*jitter)

	r := math.Round(255 - eff*80)
	g := math.Round(255 - eff*40)
	if eff > 0.5 {
		boost := (eff - 0.5) * 2
		r = math.Min(255, math.Max(r, math.Round(180+boost*75)))
		g = math.Round(g * (1 - boost*0.4))
	}
	return color.NRGBA{R: uint8(r), G: uint8(g), B: 255, A: 255}, eff
}

// alpha returns c with opacity a in [0, 1].
func alpha(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(math.Round(lo.Clamp(a, 0, 1) * 255))
	return c
}

// scale multiplies each channel by its factor; used for gradient tints.
func scale(c color.NRGBA, r, g, b float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(lo.Clamp(float64(c.R)*r, 0, 255)),
		G: uint8(lo.Clamp(float64(c.G)*g, 0, 255)),
		B: uint8(lo.Clamp(float64(c.B)*b, 0, 255)),
		A: c.A,
	}
}
