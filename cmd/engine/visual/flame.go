package visual

import (
	"math"

	"github.com/fogleman/gg"
)

const flameDepths = 4

// Flame stacks layers of bezier tongues along the bottom edge, drawn from the
// deepest layer forward with rising opacity.
type Flame struct {
	profile Profile
	groups  int
}

func NewFlame(p Profile) *Flame {
	return &Flame{profile: p, groups: p.pick(75, 150)}
}

func (fl *Flame) Mode() Mode { return ModeFlame }
func (fl *Flame) Bins() int { return fl.profile.Bins() }

// Tongue is one flame shape.
type Tongue struct {
	X, Height, Width float64
	Depth            int
	Intensity        float64
}

// Tongues returns the shapes for f in draw order (back to front).
func (fl *Flame) Tongues(f Frame) []Tongue {
	var out []Tongue
	padding := f.Width / 80
	usable := f.Width - padding*2
	for depth := flameDepths - 1; depth >= 0; depth-- {
		for g := range fl.groups {
			intensity := f.level(binFor(g, fl.groups, len(f.Levels), 0.4))
			if intensity < 0.05 {
				continue
			}
			seed := float64(g*100 + depth*7)
			maxH := f.Height*0.5 + intensity*f.Height*0.4
			baseX := padding + float64(g)/float64(fl.groups)*usable + usable/float64(fl.groups)/2

			out = append(out, Tongue{
				X:         baseX + math.Sin(f.Time*3+seed)*2*intensity,
				Height:    maxH * (0.5 + math.Sin(seed)*0.25 + intensity*0.2 + math.Sin(f.Time*6+seed)*0.05),
				Width:     10 + intensity*5 - float64(depth)*2,
				Depth:     depth,
				Intensity: intensity,
			})
		}
	}
	return out
}

func (fl *Flame) Draw(dc *gg.Context, f Frame) {
	base := f.Height
	for _, t := range fl.Tongues(f) {
		x, h, w := t.X, t.Height, t.Width
		if h <= 0 || w <= 0 {
			continue
		}

		dc.MoveTo(x-w*0.5, base)
		dc.CubicTo(x-w*0.7, base-h*0.2, x-w*0.5, base-h*0.4, x-w*0.3, base-h*0.55)
		dc.CubicTo(x-w*0.15, base-h*0.7, x-w*0.05, base-h*0.85, x, base-h)
		dc.CubicTo(x+w*0.05, base-h*0.85, x+w*0.15, base-h*0.7, x+w*0.3, base-h*0.55)
		dc.CubicTo(x+w*0.5, base-h*0.4, x+w*0.7, base-h*0.2, x+w*0.5, base)
		dc.ClosePath()

		a := 0.4 - float64(t.Depth)*0.08
		c := Color(t.Intensity * (1 - float64(t.Depth)*0.15))
		grad := gg.NewLinearGradient(x, base, x, base-h)
		grad.AddColorStop(0, alpha(scale(c, 1, 0.5, 0.2), a))
		grad.AddColorStop(0.3, alpha(scale(c, 1, 0.7, 0.4), a*0.9))
		grad.AddColorStop(0.6, alpha(c, a*0.6))
		grad.AddColorStop(1, alpha(scale(c, 0.8, 1, 1), 0))
		dc.SetFillStyle(grad)
		dc.Fill()
	}
}
