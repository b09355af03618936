package visual

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

const (
	tendrilInner = 0.115
	tendrilOuter = 0.99
	nyquist      = 22050.0
)

// Strip3 is a 3D line strip with an emissive glow.
type Strip3 struct {
	Points   []Point3
	Color    color.NRGBA
	Emissive float64 // [0, 1]
	Width    float64
}

// Projector maps unit-space points onto the canvas with a simple perspective:
// points with positive Z are nearer and spread further from the centre.
type Projector struct {
	CX, CY   float64
	Scale    float64
	Distance float64
}

// ProjectorFor centres a unit sphere in a w x h canvas.
func ProjectorFor(w, h float64) Projector {
	return Projector{CX: w / 2, CY: h / 2, Scale: math.Min(w, h) / 2, Distance: 3}
}

// Project returns canvas coordinates for p; Y grows downwards on the canvas.
func (pr Projector) Project(p Point3) (x, y float64) {
	k := 1.0
	if d := pr.Distance - p.Z; d > 0 {
		k = pr.Distance / d
	}
	return pr.CX + p.X*pr.Scale*k, pr.CY - p.Y*pr.Scale*k
}

// Tendrils radiates plasma tendrils from a ring, driven by the low bands. Each
// tendril keeps its own envelope: quick attack, slower release.
type Tendrils struct {
	profile  Profile
	count    int
	envelope []float64
}

func NewTendrils(p Profile) *Tendrils {
	n := p.pick(24, 72)
	return &Tendrils{profile: p, count: n, envelope: make([]float64, n)}
}

func (t *Tendrils) Mode() Mode { return ModeTendrils }
func (t *Tendrils) Bins() int { return t.profile.Bins() }

// update folds the 60-500 Hz bands of f into the envelope.
func (t *Tendrils) update(f Frame) {
	n := len(f.Levels)
	if n == 0 {
		for i := range t.envelope {
			t.envelope[i] *= 0.7
		}
		return
	}
	res := nyquist / float64(n)
	low := int(math.Floor(60 / res))
	high := int(math.Floor(500 / res))
	span := high - low

	for i := range t.count {
		raw := f.level(low + int(math.Floor(float64(i)/float64(t.count)*float64(span))))
		threshold := 0.25 + Noise(int64(i)*31, 0)*0.15
		v := 0.0
		if raw > threshold {
			v = (raw - threshold) / (1 - threshold)
		}
		decay := 0.7
		if v > t.envelope[i] {
			decay = 0.5
		}
		t.envelope[i] = t.envelope[i]*decay + v*(1-decay)
	}
}

// Strips advances the envelopes with f and returns the visible tendrils.
func (t *Tendrils) Strips(f Frame) []Strip3 {
	t.update(f)

	var out []Strip3
	for i, intensity := range t.envelope {
		if intensity < 0.15 {
			continue
		}
		seed := int64(i) * 137
		c, emissive := PlasmaColor(intensity, seed)
		out = append(out, Strip3{
			Points: OrganicPath(PathParams{
				Angle:     float64(i)/float64(t.count)*2*math.Pi - math.Pi/2,
				Length:    tendrilInner + intensity*(tendrilOuter-tendrilInner),
				Intensity: intensity,
				Time:      f.Time,
				Seed:      seed,
				Segments:  t.profile.SegmentCount(intensity),
			}),
			Color:    c,
			Emissive: emissive,
			Width:    0.4 + intensity*0.3,
		})
	}
	return out
}

func (t *Tendrils) Draw(dc *gg.Context, f Frame) {
	pr := ProjectorFor(f.Width, f.Height)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	for _, s := range t.Strips(f) {
		traceStrip(dc, pr, s.Points)
		dc.SetColor(alpha(s.Color, 0.35*s.Emissive))
		dc.SetLineWidth(s.Width*6 + s.Emissive*4)
		dc.Stroke()

		traceStrip(dc, pr, s.Points)
		dc.SetColor(s.Color)
		dc.SetLineWidth(s.Width * 3)
		dc.Stroke()
	}
}

func traceStrip(dc *gg.Context, pr Projector, pts []Point3) {
	for i, p := range pts {
		x, y := pr.Project(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
}
