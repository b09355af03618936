package visual

import (
	"math"

	"github.com/fogleman/gg"
)

// Lightning grows one bolt per band up from the bottom edge.
type Lightning struct {
	profile Profile
	count   int
}

func NewLightning(p Profile) *Lightning {
	return &Lightning{profile: p, count: p.pick(72, 144)}
}

func (l *Lightning) Mode() Mode { return ModeLightning }
func (l *Lightning) Bins() int { return l.profile.Bins() }

// Bolt is a bolt in canvas coordinates.
type Bolt struct {
	Points    []Point3
	Intensity float64
}

// Bolts returns the bolts for f. Quiet bands (< 0.15) have none.
func (l *Lightning) Bolts(f Frame) []Bolt {
	var out []Bolt
	slot := f.Width / float64(l.count)
	for i := range l.count {
		intensity := f.level(binFor(i, l.count, len(f.Levels), spectrumShare))
		if intensity < 0.15 {
			continue
		}
		path := OrganicPath(PathParams{
			Angle:     -math.Pi / 2,
			Length:    intensity * 0.9,
			Intensity: intensity,
			Time:      f.Time,
			Seed:      int64(i) * 137,
			Segments:  l.profile.SegmentCount(intensity),
		})
		startX := float64(i)*slot + slot/2
		for j := range path {
			// unit space -> pixels, growing upwards from the bottom edge
			path[j].X = startX + path[j].X*f.Height*0.25
			path[j].Y = f.Height + path[j].Y*f.Height
		}
		out = append(out, Bolt{Points: path, Intensity: intensity})
	}
	return out
}

func (l *Lightning) Draw(dc *gg.Context, f Frame) {
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	for _, b := range l.Bolts(f) {
		c := Color(b.Intensity)

		tracePolyline(dc, b.Points)
		dc.SetColor(alpha(c, 0.3*b.Intensity))
		dc.SetLineWidth(4 + b.Intensity*3)
		dc.Stroke()

		tracePolyline(dc, b.Points)
		dc.SetColor(alpha(c, 0.7+b.Intensity*0.3))
		dc.SetLineWidth(1 + b.Intensity)
		dc.Stroke()

		tracePolyline(dc, b.Points)
		dc.SetRGBA(1, 1, 1, 0.4+b.Intensity*0.4)
		dc.SetLineWidth(0.5)
		dc.Stroke()
	}
}

func tracePolyline(dc *gg.Context, pts []Point3) {
	if len(pts) == 0 {
		return
	}
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
}
