package visual

import (
	"math"

	"github.com/fogleman/gg"
)

const waterLayers = 5

// Water overlays sine-composited wave layers, back to front, with foam on the
// front layer.
type Water struct {
	profile    Profile
	resolution int
}

func NewWater(p Profile) *Water {
	return &Water{profile: p, resolution: p.pick(40, 80)}
}

func (w *Water) Mode() Mode { return ModeWater }
func (w *Water) Bins() int { return w.profile.Bins() }

// Crest returns the crest points of layer for f, left to right.
func (w *Water) Crest(f Frame, layer int) []Point3 {
	lf := float64(layer)
	offset := lf * 0.15
	depth := 1 - lf*0.12
	pts := make([]Point3, 0, w.resolution+1)
	for i := 0; i <= w.resolution; i++ {
		fi := float64(i)
		intensity := f.level(binFor(i, w.resolution, len(f.Levels), 0.5))
		t := f.Time

		wave1 := math.Sin(t*2+fi*0.08+lf*0.5) * 15 * intensity
		wave2 := math.Sin(t*3.5+fi*0.12+lf*0.8) * 10 * intensity
		wave3 := math.Sin(t*1.5+fi*0.05+lf*0.3) * 20 * intensity
		ripple := math.Sin(t*5+fi*0.2) * 5 * intensity

		baseline := f.Height * (0.4 + offset)
		height := (wave1 + wave2 + wave3 + ripple) * depth
		react := intensity * f.Height * 0.3 * depth
		pts = append(pts, Point3{X: fi / float64(w.resolution) * f.Width, Y: baseline - height - react})
	}
	return pts
}

func (w *Water) Draw(dc *gg.Context, f Frame) {
	for layer := waterLayers - 1; layer >= 0; layer-- {
		pts := w.Crest(f, layer)
		depth := 1 - float64(layer)*0.12

		dc.MoveTo(0, f.Height)
		dc.LineTo(pts[0].X, pts[0].Y)
		traceCrest(dc, pts)
		dc.LineTo(f.Width, pts[len(pts)-1].Y)
		dc.LineTo(f.Width, f.Height)
		dc.ClosePath()

		var avg float64
		for _, p := range pts {
			avg += (f.Height - p.Y) / f.Height
		}
		avg /= float64(len(pts))
		c := Color(avg * depth)
		lf := float64(layer)

		grad := gg.NewLinearGradient(0, f.Height*0.2, 0, f.Height)
		grad.AddColorStop(0, alpha(c, 0.4-lf*0.06))
		grad.AddColorStop(0.5, alpha(scale(c, 0.8, 0.9, 1), 0.5-lf*0.08))
		grad.AddColorStop(1, alpha(scale(c, 0.6, 0.7, 1), 0.3-lf*0.05))
		dc.SetFillStyle(grad)
		dc.Fill()

		if layer == 0 {
			dc.MoveTo(pts[0].X, pts[0].Y)
			traceCrest(dc, pts)
			dc.SetRGBA(1, 1, 1, 0.3)
			dc.SetLineWidth(2)
			dc.Stroke()
		}
	}
}

// traceCrest smooths through pts using their midpoints as curve ends.
func traceCrest(dc *gg.Context, pts []Point3) {
	for i := 0; i < len(pts)-1; i++ {
		xc := (pts[i].X + pts[i+1].X) / 2
		yc := (pts[i].Y + pts[i+1].Y) / 2
		dc.QuadraticTo(pts[i].X, pts[i].Y, xc, yc)
	}
}
