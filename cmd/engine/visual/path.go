package visual

import "math"

// Point3 is a path vertex. Z is zero for flat renderers.
type Point3 struct {
	X, Y, Z float64
}

// PathParams describes one organic bolt growing from the origin.
type PathParams struct {
	Angle     float64 // radians, direction of growth
	Length    float64
	Intensity float64 // [0, 1]
	Time      float64 // seconds
	Seed      int64
	Segments  int // 0 picks the count from Intensity
}

// SegmentCount is the default number of segments for a bolt of the given intensity.
func (p Profile) SegmentCount(intensity float64) int {
	if p.Constrained {
		return 5 + int(math.Floor(intensity*3))
	}
	return 8 + int(math.Floor(intensity*6))
}

// OrganicPath builds a plasma-like path: three overlapping sines plus a seeded
// chaos factor, a taper that peaks mid-path, occasional sharp kinks, a z wobble
// and a slightly moving tip. The result has Segments+1 points starting at the origin.
func OrganicPath(p PathParams) []Point3 {
	segments := p.Segments
	if segments <= 0 {
		segments = Profile{}.SegmentCount(p.Intensity)
	}
	seed := float64(p.Seed)
	t := p.Time

	wanderSpeed := 3 + Noise(p.Seed, 0)*2
	wanderAmount := 0.15 + p.Intensity*0.1
	angle := p.Angle + math.Sin(t*wanderSpeed+seed)*wanderAmount
	cosA, sinA := math.Cos(angle), math.Sin(angle)
	perpX, perpY := -sinA, cosA

	kinkTick := int64(math.Floor(t * 5))

	points := make([]Point3, 0, segments+1)
	points = append(points, Point3{})
	for i := 1; i < segments; i++ {
		fi := float64(i)
		u := fi / float64(segments)
		baseX := cosA * p.Length * u
		baseY := sinA * p.Length * u

		chaos := Noise(p.Seed+int64(i)*7, 0)*2 - 1
		wave1 := math.Sin(t*4+fi*1.2+seed*0.1) * 0.6
		wave2 := math.Sin(t*9+fi*2.5+chaos*3) * 0.3
		wave3 := math.Sin(t*18+fi*4+seed) * math.Cos(t*12+fi) * 0.2
		noise := (wave1 + wave2 + wave3) * (1 + chaos*0.3)

		jitter := math.Sin(u*math.Pi) * (0.08 + p.Intensity*0.15)

		kink := 0.0
		if Noise(p.Seed+int64(i)*13, kinkTick) > 0.85 {
			kink = (Noise(p.Seed+int64(i)*17, 0) - 0.5) * 0.2
		}

		z := math.Cos(t*7+fi*1.8+seed) * math.Sin(t*5+fi) * jitter * 0.5
		off := (noise + kink) * jitter
		points = append(points, Point3{X: baseX + perpX*off, Y: baseY + perpY*off, Z: z})
	}

	tip := math.Sin(t*10+seed) * 0.02
	points = append(points, Point3{
		X: cosA*p.Length + perpX*tip,
		Y: sinA*p.Length + perpY*tip,
	})
	return points
}
