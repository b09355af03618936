package visual

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fogleman/gg"
)

type fixedSource struct {
	mu   sync.Mutex
	bins []byte
}

func (s *fixedSource) Snapshot(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	copy(out, s.bins)
	return out
}

func full(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 255
	}
	return b
}

func levels(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestColor(t *testing.T) {
	tests := []struct {
		in      float64
		r, g, b uint8
	}{
		{0, 255, 255, 255},
		{0.25, 177, 177, 255},
		{0.5, 100, 100, 255},
		{1, 255, 0, 100},
		{-1, 255, 255, 255},
		{2, 255, 0, 100},
	}
	for _, tt := range tests {
		c := Color(tt.in)
		if c.R != tt.r || c.G != tt.g || c.B != tt.b || c.A != 255 {
			t.Errorf("Color(%v) = %+v, want %d,%d,%d", tt.in, c, tt.r, tt.g, tt.b)
		}
	}
}

func TestColor_LowIsCoolHighIsWarm(t *testing.T) {
	cool, warm := Color(0.1), Color(0.95)
	if cool.B != 255 || cool.R >= cool.B {
		t.Errorf("low intensity should be blue-white, got %+v", cool)
	}
	if warm.R <= warm.B {
		t.Errorf("high intensity should be red, got %+v", warm)
	}
}

func TestPlasmaColor(t *testing.T) {
	calm, e1 := PlasmaColor(0.1, 5)
	hot, e2 := PlasmaColor(1, 5)
	if calm.B != 255 || hot.B != 255 {
		t.Errorf("blue channel should stay saturated: %+v %+v", calm, hot)
	}
	if hot.R < 180 || hot.G >= calm.G {
		t.Errorf("hot plasma should glow red: %+v vs %+v", hot, calm)
	}
	if e1 >= e2 || e2 > 1 {
		t.Errorf("emissive %v !< %v", e1, e2)
	}
}

func TestNoise_DeterministicAndInRange(t *testing.T) {
	seen := map[float64]bool{}
	for seed := int64(-50); seed < 50; seed++ {
		for tick := int64(0); tick < 20; tick++ {
			v := Noise(seed, tick)
			if v < 0 || v >= 1 {
				t.Fatalf("Noise(%d,%d) = %v out of range", seed, tick, v)
			}
			if Noise(seed, tick) != v {
				t.Fatalf("Noise(%d,%d) not deterministic", seed, tick)
			}
			seen[v] = true
		}
	}
	if len(seen) < 1900 {
		t.Errorf("only %d distinct values out of 2000", len(seen))
	}
}

func TestOrganicPath(t *testing.T) {
	p := PathParams{Angle: -math.Pi / 2, Length: 1, Intensity: 0.8, Time: 1.25, Seed: 137}
	a := OrganicPath(p)

	if want := (Profile{}).SegmentCount(0.8) + 1; len(a) != want {
		t.Fatalf("len = %d, want %d", len(a), want)
	}
	if a[0] != (Point3{}) {
		t.Errorf("path should start at the origin, got %+v", a[0])
	}
	tip := a[len(a)-1]
	if d := math.Hypot(tip.X, tip.Y); math.Abs(d-1) > 0.05 {
		t.Errorf("tip distance %v, want about 1", d)
	}
	if tip.Z != 0 {
		t.Errorf("tip z = %v", tip.Z)
	}
	if !reflect.DeepEqual(a, OrganicPath(p)) {
		t.Error("same inputs should give the same path")
	}

	p.Time = 3.7
	if reflect.DeepEqual(a, OrganicPath(p)) {
		t.Error("path should move over time")
	}
}

func TestProfileCounts(t *testing.T) {
	full, small := Profile{}, Profile{Constrained: true}
	if NewBars(full).Count() != 64 || NewBars(small).Count() != 32 {
		t.Error("bar counts")
	}
	if full.SegmentCount(0) != 8 || small.SegmentCount(1) != 8 || small.SegmentCount(0) != 5 {
		t.Error("segment counts")
	}
	if full.Bins() != 128 || small.Bins() != 64 {
		t.Error("bins")
	}
}

func TestModes(t *testing.T) {
	if got := Modes(Profile{}); len(got) != 6 {
		t.Errorf("modes = %v", got)
	}
	for _, m := range Modes(Profile{Constrained: true}) {
		if m == ModeFlame {
			t.Error("constrained profile should not offer flame")
		}
	}

	tests := []struct {
		cur     Mode
		profile Profile
		want    Mode
	}{
		{ModeBars, Profile{}, ModeWaveform},
		{ModeWater, Profile{}, ModeTendrils},
		{ModeTendrils, Profile{}, ModeBars},
		{ModeLightning, Profile{Constrained: true}, ModeWater},
		{ModeFlame, Profile{Constrained: true}, ModeBars},
	}
	for _, tt := range tests {
		if got := NextMode(tt.cur, tt.profile); got != tt.want {
			t.Errorf("NextMode(%s) = %s, want %s", tt.cur, got, tt.want)
		}
	}

	if _, err := ParseMode(" Flame "); err != nil {
		t.Error(err)
	}
	if _, err := ParseMode("disco"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBars_LowBandsLeft(t *testing.T) {
	b := NewBars(Profile{})
	lv := make([]float64, 128)
	for i := range 10 {
		lv[i] = 1
	}
	h := b.Heights(Frame{Levels: lv, Width: 640, Height: 100})
	if h[0] != 90 {
		t.Errorf("first bar = %v, want 90", h[0])
	}
	if h[len(h)-1] != 0 {
		t.Errorf("last bar = %v, want 0", h[len(h)-1])
	}
}

func TestLightning_QuietBandsHaveNoBolts(t *testing.T) {
	l := NewLightning(Profile{})
	if got := l.Bolts(Frame{Levels: levels(128, 0.1), Width: 400, Height: 100}); len(got) != 0 {
		t.Errorf("bolts = %d, want 0", len(got))
	}
	bolts := l.Bolts(Frame{Levels: levels(128, 1), Width: 400, Height: 100, Time: 2})
	if len(bolts) != 144 {
		t.Fatalf("bolts = %d, want 144", len(bolts))
	}
	for _, b := range bolts {
		if b.Points[0].Y != 100 {
			t.Fatalf("bolt should start on the bottom edge, got %+v", b.Points[0])
		}
		if b.Points[len(b.Points)-1].Y > 20 {
			t.Fatalf("full bolt should reach near the top, got %+v", b.Points[len(b.Points)-1])
		}
	}
}

func TestFlame_BackToFront(t *testing.T) {
	f := NewFlame(Profile{Constrained: true})
	tongues := f.Tongues(Frame{Levels: levels(64, 0.5), Width: 300, Height: 80})
	if len(tongues) != 4*75 {
		t.Fatalf("tongues = %d", len(tongues))
	}
	if tongues[0].Depth != 3 || tongues[len(tongues)-1].Depth != 0 {
		t.Errorf("draw order depth %d..%d", tongues[0].Depth, tongues[len(tongues)-1].Depth)
	}
}

func TestWater_SilenceIsFlat(t *testing.T) {
	w := NewWater(Profile{})
	crest := w.Crest(Frame{Levels: levels(128, 0), Width: 200, Height: 100, Time: 5}, 0)
	for _, p := range crest {
		if p.Y != 40 {
			t.Fatalf("silent crest y = %v, want 40", p.Y)
		}
	}
	loud := w.Crest(Frame{Levels: levels(128, 1), Width: 200, Height: 100, Time: 5}, 0)
	if loud[0].Y >= 40 {
		t.Errorf("loud crest should rise, y = %v", loud[0].Y)
	}
}

func TestTendrils_EnvelopeAttackAndRelease(t *testing.T) {
	tr := NewTendrils(Profile{Constrained: true})
	loud := Frame{Levels: levels(64, 1), Width: 200, Height: 200}
	var strips []Strip3
	for range 5 {
		strips = tr.Strips(loud)
	}
	if len(strips) != 24 {
		t.Fatalf("strips = %d, want 24", len(strips))
	}
	for _, s := range strips {
		if s.Emissive <= 0 || s.Color.B != 255 {
			t.Fatalf("strip = %+v", s)
		}
	}

	quiet := Frame{Levels: levels(64, 0), Width: 200, Height: 200}
	for range 20 {
		strips = tr.Strips(quiet)
	}
	if len(strips) != 0 {
		t.Errorf("strips after release = %d", len(strips))
	}
}

func TestProjector(t *testing.T) {
	pr := ProjectorFor(200, 100)
	x, y := pr.Project(Point3{})
	if x != 100 || y != 50 {
		t.Errorf("origin -> %v,%v", x, y)
	}
	_, up := pr.Project(Point3{Y: 1})
	if up != 0 {
		t.Errorf("unit up -> y %v, want 0", up)
	}
	near, _ := pr.Project(Point3{X: 1, Z: 1})
	far, _ := pr.Project(Point3{X: 1, Z: -1})
	if near <= far {
		t.Errorf("nearer points should spread further: %v <= %v", near, far)
	}
}

func TestRenderers_DrawWithoutPanic(t *testing.T) {
	for _, p := range []Profile{{}, {Constrained: true}} {
		for _, m := range allModes {
			r, err := NewRenderer(m, p)
			if err != nil {
				t.Fatal(err)
			}
			dc := gg.NewContext(160, 90)
			for _, v := range []float64{0, 0.5, 1} {
				r.Draw(dc, Frame{Levels: levels(r.Bins(), v), Time: 1.5, Width: 160, Height: 90})
			}
			r.Draw(dc, Frame{Width: 160, Height: 90})
		}
	}
}

func TestLoop_DecaysThenStops(t *testing.T) {
	src := &fixedSource{bins: full(128)}
	var presented int
	surface := &FuncSurface{W: 64, H: 32, Fn: func(image.Image) error { presented++; return nil }}
	l, err := NewLoop(LoopOptions{Source: src, Surface: surface, Mode: ModeBars})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	l.SetActive(true)
	if ok, err := l.Step(now); err != nil || !ok {
		t.Fatalf("active step: %v %v", ok, err)
	}
	if got := l.Levels()[0]; got != 1 {
		t.Fatalf("level = %v", got)
	}

	l.SetActive(false)
	now = now.Add(time.Second / 30)
	if _, err := l.Step(now); err != nil {
		t.Fatal(err)
	}
	if got := l.Levels()[0]; math.Abs(got-Decay) > 1e-12 {
		t.Errorf("decayed level = %v, want %v", got, Decay)
	}

	steps := 0
	for l.Scheduled() {
		now = now.Add(time.Second / 30)
		if _, err := l.Step(now); err != nil {
			t.Fatal(err)
		}
		steps++
		if steps > 100 {
			t.Fatal("loop never stopped")
		}
	}
	// 0.9^n < 0.01 first holds for n = 44
	if n := steps + 1; n != 44 {
		t.Errorf("faded after %d inactive frames, want 44", n)
	}
	for _, v := range l.Levels() {
		if v != 0 {
			t.Fatalf("levels not cleared: %v", v)
		}
	}
	if presented != l.Frames() {
		t.Errorf("presented %d of %d frames", presented, l.Frames())
	}

	l.SetActive(true)
	if !l.Scheduled() {
		t.Error("SetActive(true) should reschedule")
	}
}

func TestLoop_SetModeResets(t *testing.T) {
	src := &fixedSource{bins: full(128)}
	l, err := NewLoop(LoopOptions{Source: src, Surface: &FuncSurface{W: 10, H: 10}, Mode: ModeFlame})
	if err != nil {
		t.Fatal(err)
	}
	l.SetActive(true)
	if _, err := l.Step(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := l.SetMode(ModeWater); err != nil {
		t.Fatal(err)
	}
	if l.Mode() != ModeWater {
		t.Errorf("mode = %s", l.Mode())
	}
	for _, v := range l.Levels() {
		if v != 0 {
			t.Fatal("levels should start from silence after a mode switch")
		}
	}
	if err := l.SetMode("disco"); err == nil {
		t.Error("expected error")
	}
}

func TestPNGSurface(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := NewPNGSurface(dir, "bars", 32, 16, 2)
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewLoop(LoopOptions{Source: &fixedSource{bins: full(128)}, Surface: s})
	if err != nil {
		t.Fatal(err)
	}
	l.SetActive(true)
	for i := range 3 {
		if _, err := l.Step(time.Unix(int64(i), 0)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Frames() != 3 {
		t.Errorf("frames = %d", s.Frames())
	}
	img, err := gg.LoadPNG(filepath.Join(dir, "bars-00002.png"))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("frame size %v, want device pixels 64x32", b)
	}
	if _, err := os.Stat(filepath.Join(dir, "bars-00003.png")); !os.IsNotExist(err) {
		t.Error("unexpected extra frame")
	}
}
