package visual

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultFPS = 30
	Decay      = 0.9
	FadeFloor  = 0.01
)

// Snapshotter provides fixed-length frequency snapshots; analyzer.Bridge is one.
type Snapshotter interface {
	Snapshot(n int) []byte
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	Source  Snapshotter
	Surface Surface
	Mode    Mode
	Profile Profile
	FPS     int
	Logger  *zap.Logger
}

// Loop drives one renderer. While active it renders every tick from fresh
// snapshots; once inactive it decays the last levels and stops scheduling when
// they have faded. SetActive(true) restarts it.
type Loop struct {
	src     Snapshotter
	surface Surface
	profile Profile
	fps     int
	log     *zap.Logger

	mu        sync.Mutex
	renderer  Renderer
	levels    []float64
	active    bool
	scheduled bool
	start     time.Time
	frames    int
	wake      chan struct{}
}

// NewLoop creates an inactive loop.
func NewLoop(opts LoopOptions) (*Loop, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBars
	}
	r, err := NewRenderer(mode, opts.Profile)
	if err != nil {
		return nil, err
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		src:      opts.Source,
		surface:  opts.Surface,
		profile:  opts.Profile,
		fps:      fps,
		log:      log.Named("visual").With(zap.String("mode", string(mode))),
		renderer: r,
		levels:   make([]float64, r.Bins()),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Mode returns the current mode.
func (l *Loop) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer.Mode()
}

// SetMode swaps in a fresh renderer. Nothing carries over from the old one.
func (l *Loop) SetMode(mode Mode) error {
	r, err := NewRenderer(mode, l.profile)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.renderer = r
	l.levels = make([]float64, r.Bins())
	l.mu.Unlock()
	return nil
}

// SetActive tells the loop whether audio is playing.
func (l *Loop) SetActive(active bool) {
	l.mu.Lock()
	l.active = active
	if active && !l.scheduled {
		l.scheduled = true
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()
}

// Scheduled reports whether the loop still renders on every tick.
func (l *Loop) Scheduled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scheduled
}

// Levels returns a copy of the current levels.
func (l *Loop) Levels() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.levels...)
}

// Frames returns the number of frames rendered.
func (l *Loop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Step renders one frame at now and reports whether the loop stays scheduled.
func (l *Loop) Step(now time.Time) (bool, error) {
	l.mu.Lock()
	if l.start.IsZero() {
		l.start = now
	}
	r := l.renderer
	if l.active {
		snap := l.src.Snapshot(len(l.levels))
		for i, b := range snap {
			l.levels[i] = float64(b) / 255
		}
	} else {
		for i := range l.levels {
			l.levels[i] *= Decay
		}
	}
	faded := !l.active && lo.EveryBy(l.levels, func(v float64) bool { return v < FadeFloor })
	if faded {
		clear(l.levels)
		l.scheduled = false
	} else {
		l.scheduled = true
	}
	frame := Frame{
		Levels: append([]float64(nil), l.levels...),
		Time:   now.Sub(l.start).Seconds(),
	}
	l.frames++
	scheduled := l.scheduled
	l.mu.Unlock()

	w, h, scale := l.surface.Size()
	if w <= 0 || h <= 0 {
		return scheduled, nil
	}
	frame.Width, frame.Height = float64(w), float64(h)

	dc := gg.NewContext(int(float64(w)*scale), int(float64(h)*scale))
	dc.Scale(scale, scale)
	r.Draw(dc, frame)
	if err := l.surface.Present(dc.Image()); err != nil {
		return scheduled, fmt.Errorf("present frame: %w", err)
	}
	return scheduled, nil
}

// Run ticks at the configured rate until ctx is done. While unscheduled it
// sleeps until SetActive(true).
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(l.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !l.Scheduled() {
			ticker.Stop()
			select {
			case <-ctx.Done():
				return nil
			case <-l.wake:
			}
			ticker.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		case now := <-ticker.C:
			if _, err := l.Step(now); err != nil {
				l.log.Warn("frame dropped", zap.Error(err))
			}
		}
	}
}
