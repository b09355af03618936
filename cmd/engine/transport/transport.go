// Package transport is the play/pause/seek/volume state machine over one media
// element, independent of which track is loaded.
package transport

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	MinRate = 0.25
	MaxRate = 4.0
)

// Status is the transport state machine position.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Playing
	Paused
	Ended
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "idle"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a point-in-time copy of the transport.
type State struct {
	Source      string
	Status      Status
	IsPlaying   bool
	CurrentTime float64
	Duration    float64 // NaN until metadata is known
	Volume      float64
	Muted       bool
	Rate        float64
	Buffered    float64 // fraction of the source in memory
	GraphLocked bool
	GraphReady  bool
}

// Options configures a Transport.
type Options struct {
	Element      media.Element
	GraphFactory media.GraphFactory // nil disables analysis
	Bridge       *analyzer.Bridge   // attached on first playback
	Logger       *zap.Logger
	Volume       float64
	OnChange     func()
	OnEnded      func()
}

// Transport owns one media element and, lazily, its analysis graph.
//
// Mutations are applied to the element synchronously. Play is the only call that
// blocks: it awaits the graph unlock and the element, and a generation counter
// discards its result when a later Pause, Load or Stop got there first.
//
// Element mutators are never called with mu held: an element may deliver events
// into handle before the mutator returns.
type Transport struct {
	mu sync.Mutex

	el       media.Element
	newGraph media.GraphFactory
	graph    media.Graph
	tried    bool
	bridge   *analyzer.Bridge
	log      *zap.Logger
	onChange func()
	onEnded  func()
	cancel   func()

	gen         uint64
	wantPlaying bool
	status      Status
	currentTime float64
	duration    float64
	buffered    float64
	volume      float64
	muted       bool
	rate        float64
	closed      bool
}

// New creates a Transport and subscribes to the element's events.
func New(opts Options) *Transport {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = analyzer.NewBridge()
	}
	t := &Transport{
		el:       opts.Element,
		newGraph: opts.GraphFactory,
		bridge:   bridge,
		log:      log.Named("transport"),
		onChange: opts.OnChange,
		onEnded:  opts.OnEnded,
		duration: math.NaN(),
		volume:   lo.Clamp(opts.Volume, 0, 1),
		rate:     1,
	}
	el := opts.Element
	bridge.SetActive(func() bool { return !el.Paused() })
	el.SetVolume(t.volume)
	t.cancel = el.OnEvent(t.handle)
	return t
}

// Bridge returns the analyzer bridge renderers read from.
func (t *Transport) Bridge() *analyzer.Bridge { return t.bridge }

func (t *Transport) handle(ev media.Event) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	ended := false
	switch ev.Kind {
	case media.LoadedMetadata:
		t.duration = t.el.Duration()
		if t.status == Loading {
			t.status = Ready
		}
	case media.DurationChange:
		t.duration = ev.Value
	case media.TimeUpdate:
		t.currentTime = t.clampTime(ev.Value)
	case media.Progress:
		t.buffered = lo.Clamp(ev.Value, 0, 1)
	case media.Ended:
		t.status = Ended
		t.wantPlaying = false
		if !math.IsNaN(t.duration) {
			t.currentTime = t.duration
		}
		ended = true
	case media.Error:
		t.log.Warn("media error", zap.String("source", t.el.Source()), zap.Error(ev.Err))
		t.status = Idle
		t.wantPlaying = false
	}
	t.resyncLocked()
	t.mu.Unlock()

	t.notify()
	if ended && t.onEnded != nil {
		t.onEnded()
	}
}

// resyncLocked realigns status with the element's actual play state.
func (t *Transport) resyncLocked() {
	paused := t.el.Paused()
	switch {
	case t.status == Playing && paused:
		t.status = Paused
	case !paused && t.status != Playing:
		t.status = Playing
	}
}

func (t *Transport) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}

func (t *Transport) clampTime(v float64) float64 {
	d := t.duration
	if math.IsNaN(d) {
		d = 0
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if d > 0 && v > d {
		return d
	}
	return v
}

// Load binds uri. Binding the source that is already bound is not a reload: it
// pauses when playing and is a no-op otherwise.
func (t *Transport) Load(uri string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if uri != "" && uri == t.el.Source() && t.status != Idle {
		playing := !t.el.Paused()
		t.mu.Unlock()
		if playing {
			t.Pause()
		}
		return nil
	}

	t.gen++
	gen := t.gen
	prevWant := t.wantPlaying
	t.wantPlaying = false
	prevStatus, prevTime, prevDuration, prevBuffered := t.status, t.currentTime, t.duration, t.buffered
	// reset first: metadata for the new source may arrive before Load returns
	t.status = Loading
	t.currentTime = 0
	t.duration = math.NaN()
	t.buffered = 0
	t.mu.Unlock()

	if err := t.el.Load(uri); err != nil {
		// a refused Load leaves the element on its previous source
		t.mu.Lock()
		if gen == t.gen {
			t.status, t.currentTime, t.duration, t.buffered = prevStatus, prevTime, prevDuration, prevBuffered
			t.wantPlaying = prevWant
		}
		t.resyncLocked()
		t.mu.Unlock()
		t.notify()
		return err
	}

	t.notify()
	return nil
}

// Play unlocks the audio graph if needed and starts playback. Failures return a
// *PlaybackError and leave the transport not playing.
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return &PlaybackError{Reason: ReasonTechnical, Err: ErrClosed}
	}
	if t.el.Source() == "" {
		t.mu.Unlock()
		return &PlaybackError{Reason: ReasonTechnical, Err: media.ErrNoSource}
	}
	t.gen++
	gen := t.gen
	t.wantPlaying = true
	t.ensureGraphLocked()
	graph := t.graph
	t.mu.Unlock()

	if graph != nil && graph.State() == media.Locked {
		if err := graph.Resume(ctx); err != nil {
			pe := classify(err)
			t.mu.Lock()
			if gen == t.gen {
				t.wantPlaying = false
			}
			t.mu.Unlock()
			t.log.Warn("audio graph resume failed", zap.Stringer("reason", pe.Reason), zap.Error(err))
			t.notify()
			return pe
		}
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return &PlaybackError{Reason: ReasonSuperseded, Err: ErrSuperseded}
	}
	t.mu.Unlock()

	err := t.el.Play(ctx)

	t.mu.Lock()
	if gen != t.gen {
		// A later call won while the element was starting
		undo := err == nil && !t.wantPlaying
		t.mu.Unlock()
		if undo && !t.el.Paused() {
			t.el.Pause()
		}
		t.resync()
		t.notify()
		return &PlaybackError{Reason: ReasonSuperseded, Err: ErrSuperseded}
	}
	if err != nil {
		t.wantPlaying = false
		t.mu.Unlock()
		if !t.el.Paused() {
			t.el.Pause()
		}
		t.resync()

		pe := classify(err)
		if pe.Reason != ReasonSuperseded {
			t.log.Warn("playback start failed", zap.Stringer("reason", pe.Reason), zap.Error(err))
		}
		t.notify()
		return pe
	}
	t.status = Playing
	t.resyncLocked()
	t.mu.Unlock()

	t.notify()
	return nil
}

// ensureGraphLocked builds the analysis graph on the first playback request only.
func (t *Transport) ensureGraphLocked() {
	if t.tried || t.newGraph == nil {
		return
	}
	t.tried = true

	g, err := t.newGraph(t.el)
	if err != nil {
		t.log.Warn("analysis disabled", zap.Error(errors.Join(ErrGraphUnavailable, err)))
		return
	}
	if err := t.bridge.Attach(g.Frequencies()); err != nil {
		t.log.Warn("analysis disabled", zap.Error(errors.Join(ErrGraphUnavailable, err)))
		_ = g.Close()
		return
	}
	t.graph = g
	t.applyGainLocked()
}

// resync takes mu for resyncLocked.
func (t *Transport) resync() {
	t.mu.Lock()
	t.resyncLocked()
	t.mu.Unlock()
}

// Pause is synchronous and idempotent.
func (t *Transport) Pause() {
	t.mu.Lock()
	t.gen++
	t.wantPlaying = false
	t.mu.Unlock()

	if t.el.Source() != "" {
		t.el.Pause()
	}

	t.mu.Lock()
	if t.status == Playing {
		t.status = Paused
	}
	t.resyncLocked()
	t.mu.Unlock()

	t.notify()
}

// Stop pauses and rewinds to 0. The source stays bound; the transport is Idle.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.gen++
	t.wantPlaying = false
	t.mu.Unlock()

	if t.el.Source() != "" {
		t.el.Pause()
		t.el.SetCurrentTime(0)
	}

	t.mu.Lock()
	t.currentTime = 0
	t.status = Idle
	t.mu.Unlock()

	t.notify()
}

// Seek moves to seconds clamped to [0, duration or 0]. No-op without a source.
// Seeking an ended track settles it Paused, so the end-of-queue rewind works
// for sources whose duration never became known.
func (t *Transport) Seek(seconds float64) {
	if t.el.Source() == "" || math.IsNaN(seconds) {
		return
	}
	t.mu.Lock()
	d := t.duration
	if math.IsNaN(d) {
		d = 0
	}
	t.mu.Unlock()

	target := lo.Clamp(seconds, 0, d)
	t.el.SetCurrentTime(target)

	t.mu.Lock()
	t.currentTime = target
	if t.status == Ended && (target < d || d == 0) {
		t.status = Paused
	}
	t.mu.Unlock()

	t.notify()
}

// Skip seeks relative to the element's current position.
func (t *Transport) Skip(delta float64) {
	t.Seek(t.el.CurrentTime() + delta)
}

// SetVolume clamps v to [0, 1] and unmutes.
func (t *Transport) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	t.mu.Lock()
	t.volume = lo.Clamp(v, 0, 1)
	t.muted = false
	t.applyGainLocked()
	vol := t.volume
	t.mu.Unlock()

	t.el.SetVolume(vol)
	t.el.SetMuted(false)

	t.notify()
}

// ToggleMute flips the mute flag; the volume is kept for unmuting.
func (t *Transport) ToggleMute() {
	t.mu.Lock()
	muted := !t.muted
	t.mu.Unlock()
	t.SetMuted(muted)
}

// SetMuted sets the mute flag on the element and the gain stage together.
func (t *Transport) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.applyGainLocked()
	t.mu.Unlock()

	t.el.SetMuted(muted)

	t.notify()
}

func (t *Transport) applyGainLocked() {
	if t.graph == nil {
		return
	}
	if t.muted {
		t.graph.SetGain(0)
	} else {
		t.graph.SetGain(t.volume)
	}
}

// SetPlaybackRate clamps r to [MinRate, MaxRate]. Non-positive and non-finite
// rates are ignored.
func (t *Transport) SetPlaybackRate(r float64) {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return
	}
	t.mu.Lock()
	t.rate = lo.Clamp(r, MinRate, MaxRate)
	rate := t.rate
	t.mu.Unlock()

	t.el.SetPlaybackRate(rate)

	t.notify()
}

// State returns a copy of the transport state, resynchronised with the element.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resyncLocked()
	s := State{
		Source:      t.el.Source(),
		Status:      t.status,
		IsPlaying:   !t.el.Paused(),
		CurrentTime: t.currentTime,
		Duration:    t.duration,
		Volume:      t.volume,
		Muted:       t.muted,
		Rate:        t.rate,
		Buffered:    t.buffered,
		GraphLocked: t.graph == nil || t.graph.State() == media.Locked,
		GraphReady:  t.graph != nil,
	}
	if s.IsPlaying {
		s.CurrentTime = t.clampTime(t.el.CurrentTime())
	}
	return s
}

// Close tears down the graph, the bridge and the element. A closed transport
// ignores events and rejects Load and Play.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.gen++
	cancel, graph := t.cancel, t.graph
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.bridge.Teardown()
	var errs []error
	if graph != nil {
		errs = append(errs, graph.Close())
	}
	errs = append(errs, t.el.Close())
	return errors.Join(errs...)
}
