// Package mediatest provides scriptable fakes of media.Element and media.Graph.
// Nothing is emitted implicitly: tests drive events with the helper methods, from
// their own goroutine.
package mediatest

import (
	"context"
	"math"
	"sync"

	"github.com/gigurra/soundstage/cmd/engine/media"
)

// Element is a fake media element.
type Element struct {
	mu sync.Mutex

	src      string
	paused   bool
	current  float64
	duration float64
	volume   float64
	muted    bool
	rate     float64
	closed   bool
	loads    int
	plays    int

	// PlayErr, when set, is returned by Play and leaves the element paused.
	PlayErr error
	// PlayHook, when set, runs before Play takes effect. Returning an error fails Play.
	PlayHook func(ctx context.Context) error
	// SyncEvents makes Load, Pause and SetCurrentTime emit TimeUpdate on the
	// calling goroutine before returning, the strictest delivery an element may use.
	SyncEvents bool

	listeners map[int]func(media.Event)
	nextID    int
}

// NewElement creates a paused fake element with no source.
func NewElement() *Element {
	return &Element{
		paused:    true,
		duration:  math.NaN(),
		volume:    1,
		rate:      1,
		listeners: map[int]func(media.Event){},
	}
}

func (e *Element) Load(uri string) error {
	if uri == "" {
		return media.ErrNoSource
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return media.ErrClosed
	}
	e.src = uri
	e.paused = true
	e.current = 0
	e.duration = math.NaN()
	e.loads++
	e.mu.Unlock()

	e.echo(0)
	return nil
}

func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *Element) Play(ctx context.Context) error {
	e.mu.Lock()
	hook := e.PlayHook
	e.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return media.ErrClosed
	}
	if e.src == "" {
		return media.ErrNoSource
	}
	if e.PlayErr != nil {
		return e.PlayErr
	}
	e.paused = false
	e.plays++
	return nil
}

func (e *Element) Pause() {
	e.mu.Lock()
	e.paused = true
	now := e.current
	e.mu.Unlock()
	e.echo(now)
}

func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Element) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	e.current = seconds
	e.mu.Unlock()
	e.echo(seconds)
}

func (e *Element) echo(now float64) {
	e.mu.Lock()
	on := e.SyncEvents
	e.mu.Unlock()
	if on {
		e.Emit(media.Event{Kind: media.TimeUpdate, Value: now})
	}
}

func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *Element) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

func (e *Element) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

func (e *Element) SetPlaybackRate(r float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = r
}

func (e *Element) OnEvent(fn func(media.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.paused = true
	return nil
}

// Emit delivers ev to all listeners on the calling goroutine.
func (e *Element) Emit(ev media.Event) {
	e.mu.Lock()
	fns := make([]func(media.Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// LoadMetadata sets the duration and emits LoadedMetadata and DurationChange.
func (e *Element) LoadMetadata(duration float64) {
	e.mu.Lock()
	e.duration = duration
	e.mu.Unlock()
	e.Emit(media.Event{Kind: media.LoadedMetadata})
	e.Emit(media.Event{Kind: media.DurationChange, Value: duration})
}

// Advance moves the playhead and emits TimeUpdate.
func (e *Element) Advance(seconds float64) {
	e.mu.Lock()
	e.current += seconds
	if !math.IsNaN(e.duration) {
		e.current = min(e.current, e.duration)
	}
	now := e.current
	e.mu.Unlock()
	e.Emit(media.Event{Kind: media.TimeUpdate, Value: now})
}

// Finish plays to the end: the element pauses at its duration and emits Ended.
func (e *Element) Finish() {
	e.mu.Lock()
	e.paused = true
	if !math.IsNaN(e.duration) {
		e.current = e.duration
	}
	e.mu.Unlock()
	e.Emit(media.Event{Kind: media.Ended})
}

// Interrupt pauses the element behind the caller's back, like an OS audio focus loss.
func (e *Element) Interrupt() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	e.Emit(media.Event{Kind: media.TimeUpdate, Value: e.CurrentTime()})
}

// Volume returns the last volume set.
func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Muted returns the last mute flag set.
func (e *Element) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Rate returns the last playback rate set.
func (e *Element) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Loads returns how many times Load succeeded.
func (e *Element) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Plays returns how many times Play succeeded.
func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

// Closed reports whether Close was called.
func (e *Element) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var _ media.Element = (*Element)(nil)

// Source is a fixed frequency frame.
type Source struct {
	mu   sync.Mutex
	bins []byte
}

// NewSource creates a Source reporting bins.
func NewSource(bins []byte) *Source {
	return &Source{bins: append([]byte(nil), bins...)}
}

func (s *Source) BinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bins)
}

func (s *Source) ByteFrequencyData(dst []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(dst, s.bins)
}

// Set replaces the frame.
func (s *Source) Set(bins []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bins = append(s.bins[:0], bins...)
}

// Graph is a fake analysis graph, Locked until Resume succeeds.
type Graph struct {
	mu      sync.Mutex
	state   media.GraphState
	gain    float64
	resumes int

	// ResumeErr, when set, is returned by Resume.
	ResumeErr error
	// ResumeHook, when set, runs inside Resume before it takes effect.
	ResumeHook func(ctx context.Context) error

	Src *Source
}

// NewGraph creates a locked graph with a 128-bin source at full scale.
func NewGraph() *Graph {
	bins := make([]byte, 128)
	for i := range bins {
		bins[i] = 255
	}
	return &Graph{state: media.Locked, gain: 1, Src: NewSource(bins)}
}

func (g *Graph) State() media.GraphState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Graph) Resume(ctx context.Context) error {
	g.mu.Lock()
	hook, resumeErr := g.ResumeHook, g.ResumeErr
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if resumeErr != nil {
		return resumeErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == media.Closed {
		return media.ErrClosed
	}
	g.state = media.Unlocked
	g.resumes++
	return nil
}

func (g *Graph) SetGain(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gain = v
}

// Gain returns the last gain set.
func (g *Graph) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gain
}

// Resumes returns how many times Resume succeeded.
func (g *Graph) Resumes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resumes
}

func (g *Graph) Frequencies() media.FrequencySource { return g.Src }

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = media.Closed
	return nil
}

var _ media.Graph = (*Graph)(nil)

// Factory returns a GraphFactory that hands out g and counts calls.
func Factory(g *Graph, calls *int) media.GraphFactory {
	var mu sync.Mutex
	return func(media.Element) (media.Graph, error) {
		mu.Lock()
		defer mu.Unlock()
		if calls != nil {
			*calls++
		}
		return g, nil
	}
}

// FailingFactory returns a GraphFactory that always fails with err.
func FailingFactory(err error) media.GraphFactory {
	return func(media.Element) (media.Graph, error) {
		return nil, err
	}
}
