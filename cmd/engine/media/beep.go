//go:build (linux && cgo) || windows || darwin

package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

const timeUpdateInterval = 250 * time.Millisecond

// deviceRate is the speaker sample rate every source is resampled to.
var deviceRate = beep.SampleRate(44100)

// device guards the process-wide speaker. Opening it is the "unlock" step.
var device struct {
	mu   sync.Mutex
	open bool
}

func openDevice() error {
	device.mu.Lock()
	defer device.mu.Unlock()

	if device.open {
		return nil
	}
	if err := speaker.Init(deviceRate, deviceRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	device.open = true
	return nil
}

func deviceOpen() bool {
	device.mu.Lock()
	defer device.mu.Unlock()
	return device.open
}

// withSpeaker runs fn holding the speaker lock when the device is running.
func withSpeaker(fn func()) {
	if deviceOpen() {
		speaker.Lock()
		defer speaker.Unlock()
	}
	fn()
}

type beepElement struct {
	mu sync.Mutex

	src     string
	gen     uint64 // bumped by every Load, guards async decode and end callbacks
	ready   chan struct{}
	loadErr error

	stream    beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	gain      *effects.Gain
	route     *route
	ctrl      *beep.Ctrl
	queued    bool // ctrl handed to the speaker
	playing   bool
	ended     bool
	stopTicks chan struct{}

	volume float64
	muted  bool
	rate   float64

	graph atomic.Pointer[beepGraph]

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int

	closed bool
}

// NewElement creates a beep-backed media element.
func NewElement() Element {
	return &beepElement{
		volume:    1,
		rate:      1,
		listeners: map[int]func(Event){},
	}
}

// Load binds a new source. Fetching and decoding happen in the background; the
// element reports LoadedMetadata or Error when done.
func (e *beepElement) Load(uri string) error {
	if uri == "" {
		return ErrNoSource
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.stopLocked()
	if g := e.graph.Load(); g != nil {
		g.tap.Reset()
	}
	e.gen++
	gen := e.gen
	e.src = uri
	e.ready = make(chan struct{})
	e.loadErr = nil
	ready := e.ready
	e.mu.Unlock()

	go e.fetch(gen, uri, ready)
	return nil
}

func (e *beepElement) fetch(gen uint64, uri string, ready chan struct{}) {
	data, err := ReadSource(context.Background(), uri)
	var stream beep.StreamSeekCloser
	var format beep.Format
	if err == nil {
		stream, format, err = decode(uri, data)
	}

	e.mu.Lock()
	if gen != e.gen || e.closed {
		e.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		return
	}
	if err != nil {
		e.loadErr = err
		close(ready)
		e.mu.Unlock()
		e.emit(Event{Kind: Error, Err: err})
		return
	}

	e.stream = stream
	e.format = format
	e.resampler = beep.ResampleRatio(4, e.baseRatio()*e.rate, stream)
	e.gain = &effects.Gain{Streamer: e.resampler, Gain: e.elementGain() - 1}
	e.route = &route{el: e, src: e.gain}
	e.ctrl = &beep.Ctrl{Streamer: e.route, Paused: true}
	e.queued = false
	e.ended = false
	close(ready)
	duration := e.durationLocked()
	e.mu.Unlock()

	e.emit(Event{Kind: LoadedMetadata})
	e.emit(Event{Kind: DurationChange, Value: duration})
	e.emit(Event{Kind: Progress, Value: 1})
}

func decode(uri string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	reader := bytes.NewReader(data)
	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch Extension(uri) {
	case ".wav":
		stream, format, err = wav.Decode(reader)
	default:
		stream, format, err = mp3.Decode(nopCloser{reader})
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", uri, err)
	}
	return stream, format, nil
}

func (e *beepElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Play waits for the current load to finish, opens the audio device if needed and
// starts output.
func (e *beepElement) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.src == "" {
		e.mu.Unlock()
		return ErrNoSource
	}
	gen := e.gen
	ready := e.ready
	e.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := openDevice(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		return ErrAborted
	}
	if e.loadErr != nil {
		return e.loadErr
	}
	if e.ended {
		e.seekLocked(0)
	}
	if !e.queued {
		ctrl := e.ctrl
		speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
			// Run in a separate goroutine; the speaker lock is held here
			go e.onEnd(gen, ctrl)
		})))
		e.queued = true
	}

	speaker.Lock()
	e.ctrl.Paused = false
	speaker.Unlock()

	if !e.playing {
		e.playing = true
		e.stopTicks = make(chan struct{})
		go e.tick(e.stopTicks)
	}
	return nil
}

func (e *beepElement) onEnd(gen uint64, ctrl *beep.Ctrl) {
	e.mu.Lock()
	// Ignore callbacks from streams that were replaced or rearmed
	if gen != e.gen || ctrl != e.ctrl || e.closed {
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.queued = false
	e.setPlayingLocked(false)
	e.ctrl = &beep.Ctrl{Streamer: e.route, Paused: true}
	e.mu.Unlock()

	e.emit(Event{Kind: Ended})
}

func (e *beepElement) tick(stop chan struct{}) {
	ticker := time.NewTicker(timeUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.emit(Event{Kind: TimeUpdate, Value: e.CurrentTime()})
		}
	}
}

func (e *beepElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl != nil {
		withSpeaker(func() { e.ctrl.Paused = true })
	}
	e.setPlayingLocked(false)
}

func (e *beepElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.playing
}

func (e *beepElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream == nil {
		return 0
	}
	var pos int
	withSpeaker(func() { pos = e.stream.Position() })
	return e.format.SampleRate.D(pos).Seconds()
}

func (e *beepElement) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return
	}
	e.seekLocked(seconds)
	e.mu.Unlock()

	now := e.CurrentTime()
	go e.emit(Event{Kind: TimeUpdate, Value: now})
}

// seekLocked moves the decoder; a finished stream is rearmed so Play restarts it.
func (e *beepElement) seekLocked(seconds float64) {
	n := e.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	n = max(0, min(n, e.stream.Len()-1))
	withSpeaker(func() {
		if err := e.stream.Seek(n); err != nil {
			e.loadErr = err
		}
	})
	e.ended = false
}

func (e *beepElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

func (e *beepElement) durationLocked() float64 {
	if e.stream == nil {
		return math.NaN()
	}
	return e.format.SampleRate.D(e.stream.Len()).Seconds()
}

func (e *beepElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	e.applyGainLocked()
}

func (e *beepElement) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	e.applyGainLocked()
}

func (e *beepElement) SetPlaybackRate(r float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = r
	if e.resampler != nil {
		ratio := e.baseRatio() * r
		withSpeaker(func() { e.resampler.SetRatio(ratio) })
	}
}

func (e *beepElement) baseRatio() float64 {
	if e.format.SampleRate == 0 {
		return 1
	}
	return float64(e.format.SampleRate) / float64(deviceRate)
}

// elementGain is the linear output level of the element itself. Once a graph is
// connected the graph's gain stage owns the output level, so the element is unity.
func (e *beepElement) elementGain() float64 {
	if e.graph.Load() != nil {
		return 1
	}
	if e.muted {
		return 0
	}
	return e.volume
}

func (e *beepElement) applyGainLocked() {
	if e.gain == nil {
		return
	}
	g := e.elementGain() - 1
	withSpeaker(func() { e.gain.Gain = g })
}

func (e *beepElement) OnEvent(fn func(Event)) func() {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *beepElement) emit(ev Event) {
	e.lmu.Lock()
	fns := make([]func(Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (e *beepElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.stopLocked()
	e.closed = true
	return nil
}

func (e *beepElement) setPlayingLocked(playing bool) {
	if !playing && e.stopTicks != nil {
		close(e.stopTicks)
		e.stopTicks = nil
	}
	e.playing = playing
}

// stopLocked detaches the current stream from the speaker and releases it.
func (e *beepElement) stopLocked() {
	if e.ctrl != nil {
		withSpeaker(func() {
			e.ctrl.Paused = true
			e.ctrl.Streamer = nil
		})
	}
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.setPlayingLocked(false)
	e.ctrl = nil
	e.route = nil
	e.gain = nil
	e.resampler = nil
	e.queued = false
	e.ended = false
	e.format = beep.Format{}
}

// route passes decoded audio through the connected graph, if any.
type route struct {
	el  *beepElement
	src beep.Streamer
}

func (r *route) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.src.Stream(samples)
	if g := r.el.graph.Load(); g != nil {
		g.process(samples[:n])
	}
	return n, ok
}

func (r *route) Err() error { return r.src.Err() }

type beepGraph struct {
	el       *beepElement
	analyser *analyzer.Analyser
	tap      *analyzer.Tap
	gain     atomic.Uint64 // math.Float64bits
	state    atomic.Int32
}

// NewGraphFactory returns a factory connecting beep elements to an analysis chain
// configured by cfg.
func NewGraphFactory(cfg analyzer.Config) GraphFactory {
	return func(el Element) (Graph, error) {
		be, ok := el.(*beepElement)
		if !ok {
			return nil, fmt.Errorf("%w: element %T is not beep-backed", ErrUnsupported, el)
		}
		a, err := analyzer.NewAnalyser(cfg)
		if err != nil {
			return nil, err
		}
		g := &beepGraph{el: be, analyser: a, tap: analyzer.NewTap(a)}
		g.gain.Store(math.Float64bits(1))
		if deviceOpen() {
			g.state.Store(int32(Unlocked))
		}

		be.mu.Lock()
		defer be.mu.Unlock()
		if !be.graph.CompareAndSwap(nil, g) {
			return nil, ErrAlreadyConnected
		}
		be.applyGainLocked()
		return g, nil
	}
}

func (g *beepGraph) process(samples [][2]float64) {
	gain := math.Float64frombits(g.gain.Load())
	if gain != 1 {
		for i := range samples {
			samples[i][0] *= gain
			samples[i][1] *= gain
		}
	}
	g.tap.Process(samples)
}

func (g *beepGraph) State() GraphState { return GraphState(g.state.Load()) }

// Resume opens the audio device. The speaker has no user-gesture policy, so the only
// failures are technical ones.
func (g *beepGraph) Resume(ctx context.Context) error {
	if g.State() == Closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := openDevice(); err != nil {
		return err
	}
	g.state.CompareAndSwap(int32(Locked), int32(Unlocked))
	return nil
}

func (g *beepGraph) SetGain(v float64) {
	g.gain.Store(math.Float64bits(v))
}

func (g *beepGraph) Frequencies() FrequencySource { return g.analyser }

// Close disconnects the graph; the element falls back to its own gain stage.
func (g *beepGraph) Close() error {
	if GraphState(g.state.Swap(int32(Closed))) == Closed {
		return nil
	}
	g.el.mu.Lock()
	defer g.el.mu.Unlock()
	g.el.graph.CompareAndSwap(g, nil)
	g.el.applyGainLocked()
	g.tap.Reset()
	return nil
}
