package analyzer

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// Tap copies a mono mix of the audio passing through it into an Analyser.
// It sits in the audio pipeline after the gain stage, so muted output analyses
// as silence.
type Tap struct {
	a     *Analyser
	mono  []float64
	reset atomic.Bool
}

// NewTap creates a Tap feeding a.
func NewTap(a *Analyser) *Tap {
	return &Tap{a: a}
}

// Process analyses samples in place without changing them. Call it from the audio
// goroutine only.
func (t *Tap) Process(samples [][2]float64) {
	if t.reset.Swap(false) {
		t.a.Reset()
	}
	if cap(t.mono) < len(samples) {
		t.mono = make([]float64, len(samples))
	}
	mono := t.mono[:len(samples)]
	for i := range samples {
		mono[i] = (samples[i][0] + samples[i][1]) / 2
	}
	t.a.Write(mono)
}

// Reset clears the published frame now and the sample history before the next
// processed buffer. Safe to call from any goroutine.
func (t *Tap) Reset() {
	t.reset.Store(true)
	t.a.clearFrame()
}

// Wrap returns a streamer that passes s through the tap.
func (t *Tap) Wrap(s beep.Streamer) beep.Streamer {
	return &tapStreamer{t: t, s: s}
}

type tapStreamer struct {
	t *Tap
	s beep.Streamer
}

func (ts *tapStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := ts.s.Stream(samples)
	ts.t.Process(samples[:n])
	return n, ok
}

func (ts *tapStreamer) Err() error { return ts.s.Err() }
