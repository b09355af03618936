// Package analyzer turns the live audio signal into frequency-bin magnitudes and
// shares them with any number of readers.
package analyzer

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

var ErrInvalidConfig = errors.New("invalid analyser config")

// Config mirrors the tunables of a WebAudio AnalyserNode.
type Config struct {
	FFTSize     int     // power of two in [32, 32768]
	Smoothing   float64 // time constant in [0, 1]
	MinDecibels float64
	MaxDecibels float64
}

// DefaultConfig returns the configuration the player uses.
func DefaultConfig() Config {
	return Config{
		FFTSize:     DefaultFFTSize,
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
	}
}

func (c Config) validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("%w: fft size %d is not a power of two in [32, 32768]", ErrInvalidConfig, c.FFTSize)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 {
		return fmt.Errorf("%w: smoothing %v outside [0, 1]", ErrInvalidConfig, c.Smoothing)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("%w: min decibels %v not below max %v", ErrInvalidConfig, c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyser computes smoothed magnitude frames from the last FFTSize samples.
//
// A new frame is computed every FFTSize/2 written samples, on the writer's goroutine.
// Readers only copy the latest frame, so any number of them may read concurrently
// without affecting each other.
type Analyser struct {
	cfg    Config
	window []float64

	// writer side, touched only by Write
	ring    []float64
	pos     int
	pending int
	frame   []float64

	mu       sync.RWMutex
	smoothed []float64
	bytes    []byte
	decibels []float64
}

// NewAnalyser validates cfg and creates an Analyser.
func NewAnalyser(cfg Config) (*Analyser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bins := cfg.FFTSize / 2
	a := &Analyser{
		cfg:      cfg,
		window:   window.Blackman(cfg.FFTSize),
		ring:     make([]float64, cfg.FFTSize),
		frame:    make([]float64, cfg.FFTSize),
		smoothed: make([]float64, bins),
		bytes:    make([]byte, bins),
		decibels: make([]float64, bins),
	}
	for i := range a.decibels {
		a.decibels[i] = math.Inf(-1)
	}
	return a, nil
}

// Config returns the analyser configuration.
func (a *Analyser) Config() Config { return a.cfg }

// BinCount is half the FFT size.
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// Write feeds mono samples. Not safe for concurrent writers.
func (a *Analyser) Write(samples []float64) {
	hop := a.cfg.FFTSize / 2
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % len(a.ring)
		a.pending++
		if a.pending >= hop {
			a.pending = 0
			a.compute()
		}
	}
}

func (a *Analyser) compute() {
	n := a.cfg.FFTSize
	for i := 0; i < n; i++ {
		a.frame[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	spectrum := fft.FFTReal(a.frame)

	tau := a.cfg.Smoothing
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)

	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.smoothed {
		mag := cmplx.Abs(spectrum[k]) / float64(n)
		v := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[k] = v

		db := 20 * math.Log10(v)
		a.decibels[k] = db
		b := math.Floor(scale * (db - a.cfg.MinDecibels))
		switch {
		case math.IsNaN(b) || b < 0:
			a.bytes[k] = 0
		case b > 255:
			a.bytes[k] = 255
		default:
			a.bytes[k] = byte(b)
		}
	}
}

// ByteFrequencyData copies min(len(dst), BinCount()) bins of the latest frame into
// dst. Remaining entries of dst are left untouched.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	copy(dst, a.bytes)
}

// FloatFrequencyData copies the latest frame in decibels.
func (a *Analyser) FloatFrequencyData(dst []float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	copy(dst, a.decibels)
}

// Reset clears the sample history and the smoothed frame.
// It must not race with Write; callers reset between sources.
func (a *Analyser) Reset() {
	clear(a.ring)
	a.pos = 0
	a.pending = 0
	a.clearFrame()
}

func (a *Analyser) clearFrame() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.smoothed)
	clear(a.bytes)
	for i := range a.decibels {
		a.decibels[i] = math.Inf(-1)
	}
}
