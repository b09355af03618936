//go:build !((linux && cgo) || windows || darwin)

package media

import (
	"context"
	"math"
	"sync"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio output requires cgo for the native sound libraries.
const AudioAvailable = false

// silentElement binds sources but can never play them.
type silentElement struct {
	mu     sync.Mutex
	src    string
	closed bool
}

// NewElement creates a media element that reports ErrUnsupported on Play.
func NewElement() Element {
	return &silentElement{}
}

func (e *silentElement) Load(uri string) error {
	if uri == "" {
		return ErrNoSource
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.src = uri
	return nil
}

func (e *silentElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

func (e *silentElement) Play(ctx context.Context) error { return ErrUnsupported }
func (e *silentElement) Pause()                         {}
func (e *silentElement) Paused() bool                   { return true }
func (e *silentElement) CurrentTime() float64           { return 0 }
func (e *silentElement) SetCurrentTime(float64)         {}
func (e *silentElement) Duration() float64              { return math.NaN() }
func (e *silentElement) SetVolume(float64)              {}
func (e *silentElement) SetMuted(bool)                  {}
func (e *silentElement) SetPlaybackRate(float64)        {}
func (e *silentElement) OnEvent(func(Event)) func()     { return func() {} }

func (e *silentElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// NewGraphFactory returns a factory that always fails; the analyzer stays silent.
func NewGraphFactory(cfg analyzer.Config) GraphFactory {
	return func(Element) (Graph, error) {
		return nil, ErrUnsupported
	}
}
