// Package media defines the media element and audio graph the transport drives,
// and provides the beep-based implementation used by the CLI.
package media

import (
	"context"
	"errors"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
)

var (
	ErrNotAllowed       = errors.New("playback not allowed")
	ErrUnsupported      = errors.New("audio playback not supported in this build")
	ErrNoSource         = errors.New("no source loaded")
	ErrClosed           = errors.New("media element closed")
	ErrAborted          = errors.New("playback request aborted by a newer load")
	ErrAlreadyConnected = errors.New("element already connected to an audio graph")
)

// EventKind identifies an asynchronous media event.
type EventKind int

const (
	LoadedMetadata EventKind = iota
	DurationChange
	TimeUpdate
	Progress
	Ended
	Error
)

func (k EventKind) String() string {
	switch k {
	case LoadedMetadata:
		return "loadedmetadata"
	case DurationChange:
		return "durationchange"
	case TimeUpdate:
		return "timeupdate"
	case Progress:
		return "progress"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners registered with Element.OnEvent.
// Value carries the duration for DurationChange, the position for TimeUpdate
// and the buffered fraction [0,1] for Progress.
type Event struct {
	Kind  EventKind
	Value float64
	Err   error
}

// Element is one media resource binding, the equivalent of an HTML audio element.
// Events are delivered on goroutines other than the caller's, without any of the
// element's locks held.
type Element interface {
	Load(uri string) error
	Source() string
	Play(ctx context.Context) error
	Pause()
	Paused() bool
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Duration() float64 // NaN until metadata is known
	SetVolume(v float64)
	SetMuted(muted bool)
	SetPlaybackRate(r float64)
	OnEvent(fn func(Event)) (cancel func())
	Close() error
}

// GraphState is the unlock state of an audio graph.
type GraphState int

const (
	Locked GraphState = iota
	Unlocked
	Closed
)

func (s GraphState) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "closed"
	}
}

// FrequencySource is the read side of an analysis node.
type FrequencySource = analyzer.Source

// Graph is the analysis chain attached to one element:
// source -> gain -> analyser -> destination.
type Graph interface {
	State() GraphState
	Resume(ctx context.Context) error
	SetGain(g float64)
	Frequencies() FrequencySource
	Close() error
}

// GraphFactory connects an analysis graph to an element. It is called at most once
// per element, on the first playback request.
type GraphFactory func(el Element) (Graph, error)
