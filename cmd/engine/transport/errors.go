package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/gigurra/soundstage/cmd/engine/media"
)

var (
	ErrGraphUnavailable = errors.New("audio graph unavailable")
	ErrSuperseded       = errors.New("superseded by a later transport call")
	ErrClosed           = errors.New("transport closed")
)

// Reason classifies why playback could not start.
type Reason int

const (
	ReasonTechnical   Reason = iota // decode, network or device failure
	ReasonNotAllowed                // platform or user refused playback
	ReasonUnsupported               // no audio output in this build
	ReasonSuperseded                // a later pause, load or stop won; treat as a no-op
)

func (r Reason) String() string {
	switch r {
	case ReasonNotAllowed:
		return "not allowed"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonSuperseded:
		return "superseded"
	default:
		return "technical"
	}
}

// PlaybackError is a non-fatal failure to start playback.
type PlaybackError struct {
	Reason Reason
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed (%s): %v", e.Reason, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// IsSuperseded reports whether err is a PlaybackError caused by a newer call.
func IsSuperseded(err error) bool {
	var pe *PlaybackError
	return errors.As(err, &pe) && pe.Reason == ReasonSuperseded
}

func classify(err error) *PlaybackError {
	var pe *PlaybackError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, media.ErrNotAllowed):
		return &PlaybackError{Reason: ReasonNotAllowed, Err: err}
	case errors.Is(err, media.ErrUnsupported):
		return &PlaybackError{Reason: ReasonUnsupported, Err: err}
	case errors.Is(err, media.ErrAborted), errors.Is(err, context.Canceled), errors.Is(err, ErrSuperseded):
		return &PlaybackError{Reason: ReasonSuperseded, Err: err}
	default:
		return &PlaybackError{Reason: ReasonTechnical, Err: err}
	}
}
