package store

import "context"

// Key is a global playback shortcut.
type Key int

const (
	KeyNone Key = iota
	KeySpace
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyM
)

const (
	SkipStep   = 10.0
	VolumeStep = 0.1
)

// KeyEvent is a key press routed to the player.
type KeyEvent struct {
	Key Key
	// InTextInput is set when focus is in a text field; shortcuts are then ignored.
	InTextInput bool
}

// ParseKey maps a terminal key name to a Key.
func ParseKey(name string) Key {
	switch name {
	case " ", "space":
		return KeySpace
	case "left":
		return KeyLeft
	case "right":
		return KeyRight
	case "up":
		return KeyUp
	case "down":
		return KeyDown
	case "m", "M":
		return KeyM
	default:
		return KeyNone
	}
}

// HandleKey applies a shortcut and reports whether it was consumed. Nothing is
// consumed without a bound track.
func (s *Store) HandleKey(ctx context.Context, ev KeyEvent) bool {
	if ev.InTextInput || ev.Key == KeyNone || s.currentTrack() == nil {
		return false
	}
	switch ev.Key {
	case KeySpace:
		_ = s.TogglePlay(ctx)
	case KeyLeft:
		s.Skip(-SkipStep)
	case KeyRight:
		s.Skip(SkipStep)
	case KeyUp:
		s.SetVolume(s.tr.State().Volume + VolumeStep)
	case KeyDown:
		s.SetVolume(s.tr.State().Volume - VolumeStep)
	case KeyM:
		s.ToggleMute()
	}
	return true
}
