// Package settings persists the player's volume, playback rate and mute flag.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Key is the storage key the player state is kept under.
const Key = "soundstage:player_state"

// Settings is the persisted subset of the player state.
type Settings struct {
	Volume       float64 `json:"volume"`
	PlaybackRate float64 `json:"playbackRate"`
	IsMuted      bool    `json:"isMuted"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{Volume: 1, PlaybackRate: 1, IsMuted: false}
}

// WithVolume returns a copy of s with a different volume.
func (s Settings) WithVolume(v float64) Settings {
	s.Volume = v
	return s
}

// Normalize clamps the volume to [0, 1] and replaces an unusable rate with the
// fallback's.
func (s Settings) Normalize(fallback Settings) Settings {
	if math.IsNaN(s.Volume) {
		s.Volume = fallback.Volume
	}
	s.Volume = lo.Clamp(s.Volume, 0, 1)
	if math.IsNaN(s.PlaybackRate) || math.IsInf(s.PlaybackRate, 0) || s.PlaybackRate <= 0 {
		s.PlaybackRate = fallback.PlaybackRate
	}
	return s
}

// Store reads and writes Settings.
// Load returns the defaults, never the zero value, when nothing usable is stored.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// ReadError reports malformed or inaccessible stored settings.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read settings: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failure to persist settings.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write settings: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// stored mirrors Settings with optional fields so missing keys take defaults.
type stored struct {
	Volume       *float64 `json:"volume"`
	PlaybackRate *float64 `json:"playbackRate"`
	IsMuted      *bool    `json:"isMuted"`
}

// Decode parses stored JSON. Missing fields take their default; malformed input
// returns the defaults and a *ReadError.
func Decode(data []byte, defaults Settings) (Settings, error) {
	var raw stored
	if err := json.Unmarshal(data, &raw); err != nil {
		return defaults, &ReadError{Err: err}
	}
	s := defaults
	if raw.Volume != nil {
		s.Volume = *raw.Volume
	}
	if raw.PlaybackRate != nil {
		s.PlaybackRate = *raw.PlaybackRate
	}
	if raw.IsMuted != nil {
		s.IsMuted = *raw.IsMuted
	}
	return s.Normalize(defaults), nil
}

// Encode renders settings as indented JSON.
func Encode(s Settings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
