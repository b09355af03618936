package store

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/gigurra/soundstage/cmd/engine/transport"
)

// PlayerState is the broadcast, process-wide player state.
type PlayerState struct {
	CurrentTrack *queue.Track     `json:"currentTrack"`
	Queue        []queue.Track    `json:"queue"`
	CurrentIndex int              `json:"currentIndex"`
	IsPlaying    bool             `json:"isPlaying"`
	CurrentTime  float64          `json:"currentTime"`
	Duration     float64          `json:"duration"` // NaN until metadata loads
	Volume       float64          `json:"volume"`
	IsMuted      bool             `json:"isMuted"`
	PlaybackRate float64          `json:"playbackRate"`
	Shuffle      bool             `json:"shuffle"`
	Autoplay     bool             `json:"autoplay"`
	RepeatMode   queue.RepeatMode `json:"repeatMode"`
	Status       transport.Status `json:"status"`
	Buffered     float64          `json:"buffered"`
	GraphLocked  bool             `json:"graphLocked"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// DurationKnown reports whether metadata has been loaded.
func (p PlayerState) DurationKnown() bool {
	return !math.IsNaN(p.Duration)
}

// MarshalJSON encodes an unknown duration as null.
func (p PlayerState) MarshalJSON() ([]byte, error) {
	type plain PlayerState
	out := struct {
		plain
		Duration *float64 `json:"duration"`
	}{plain: plain(p)}
	if p.DurationKnown() {
		d := p.Duration
		out.Duration = &d
	}
	return json.Marshal(out)
}
