package queue

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Track is an immutable reference to one playable audio resource.
type Track struct {
	ID          string `json:"id"`                    // Unique within a queue
	Title       string `json:"title"`                 // Display title
	Artist      string `json:"artist,omitempty"`      // Optional artist name
	SourceURI   string `json:"sourceUri"`             // Local path or http(s) URL
	CoverArtURI string `json:"coverArtUri,omitempty"` // Optional cover art
}

// Item is a queue entry: a Track with a known duration in seconds.
type Item struct {
	Track
	Duration float64 `json:"duration"`
}

// NewTrack creates a Track with a fresh ID.
func NewTrack(title, artist, sourceURI string) Track {
	return Track{
		ID:        uuid.NewString(),
		Title:     title,
		Artist:    artist,
		SourceURI: sourceURI,
	}
}

// TrackFromPath creates a Track by parsing the file name.
// Supports "Artist - Title" naming, otherwise the bare name becomes the title.
func TrackFromPath(path string) Track {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.SplitN(name, " - ", 2)
	if len(parts) == 2 {
		return NewTrack(strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0]), path)
	}
	return NewTrack(name, "", path)
}

// DisplayName returns "Artist - Title", or just the title when no artist is known.
func (t Track) DisplayName() string {
	if t.Artist != "" {
		return t.Artist + " - " + t.Title
	}
	return t.Title
}

// Items wraps tracks as queue items with unknown (zero) duration.
func Items(tracks []Track) []Item {
	items := make([]Item, len(tracks))
	for i, t := range tracks {
		items[i] = Item{Track: t}
	}
	return items
}

// Tracks unwraps queue items.
func Tracks(items []Item) []Track {
	tracks := make([]Track, len(items))
	for i, it := range items {
		tracks[i] = it.Track
	}
	return tracks
}
