package library

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/gigurra/soundstage/cmd/engine/queue"
)

// Entry is one playlist line, with the title from a preceding #EXTINF.
type Entry struct {
	URI      string
	Title    string
	Duration float64 // -1 when unknown
}

// ParseM3U reads an extended or plain m3u list. Comments are skipped.
func ParseM3U(data []byte) []Entry {
	var out []Entry
	pending := Entry{Duration: -1}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXTINF:"):
			info := strings.TrimPrefix(line, "#EXTINF:")
			dur, title, _ := strings.Cut(info, ",")
			pending.Title = strings.TrimSpace(title)
			if fields := strings.Fields(dur); len(fields) > 0 {
				if d, err := strconv.ParseFloat(fields[0], 64); err == nil {
					pending.Duration = d
				}
			}
		case strings.HasPrefix(line, "#"):
		default:
			pending.URI = line
			out = append(out, pending)
			pending = Entry{Duration: -1}
		}
	}
	return out
}

func (r *Resolver) localPlaylist(p string) ([]queue.Track, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("cannot read playlist %s: %w", p, err)
	}
	base := filepath.Dir(p)
	var out []queue.Track
	for _, e := range ParseM3U(data) {
		uri := e.URI
		if !media.IsRemote(uri) && !filepath.IsAbs(uri) {
			uri = filepath.Join(base, filepath.FromSlash(uri))
		}
		out = append(out, entryTrack(e, uri))
	}
	return out, nil
}

func (r *Resolver) remotePlaylist(ctx context.Context, raw string) ([]queue.Track, error) {
	data, err := media.ReadSource(ctx, raw)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad playlist url %s: %w", raw, err)
	}
	var out []queue.Track
	for _, e := range ParseM3U(data) {
		ref, err := url.Parse(e.URI)
		if err != nil {
			r.log.Sugar().Warnf("skipping playlist entry %q: %v", e.URI, err)
			continue
		}
		out = append(out, entryTrack(e, base.ResolveReference(ref).String()))
	}
	return out, nil
}

func entryTrack(e Entry, uri string) queue.Track {
	var t queue.Track
	if media.IsRemote(uri) {
		t = TrackFromURL(uri)
	} else {
		t = queue.TrackFromPath(uri)
	}
	if artist, title, ok := strings.Cut(e.Title, " - "); ok {
		t.Artist, t.Title = strings.TrimSpace(artist), strings.TrimSpace(title)
	} else if e.Title != "" {
		t.Artist, t.Title = "", e.Title
	}
	return t
}
