// Package library turns command-line sources into a playlist: audio files,
// globs, directories, m3u lists, http(s) URLs and sample-pack archives.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrNoTracks    = errors.New("no playable tracks found")
	ErrUnsupported = errors.New("unsupported source")
)

// AudioExtensions are the file types the player decodes.
var AudioExtensions = []string{".mp3", ".wav"}

// Options configures source resolution.
type Options struct {
	CacheDir string // where archives are extracted; empty disables archives
	Logger   *zap.Logger
}

// Resolver resolves sources into tracks.
type Resolver struct {
	cacheDir string
	log      *zap.Logger
}

func NewResolver(opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cacheDir: opts.CacheDir, log: log.Named("library")}
}

// FromArgs resolves args with a default Resolver.
func FromArgs(ctx context.Context, args []string, opts Options) ([]queue.Track, error) {
	return NewResolver(opts).Resolve(ctx, args)
}

// Resolve expands every source in order. Tracks appearing more than once are kept
// at their first position.
func (r *Resolver) Resolve(ctx context.Context, sources []string) ([]queue.Track, error) {
	var out []queue.Track
	for _, src := range sources {
		tracks, err := r.resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		out = append(out, tracks...)
	}
	out = lo.UniqBy(out, func(t queue.Track) string { return t.SourceURI })
	if len(out) == 0 {
		return nil, ErrNoTracks
	}
	return out, nil
}

func (r *Resolver) resolve(ctx context.Context, src string) ([]queue.Track, error) {
	if media.IsRemote(src) {
		if isPlaylist(src) {
			return r.remotePlaylist(ctx, src)
		}
		return []queue.Track{TrackFromURL(src)}, nil
	}

	if strings.ContainsAny(src, "*?[") {
		matches, err := filepath.Glob(src)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", src, err)
		}
		slices.Sort(matches)
		var out []queue.Track
		for _, m := range matches {
			tracks, err := r.resolve(ctx, m)
			if errors.Is(err, ErrUnsupported) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, tracks...)
		}
		return out, nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", src, err)
	}
	switch {
	case info.IsDir():
		return scanDir(src)
	case isPlaylist(src):
		return r.localPlaylist(src)
	case IsAudio(src):
		return []queue.Track{queue.TrackFromPath(src)}, nil
	case IsArchive(src):
		dir, err := r.extract(ctx, src)
		if err != nil {
			return nil, err
		}
		return scanDir(dir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, src)
	}
}

// IsAudio reports whether the path or URL has a playable extension.
func IsAudio(uri string) bool {
	return slices.Contains(AudioExtensions, media.Extension(uri))
}

func isPlaylist(uri string) bool {
	ext := media.Extension(uri)
	return ext == ".m3u" || ext == ".m3u8"
}

// TrackFromURL names a remote track after the last path segment.
func TrackFromURL(raw string) queue.Track {
	u, err := url.Parse(raw)
	if err != nil {
		return queue.NewTrack(raw, "", raw)
	}
	name, err := url.PathUnescape(path.Base(u.Path))
	if err != nil || name == "/" || name == "." {
		return queue.NewTrack(u.Host, "", raw)
	}
	t := queue.TrackFromPath(name)
	t.SourceURI = raw
	return t
}

// scanDir collects audio files under dir in lexical order.
func scanDir(dir string) ([]queue.Track, error) {
	var out []queue.Track
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsAudio(p) {
			out = append(out, queue.TrackFromPath(p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", dir, err)
	}
	return out, nil
}
