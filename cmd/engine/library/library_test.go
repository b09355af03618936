package library

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gigurra/soundstage/cmd/engine/queue"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
}

func titles(tracks []queue.Track) []string {
	out := make([]string, len(tracks))
	for i, tr := range tracks {
		out[i] = tr.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolve_Directory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.mp3"))
	touch(t, filepath.Join(dir, "Nova - Arc.wav"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "c.MP3"))
	touch(t, filepath.Join(dir, ".cache", "x.mp3"))

	got, err := FromArgs(context.Background(), []string{dir}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Arc", "b", "c"}; !equal(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
	if got[0].Artist != "Nova" {
		t.Errorf("artist = %q", got[0].Artist)
	}
	for _, tr := range got {
		if tr.ID == "" {
			t.Error("tracks need ids")
		}
	}
}

func TestResolve_GlobAndDedupe(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "one.mp3"))
	touch(t, filepath.Join(dir, "two.mp3"))
	touch(t, filepath.Join(dir, "readme.md"))

	got, err := FromArgs(context.Background(), []string{
		filepath.Join(dir, "*"),
		filepath.Join(dir, "one.mp3"),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"one", "two"}; !equal(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}
}

func TestParseM3U(t *testing.T) {
	data := []byte("\ufeff#EXTM3U\n#EXTINF:215,Nova - Arc\nmusic/arc.mp3\n\n# comment\nplain.wav\n#EXTINF:-1 tvg-id=\"x\",Live\nhttp://radio/live.mp3\n")
	got := ParseM3U(data)
	if len(got) != 3 {
		t.Fatalf("entries = %+v", got)
	}
	want := []Entry{
		{URI: "music/arc.mp3", Title: "Nova - Arc", Duration: 215},
		{URI: "plain.wav", Duration: -1},
		{URI: "http://radio/live.mp3", Title: "Live", Duration: -1},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestResolve_LocalPlaylist(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "music", "arc.mp3"))
	list := filepath.Join(dir, "set.m3u")
	if err := os.WriteFile(list, []byte("#EXTINF:215,Nova - Arc\nmusic/arc.mp3\nhttps://cdn.example/Kilo%20-%20Drift.mp3?sig=1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FromArgs(context.Background(), []string{list}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("tracks = %+v", got)
	}
	if got[0].SourceURI != filepath.Join(dir, "music", "arc.mp3") || got[0].Title != "Arc" || got[0].Artist != "Nova" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Title != "Drift" || got[1].Artist != "Kilo" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestResolve_RemotePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/set.m3u8" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("a.mp3\n/abs/b.mp3\n"))
	}))
	defer srv.Close()

	got, err := FromArgs(context.Background(), []string{srv.URL + "/lists/set.m3u8"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].SourceURI != srv.URL+"/lists/a.mp3" || got[1].SourceURI != srv.URL+"/abs/b.mp3" {
		t.Errorf("tracks = %+v", got)
	}
}

func TestResolve_Archive(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "pack.zip")
	f, err := os.Create(pack)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"Drums/kick.wav", "Drums/snare.wav", "license.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte("RIFF"))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cache := filepath.Join(dir, "cache")
	opts := Options{CacheDir: cache}
	got, err := FromArgs(context.Background(), []string{pack}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"kick", "snare"}; !equal(titles(got), want) {
		t.Errorf("titles = %v, want %v", titles(got), want)
	}

	// second run reuses the extracted pack
	again, err := FromArgs(context.Background(), []string{pack}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 || again[0].SourceURI != got[0].SourceURI {
		t.Errorf("re-resolve = %+v", again)
	}

	if _, err := FromArgs(context.Background(), []string{pack}, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("without cache dir: err = %v", err)
	}
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "doc.pdf"))

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"nothing", nil, ErrNoTracks},
		{"empty dir", []string{t.TempDir()}, ErrNoTracks},
		{"unsupported", []string{filepath.Join(dir, "doc.pdf")}, ErrUnsupported},
		{"missing", []string{filepath.Join(dir, "nope.mp3")}, os.ErrNotExist},
	}
	for _, tt := range tests {
		_, err := FromArgs(context.Background(), tt.args, Options{})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestTrackFromURL(t *testing.T) {
	tests := []struct {
		in, title, artist string
	}{
		{"https://cdn.example/Nova%20-%20Arc.mp3", "Arc", "Nova"},
		{"https://cdn.example/stream", "stream", ""},
		{"https://cdn.example/", "cdn.example", ""},
	}
	for _, tt := range tests {
		got := TrackFromURL(tt.in)
		if got.Title != tt.title || got.Artist != tt.artist || got.SourceURI != tt.in {
			t.Errorf("TrackFromURL(%q) = %+v", tt.in, got)
		}
	}
}
