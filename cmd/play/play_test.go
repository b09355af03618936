package play

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gigurra/soundstage/cmd/engine/media/mediatest"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/gigurra/soundstage/cmd/engine/settings"
	"github.com/gigurra/soundstage/cmd/engine/store"
)

func TestBlocks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 5))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})

	out := Blocks(img)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d rows, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "\033[38;2;255;0;0m\033[48;2;0;0;255m▀") {
		t.Errorf("first cell = %q", lines[0])
	}
	if n := strings.Count(lines[0], "▀"); n != 3 {
		t.Errorf("row has %d cells, want 3", n)
	}
	// odd height: the last row has no lower pixel
	if !strings.Contains(lines[2], "\033[48;2;0;0;0m") {
		t.Errorf("last row = %q", lines[2])
	}
}

func TestScreen(t *testing.T) {
	var s screen
	s.resize(40, 8)
	if w, h := s.Size(); w != 40 || h != 16 {
		t.Errorf("Size = %d, %d", w, h)
	}
	if err := s.present(image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	if strings.Count(s.String(), "\n") != 1 {
		t.Errorf("String = %q", s.String())
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{59.9, "0:59"},
		{61, "1:01"},
		{3723, "62:03"},
		{math.NaN(), "--:--"},
		{math.Inf(1), "--:--"},
		{-1, "--:--"},
	}
	for _, tt := range tests {
		if got := clock(tt.in); got != tt.want {
			t.Errorf("clock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestModel(t *testing.T) model {
	t.Helper()
	s := store.New(store.Options{
		Element:      mediatest.NewElement(),
		GraphFactory: mediatest.Factory(mediatest.NewGraph(), nil),
		Settings:     settings.NewMemoryStore(settings.Defaults()),
	})
	t.Cleanup(func() { _ = s.Close() })
	s.SetQueue([]queue.Track{
		{ID: "a", Title: "Alpha", Artist: "Ann", SourceURI: "mem://a"},
		{ID: "b", Title: "Bravo", Artist: "Bob", SourceURI: "mem://b"},
		{ID: "c", Title: "Charlie", Artist: "Ann", SourceURI: "mem://c"},
	}, 0)
	return model{ctx: context.Background(), player: s, state: s.State()}
}

func press(m model, keys ...tea.KeyMsg) model {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(model)
		m.state = m.player.State()
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_PlaybackKeys(t *testing.T) {
	m := newTestModel(t)
	ctx := context.Background()

	// no bound track yet: space is not a shortcut
	m = press(m, tea.KeyMsg{Type: tea.KeySpace})
	if m.state.IsPlaying {
		t.Fatal("space played without a bound track")
	}

	if err := m.player.PlayIndex(ctx, 0); err != nil {
		t.Fatal(err)
	}
	m.state = m.player.State()
	if !m.state.IsPlaying {
		t.Fatal("not playing after PlayIndex")
	}

	m = press(m, tea.KeyMsg{Type: tea.KeySpace})
	if m.state.IsPlaying {
		t.Error("space did not pause")
	}

	m = press(m, runes("n"))
	if cur := m.state.CurrentTrack; cur == nil || cur.ID != "b" {
		t.Errorf("after n current = %+v", cur)
	}
	m = press(m, runes("p"))
	if cur := m.state.CurrentTrack; cur == nil || cur.ID != "a" {
		t.Errorf("after p current = %+v", cur)
	}

	m = press(m, runes("m"))
	if !m.state.IsMuted {
		t.Error("m did not mute")
	}
	m = press(m, runes("s"), runes("r"))
	if !m.state.Shuffle {
		t.Error("s did not enable shuffle")
	}
	if m.state.RepeatMode == queue.RepeatAll {
		t.Error("r did not change repeat mode")
	}
}

func TestModel_FilterSwallowsShortcuts(t *testing.T) {
	m := newTestModel(t)
	if err := m.player.PlayIndex(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	m.state = m.player.State()

	m = press(m, runes("/"), runes("a"), runes("n"), runes("n"), tea.KeyMsg{Type: tea.KeySpace})
	if !m.filtering || m.filter != "ann " {
		t.Fatalf("filter = %q, focused %v", m.filter, m.filtering)
	}
	if !m.state.IsPlaying || m.state.CurrentTrack.ID != "a" {
		t.Errorf("typing triggered shortcuts: %+v", m.state)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyBackspace}, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Error("enter did not leave the filter")
	}
	if got := m.visible(); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("visible = %v", got)
	}

	// select the second match and play it
	m = press(m, runes("j"), tea.KeyMsg{Type: tea.KeyEnter})
	if cur := m.state.CurrentTrack; cur == nil || cur.ID != "c" {
		t.Errorf("enter played %+v, want c", cur)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.filter != "" || len(m.visible()) != 3 {
		t.Errorf("esc left filter %q", m.filter)
	}
}

func TestModel_NotifiesOnTrackChange(t *testing.T) {
	m := newTestModel(t)
	var got []string
	m.notify = func(title, body string) { got = append(got, body) }

	st := m.state
	a := st.Queue[0]
	st.CurrentTrack = &a
	next, _ := m.Update(stateMsg(st))
	next, _ = next.(model).Update(stateMsg(st))
	if len(got) != 1 || got[0] != "Ann - Alpha" {
		t.Errorf("notifications = %v", got)
	}
}

func TestModel_View(t *testing.T) {
	m := newTestModel(t)
	m.width = 80
	view := m.View()
	for _, want := range []string{"nothing playing", "--:--", "Ann - Alpha", "[3 tracks]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
