package feed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gigurra/soundstage/cmd/engine/media/mediatest"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/gigurra/soundstage/cmd/engine/settings"
	"github.com/gigurra/soundstage/cmd/engine/store"
	"github.com/gorilla/websocket"
)

type wireState struct {
	IsPlaying    bool     `json:"isPlaying"`
	Volume       float64  `json:"volume"`
	IsMuted      bool     `json:"isMuted"`
	PlaybackRate float64  `json:"playbackRate"`
	CurrentTime  float64  `json:"currentTime"`
	Duration     *float64 `json:"duration"`
	Status       string   `json:"status"`
}

func newTestServer(t *testing.T) (*store.Store, *httptest.Server) {
	t.Helper()
	graph := mediatest.NewGraph()
	s := store.New(store.Options{
		Element:      mediatest.NewElement(),
		GraphFactory: mediatest.Factory(graph, nil),
		Settings:     settings.NewMemoryStore(settings.Defaults()),
	})
	srv := httptest.NewServer(New(s, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = s.Close()
	})
	s.SetQueue([]queue.Track{
		{ID: "a", Title: "A", SourceURI: "mem://a"},
		{ID: "b", Title: "B", SourceURI: "mem://b"},
	}, 0)
	return s, srv
}

func post(t *testing.T, url string) (int, wireState) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st wireState
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode, st
}

func TestState(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	var st wireState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.IsPlaying || st.Duration != nil || st.Status != "idle" {
		t.Errorf("state = %+v", st)
	}
}

func TestControl(t *testing.T) {
	s, srv := newTestServer(t)
	base := srv.URL + "/api/control/"

	code, st := post(t, base+"toggle")
	if code != http.StatusOK || !st.IsPlaying {
		t.Fatalf("toggle: %d %+v", code, st)
	}
	if got := s.State().CurrentTrack; got == nil || got.ID != "a" {
		t.Errorf("current = %+v", got)
	}

	tests := []struct {
		path  string
		code  int
		check func(wireState) bool
	}{
		{"volume?v=0.3", http.StatusOK, func(st wireState) bool { return math.Abs(st.Volume-0.3) < 1e-9 }},
		{"volume?v=7", http.StatusOK, func(st wireState) bool { return st.Volume == 1 }},
		{"mute", http.StatusOK, func(st wireState) bool { return st.IsMuted }},
		{"rate?r=1.5", http.StatusOK, func(st wireState) bool { return st.PlaybackRate == 1.5 }},
		{"pause", http.StatusOK, func(st wireState) bool { return !st.IsPlaying }},
		{"volume", http.StatusBadRequest, nil},
		{"seek?to=soon", http.StatusBadRequest, nil},
		{"explode", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		code, st := post(t, base+tt.path)
		if code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.path, code, tt.code)
			continue
		}
		if tt.check != nil && !tt.check(st) {
			t.Errorf("%s: state = %+v", tt.path, st)
		}
	}

	if code, _ := post(t, base+"next"); code != http.StatusOK {
		t.Errorf("next: %d", code)
	}
	if got := s.State().CurrentTrack; got == nil || got.ID != "b" {
		t.Errorf("after next current = %+v", got)
	}
}

func TestControl_GetNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/control/toggle")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSnapshot(t *testing.T) {
	s, srv := newTestServer(t)

	get := func(query string) (int, Snapshot) {
		resp, err := http.Get(srv.URL + "/api/snapshot" + query)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var snap Snapshot
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				t.Fatal(err)
			}
		}
		return resp.StatusCode, snap
	}

	// nothing attached yet
	code, snap := get("")
	if code != http.StatusOK || snap.Length != DefaultSnapshot || len(snap.Bins) != DefaultSnapshot || snap.Bins[0] != 0 {
		t.Fatalf("idle snapshot: %d len %d", code, len(snap.Bins))
	}
	if snap.Bands != (analyzer.BandEnergy{}) {
		t.Errorf("idle bands = %+v", snap.Bands)
	}

	if err := s.TogglePlay(context.Background()); err != nil {
		t.Fatal(err)
	}
	code, snap = get("?length=4")
	if code != http.StatusOK || len(snap.Bins) != 4 {
		t.Fatalf("snapshot: %d %+v", code, snap)
	}
	for i, b := range snap.Bins {
		if b != 255 {
			t.Errorf("bin %d = %d, want 255", i, b)
		}
	}
	// bands cover the whole spectrum, not just the requested bins
	if want := (analyzer.BandEnergy{Bass: 1, Drums: 1, Vocals: 1, Other: 1}); snap.Bands != want {
		t.Errorf("bands = %+v, want %+v", snap.Bands, want)
	}

	for _, q := range []string{"?length=-1", "?length=lots", "?length=999999"} {
		if code, _ := get(q); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, code)
		}
	}
}

func TestWebsocketStreamsState(t *testing.T) {
	s, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() (string, wireState) {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type      string    `json:"type"`
			Data      wireState `json:"data"`
			Timestamp int64     `json:"timestamp"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Timestamp == 0 {
			t.Error("message without timestamp")
		}
		return msg.Type, msg.Data
	}

	if typ, st := read(); typ != "state" || st.IsPlaying {
		t.Fatalf("initial = %s %+v", typ, st)
	}

	s.SetVolume(0.25)
	for {
		_, st := read()
		if math.Abs(st.Volume-0.25) < 1e-9 {
			break
		}
	}

	_ = s.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("close err = %v", err)
			}
			break
		}
	}
}
