// Package feed exposes the player over HTTP: state and spectrum snapshots for
// observers, a small control API, and a websocket stream of state changes.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gigurra/soundstage/cmd/engine/store"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MaxSnapshot bounds /api/snapshot?length=N.
const MaxSnapshot = 4096

// DefaultSnapshot is used when no length is given and no source is attached.
const DefaultSnapshot = 128

var errBadParam = errors.New("bad parameter")

// Server serves the feed for one store.
type Server struct {
	store    *store.Store
	log      *zap.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	now      func() time.Time
}

// New builds the router. A nil logger discards output.
func New(s *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{
		store: s,
		log:   log.Named("feed"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}

	router := mux.NewRouter()
	router.Use(cors)
	router.HandleFunc("/api/state", srv.handleState).Methods(http.MethodGet)
	router.HandleFunc("/api/snapshot", srv.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/api/control/{action}", srv.handleControl).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/ws", srv.handleWS).Methods(http.MethodGet)
	srv.router = router
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.State())
}

// Snapshot is the body of /api/snapshot.
type Snapshot struct {
	Length    int                 `json:"length"`
	Bins      []int               `json:"bins"`
	Bands     analyzer.BandEnergy `json:"bands"`
	Timestamp int64               `json:"timestamp"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	full := s.store.Bridge().BinCount()
	n := full
	if n == 0 {
		n = DefaultSnapshot
	}
	if raw := r.URL.Query().Get("length"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > MaxSnapshot {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: length must be 0..%d", errBadParam, MaxSnapshot))
			return
		}
		n = v
	}
	data := s.store.Bridge().Snapshot(max(n, full))
	bands := analyzer.Bands(data[:full], analyzer.DefaultSampleRate)
	bins := make([]int, n)
	for i, b := range data[:n] {
		bins[i] = int(b)
	}
	s.writeJSON(w, http.StatusOK, Snapshot{Length: n, Bins: bins, Bands: bands, Timestamp: s.now().UnixMilli()})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	q := r.URL.Query()
	ctx := r.Context()

	var err error
	switch action {
	case "toggle":
		err = s.store.TogglePlay(ctx)
	case "pause":
		s.store.Pause()
	case "stop":
		s.store.Stop()
	case "next":
		err = s.store.NextTrack(ctx)
	case "prev":
		err = s.store.PrevTrack(ctx)
	case "mute":
		s.store.ToggleMute()
	case "shuffle":
		s.store.ToggleShuffle()
	case "repeat":
		s.store.ToggleRepeat()
	case "skip":
		var by float64
		if by, err = floatParam(q.Get("by"), "by"); err == nil {
			s.store.Skip(by)
		}
	case "seek":
		var to float64
		if to, err = floatParam(q.Get("to"), "to"); err == nil {
			s.store.Seek(to)
		}
	case "volume":
		var v float64
		if v, err = floatParam(q.Get("v"), "v"); err == nil {
			s.store.SetVolume(v)
		}
	case "rate":
		var rate float64
		if rate, err = floatParam(q.Get("r"), "r"); err == nil {
			s.store.SetPlaybackRate(rate)
		}
	default:
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown action %q", action))
		return
	}

	switch {
	case errors.Is(err, errBadParam):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		s.log.Warn("control action failed", zap.String("action", action), zap.Error(err))
		s.writeError(w, http.StatusConflict, err)
	default:
		s.log.Debug("control", zap.String("action", action))
		s.writeJSON(w, http.StatusOK, s.store.State())
	}
}

func floatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", errBadParam, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, raw)
	}
	return v, nil
}
