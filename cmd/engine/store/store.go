// Package store is the global player: the single writer that composes the
// transport, the queue and the analyzer bridge, and broadcasts state to readers.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gigurra/soundstage/cmd/engine/analyzer"
	"github.com/gigurra/soundstage/cmd/engine/media"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/gigurra/soundstage/cmd/engine/settings"
	"github.com/gigurra/soundstage/cmd/engine/transport"
	"go.uber.org/zap"
)

// DefaultVolume is the volume used when no settings are stored.
const DefaultVolume = 0.7

var ErrClosed = errors.New("player store closed")

// Options configures a Store.
type Options struct {
	Element      media.Element
	GraphFactory media.GraphFactory // nil disables analysis
	Settings     settings.Store     // nil keeps settings in memory
	Logger       *zap.Logger
	QueueOptions []queue.Option // repeat defaults to all
	Now          func() time.Time
}

// Store is constructed once at the application root and passed to every consumer.
// All mutations go through its methods; renderers only read Bridge().
type Store struct {
	op sync.Mutex // serialises store operations

	mu       sync.RWMutex // guards the fields below
	q        *queue.Manager
	current  *queue.Track
	autoplay bool
	closed   bool

	tr        *transport.Transport
	settings  settings.Store
	persisted settings.Settings
	hub       *broadcaster
	log       *zap.Logger
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// New restores settings and creates the Store.
func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")

	st := opts.Settings
	if st == nil {
		st = settings.NewMemoryStore(settings.Defaults().WithVolume(DefaultVolume))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		q:        queue.New(nil, append([]queue.Option{queue.WithRepeatMode(queue.RepeatAll)}, opts.QueueOptions...)...),
		autoplay: true,
		settings: st,
		hub:      newBroadcaster(),
		log:      log,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.now == nil {
		s.now = time.Now
	}

	restored, err := st.Load(ctx)
	if err != nil {
		log.Warn("using default player settings", zap.Error(err))
	}
	restored = restored.Normalize(settings.Defaults().WithVolume(DefaultVolume))

	s.tr = transport.New(transport.Options{
		Element:      opts.Element,
		GraphFactory: opts.GraphFactory,
		Logger:       log,
		Volume:       restored.Volume,
		OnChange:     s.publish,
		OnEnded:      s.handleEnded,
	})
	s.tr.SetMuted(restored.IsMuted)
	s.tr.SetPlaybackRate(restored.PlaybackRate)
	s.persisted = restored

	return s
}

// Bridge is the shared, read-only analyzer renderers poll.
func (s *Store) Bridge() *analyzer.Bridge { return s.tr.Bridge() }

// State returns the current player state.
func (s *Store) State() PlayerState {
	ts := s.tr.State()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := PlayerState{
		Queue:        queue.Tracks(s.q.Items()),
		CurrentIndex: s.q.Index(),
		IsPlaying:    ts.IsPlaying,
		CurrentTime:  ts.CurrentTime,
		Duration:     ts.Duration,
		Volume:       ts.Volume,
		IsMuted:      ts.Muted,
		PlaybackRate: ts.Rate,
		Shuffle:      s.q.Shuffled(),
		Autoplay:     s.autoplay,
		RepeatMode:   s.q.Repeat(),
		Status:       ts.Status,
		Buffered:     ts.Buffered,
		GraphLocked:  ts.GraphLocked,
		UpdatedAt:    s.now(),
	}
	if s.current != nil {
		track := *s.current
		st.CurrentTrack = &track
	}
	return st
}

// Subscribe returns a subscription primed with the current state.
func (s *Store) Subscribe() *Subscription {
	return s.hub.subscribe(s.State())
}

// Unsubscribe stops delivery and closes the subscription channel.
func (s *Store) Unsubscribe(sub *Subscription) {
	s.hub.unsubscribe(sub)
}

func (s *Store) publish() {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}
	s.hub.publish(s.State())
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) currentTrack() *queue.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) setCurrent(track *queue.Track) {
	s.mu.Lock()
	if track != nil {
		t := *track
		track = &t
	}
	s.current = track
	s.mu.Unlock()
}

// withQueue runs fn on the queue under the field lock.
func (s *Store) withQueue(fn func(q *queue.Manager)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.q)
}

func (s *Store) queueCurrent() (queue.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Current()
}

// bind makes track the bound track. A track whose source is already bound is
// restarted from 0 rather than reloaded.
func (s *Store) bind(track queue.Track) error {
	ts := s.tr.State()
	if ts.Source == track.SourceURI && ts.Status != transport.Idle {
		s.tr.Seek(0)
	} else if err := s.tr.Load(track.SourceURI); err != nil {
		return err
	}
	s.setCurrent(&track)
	return nil
}

// play starts the transport outside the operation lock, so a Pause or Load issued
// meanwhile supersedes it. Superseded starts are not errors.
func (s *Store) play(ctx context.Context) error {
	err := s.tr.Play(ctx)
	if err != nil {
		if transport.IsSuperseded(err) {
			return nil
		}
		s.log.Warn("playback did not start", zap.Error(err))
	}
	s.publish()
	return err
}

// PlayTrack plays track. When track is the bound track and is playing, this pauses
// instead. A non-nil playlist replaces the queue; track is appended if it is in
// neither the playlist nor the queue.
func (s *Store) PlayTrack(ctx context.Context, track queue.Track, playlist []queue.Track) error {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return ErrClosed
	}

	cur := s.currentTrack()
	if cur != nil && cur.ID == track.ID && s.tr.State().IsPlaying {
		s.tr.Pause()
		s.op.Unlock()
		return nil
	}

	s.withQueue(func(q *queue.Manager) {
		if playlist != nil {
			items := queue.Items(playlist)
			idx := indexOf(playlist, track.ID)
			if idx < 0 {
				items = append(items, queue.Item{Track: track})
				idx = len(items) - 1
			}
			q.SetQueue(items, idx)
			return
		}
		idx := q.IndexOf(track.ID)
		if idx < 0 {
			q.AddToQueue(queue.Item{Track: track})
			idx = q.Len() - 1
		}
		q.GoToIndex(idx)
	})

	var err error
	if cur != nil && cur.ID == track.ID {
		// paused on this track: resume without reloading
		err = s.tr.Load(track.SourceURI)
		s.setCurrent(&track)
	} else {
		err = s.bind(track)
	}
	if err != nil {
		s.realign(cur)
	}
	s.op.Unlock()

	if err != nil {
		s.log.Warn("load failed", zap.String("track", track.ID), zap.Error(err))
		s.publish()
		return err
	}
	return s.play(ctx)
}

// realign points the queue back at cur after a failed bind. When cur is gone
// from the queue nothing stays bound.
func (s *Store) realign(cur *queue.Track) {
	idx := -1
	if cur != nil {
		s.withQueue(func(q *queue.Manager) {
			if idx = q.IndexOf(cur.ID); idx >= 0 {
				q.GoToIndex(idx)
			}
		})
	}
	if idx < 0 {
		s.tr.Stop()
		s.setCurrent(nil)
	}
}

func indexOf(tracks []queue.Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TogglePlay pauses when playing and plays otherwise. Without a bound track it
// starts the queue's current item.
func (s *Store) TogglePlay(ctx context.Context) error {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return ErrClosed
	}
	if s.tr.State().IsPlaying {
		s.tr.Pause()
		s.op.Unlock()
		return nil
	}
	if s.currentTrack() == nil {
		item, ok := s.queueCurrent()
		if !ok {
			s.op.Unlock()
			return nil
		}
		if err := s.bind(item.Track); err != nil {
			s.op.Unlock()
			return err
		}
	}
	s.op.Unlock()
	return s.play(ctx)
}

// Pause is idempotent.
func (s *Store) Pause() {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.Pause()
}

// Stop pauses, rewinds and clears the bound track. The queue is kept.
func (s *Store) Stop() {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.Stop()
	s.setCurrent(nil)
	s.publish()
}

// Seek moves to seconds, clamped to the track.
func (s *Store) Seek(seconds float64) {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.Seek(seconds)
}

// Skip seeks relative to the current position.
func (s *Store) Skip(delta float64) {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.Skip(delta)
}

// SetVolume clamps v to [0, 1], unmutes and persists.
func (s *Store) SetVolume(v float64) {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.SetVolume(v)
	s.persist()
}

// ToggleMute flips mute and persists.
func (s *Store) ToggleMute() {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.ToggleMute()
	s.persist()
}

// SetPlaybackRate sets the rate and persists.
func (s *Store) SetPlaybackRate(r float64) {
	s.op.Lock()
	defer s.op.Unlock()
	s.tr.SetPlaybackRate(r)
	s.persist()
}

// ApplySettings installs settings changed outside this store without writing
// them back.
func (s *Store) ApplySettings(ns settings.Settings) {
	s.op.Lock()
	defer s.op.Unlock()
	ns = ns.Normalize(s.persisted)
	s.tr.SetVolume(ns.Volume)
	s.tr.SetMuted(ns.IsMuted)
	s.tr.SetPlaybackRate(ns.PlaybackRate)
	s.persisted = s.snapshotSettings()
}

func (s *Store) snapshotSettings() settings.Settings {
	ts := s.tr.State()
	return settings.Settings{Volume: ts.Volume, PlaybackRate: ts.Rate, IsMuted: ts.Muted}
}

// persist writes the settings when they changed. Failures are logged only.
func (s *Store) persist() {
	ns := s.snapshotSettings()
	if ns == s.persisted {
		return
	}
	if err := s.settings.Save(s.ctx, ns); err != nil {
		s.log.Warn("could not persist player settings", zap.Error(err))
		return
	}
	s.persisted = ns
}

// NextTrack advances the queue and plays the result. At the end of the queue with
// repeat off nothing changes; with repeat one the current track restarts.
func (s *Store) NextTrack(ctx context.Context) error {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return ErrClosed
	}
	moved, err := s.moveAndBind(func(q *queue.Manager) bool { return q.Next() != queue.Exhausted })
	s.op.Unlock()
	if !moved || err != nil {
		return err
	}
	return s.play(ctx)
}

// PrevTrack steps back in the queue and plays the result.
func (s *Store) PrevTrack(ctx context.Context) error {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return ErrClosed
	}
	if s.queueLen() == 0 {
		s.op.Unlock()
		return nil
	}
	_, err := s.moveAndBind(func(q *queue.Manager) bool { q.Previous(); return true })
	s.op.Unlock()
	if err != nil {
		return err
	}
	return s.play(ctx)
}

// PlayIndex plays the queue item at index. Out-of-range indices are ignored.
func (s *Store) PlayIndex(ctx context.Context, index int) error {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= s.queueLen() {
		s.op.Unlock()
		return nil
	}
	_, err := s.moveAndBind(func(q *queue.Manager) bool { q.GoToIndex(index); return true })
	s.op.Unlock()
	if err != nil {
		return err
	}
	return s.play(ctx)
}

func (s *Store) queueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Len()
}

func (s *Store) bindQueueCurrent() error {
	item, ok := s.queueCurrent()
	if !ok {
		return nil
	}
	if err := s.bind(item.Track); err != nil {
		s.log.Warn("load failed", zap.String("track", item.ID), zap.Error(err))
		return err
	}
	return nil
}

// moveAndBind moves the queue with move and binds the new current item. A failed
// bind puts the queue back, so it keeps pointing at the bound track.
func (s *Store) moveAndBind(move func(q *queue.Manager) bool) (bool, error) {
	prev, moved := -1, false
	s.withQueue(func(q *queue.Manager) {
		prev = q.Index()
		moved = move(q)
	})
	if !moved {
		return false, nil
	}
	if err := s.bindQueueCurrent(); err != nil {
		s.withQueue(func(q *queue.Manager) { q.GoToIndex(prev) })
		s.publish()
		return true, err
	}
	return true, nil
}

// handleEnded chains to the next track when autoplay is on; otherwise, or when the
// queue is exhausted or the next track fails to load, the player settles paused at 0.
func (s *Store) handleEnded() {
	s.op.Lock()
	if s.isClosed() {
		s.op.Unlock()
		return
	}

	s.mu.RLock()
	autoplay := s.autoplay && s.q.Len() > 0
	s.mu.RUnlock()

	var moved bool
	var err error
	if autoplay {
		moved, err = s.moveAndBind(func(q *queue.Manager) bool { return q.Next() != queue.Exhausted })
	}
	if !moved || err != nil {
		s.tr.Seek(0)
		s.op.Unlock()
		s.publish()
		return
	}
	s.op.Unlock()
	_ = s.play(s.ctx)
}

// SetQueue replaces the queue, unshuffled. If the bound track is not part of the
// new queue, playback stops.
func (s *Store) SetQueue(tracks []queue.Track, startIndex int) {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.currentTrack()
	keep := false
	s.withQueue(func(q *queue.Manager) {
		q.SetQueue(queue.Items(tracks), startIndex)
		if cur != nil {
			if idx := q.IndexOf(cur.ID); idx >= 0 {
				q.GoToIndex(idx)
				keep = true
			}
		}
	})
	if cur != nil && !keep {
		s.tr.Stop()
		s.setCurrent(nil)
	}
	s.publish()
}

// ToggleShuffle flips shuffle; the bound track keeps its identity.
func (s *Store) ToggleShuffle() {
	s.op.Lock()
	defer s.op.Unlock()
	s.withQueue(func(q *queue.Manager) { q.ToggleShuffle() })
	s.publish()
}

// SetShuffle enables or disables shuffle.
func (s *Store) SetShuffle(enabled bool) {
	s.op.Lock()
	defer s.op.Unlock()
	s.withQueue(func(q *queue.Manager) { q.SetShuffle(enabled) })
	s.publish()
}

// ToggleRepeat cycles off -> all -> one.
func (s *Store) ToggleRepeat() {
	s.op.Lock()
	defer s.op.Unlock()
	s.withQueue(func(q *queue.Manager) { q.ToggleRepeat() })
	s.publish()
}

// SetRepeatMode sets the repeat mode.
func (s *Store) SetRepeatMode(mode queue.RepeatMode) {
	s.op.Lock()
	defer s.op.Unlock()
	s.withQueue(func(q *queue.Manager) { q.SetRepeatMode(mode) })
	s.publish()
}

// SetAutoplay controls chaining to the next track on end.
func (s *Store) SetAutoplay(enabled bool) {
	s.op.Lock()
	defer s.op.Unlock()
	s.mu.Lock()
	s.autoplay = enabled
	s.mu.Unlock()
	s.publish()
}

// Enqueue appends a track. Returns false when it is already queued.
func (s *Store) Enqueue(track queue.Track) bool {
	s.op.Lock()
	defer s.op.Unlock()
	var ok bool
	s.withQueue(func(q *queue.Manager) { ok = q.AddToQueue(queue.Item{Track: track}) })
	s.publish()
	return ok
}

// EnqueueNext inserts a track right after the current one.
func (s *Store) EnqueueNext(track queue.Track) bool {
	s.op.Lock()
	defer s.op.Unlock()
	var ok bool
	s.withQueue(func(q *queue.Manager) { ok = q.AddToQueueNext(queue.Item{Track: track}) })
	s.publish()
	return ok
}

// RemoveFromQueue removes the item at index. Removing the bound track binds its
// successor, playing it if the removed track was playing; emptying the queue stops.
func (s *Store) RemoveFromQueue(ctx context.Context, index int) error {
	s.op.Lock()

	cur := s.currentTrack()
	removedCurrent := false
	empty := false
	s.withQueue(func(q *queue.Manager) {
		items := q.Items()
		if index < 0 || index >= len(items) {
			return
		}
		removedCurrent = cur != nil && items[index].ID == cur.ID
		q.RemoveFromQueue(index)
		empty = q.Len() == 0
	})

	if !removedCurrent {
		s.op.Unlock()
		s.publish()
		return nil
	}
	if empty {
		s.tr.Stop()
		s.setCurrent(nil)
		s.op.Unlock()
		s.publish()
		return nil
	}

	wasPlaying := s.tr.State().IsPlaying
	err := s.bindQueueCurrent()
	switch {
	case err != nil:
		// the removed track must not stay "now playing"
		s.tr.Stop()
		s.setCurrent(nil)
	case !wasPlaying:
		s.tr.Pause()
	}
	s.op.Unlock()
	if err != nil || !wasPlaying {
		s.publish()
		return err
	}
	return s.play(ctx)
}

// MoveInQueue moves an item; the bound track keeps its identity.
func (s *Store) MoveInQueue(from, to int) {
	s.op.Lock()
	defer s.op.Unlock()
	s.withQueue(func(q *queue.Manager) { q.MoveInQueue(from, to) })
	s.publish()
}

// SetDuration records a learned duration on the queue item with id.
func (s *Store) SetDuration(id string, seconds float64) {
	s.withQueue(func(q *queue.Manager) { q.SetDuration(id, seconds) })
}

// Items returns the queue items, including known durations.
func (s *Store) Items() []queue.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Items()
}

// Close tears down the audio graph, the bridge and the element, and closes all
// subscriptions. Later calls are rejected or ignored.
func (s *Store) Close() error {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.hub.close()
	return s.tr.Close()
}
