package analyzer

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyAttached = errors.New("analyzer bridge already attached")
	ErrTornDown        = errors.New("analyzer bridge torn down")
)

// Source is the read side of an analysis node.
type Source interface {
	BinCount() int
	ByteFrequencyData(dst []byte)
}

// Bridge is the single shared read point renderers poll for snapshots. It is
// attached to at most one Source in its lifetime and never owns playback.
//
// Every read is independent: there is no cursor or consumption state, so any
// number of callers may snapshot concurrently and see equivalent data.
type Bridge struct {
	mu     sync.RWMutex
	src    Source
	active func() bool
	torn   bool
}

// NewBridge creates an unattached bridge; it returns zeros until attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach binds the analysis source. Returns ErrAlreadyAttached on a second call and
// ErrTornDown after Teardown.
func (b *Bridge) Attach(src Source) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.torn {
		return ErrTornDown
	}
	if b.src != nil {
		return ErrAlreadyAttached
	}
	b.src = src
	return nil
}

// SetActive installs the predicate deciding whether audio is playing. While it
// reports false, snapshots are all zero.
func (b *Bridge) SetActive(fn func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = fn
}

// Attached reports whether a source is bound and the bridge is live.
func (b *Bridge) Attached() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.src != nil && !b.torn
}

// BinCount returns the source's bin count, or 0 without a live source.
func (b *Bridge) BinCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.src == nil || b.torn {
		return 0
	}
	return b.src.BinCount()
}

// Snapshot returns exactly n magnitudes: the lowest min(n, BinCount()) bins of the
// latest frame, zero padded. Never nil; negative n is treated as 0.
func (b *Bridge) Snapshot(n int) []byte {
	dst := make([]byte, max(n, 0))
	b.SnapshotInto(dst)
	return dst
}

// SnapshotInto fills dst like Snapshot(len(dst)) without allocating.
func (b *Bridge) SnapshotInto(dst []byte) {
	clear(dst)

	b.mu.RLock()
	src, active, torn := b.src, b.active, b.torn
	b.mu.RUnlock()

	if src == nil || torn || (active != nil && !active()) {
		return
	}
	src.ByteFrequencyData(dst)
}

// Teardown permanently detaches the source. Later snapshots are all zero.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.torn = true
	b.src = nil
}
