// Package queue holds the ordering and index logic for "what plays next".
// It never touches playback; the player store drives it.
package queue

import (
	"math/rand"
	"slices"
	"time"

	"github.com/samber/lo"
)

// RepeatMode controls what Next does at queue boundaries.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// ParseRepeatMode maps "off", "all" and "one" to a RepeatMode. Unknown input is RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "all":
		return RepeatAll
	case "one":
		return RepeatOne
	default:
		return RepeatOff
	}
}

func (r RepeatMode) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RepeatMode) UnmarshalText(b []byte) error {
	*r = ParseRepeatMode(string(b))
	return nil
}

// PreviousPolicy decides what Previous does while shuffled.
type PreviousPolicy int

const (
	// PreviousRandom picks a uniformly random index while shuffled.
	// Pressing previous twice may never return to the same earlier track.
	PreviousRandom PreviousPolicy = iota
	// PreviousHistory walks back through the tracks actually visited while shuffled.
	PreviousHistory
)

// NextResult describes what a call to Next did.
type NextResult int

const (
	Advanced  NextResult = iota // moved to currentIndex+1
	Wrapped                     // moved past the end back to 0 (RepeatAll)
	Repeated                    // stayed on the current item (RepeatOne)
	Exhausted                   // at the end with RepeatOff, or empty; the caller must stop
)

// State is a read-only copy of the queue.
type State struct {
	Items        []Item     `json:"items"`
	CurrentIndex int        `json:"currentIndex"`
	IsShuffled   bool       `json:"isShuffled"`
	RepeatMode   RepeatMode `json:"repeatMode"`
}

// Manager is an ordered collection with a current index, a shuffle permutation and
// a repeat mode. It is not safe for concurrent use; the owner serialises access.
//
// Invariant: 0 <= index < len(items) whenever items is non-empty, otherwise index == 0.
type Manager struct {
	items    []Item // presented order (post-shuffle when shuffled)
	original []Item // insertion order, only kept while shuffled
	index    int
	shuffled bool
	repeat   RepeatMode
	previous PreviousPolicy
	history  []string // ids visited while shuffled, for PreviousHistory
	rng      *rand.Rand
}

// Option configures a Manager.
type Option func(*Manager)

// WithRand sets the random source used for shuffling and random previous.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithRepeatMode sets the initial repeat mode.
func WithRepeatMode(mode RepeatMode) Option {
	return func(m *Manager) { m.repeat = mode }
}

// WithShufflePrevious sets the policy Previous follows while shuffled.
func WithShufflePrevious(p PreviousPolicy) Option {
	return func(m *Manager) { m.previous = p }
}

// New creates a Manager positioned at index 0.
func New(items []Item, opts ...Option) *Manager {
	m := &Manager{
		items: uniqueItems(items),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of items.
func (m *Manager) Len() int { return len(m.items) }

// Index returns the current index (0 when empty).
func (m *Manager) Index() int { return m.index }

// Shuffled reports whether the presented order is a shuffle permutation.
func (m *Manager) Shuffled() bool { return m.shuffled }

// Repeat returns the current repeat mode.
func (m *Manager) Repeat() RepeatMode { return m.repeat }

// Items returns a copy of the presented order.
func (m *Manager) Items() []Item { return slices.Clone(m.items) }

// Current returns the item at the current index.
func (m *Manager) Current() (Item, bool) {
	if len(m.items) == 0 {
		return Item{}, false
	}
	return m.items[m.index], true
}

// IndexOf returns the presented position of the item with the given id, or -1.
func (m *Manager) IndexOf(id string) int {
	_, idx, ok := lo.FindIndexOf(m.items, func(it Item) bool { return it.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// State returns a copy of the queue state.
func (m *Manager) State() State {
	return State{
		Items:        m.Items(),
		CurrentIndex: m.index,
		IsShuffled:   m.shuffled,
		RepeatMode:   m.repeat,
	}
}

// Next applies the repeat policy and advances the current index.
func (m *Manager) Next() NextResult {
	if len(m.items) == 0 {
		return Exhausted
	}
	if m.repeat == RepeatOne {
		return Repeated
	}
	if m.index+1 < len(m.items) {
		m.remember()
		m.index++
		return Advanced
	}
	if m.repeat == RepeatAll {
		m.remember()
		m.index = 0
		return Wrapped
	}
	return Exhausted
}

// Previous steps back one position, never below 0. While shuffled it follows the
// configured PreviousPolicy, which by default picks a uniformly random index.
func (m *Manager) Previous() {
	if len(m.items) == 0 {
		return
	}
	if !m.shuffled {
		m.index = max(0, m.index-1)
		return
	}
	if m.previous == PreviousHistory {
		for len(m.history) > 0 {
			id := m.history[len(m.history)-1]
			m.history = m.history[:len(m.history)-1]
			if idx := m.IndexOf(id); idx >= 0 {
				m.index = idx
				return
			}
		}
		m.index = max(0, m.index-1)
		return
	}
	m.index = m.rng.Intn(len(m.items))
}

// GoToIndex selects the item at index. Out-of-range indices are ignored.
func (m *Manager) GoToIndex(index int) {
	if index >= 0 && index < len(m.items) {
		m.index = index
	}
}

// ToggleShuffle switches between a Fisher-Yates permutation and the insertion order.
// In both directions the current item keeps its identity; its index follows it.
func (m *Manager) ToggleShuffle() {
	current, hasCurrent := m.Current()

	if !m.shuffled {
		m.original = slices.Clone(m.items)
		m.rng.Shuffle(len(m.items), func(i, j int) {
			m.items[i], m.items[j] = m.items[j], m.items[i]
		})
	} else {
		m.items = m.original
		m.original = nil
		m.history = nil
	}
	m.shuffled = !m.shuffled

	m.index = 0
	if hasCurrent {
		if idx := m.IndexOf(current.ID); idx >= 0 {
			m.index = idx
		}
	}
}

// SetShuffle enables or disables shuffle; a no-op when already in that state.
func (m *Manager) SetShuffle(enabled bool) {
	if enabled != m.shuffled {
		m.ToggleShuffle()
	}
}

// ToggleRepeat cycles off -> all -> one -> off.
func (m *Manager) ToggleRepeat() {
	m.repeat = (m.repeat + 1) % 3
}

// SetRepeatMode sets the repeat mode.
func (m *Manager) SetRepeatMode(mode RepeatMode) {
	m.repeat = mode
}

// AddToQueue appends an item. Returns false if an item with the same id is queued.
func (m *Manager) AddToQueue(item Item) bool {
	if m.IndexOf(item.ID) >= 0 {
		return false
	}
	m.items = append(m.items, item)
	if m.shuffled {
		m.original = append(m.original, item)
	}
	return true
}

// AddToQueueNext inserts an item right after the current index.
// Returns false if an item with the same id is queued.
func (m *Manager) AddToQueueNext(item Item) bool {
	if m.IndexOf(item.ID) >= 0 {
		return false
	}
	at := min(m.index+1, len(m.items))
	m.items = slices.Insert(m.items, at, item)
	if m.shuffled {
		m.original = append(m.original, item)
	}
	return true
}

// RemoveFromQueue removes the item at index, keeping the current index on the same
// logical track. Removing the current item selects its successor, or the new tail
// when it was last. Out-of-range indices are ignored.
func (m *Manager) RemoveFromQueue(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	removed := m.items[index]
	m.items = slices.Delete(m.items, index, index+1)
	if m.shuffled {
		m.original = slices.DeleteFunc(m.original, func(it Item) bool { return it.ID == removed.ID })
	}

	if index < m.index {
		m.index--
	} else if index == m.index && m.index >= len(m.items) {
		m.index = max(0, len(m.items)-1)
	}
}

// MoveInQueue moves the item at from to position to, reindexing the current item
// when the move crosses it. Out-of-range positions are ignored.
func (m *Manager) MoveInQueue(from, to int) {
	if from < 0 || from >= len(m.items) || to < 0 || to >= len(m.items) {
		return
	}
	moved := m.items[from]
	m.items = slices.Delete(m.items, from, from+1)
	m.items = slices.Insert(m.items, to, moved)

	switch {
	case m.index == from:
		m.index = to
	case from < m.index && to >= m.index:
		m.index--
	case from > m.index && to <= m.index:
		m.index++
	}
}

// SetQueue replaces the queue wholesale and starts unshuffled. Duplicate ids are
// dropped (first wins) and startIndex is clamped into range.
func (m *Manager) SetQueue(items []Item, startIndex int) {
	m.items = uniqueItems(items)
	m.original = nil
	m.history = nil
	m.shuffled = false
	m.index = 0
	if len(m.items) > 0 {
		m.index = lo.Clamp(startIndex, 0, len(m.items)-1)
	}
}

// Clear empties the queue; shuffle and repeat settings are kept.
func (m *Manager) Clear() {
	m.items = nil
	if m.shuffled {
		m.original = []Item{}
	}
	m.history = nil
	m.index = 0
}

// SetDuration records a learned duration for the item with the given id.
func (m *Manager) SetDuration(id string, seconds float64) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Duration = seconds
		}
	}
	for i := range m.original {
		if m.original[i].ID == id {
			m.original[i].Duration = seconds
		}
	}
}

func (m *Manager) remember() {
	if m.shuffled && m.previous == PreviousHistory {
		m.history = append(m.history, m.items[m.index].ID)
	}
}

func uniqueItems(items []Item) []Item {
	return lo.UniqBy(items, func(it Item) string { return it.ID })
}
