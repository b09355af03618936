package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps settings for the life of the process.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	defaults Settings
	saves    int

	// FailWrites makes Save fail, for exercising write-error paths.
	FailWrites error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(defaults Settings) *MemoryStore {
	return &MemoryStore{defaults: defaults}
}

// Seed stores raw bytes as if written by an earlier session.
func (m *MemoryStore) Seed(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), raw...)
}

func (m *MemoryStore) Load(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return m.defaults, nil
	}
	return Decode(m.data, m.defaults)
}

func (m *MemoryStore) Save(ctx context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return &WriteError{Err: m.FailWrites}
	}
	data, err := Encode(s)
	if err != nil {
		return &WriteError{Err: err}
	}
	m.data = data
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
