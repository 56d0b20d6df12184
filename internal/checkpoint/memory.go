package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore keeps states in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
	writes int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[key]
	return ok, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = s
	m.writes++
	return nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

// Writes returns the number of Set calls so far.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
