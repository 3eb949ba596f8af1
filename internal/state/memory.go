package state

import (
	"context"
	"sort"
	"sync"

	"github.com/dpe27/restpoll/internal/poll"
)

// MemoryStore is a process-local Store, used by the exec command and tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]poll.ExecutionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]poll.ExecutionState)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*poll.ExecutionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, state poll.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[key] = state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.states))
	for k := range m.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
