package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds MemoryStore when no capacity is given.
const DefaultMemoryCapacity = 256

// MemoryStore is a RunStore for a single local process. Once full, the
// oldest run is evicted.
type MemoryStore struct {
	capacity int

	mu    sync.Mutex
	runs  map[string]Run
	order []string
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity runs.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity, runs: make(map[string]Run)}
}

// PutRun stores a copy of run.
func (m *MemoryStore) PutRun(_ context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run ID is required")
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().Unix()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; !exists {
		m.order = append(m.order, run.ID)
		if len(m.order) > m.capacity {
			delete(m.runs, m.order[0])
			m.order = m.order[1:]
		}
	}
	m.runs[run.ID] = *run
	return nil
}

// GetRun returns a copy of the stored run.
func (m *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}
