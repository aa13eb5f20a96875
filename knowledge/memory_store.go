package knowledge

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded snapshot in memory. It is meant for tests and
// throwaway processes.
type MemoryStore struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return decodeSnapshot(m.data)
}

func (m *MemoryStore) Save(ctx context.Context, g *Graph) error {
	data, err := encodeSnapshot(g)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = data
	m.saves++
	return nil
}

// Saves reports how many snapshots were written.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.saves
}

func (m *MemoryStore) Close() error {
	return nil
}
