package store

import (
	"context"
	"sync"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]any)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Put(_ context.Context, rec model.CanonicalRecord) error {
	if err := checkKeys(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[rec.DeviceID+"|"+rec.Timestamp] = rec.Item()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, deviceID, timestamp string) (model.CanonicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[deviceID+"|"+timestamp]
	if !ok {
		return model.CanonicalRecord{}, ErrNotFound
	}
	return model.RecordFromItem(item), nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
