package main

import (
	"context"
	"sync"
	"time"
)

type InMemoryDeduplicationStore struct {
	mu        sync.RWMutex
	processed map[string]time.Time
	now       func() time.Time
}

func NewInMemoryDeduplicationStore() *InMemoryDeduplicationStore {
	return &InMemoryDeduplicationStore{
		processed: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (m *InMemoryDeduplicationStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.processed[messageID]
	return exists, nil
}

func (m *InMemoryDeduplicationStore) MarkProcessed(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processed == nil {
		return errStoreClosed
	}
	m.processed[messageID] = m.now()
	return nil
}

func (m *InMemoryDeduplicationStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-olderThan)
	for id, processedAt := range m.processed {
		if processedAt.Before(cutoff) {
			delete(m.processed, id)
		}
	}
	return nil
}

func (m *InMemoryDeduplicationStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processed)
}

func (m *InMemoryDeduplicationStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = nil
	return nil
}
