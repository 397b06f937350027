package store

import (
	"context"
	"sync"

	"github.com/i474232898/sunshine-wear/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory Weather State Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: preference key, value: text value
	data map[string]string

	watchers watchers
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// Load returns the current snapshot, with defaults for keys never written.
func (s *MemoryStore) Load(_ context.Context) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fromValues(s.data), nil
}

// Replace writes all four keys under one lock and then notifies watchers.
func (s *MemoryStore) Replace(_ context.Context, snapshot weather.Snapshot) error {
	s.mu.Lock()
	for k, v := range toValues(snapshot) {
		s.data[k] = v
	}
	s.mu.Unlock()

	s.watchers.notify(snapshot)
	return nil
}

// Watch registers fn for change notifications.
func (s *MemoryStore) Watch(fn func(weather.Snapshot)) func() {
	return s.watchers.add(fn)
}

// Close is a no-op kept for symmetry with SQLiteStore.
func (s *MemoryStore) Close() error {
	return nil
}
