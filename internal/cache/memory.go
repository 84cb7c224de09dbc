package cache

import (
	"sort"
	"sync"
)

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the entry for key, or false if absent.
func (s *MemoryStore) Get(key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Put inserts or replaces an entry.
func (s *MemoryStore) Put(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// List returns metadata for all stored entries, oldest first.
func (s *MemoryStore) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]Meta, 0, len(s.entries))
	for _, e := range s.entries {
		metas = append(metas, Meta{Key: e.Key, FetchedAt: e.FetchedAt, TTL: e.TTL})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].FetchedAt.Before(metas[j].FetchedAt)
	})
	return metas, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
