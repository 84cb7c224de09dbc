// Package cache provides the content-addressed fetch cache.
//
// The cache keeps an in-memory LRU index over a pluggable key-value
// Store, so the storage medium (memory, SQLite) is an implementation
// detail. Entries carry a TTL; an expired entry is treated as absent.
// Store I/O failures degrade to cache-miss behavior and are never fatal.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is a cached response with metadata. Entries are never mutated in
// place; writers insert or replace whole entries.
type Entry struct {
	Key        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	FetchedAt  time.Time
	TTL        time.Duration
}

// Expired reports whether the entry is past its TTL.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.TTL
}

// Meta is the index-level view of a stored entry.
type Meta struct {
	Key       string
	FetchedAt time.Time
	TTL       time.Duration
}

// Store is the key-value contract backing the cache.
type Store interface {
	// Get returns the entry for key, or false if absent.
	Get(key string) (*Entry, bool, error)

	// Put inserts or replaces an entry.
	Put(entry *Entry) error

	// Delete removes an entry; deleting an absent key is not an error.
	Delete(key string) error

	// List returns metadata for all stored entries, oldest first.
	List() ([]Meta, error)

	Close() error
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a capacity-bounded TTL cache with LRU eviction.
type Cache struct {
	mu       sync.Mutex
	store    Store
	capacity int

	index map[string]*list.Element
	order *list.List // front = least recently used

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache over the given store, preloading the index from any
// entries the store already holds.
func New(store Store, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache{
		store:    store,
		capacity: capacity,
		index:    make(map[string]*list.Element),
		order:    list.New(),
	}

	metas, err := store.List()
	if err != nil {
		// Unreadable backing store degrades to an empty cache.
		return c
	}
	now := time.Now()
	for i := range metas {
		m := metas[i]
		if now.Sub(m.FetchedAt) > m.TTL {
			_ = store.Delete(m.Key)
			continue
		}
		c.index[m.Key] = c.order.PushBack(&m)
	}
	return c
}

// Get returns a live (non-expired) entry or a miss.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	meta := elem.Value.(*Meta)
	if time.Since(meta.FetchedAt) > meta.TTL {
		c.removeLocked(key, elem)
		c.misses++
		return nil, false
	}

	entry, found, err := c.store.Get(key)
	if err != nil || !found {
		// Backing store failure is a miss, not an error.
		c.removeLocked(key, elem)
		c.misses++
		return nil, false
	}

	c.order.MoveToBack(elem)
	c.hits++
	return entry, true
}

// Put inserts or replaces an entry, evicting least-recently-used entries
// while over capacity. Store failures are swallowed: the next Get simply
// misses.
func (c *Cache) Put(entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Put(entry); err != nil {
		return
	}

	if elem, ok := c.index[entry.Key]; ok {
		elem.Value = &Meta{Key: entry.Key, FetchedAt: entry.FetchedAt, TTL: entry.TTL}
		c.order.MoveToBack(elem)
	} else {
		c.index[entry.Key] = c.order.PushBack(&Meta{Key: entry.Key, FetchedAt: entry.FetchedAt, TTL: entry.TTL})
	}

	for len(c.index) > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*Meta).Key, oldest)
		c.evictions++
	}
}

// removeLocked drops an entry from index and store. Caller holds c.mu.
func (c *Cache) removeLocked(key string, elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, key)
	_ = c.store.Delete(key)
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.index),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Close closes the backing store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Fingerprint derives the cache key for a request: method, normalized URL
// and the values of cache-relevant headers, hashed to a hex string.
func Fingerprint(method, normalizedURL string, headers http.Header, relevant ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(normalizedURL))

	sort.Strings(relevant)
	for _, name := range relevant {
		if v := headers.Get(name); v != "" {
			h.Write([]byte{0})
			h.Write([]byte(strings.ToLower(name)))
			h.Write([]byte{'='})
			h.Write([]byte(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
