package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries bounds the in-memory cache when no limit is configured
const DefaultMaxEntries = 50000

const cleanupInterval = time.Minute

// cacheEntry represents a single cache entry with expiration
type cacheEntry struct {
	value     []byte // JSON-encoded value
	expiresAt time.Time
}

// MemoryCache is an in-memory implementation of the Cache interface.
// When full it drops the least recently used entry in constant time.
type MemoryCache struct {
	data      *simplelru.LRU[string, *cacheEntry]
	mu        sync.Mutex
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates a new in-memory cache with background cleanup
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	// NewLRU only fails for a non-positive size
	data, _ := simplelru.NewLRU[string, *cacheEntry](maxEntries, nil)
	cache := &MemoryCache{
		data: data,
		stop: make(chan struct{}),
	}

	// Start background cleanup goroutine
	go cache.cleanup()

	return cache
}

// Set stores a value in the cache with the specified TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.Add(key, &cacheEntry{
		value:     data,
		expiresAt: time.Now().Add(ttl),
	})

	return nil
}

// Get retrieves a value from the cache and unmarshals it into dest
func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	entry, exists := m.data.Get(key)
	if exists && time.Now().After(entry.expiresAt) {
		m.data.Remove(key)
		m.mu.Unlock()
		return ErrCacheExpired
	}
	m.mu.Unlock()

	if !exists {
		return ErrCacheNotFound
	}

	// Unmarshal into destination
	return json.Unmarshal(entry.value, dest)
}

// Len returns the number of stored entries, expired ones included until cleanup
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Len()
}

// Close stops the cleanup goroutine
func (m *MemoryCache) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return nil
}

// cleanup runs periodically to remove expired entries
func (m *MemoryCache) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		now := time.Now()
		m.mu.Lock()

		for _, key := range m.data.Keys() {
			if entry, ok := m.data.Peek(key); ok && now.After(entry.expiresAt) {
				m.data.Remove(key)
			}
		}

		m.mu.Unlock()
	}
}
