package retrieval

import (
	"container/list"
	"sync"
	"time"
)

// Store is the cache contract injected into the orchestrator. Absence is
// reported as (nil, nil); a non-nil error means the store is unavailable and
// the orchestrator degrades to miss behavior.
type Store interface {
	// Get returns the cached response for a key, or nil when absent/expired
	Get(key CacheKey) (*Response, error)

	// Set stores a response under a key with a per-entry TTL, replacing
	// any existing entry
	Set(key CacheKey, value *Response, ttl time.Duration) error
}

// cacheEntry represents a single cache entry with its own TTL
type cacheEntry struct {
	key        CacheKey
	response   *Response
	insertedAt time.Time
	ttl        time.Duration
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired() bool {
	return time.Since(e.insertedAt) > e.ttl
}

// ResponseCache is an in-memory LRU cache with per-entry TTL for retrieval
// responses. Thread-safe; entries are idempotent re-derivations of the same
// logical query, so concurrent writes for one key are last-writer-wins.
// Cached responses are treated as immutable by all readers.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
	lruList *list.List // Doubly linked list for LRU tracking
	maxSize int
	hits    uint64
	misses  uint64
}

// NewResponseCache creates a new ResponseCache bounded to maxSize entries
func NewResponseCache(maxSize int) *ResponseCache {
	return &ResponseCache{
		entries: make(map[CacheKey]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Get retrieves a cached response.
// Returns nil if not found or expired; the error is always nil for the
// in-memory store (it cannot become unavailable).
func (c *ResponseCache) Get(key CacheKey) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]

	if !exists || entry.isExpired() {
		c.misses++
		if exists {
			// Remove expired entry
			c.removeEntry(key)
		}
		return nil, nil
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.response, nil
}

// Set stores a response with the given TTL, replacing any existing entry
func (c *ResponseCache) Set(key CacheKey, value *Response, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.response = value
		entry.insertedAt = time.Now()
		entry.ttl = ttl
		c.lruList.MoveToFront(entry.element)
		return nil
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		response:   value,
		insertedAt: time.Now(),
		ttl:        ttl,
	}

	entry.element = c.lruList.PushFront(key)
	c.entries[key] = entry
	return nil
}

// Invalidate removes a specific cache entry
func (c *ResponseCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key)
}

// Clear removes all entries from the cache
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[CacheKey]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// calculateHitRate calculates the cache hit rate
func (c *ResponseCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *ResponseCache) removeEntry(key CacheKey) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *ResponseCache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		key := backElement.Value.(CacheKey)
		c.lruList.Remove(backElement)
		delete(c.entries, key)
	}
}

// CleanupExpired removes all expired entries
func (c *ResponseCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]CacheKey, 0)
	for key, entry := range c.entries {
		if entry.isExpired() {
			expiredKeys = append(expiredKeys, key)
		}
	}

	for _, key := range expiredKeys {
		c.removeEntry(key)
	}

	return len(expiredKeys)
}

// StartCleanupWorker starts a background worker to periodically clean up
// expired entries
func (c *ResponseCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
