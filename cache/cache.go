package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// entry holds a cached value with its absolute expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL cache for upstream responses.
// It is safe for concurrent use.
//
// Expired entries are evicted lazily on Get; there is no background sweep.
// Set is last-write-wins: two callers that miss the same key at the same
// time may both populate it and the second write is kept.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now as the cache's notion of current time.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache. maxEntries <= 0 means unbounded.
func New(maxEntries int, opts ...Option) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a cache key from a resource name and its parameters.
// Every part is quoted, so distinct part lists never produce the same key.
func Key(resource string, params ...string) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(resource))
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(p))
	}
	return b.String()
}

// Get returns a copy of the value stored under key. An entry at or past
// its expiry is deleted and reported as absent.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, still := c.store[key]; still && cur == e {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return clone(e.value), true
}

// Set stores a copy of value under key for ttl. A non-positive ttl stores
// nothing. If the cache is at capacity, expired entries are dropped first,
// then an arbitrary entry is evicted to make room.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.store[key]; !exists && c.maxEntries > 0 && len(c.store) >= c.maxEntries {
		c.evictLocked(now)
	}

	c.store[key] = &entry{
		value:     clone(value),
		expiresAt: now.Add(ttl),
	}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// evictLocked frees at least one slot. Caller holds c.mu.
func (c *Cache) evictLocked(now time.Time) {
	for k, e := range c.store {
		if !now.Before(e.expiresAt) {
			delete(c.store, k)
		}
	}
	if len(c.store) < c.maxEntries {
		return
	}
	// Map iteration order is random in Go.
	for k := range c.store {
		delete(c.store, k)
		break
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
