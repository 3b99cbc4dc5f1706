package store

import "time"

type cacheEntry struct {
	plain    string
	storedAt time.Time
}

// readCache is the bounded in-memory cache of decrypted plaintext. Entries
// older than ttl are never served. When full, the entry with the oldest
// timestamp is evicted. Not safe for concurrent use; guarded by the store.
type readCache struct {
	ttl     time.Duration
	size    int
	entries map[string]cacheEntry
}

func newReadCache(ttl time.Duration, size int) *readCache {
	return &readCache{
		ttl:     ttl,
		size:    size,
		entries: make(map[string]cacheEntry, size),
	}
}

func (c *readCache) get(key string, now time.Time) (string, bool) {
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.plain, true
}

func (c *readCache) put(key, plain string, now time.Time) {
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.size {
		c.evictOldest()
	}
	c.entries[key] = cacheEntry{plain: plain, storedAt: now}
}

func (c *readCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

func (c *readCache) remove(key string) {
	delete(c.entries, key)
}

func (c *readCache) reset() {
	c.entries = make(map[string]cacheEntry, c.size)
}

func (c *readCache) len() int {
	return len(c.entries)
}
