package volatility

import (
	"fmt"
	"sync"
	"time"
)

// CacheTTL is how long a computed ATR value stays valid.
const CacheTTL = 5 * time.Minute

// CacheEntry is one cached ATR value.
type CacheEntry struct {
	Key    string  `json:"key"` // symbol|timeframe|length
	Value  float64 `json:"value"`
	TsUnix int64   `json:"ts_unix"`
}

// Expired reports whether the entry is older than the TTL at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Unix()-e.TsUnix > int64(CacheTTL.Seconds())
}

// cacheKey builds the canonical cache key.
func cacheKey(symbol, timeframe string, length int) string {
	return fmt.Sprintf("%s|%s|%d", symbol, timeframe, length)
}

// cache is a TTL map of ATR values. Entries are evicted lazily on read.
type cache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]CacheEntry)}
}

// get returns a live entry, evicting it first when stale.
func (c *cache) get(key string, now time.Time) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if entry.Expired(now) {
		delete(c.entries, key)
		return CacheEntry{}, false
	}
	return entry, true
}

func (c *cache) put(entry CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Key] = entry
}

// snapshot returns a copy of all live entries for persistence.
func (c *cache) snapshot(now time.Time) map[string]CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]CacheEntry, len(c.entries))
	for k, e := range c.entries {
		if !e.Expired(now) {
			out[k] = e
		}
	}
	return out
}

// load seeds the cache, dropping anything already expired.
func (c *cache) load(entries map[string]CacheEntry, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range entries {
		if !e.Expired(now) {
			c.entries[k] = e
		}
	}
}
