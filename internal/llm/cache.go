package llm

import (
	"sync"
	"time"

	"github.com/calloway/ledgerflow/internal/engine"
)

type cacheEntry struct {
	expiry time.Time
	result engine.StageResult
}

// resultCache is a thread-safe TTL cache of classification results keyed by
// normalized description. Expired entries are dropped lazily on read and
// swept when the cache is written to.
type resultCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.Mutex
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (engine.StageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return engine.StageResult{}, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.entries, key)
		return engine.StageResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result engine.StageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{result: result, expiry: now.Add(c.ttl)}
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
