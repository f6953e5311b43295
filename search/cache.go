package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/justscrape/models"
)

// entry holds a cached response with its insertion timestamp.
type entry struct {
	response   *models.SearchResponse
	insertedAt time.Time
}

// Cache is a TTL-bounded memoization of search responses, keyed by
// normalized query parameters. It is safe for concurrent use.
//
// Only successful responses are stored. Entries older than the TTL are
// treated as absent and evicted on the access that finds them stale.
// When the cache is full, the single oldest entry by insertion time is
// evicted before insert.
type Cache struct {
	mu         sync.Mutex
	store      map[string]*entry
	ttl        time.Duration
	maxEntries int
}

// NewCache creates a Cache with the given TTL and capacity.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Cache{
		store:      make(map[string]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// cacheKey derives the lookup key. Queries differing only in letter case
// or surrounding whitespace must collide.
func cacheKey(query string, count int) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	h.Write([]byte{':'})
	h.Write([]byte{byte(count >> 8), byte(count)})
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a fresh cached response, or nil on miss. Hits are returned
// as a copy flagged Cached=true with SearchTimeMS zeroed; the stored
// response is never mutated. A stale entry is evicted and reported as a
// miss.
func (c *Cache) Get(query string, count int) *models.SearchResponse {
	key := cacheKey(query, count)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil
	}
	if time.Since(e.insertedAt) >= c.ttl {
		delete(c.store, key)
		return nil
	}

	hit := *e.response
	hit.Cached = true
	hit.SearchTimeMS = 0
	return &hit
}

// Set stores a successful response, evicting the oldest entry by
// insertion time when at capacity. Failed responses are never stored.
func (c *Cache) Set(query string, count int, resp *models.SearchResponse) {
	if resp == nil || !resp.Success {
		return
	}

	key := cacheKey(query, count)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.store {
			if oldestKey == "" || e.insertedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.insertedAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{
		response:   resp,
		insertedAt: time.Now(),
	}
}

// Clear removes all cached responses.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*entry)
}

// Stats returns a snapshot of the cache state.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CacheStats{
		Size:       len(c.store),
		MaxEntries: c.maxEntries,
		TTLSeconds: int64(c.ttl.Seconds()),
	}
}
