package catalog

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Tags attached to cached responses.
const (
	TagCategory    = "Category"
	TagProductList = "Product:LIST"
)

// ProductTag is the tag of every cached response that contains product id.
func ProductTag(id int) string {
	return "Product:" + strconv.Itoa(id)
}

type cacheEntry struct {
	body []byte
	tags []string
}

// responseCache keeps raw catalog responses while they are in use. An entry
// not read for longer than retention is dropped: every hit extends its TTL.
// Entries can also be dropped by tag.
//
// Each invalidation advances a generation and records it on the tags it named.
// A response fetched before that point is not stored under those tags.
type responseCache struct {
	entries *ttlcache.Cache[string, cacheEntry]

	mu          sync.Mutex
	generation  uint64
	invalidated map[string]uint64
}

func newResponseCache(retention time.Duration) *responseCache {
	return &responseCache{
		entries:     ttlcache.New[string, cacheEntry](ttlcache.WithTTL[string, cacheEntry](retention)),
		invalidated: make(map[string]uint64),
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	item := c.entries.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value().body, true
}

// begin returns the generation a fetch starts from. Pass it to set.
func (c *responseCache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// set stores body under key unless one of tags was invalidated after generation
// since. It reports whether the body was stored.
func (c *responseCache) set(key string, body []byte, tags []string, since uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tags {
		if c.invalidated[t] > since {
			return false
		}
	}
	c.entries.DeleteExpired()
	c.entries.Set(key, cacheEntry{body: body, tags: tags}, ttlcache.DefaultTTL)
	return true
}

// invalidate drops every entry carrying any of tags and returns how many were dropped.
func (c *responseCache) invalidate(tags ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, t := range tags {
		c.invalidated[t] = c.generation
	}

	var keys []string
	c.entries.Range(func(item *ttlcache.Item[string, cacheEntry]) bool {
		if slices.ContainsFunc(item.Value().tags, func(t string) bool { return slices.Contains(tags, t) }) {
			keys = append(keys, item.Key())
		}
		return true
	})
	for _, key := range keys {
		c.entries.Delete(key)
	}
	return len(keys)
}

func (c *responseCache) len() int {
	c.entries.DeleteExpired()
	return c.entries.Len()
}
