package svg

import (
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes rendered markup for one processing session. Entries are
// never evicted; create a new Cache per session.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
	group   singleflight.Group

	lookups atomic.Int64
	misses  atomic.Int64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// GetOrCompute returns the cached value for key, or runs compute once and
// stores its result. Concurrent callers for the same key share one compute.
func (c *Cache) GetOrCompute(key string, compute func() string) string {
	c.lookups.Add(1)

	c.mu.RLock()
	value, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return value
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		c.misses.Add(1)
		result := compute()

		c.mu.Lock()
		c.entries[key] = result
		c.mu.Unlock()
		return result, nil
	})
	return v.(string)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports lookups answered from the cache and lookups that computed.
func (c *Cache) Stats() (hits, misses int64) {
	misses = c.misses.Load()
	return c.lookups.Load() - misses, misses
}

// ContentIdentifier derives a source identifier from the bytes themselves,
// for sources that arrive without a stable identifier.
func ContentIdentifier(content []byte) string {
	sum := blake2b.Sum256(content)
	return "blake2b:" + hex.EncodeToString(sum[:])
}

// CacheKey hashes the source identity together with the attributes sorted
// by name, so insertion order does not affect the key.
func CacheKey(identifier string, modTime int64, attrs *Attributes) string {
	var pairs [][2]string
	if attrs != nil {
		pairs = attrs.Sorted()
	}
	payload, _ := json.Marshal(struct {
		Identifier string      `json:"i"`
		ModTime    int64       `json:"m"`
		Attributes [][2]string `json:"a"`
	}{identifier, modTime, pairs})

	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
