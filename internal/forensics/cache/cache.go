// Package cache is a bounded LRU+TTL cache for fetched TokenData, keyed by
// chain and token address. Grounded on the timestampCache pattern: a
// container/list for recency order plus a map for O(1) lookup, guarded by
// a single mutex.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/model"
)

type entry struct {
	key       string
	value     model.TokenData
	expiresAt time.Time
}

// Cache is a fixed-capacity LRU cache with per-entry TTL expiry.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

// New creates a Cache with the given capacity and TTL.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Key builds the cache key from chain and token address. Addresses are
// lowercased so callers never need to normalize before calling Get/Set.
func Key(chain, tokenAddress string) string {
	return strings.ToLower(chain) + ":" + strings.ToLower(tokenAddress)
}

// Get returns the cached value if present and not expired. A cached result
// with zero transactions is treated as a miss, since it almost certainly
// reflects a prior provider failure rather than a genuinely quiet token.
func (c *Cache) Get(key string) (model.TokenData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return model.TokenData{}, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		return model.TokenData{}, false
	}
	if len(e.value.Transactions) == 0 {
		return model.TokenData{}, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set inserts or updates the value for key, evicting the least recently
// used entry if the cache is at capacity.
func (c *Cache) Set(key string, value model.TokenData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	e := &entry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.ll.PushFront(e)
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back != nil {
			c.removeElement(back)
		}
	}
}

// Len reports the number of entries currently held, including any that
// have expired but not yet been evicted by a Get.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	e := el.Value.(*entry)
	delete(c.items, e.key)
}
