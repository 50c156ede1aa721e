package keys

import (
	"container/list"
	"crypto/rsa"
	"sync"
	"time"
)

// publicKeyCache is a TTL + LRU cache for verification keys keyed by kid.
// Verification happens on every authenticated request, so lookups must not
// hit the database on the hot path.
type publicKeyCache struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	items    map[string]*list.Element
	eviction *list.List // front = most recently used
}

type pubCacheEntry struct {
	kid       string
	key       *rsa.PublicKey
	expiresAt time.Time
}

func newPublicKeyCache(maxSize int, ttl time.Duration) *publicKeyCache {
	return &publicKeyCache{
		maxSize:  maxSize,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

func (c *publicKeyCache) get(kid string) (*rsa.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[kid]
	if !exists {
		return nil, false
	}

	entry := elem.Value.(*pubCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.eviction.Remove(elem)
		delete(c.items, kid)
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	return entry.key, true
}

func (c *publicKeyCache) put(kid string, key *rsa.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[kid]; exists {
		entry := elem.Value.(*pubCacheEntry)
		entry.key = key
		entry.expiresAt = time.Now().Add(c.ttl)
		c.eviction.MoveToFront(elem)
		return
	}

	// Evict the least recently used entry when full
	if c.eviction.Len() >= c.maxSize {
		oldest := c.eviction.Back()
		if oldest != nil {
			c.eviction.Remove(oldest)
			delete(c.items, oldest.Value.(*pubCacheEntry).kid)
		}
	}

	elem := c.eviction.PushFront(&pubCacheEntry{
		kid:       kid,
		key:       key,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[kid] = elem
}

func (c *publicKeyCache) invalidate(kid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[kid]; exists {
		c.eviction.Remove(elem)
		delete(c.items, kid)
	}
}
