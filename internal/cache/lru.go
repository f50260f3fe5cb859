package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is a cached image with its bookkeeping.
type entry struct {
	key     string
	value   []byte
	expires time.Time // zero when the cache has no TTL
}

// LRU is a thread-safe least-recently-used byte cache bounded by item
// count, total size and entry age.
type LRU struct {
	mu           sync.Mutex
	maxItems     int
	maxSizeBytes int64
	ttl          time.Duration
	now          func() time.Time
	currentSize  int64
	items        map[string]*list.Element
	evictionList *list.List

	// Metrics
	hits      int64
	misses    int64
	evictions int64
	expired   int64
}

// NewLRU creates an LRU cache. Zero limits mean unlimited; a zero ttl keeps
// entries until they are evicted.
func NewLRU(maxItems int, maxSizeBytes int64, ttl time.Duration) *LRU {
	return &LRU{
		maxItems:     maxItems,
		maxSizeBytes: maxSizeBytes,
		ttl:          ttl,
		now:          time.Now,
		items:        make(map[string]*list.Element),
		evictionList: list.New(),
	}
}

// Get returns the value for key. Expired entries are dropped and count as
// misses.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := elem.Value.(*entry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.removeElement(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	c.evictionList.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put adds or replaces the value for key. The slice is stored as-is and
// must not be modified afterwards.
func (c *LRU) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	size := int64(len(value))

	if elem, ok := c.items[key]; ok {
		c.evictionList.MoveToFront(elem)
		e := elem.Value.(*entry)
		c.currentSize += size - int64(len(e.value))
		e.value = value
		e.expires = expires
		c.evict()
		return
	}

	elem := c.evictionList.PushFront(&entry{key: key, value: value, expires: expires})
	c.items[key] = elem
	c.currentSize += size

	c.evict()
}

// evict removes entries until cache is within limits. A single entry larger
// than maxSizeBytes is kept.
func (c *LRU) evict() {
	for c.evictionList.Len() > 1 {
		overItems := c.maxItems > 0 && c.evictionList.Len() > c.maxItems
		overSize := c.maxSizeBytes > 0 && c.currentSize > c.maxSizeBytes
		if !overItems && !overSize {
			return
		}
		c.removeElement(c.evictionList.Back())
		c.evictions++
	}
}

func (c *LRU) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.currentSize -= int64(len(e.value))
}

// Delete removes a key from the cache.
func (c *LRU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Clear removes all entries from the cache.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictionList.Init()
	c.currentSize = 0
}

// Len returns the number of items in the cache.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionList.Len()
}

// Size returns the total size of items in the cache.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Stats holds cache statistics.
type Stats struct {
	Items     int     `json:"items"`
	Size      int64   `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Expired   int64   `json:"expired"`
	HitRate   float64 `json:"hitRate"`
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

// Stats returns current cache statistics.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Items:     c.evictionList.Len(),
		Size:      c.currentSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		HitRate:   hitRate(c.hits, c.misses),
	}
}
