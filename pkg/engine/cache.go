package engine

import (
	"container/list"
	"sync"
)

// VectorCache is an LRU cache of computed embeddings keyed by input text.
// The pipeline is deterministic, so a cached vector is identical to a
// recomputed one.
type VectorCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	// Full mutex: Get moves entries to the front of the LRU list.
	mu sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewVectorCache creates a cache with the given capacity.
func NewVectorCache(capacity int) *VectorCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &VectorCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached vector for key if present.
func (c *VectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the vector for key, evicting the oldest entry if at capacity.
func (c *VectorCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	entry := &cacheEntry{key: key, value: value}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
