package morph

import (
	"container/list"
	"sync"
)

// lookupCache is an LRU cache of dictionary lookups keyed by normalized word.
// A nil cache is valid and caches nothing.
type lookupCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	forms []Form
}

func newLookupCache(capacity int) *lookupCache {
	if capacity <= 0 {
		return nil
	}
	return &lookupCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached forms for word. MoveToFront mutates the list, so Get takes the write lock.
func (c *lookupCache) Get(word string) ([]Form, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[word]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).forms, true
	}
	return nil, false
}

// Set stores forms for word, evicting the least recently used entry when full.
func (c *lookupCache) Set(word string, forms []Form) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[word]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).forms = forms
		return
	}

	c.cache[word] = c.lru.PushFront(&cacheEntry{key: word, forms: forms})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *lookupCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
