package knowledge

import (
	"container/list"
	"slices"
	"sync"
)

// DefaultCacheSize is the number of query embeddings kept by a Retriever.
const DefaultCacheSize = 256

type cacheEntry struct {
	key string
	vec []float32
}

// embeddingCache is a small LRU of query embeddings.
type embeddingCache struct {
	mu    sync.Mutex
	size  int
	ll    *list.List
	items map[string]*list.Element
}

func newEmbeddingCache(size int) *embeddingCache {
	return &embeddingCache{
		size:  size,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *embeddingCache) get(key string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return slices.Clone(el.Value.(*cacheEntry).vec), true
}

func (c *embeddingCache) put(key string, vec []float32) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).vec = slices.Clone(vec)
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, vec: slices.Clone(vec)})
	for c.ll.Len() > c.size {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *embeddingCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
