// Package cache memoizes parsed series so repeated passes over the same raw
// exports read each file once.
package cache

import (
	"sync"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
)

// Loader parses one raw export into a series.
type Loader interface {
	Load(ref domain.FileRef) (*domain.Series, error)
}

// LoaderFunc adapts a function such as domain.LoadSeries to Loader.
type LoaderFunc func(ref domain.FileRef) (*domain.Series, error)

func (f LoaderFunc) Load(ref domain.FileRef) (*domain.Series, error) { return f(ref) }

// CachedLoader wraps a Loader with an in-memory LRU cache keyed by file name.
// Series are immutable, so cached values are shared between callers.
type CachedLoader struct {
	inner   Loader
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLoader creates a cache decorator around a loader. metrics may be nil.
func NewCachedLoader(inner Loader, maxEntries int, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLoader) Load(ref domain.FileRef) (*domain.Series, error) {
	key := ref.Name()
	if s, ok := c.cache.get(key); ok {
		c.record("hit")
		return s, nil
	}
	c.record("miss")
	s, err := c.inner.Load(ref)
	if err != nil {
		// Failures are not cached.
		return nil, err
	}
	c.cache.put(key, s)
	return s, nil
}

// Len returns the number of cached series.
func (c *CachedLoader) Len() int {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return len(c.cache.entries)
}

func (c *CachedLoader) record(result string) {
	if c.metrics != nil {
		c.metrics.SeriesCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache of series.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.Series
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
