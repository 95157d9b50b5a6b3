package view

import (
	"sync"
	"sync/atomic"
)

// Cache memoizes values that never change for a given key, such as the name
// behind an immutable definition pointer. It is filled from concurrent
// decodes and cleared on invalidation events; it is passed to whoever needs
// it rather than held globally.
type Cache[K comparable, V any] struct {
	m sync.Map
	n atomic.Int64
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{}
}

// GetOrLoad returns the cached value for key, loading it on a miss. Failed
// loads are not cached. Concurrent loads of one key may both run; the first
// stored value wins.
func (c *Cache[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if v, ok := c.m.Load(key); ok {
		return v.(V), nil
	}
	v, err := load(key)
	if err != nil {
		return v, err
	}
	actual, loaded := c.m.LoadOrStore(key, v)
	if !loaded {
		c.n.Add(1)
	}
	return actual.(V), nil
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.m.Clear()
	c.n.Store(0)
}

func (c *Cache[K, V]) Len() int {
	return int(c.n.Load())
}
