package view

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sync"

	"memview/process"

	"golang.org/x/sync/errgroup"
)

// Addressable is a child a Collection can move between addresses: an
// *Object, or a view that owns one and refreshes its own children.
type Addressable interface {
	SetAddress(addr process.ProcessMemoryAddress) error
}

// Collection is a set of child objects keyed by a stable identity, such as
// a name or a slot index.
type Collection[K cmp.Ordered, V Addressable] struct {
	factory  func(key K) V
	parallel int

	mu    sync.RWMutex
	items map[K]V
}

// NewCollection returns an empty collection. factory creates the object for
// a key seen for the first time. parallel bounds how many children are
// re-addressed at once; values below 2 reconcile sequentially.
func NewCollection[K cmp.Ordered, V Addressable](factory func(key K) V, parallel int) *Collection[K, V] {
	return &Collection[K, V]{
		factory:  factory,
		parallel: parallel,
		items:    make(map[K]V),
	}
}

// Reconcile brings the collection in line with addrs. Keys missing from
// addrs, or mapped to zero, are removed. Surviving children are
// re-addressed in place through their own SetAddress, keeping whatever they
// cached, and new keys get a fresh child. Child decode failures are joined into the returned error;
// they never stop the other children.
func (c *Collection[K, V]) Reconcile(addrs map[K]process.ProcessMemoryAddress) error {
	c.mu.Lock()
	for key := range c.items {
		if addrs[key] == 0 {
			delete(c.items, key)
		}
	}
	type update struct {
		obj  V
		addr process.ProcessMemoryAddress
	}
	updates := make([]update, 0, len(addrs))
	for key, addr := range addrs {
		if addr == 0 {
			continue
		}
		obj, ok := c.items[key]
		if !ok {
			obj = c.factory(key)
			c.items[key] = obj
		}
		updates = append(updates, update{obj, addr})
	}
	c.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	apply := func(u update) {
		if err := u.obj.SetAddress(u.addr); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	if c.parallel < 2 {
		for _, u := range updates {
			apply(u)
		}
		return errors.Join(errs...)
	}

	var g errgroup.Group
	g.SetLimit(c.parallel)
	for _, u := range updates {
		g.Go(func() error {
			apply(u)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (c *Collection[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.items[key]
	return obj, ok
}

// Keys returns the keys in ascending order.
func (c *Collection[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.items))
}

func (c *Collection[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Snapshot returns the current state of every object in c.
func Snapshot[K cmp.Ordered, T any](c *Collection[K, *Object[T]]) map[K]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[K]T, len(c.items))
	for key, obj := range c.items {
		out[key] = obj.Snapshot()
	}
	return out
}
