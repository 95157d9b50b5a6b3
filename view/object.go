// Package view binds decoded snapshots to remote addresses.
//
// An Object is Unbound while its address is zero and Bound otherwise.
// Setting an address decodes only when the address changed, the previous
// decode failed, or the object always refreshes. Setting zero resets the
// state to its defaults. A failed decode keeps the last good snapshot.
package view

import (
	"sync"
	"sync/atomic"

	"memview/pod"
	"memview/process"
)

// DecodeFunc fills state from the remote object at addr. addressChanged is
// true on the first decode at a new address, so identity fields can be read
// once and reused afterwards. state starts as a copy of the current snapshot
// (or the defaults after an address change); reference fields in it are
// shared with that snapshot and must be replaced, not mutated.
type DecodeFunc[T any] func(r *pod.Reader, addr process.ProcessMemoryAddress, state *T, addressChanged bool) error

// Option configures an Object.
type Option[T any] func(*Object[T])

// AlwaysRefresh makes every SetAddress decode, even when the address is unchanged.
func AlwaysRefresh[T any]() Option[T] {
	return func(o *Object[T]) {
		o.alwaysRefresh = true
	}
}

// WithReset sets the function that puts a zero T into its documented defaults.
func WithReset[T any](reset func(*T)) Option[T] {
	return func(o *Object[T]) {
		o.reset = reset
	}
}

// Object is a lifecycle-managed view of one remote object. It is safe for
// concurrent use; Snapshot never observes a half-decoded state.
type Object[T any] struct {
	r             *pod.Reader
	decode        DecodeFunc[T]
	reset         func(*T)
	alwaysRefresh bool

	mu    sync.RWMutex
	addr  process.ProcessMemoryAddress
	state T
	err   error
	// dirty is set when the last decode failed, so the same address is retried.
	dirty bool
	// pendingChange carries addressChanged across a failed decode.
	pendingChange bool

	decodes atomic.Uint64
}

// New returns an Unbound object holding the default state.
func New[T any](r *pod.Reader, decode DecodeFunc[T], options ...Option[T]) *Object[T] {
	o := &Object[T]{r: r, decode: decode}
	for _, opt := range options {
		opt(o)
	}
	o.state = o.defaults()
	return o
}

func (o *Object[T]) defaults() T {
	var t T
	if o.reset != nil {
		o.reset(&t)
	}
	return t
}

// SetAddress moves the object to addr and decodes if needed.
func (o *Object[T]) SetAddress(addr process.ProcessMemoryAddress) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	changed := addr != o.addr || o.pendingChange
	if !changed && !o.dirty && !o.alwaysRefresh {
		return nil
	}

	if addr == 0 {
		o.addr = 0
		o.state = o.defaults()
		o.err = nil
		o.dirty = false
		o.pendingChange = false
		return nil
	}

	o.addr = addr
	next := o.state
	if changed {
		next = o.defaults()
	}

	o.decodes.Add(1)
	if err := o.decode(o.r, addr, &next, changed); err != nil {
		o.err = err
		o.dirty = true
		o.pendingChange = changed
		return err
	}

	o.state = next
	o.err = nil
	o.dirty = false
	o.pendingChange = false
	return nil
}

// Refresh re-applies the current address. It decodes only for objects that
// always refresh or whose last decode failed.
func (o *Object[T]) Refresh() error {
	return o.SetAddress(o.Address())
}

func (o *Object[T]) Address() process.ProcessMemoryAddress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.addr
}

// Bound reports whether the object has a non-zero address.
func (o *Object[T]) Bound() bool {
	return o.Address() != 0
}

// Snapshot returns a copy of the last good state.
func (o *Object[T]) Snapshot() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Err returns the error of the last decode, or nil if it succeeded.
func (o *Object[T]) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.err
}

// Decodes returns how many times decode has been invoked.
func (o *Object[T]) Decodes() uint64 {
	return o.decodes.Load()
}
