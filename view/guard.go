package view

import (
	"sync"
	"sync/atomic"
)

// Guard keeps a refresh from being re-entered. A trigger that arrives while
// the previous refresh is still running is dropped, not queued.
type Guard struct {
	mu      sync.Mutex
	skipped atomic.Uint64
}

// Do runs fn unless another Do is in flight. ran is false when fn was skipped.
func (g *Guard) Do(fn func() error) (ran bool, err error) {
	if !g.mu.TryLock() {
		g.skipped.Add(1)
		return false, nil
	}
	defer g.mu.Unlock()
	return true, fn()
}

// Skipped returns how many triggers were dropped.
func (g *Guard) Skipped() uint64 {
	return g.skipped.Load()
}
