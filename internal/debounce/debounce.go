// Package debounce coalesces bursts of triggers into one delayed action per key.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds at most one pending action per key. Scheduling a key that
// already has a pending action replaces it and restarts the delay.
type Debouncer[K comparable] struct {
	mu      sync.Mutex
	pending map[K]*entry
	stopped bool
}

type entry struct {
	timer *time.Timer
}

// New returns an empty Debouncer.
func New[K comparable]() *Debouncer[K] {
	return &Debouncer[K]{pending: make(map[K]*entry)}
}

// Schedule runs fn after delay unless key is scheduled again or cancelled
// first. fn runs on its own goroutine.
func (d *Debouncer[K]) Schedule(key K, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if old, ok := d.pending[key]; ok {
		old.timer.Stop()
	}
	e := &entry{}
	e.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		// A replaced timer whose Stop lost the race must not run.
		if d.pending[key] != e {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = e
}

// Cancel drops the pending action for key. It reports whether one existed.
func (d *Debouncer[K]) Cancel(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending reports whether key has a scheduled action.
func (d *Debouncer[K]) Pending(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len returns the number of pending actions.
func (d *Debouncer[K]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending action and ignores later Schedule calls.
func (d *Debouncer[K]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
}
