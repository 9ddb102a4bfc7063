package main

import (
	"sync"
	"time"
)

// Debouncer limits how often a callback may fire. The interval is measured
// between invocation starts, so a slow callback does not extend the window.
//
// Thread-safe: edge watchers for both channels of an encoder share one guard.
type Debouncer struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	callback func()
	now      func() time.Time
}

// NewDebouncer returns a guard with the given minimum interval.
// A nil clock means time.Now.
func NewDebouncer(interval time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{interval: interval, now: now}
}

// Register stores the callback and replaces the interval.
func (d *Debouncer) Register(callback func(), interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = callback
	d.interval = interval
}

// Allow reports whether the interval has elapsed since the last accepted
// call and, if so, records now as the new reference point.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	return true
}

// Fire invokes the registered callback if the interval has elapsed.
// It returns true when the callback ran.
func (d *Debouncer) Fire() bool {
	if !d.Allow() {
		return false
	}

	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}
