package main

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock shared by the timing tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDebouncer_FireTwiceWithinInterval(t *testing.T) {
	clock := newFakeClock()
	d := NewDebouncer(0, clock.Now)

	calls := 0
	d.Register(func() { calls++ }, 100*time.Millisecond)

	if !d.Fire() {
		t.Fatalf("first Fire should run the callback")
	}
	clock.Advance(50 * time.Millisecond)
	if d.Fire() {
		t.Fatalf("second Fire within interval should be suppressed")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	clock.Advance(50 * time.Millisecond)
	if !d.Fire() {
		t.Fatalf("Fire after interval should run the callback")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDebouncer_SuppressedCallDoesNotMoveWindow(t *testing.T) {
	clock := newFakeClock()
	d := NewDebouncer(100*time.Millisecond, clock.Now)

	if !d.Allow() {
		t.Fatalf("first Allow should pass")
	}
	clock.Advance(90 * time.Millisecond)
	if d.Allow() {
		t.Fatalf("Allow inside window should fail")
	}
	// Measured from the accepted call, not the rejected one.
	clock.Advance(10 * time.Millisecond)
	if !d.Allow() {
		t.Fatalf("Allow at exactly the interval should pass")
	}
}

func TestDebouncer_NilCallback(t *testing.T) {
	d := NewDebouncer(time.Second, nil)
	if !d.Fire() {
		t.Fatalf("Fire without callback should still report acceptance")
	}
}
