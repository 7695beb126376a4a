package cotask

import (
	"sync"
)

// Event is a one-shot signal carrying a value. Frames awaiting it
// suspend until Set is called; every waiter is woken, and later awaits
// complete at once.
type Event[V any] struct {
	mu      sync.Mutex
	set     bool
	v       V
	waiters []Resumer
}

// NewEvent returns an unset event.
func NewEvent[V any]() *Event[V] {
	return &Event[V]{}
}

// Set signals the event with v and wakes every waiting frame. It
// reports false if the event was already set, in which case v is
// dropped.
func (ev *Event[V]) Set(v V) bool {
	ev.mu.Lock()
	if ev.set {
		ev.mu.Unlock()
		return false
	}
	ev.set = true
	ev.v = v
	waiters := ev.waiters
	ev.waiters = nil
	ev.mu.Unlock()

	for _, r := range waiters {
		r.Resume()
	}
	return true
}

// IsSet reports whether Set was called.
func (ev *Event[V]) IsSet() bool {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.set
}

// Value returns the value the event was set with.
func (ev *Event[V]) Value() (V, bool) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.v, ev.set
}

type eventWait[V any] struct {
	ev *Event[V]
}

func (a eventWait[V]) Ready() bool { return a.ev.IsSet() }

func (a eventWait[V]) Suspend(r Resumer) {
	a.ev.mu.Lock()
	if a.ev.set {
		a.ev.mu.Unlock()
		r.Resume()
		return
	}
	a.ev.waiters = append(a.ev.waiters, r)
	a.ev.mu.Unlock()
}

func (a eventWait[V]) Resume() V {
	v, _ := a.ev.Value()
	return v
}

// WaitFor is the suspension point of waiting for ev to be set.
func WaitFor[V any](ev *Event[V]) Awaiter[V] {
	return eventWait[V]{ev: ev}
}

// Wait suspends the frame until ev is set and returns its value.
func Wait[T, V any](co *Co[T], ev *Event[V]) V {
	return Await(co, WaitFor(ev))
}

func (ev *Event[V]) awaiter() Awaiter[any] {
	return Erase(WaitFor(ev))
}
