package cotask

import (
	"sync"
)

// Queue is a FIFO shared between producers on any goroutine and frames
// consuming it with Pop. Items are delivered in push order, each to
// exactly one consumer. A push while consumers wait hands the item
// straight to the one that has waited longest.
type Queue[E any] struct {
	mu      sync.Mutex
	items   []E
	waiters []*pop[E]
	closed  bool
}

// NewQueue returns an empty queue.
func NewQueue[E any]() *Queue[E] {
	return &Queue[E]{}
}

// Push appends e, or hands it to a waiting consumer. It returns
// ErrClosed after Close.
func (q *Queue[E]) Push(e E) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	w := q.handoffLocked(e)
	if w == nil {
		q.items = append(q.items, e)
	}
	q.mu.Unlock()
	if w != nil {
		w.r.Resume()
	}
	return nil
}

// handoffLocked gives e to the longest-waiting live consumer and
// returns it, or returns nil when no consumer waits.
func (q *Queue[E]) handoffLocked(e E) *pop[E] {
	for len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		if w.r.Done() {
			// The consumer was destroyed while waiting.
			continue
		}
		w.item, w.ok = e, true
		return w
	}
	return nil
}

// TryPop removes the oldest item without waiting.
func (q *Queue[E]) TryPop() (E, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue[E]) popLocked() (E, bool) {
	var zero E
	if len(q.items) == 0 {
		return zero, false
	}
	e := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return e, true
}

// Len returns the number of queued items.
func (q *Queue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close was called.
func (q *Queue[E]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops the queue. Waiting consumers are woken with no item;
// items already queued can still be popped.
func (q *Queue[E]) Close() {
	q.mu.Lock()
	q.closed = true
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		w.r.Resume()
	}
}

type pop[E any] struct {
	q    *Queue[E]
	r    Resumer
	item E
	ok   bool
}

func (a *pop[E]) Ready() bool {
	a.q.mu.Lock()
	defer a.q.mu.Unlock()
	a.item, a.ok = a.q.popLocked()
	return a.ok || a.q.closed
}

func (a *pop[E]) Suspend(r Resumer) {
	a.q.mu.Lock()
	if item, ok := a.q.popLocked(); ok {
		a.item, a.ok = item, true
		a.q.mu.Unlock()
		r.Resume()
		return
	}
	if a.q.closed {
		a.q.mu.Unlock()
		r.Resume()
		return
	}
	a.r = r
	a.q.waiters = append(a.q.waiters, a)
	a.q.mu.Unlock()
}

// cancel runs when the consumer is destroyed while waiting. An item
// already handed to it goes back to the head of the queue, or to the
// next waiting consumer.
func (a *pop[E]) cancel() {
	q := a.q
	q.mu.Lock()
	for i, w := range q.waiters {
		if w == a {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	if !a.ok {
		q.mu.Unlock()
		return
	}
	e := a.item
	var zero E
	a.item, a.ok = zero, false
	w := q.handoffLocked(e)
	if w == nil {
		q.items = append([]E{e}, q.items...)
	}
	q.mu.Unlock()
	if w != nil {
		w.r.Resume()
	}
}

func (a *pop[E]) Resume() Popped[E] {
	return Popped[E]{Item: a.item, OK: a.ok}
}

// Popped is the value of awaiting a queue. OK is false when the queue
// was closed and drained.
type Popped[E any] struct {
	Item E
	OK   bool
}

func (p Popped[E]) unpack() (any, error) {
	if !p.OK {
		return nil, ErrClosed
	}
	return p.Item, nil
}

// PopFrom is the suspension point of waiting for the next item of q.
func PopFrom[E any](q *Queue[E]) Awaiter[Popped[E]] {
	return &pop[E]{q: q}
}

// Pop suspends the frame until q has an item and returns it. It
// returns false once q is closed and empty.
func Pop[T, E any](co *Co[T], q *Queue[E]) (E, bool) {
	p := Await(co, PopFrom(q))
	return p.Item, p.OK
}

func (q *Queue[E]) awaiter() Awaiter[any] {
	return Erase(PopFrom(q))
}
