package cotask

import (
	"sync"
	"time"
)

// Awaiter is a suspension point. Ready is checked first; if it returns
// true the frame does not suspend and Resume is called right away.
// Otherwise the frame suspends and Suspend is called, on the resuming
// side, with a Resumer it must hand to whatever will wake the frame.
// Resume returns the value of the await once the frame runs again.
//
// Suspend must not block beyond what the suspension point intends. An
// awaiter value is used for a single await.
type Awaiter[R any] interface {
	Ready() bool
	Suspend(r Resumer)
	Resume() R
}

type waker interface {
	wake(gen uint64)
	stale(gen uint64) bool
	driverOf() Driver
}

// Resumer wakes a frame suspended on one suspension point. It is safe
// to use from any goroutine. Resume does not run the frame; it posts
// the frame to its driver, or to its owner when the frame has no
// driver. Only the first Resume of a suspension counts.
type Resumer struct {
	w   waker
	gen uint64
}

// Resume marks the suspension as over and schedules the frame.
func (r Resumer) Resume() {
	if r.w != nil {
		r.w.wake(r.gen)
	}
}

// Done reports whether the suspension is over, because it was resumed
// or because the frame was destroyed.
func (r Resumer) Done() bool {
	return r.w == nil || r.w.stale(r.gen)
}

// Driver returns the driver of the suspended frame, or nil when its
// owner drives it.
func (r Resumer) Driver() Driver {
	if r.w == nil {
		return nil
	}
	return r.w.driverOf()
}

type never struct{}

func (never) Ready() bool { return true }
func (never) Suspend(Resumer) {}
func (never) Resume() struct{} { return struct{}{} }

type always struct{}

func (always) Ready() bool { return false }
func (always) Suspend(r Resumer) { r.Resume() }
func (always) Resume() struct{} { return struct{}{} }

// Never is a suspension point that is always ready.
func Never() Awaiter[struct{}] { return never{} }

// Always is a suspension point that suspends and wakes itself at once,
// handing control back to the driver exactly once.
func Always() Awaiter[struct{}] { return always{} }

type delay struct {
	d       time.Duration
	elapsed time.Duration
}

// Delay is a suspension point that wakes the frame from a timer
// goroutine after d. Its value is the time actually spent suspended.
// A non-positive d is ready at once.
func Delay(d time.Duration) Awaiter[time.Duration] {
	return &delay{d: d}
}

func (a *delay) Ready() bool { return a.d <= 0 }

func (a *delay) Suspend(r Resumer) {
	start := time.Now()
	time.AfterFunc(a.d, func() {
		a.elapsed = time.Since(start)
		r.Resume()
	})
}

func (a *delay) Resume() time.Duration { return a.elapsed }

// Sleep suspends the frame for at least d.
func Sleep[T any](co *Co[T], d time.Duration) time.Duration {
	return Await(co, Delay(d))
}

type poll struct {
	interval time.Duration
	cond     func() bool
}

// minPollInterval bounds how often Poll checks its condition.
const minPollInterval = time.Millisecond

// Poll is a suspension point that is ready when cond holds. While it
// does not, a goroutine checks cond every interval and wakes the frame
// once it does. Intervals below a millisecond are raised to one. cond
// must be safe to call from another goroutine.
func Poll(interval time.Duration, cond func() bool) Awaiter[struct{}] {
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return &poll{interval: interval, cond: cond}
}

func (a *poll) Ready() bool { return a.cond() }

func (a *poll) Suspend(r Resumer) {
	go func() {
		t := time.NewTicker(a.interval)
		defer t.Stop()
		for range t.C {
			if r.Done() {
				return
			}
			if a.cond() {
				r.Resume()
				return
			}
		}
	}()
}

func (a *poll) Resume() struct{} { return struct{}{} }

type callback[R any] struct {
	start func(complete func(R))
	once  sync.Once
	v     R
}

// FromCallback bridges a callback-style asynchronous API. start is
// called when the frame suspends and must arrange for complete to be
// called, from any goroutine, with the API's result. Only the first
// call to complete counts. The value of the await is that result.
func FromCallback[R any](start func(complete func(R))) Awaiter[R] {
	return &callback[R]{start: start}
}

func (a *callback[R]) Ready() bool { return false }

func (a *callback[R]) Suspend(r Resumer) {
	a.start(func(v R) {
		a.once.Do(func() {
			a.v = v
			r.Resume()
		})
	})
}

func (a *callback[R]) Resume() R { return a.v }

// AwaitCallback suspends the frame until the API started by start
// completes, and returns what it delivered.
func AwaitCallback[T, R any](co *Co[T], start func(complete func(R))) R {
	return Await(co, FromCallback(start))
}

type erased[R any] struct {
	a Awaiter[R]
}

// Erase adapts a to the value-agnostic form used by await transforms.
func Erase[R any](a Awaiter[R]) Awaiter[any] {
	return erased[R]{a: a}
}

func (e erased[R]) Ready() bool { return e.a.Ready() }
func (e erased[R]) Suspend(r Resumer) { e.a.Suspend(r) }

func (e erased[R]) cancel() {
	if c, ok := e.a.(canceler); ok {
		c.cancel()
	}
}

func (e erased[R]) Resume() any { return e.a.Resume() }
