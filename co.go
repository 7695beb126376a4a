package cotask

import (
	"github.com/google/uuid"
)

// Co is the capability a frame body uses to suspend. It is only valid
// inside the body it was passed to. Yielding, suspending or awaiting a
// suspension point that is not ready on a frame that is not running
// panics with ErrCanceled.
type Co[T any] struct {
	h *Handle[T]
}

// ID returns the identifier of the frame.
func (co *Co[T]) ID() uuid.UUID { return co.h.id }

// Driver returns the driver the frame is bound to, or nil.
func (co *Co[T]) Driver() Driver { return co.h.Driver() }

// Yield stores v as the frame's produced value and always suspends,
// handing control back to the resumer.
func (co *Co[T]) Yield(v T) {
	co.h.produce(v)
}

// Suspend hands control back to the resumer without producing a value.
func (co *Co[T]) Suspend() {
	co.h.suspend(nil)
}

// Await maps t to a suspension point, through the frame's transform
// first and the default dispatch second, and awaits it. Targets whose
// suspension point reports a failure, such as a failed task or a closed
// queue, return it as the error.
func (co *Co[T]) Await(t Target) (any, error) {
	a, err := co.h.transform(t)
	if err != nil {
		return nil, err
	}
	v := Await(co, a)
	if o, ok := v.(outcome); ok {
		return o.unpack()
	}
	return v, nil
}

// canceler is implemented by suspension points that must undo their
// registration when the frame is destroyed while suspended on them.
type canceler interface {
	cancel()
}

// Await suspends the frame on a unless a is ready, then returns a's
// resume value.
func Await[T, R any](co *Co[T], a Awaiter[R]) R {
	if !a.Ready() {
		if c, ok := a.(canceler); ok {
			resumed := false
			defer func() {
				if !resumed {
					c.cancel()
				}
			}()
			co.h.suspend(a.Suspend)
			resumed = true
		} else {
			co.h.suspend(a.Suspend)
		}
	}
	return a.Resume()
}
