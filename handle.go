package cotask

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Runnable is the type-erased view of a Handle used by drivers.
type Runnable interface {
	ID() uuid.UUID
	Step() (Status, error)
	Bind(Driver) error
	State() State
	Done() bool
	Pending() bool
}

// Driver resumes frames on behalf of their owners. Spawn hands a frame
// to the driver; Post is called by a Resumer, from any goroutine, when
// a frame waiting on a suspension point may run again.
type Driver interface {
	Spawn(Runnable) error
	Post(Runnable)
}

// noCopy may be embedded into structs which must not be copied after
// first use. See go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle owns one frame: the suspended state of a computation started
// by New, NewGenerator or Go. A handle must not be copied; pass the
// pointer and keep a single owner responsible for Destroy.
type Handle[T any] struct {
	_ noCopy

	id    uuid.UUID
	c     *coroutine
	body  func(*Co[T]) (T, error)
	opts  options
	ready chan struct{}

	mu          sync.Mutex
	state       State
	driver      Driver
	gen         uint64
	pending     bool
	yielded     bool
	action      func(Resumer)
	canceled    error
	value       T
	result      T
	err         error
	finished    bool
	locked      bool
	input       any
	hasInput    bool
	inputWaiter *Resumer
	callbacks   []func(T, error)
}

// New creates a frame running body. By default the frame follows the
// Lazy policy: nothing runs until the first Resume, and the frame stays
// around after the body returns until Destroy is called.
func New[T any](body func(co *Co[T]) (T, error), opts ...Option) *Handle[T] {
	return newHandle(body, buildOptions(opts))
}

func newHandle[T any](body func(*Co[T]) (T, error), o options) *Handle[T] {
	h := &Handle[T]{
		id:     uuid.New(),
		body:   body,
		opts:   o,
		ready:  make(chan struct{}, 1),
		driver: o.driver,
	}

	if o.lock != nil {
		o.lock.Lock()
		h.locked = true
	}

	h.start()

	if o.policy.Initial == StartImmediately {
		// A failure stays in the frame and is reported by Result.
		_, _ = h.Step()
	}

	if o.driver != nil {
		if err := o.driver.Spawn(h); err != nil {
			o.logger.Warn("cotask: spawn failed", "task", h.id, "error", err)
		}
	}

	return h
}

// ID returns the frame identifier.
func (h *Handle[T]) ID() uuid.UUID { return h.id }

// State returns the frame state.
func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done reports whether the frame can no longer run: its body finished
// or the frame was destroyed.
func (h *Handle[T]) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Finished() || h.state == StateDestroyed
}

// Pending reports whether the frame waits on a suspension point that
// has not woken it yet.
func (h *Handle[T]) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

// Driver returns the driver the frame is bound to, or nil when its
// owner drives it.
func (h *Handle[T]) Driver() Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.driver
}

// Value returns the value most recently produced with Co.Yield.
func (h *Handle[T]) Value() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Result returns the value the body returned, or its failure.
func (h *Handle[T]) Result() (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	switch {
	case h.finished || h.state.Finished():
		if h.err != nil {
			return zero, h.err
		}
		return h.result, nil
	case h.state == StateDestroyed:
		return zero, ErrDestroyed
	}
	return zero, ErrNotFinished
}

// Err returns the failure of a finished frame, if any.
func (h *Handle[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Bind attaches the frame to d. Wake-ups of a bound frame are posted
// to d instead of its owner.
func (h *Handle[T]) Bind(d Driver) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.state == StateDestroyed && !h.finished:
		return ErrDestroyed
	case h.driver != nil && h.driver != d:
		return ErrBound
	}
	h.driver = d
	return nil
}

// Resume transfers control into the frame until it reaches its next
// suspension point or finishes. It never runs body code of a frame
// that finished, was destroyed, is running or is still waiting for a
// suspension point; those cases return an error wrapping
// ErrInvalidState. If the body fails during this resume, the failure
// is returned.
func (h *Handle[T]) Resume() error {
	_, err := h.Step()
	return err
}

// Step is Resume reporting where the frame stopped.
func (h *Handle[T]) Step() (Status, error) {
	h.mu.Lock()
	if err := h.resumableLocked(); err != nil {
		st := h.statusLocked()
		h.mu.Unlock()
		return st, err
	}
	h.state = StateRunning
	h.yielded = false
	h.mu.Unlock()

	coroswitch(h.c)

	return h.settle()
}

func (h *Handle[T]) resumableLocked() error {
	switch h.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateCompleted, StateFailed:
		return ErrFinished
	case StateRunning:
		return ErrRunning
	}
	if h.pending {
		return ErrPending
	}
	return nil
}

func (h *Handle[T]) statusLocked() Status {
	switch {
	case h.state.Finished() || h.state == StateDestroyed:
		return StatusDone
	case h.pending || h.state == StateRunning:
		return StatusPending
	}
	return StatusYielded
}

// settle runs on the resuming side after the body switched out. It
// performs the pending suspend action, if any, or the final suspend.
func (h *Handle[T]) settle() (Status, error) {
	h.mu.Lock()
	if h.state.Finished() {
		h.mu.Unlock()
		return StatusDone, h.finish()
	}
	action, gen := h.action, h.gen
	h.action = nil
	h.mu.Unlock()

	if action == nil {
		return StatusYielded, nil
	}
	action(Resumer{w: h, gen: gen})
	return StatusPending, nil
}

// finish applies the final suspend policy.
func (h *Handle[T]) finish() error {
	h.mu.Lock()
	h.finished = true
	result, err := h.result, h.err
	callbacks := h.callbacks
	h.callbacks = nil
	unlock := h.locked
	h.locked = false
	if h.opts.policy.Final == ReleaseOnFinish {
		h.state = StateDestroyed
		h.c = nil
	}
	h.mu.Unlock()

	if unlock {
		h.opts.lock.Unlock()
	}
	if err != nil && h.opts.onFailure != nil {
		h.opts.onFailure(err)
	}
	for _, fn := range callbacks {
		fn(result, err)
	}
	return err
}

// Destroy releases the frame. A frame that has not finished is unwound
// first: its body observes a panic with ErrCanceled at the suspension
// point it is parked at, so deferred calls run. Wake-ups arriving after
// Destroy are ignored. Destroying twice returns ErrDestroyed. If the
// body panics with another value while unwinding, that failure is
// returned.
func (h *Handle[T]) Destroy() error {
	h.mu.Lock()
	switch h.state {
	case StateDestroyed:
		h.mu.Unlock()
		return ErrDestroyed
	case StateRunning:
		h.mu.Unlock()
		return ErrRunning
	case StateCompleted, StateFailed:
		h.state = StateDestroyed
		h.c = nil
		h.mu.Unlock()
		return nil
	}

	canceled := fmt.Errorf("%w", ErrCanceled)
	h.canceled = canceled
	h.gen++
	h.pending = false
	h.action = nil
	h.inputWaiter = nil
	h.state = StateRunning
	h.mu.Unlock()

	coroswitch(h.c)

	h.mu.Lock()
	err := h.err
	h.state = StateDestroyed
	h.c = nil
	callbacks := h.callbacks
	h.callbacks = nil
	unlock := h.locked
	h.locked = false
	d := h.driver
	h.mu.Unlock()

	if unlock {
		h.opts.lock.Unlock()
	}
	var zero T
	for _, fn := range callbacks {
		fn(zero, canceled)
	}
	if d != nil {
		// The frame's resumers are stale now; the driver learns of the
		// destruction from the refused step.
		d.Post(h)
	}
	return err
}

// Then registers fn to be called with the result once the body
// finishes. If it already finished, fn is called right away. If the
// frame is destroyed before finishing, fn receives an error wrapping
// ErrCanceled, whether it was registered before or after Destroy.
func (h *Handle[T]) Then(fn func(T, error)) *Handle[T] {
	h.mu.Lock()
	switch {
	case h.finished:
		result, err := h.result, h.err
		h.mu.Unlock()
		fn(result, err)
	case h.state == StateDestroyed:
		canceled := h.canceled
		h.mu.Unlock()
		if canceled == nil {
			canceled = fmt.Errorf("%w", ErrCanceled)
		}
		var zero T
		fn(zero, canceled)
	default:
		h.callbacks = append(h.callbacks, fn)
		h.mu.Unlock()
	}
	return h
}

// Send delivers v to the frame, where Receive returns it, and resumes
// the frame when its owner drives it. For a frame bound to a driver the
// driver resumes it.
func (h *Handle[T]) Send(v any) error {
	h.mu.Lock()
	switch {
	case h.state == StateDestroyed:
		h.mu.Unlock()
		return ErrDestroyed
	case h.state.Finished():
		h.mu.Unlock()
		return ErrFinished
	}
	h.input = v
	h.hasInput = true
	w := h.inputWaiter
	h.inputWaiter = nil
	d := h.driver
	h.mu.Unlock()

	if w != nil {
		w.Resume()
	}
	if d != nil {
		return nil
	}
	if err := h.Resume(); err != nil && !errors.Is(err, ErrPending) {
		return err
	}
	return nil
}

// Run drives a frame that is not bound to a driver until it finishes,
// blocking between suspension points until they wake the frame.
func (h *Handle[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if h.Driver() != nil {
		return zero, ErrBound
	}
	for {
		if err := h.wait(ctx); err != nil {
			return zero, err
		}
		st, err := h.Step()
		switch {
		case st == StatusDone:
			return h.Result()
		case errors.Is(err, ErrPending):
			continue
		case err != nil:
			return zero, err
		}
	}
}

// wait blocks until the frame no longer waits on a suspension point.
func (h *Handle[T]) wait(ctx context.Context) error {
	for h.Pending() {
		select {
		case <-h.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *Handle[T]) wake(gen uint64) {
	h.mu.Lock()
	if gen != h.gen || !h.pending || h.state != StateSuspended {
		h.mu.Unlock()
		return
	}
	h.pending = false
	d := h.driver
	h.mu.Unlock()

	if d != nil {
		d.Post(h)
		return
	}
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

func (h *Handle[T]) stale(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return gen != h.gen || !h.pending
}

func (h *Handle[T]) driverOf() Driver { return h.Driver() }

// produce stores a yielded value and suspends.
func (h *Handle[T]) produce(v T) {
	h.mu.Lock()
	if h.canceled != nil {
		err := h.canceled
		h.mu.Unlock()
		panic(err)
	}
	if h.state != StateRunning {
		h.mu.Unlock()
		panic(ErrCanceled)
	}
	h.value = v
	h.yielded = true
	h.mu.Unlock()

	h.suspend(nil)
}

func (h *Handle[T]) takeInput() (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasInput {
		return nil, false
	}
	v := h.input
	h.input = nil
	h.hasInput = false
	return v, true
}

// waitInput registers r to be woken by the next Send. It reports false
// when input arrived in the meantime.
func (h *Handle[T]) waitInput(r Resumer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasInput {
		return false
	}
	h.inputWaiter = &r
	return true
}
