package cotask

import (
	"unsafe"
)

var _ unsafe.Pointer

// coroutine represents a native Go coroutine instance. It's an opaque
// struct used by the runtime functions.
type coroutine struct{}

//go:linkname newcoro runtime.newcoro
func newcoro(func(*coroutine)) *coroutine

//go:linkname coroswitch runtime.coroswitch
func coroswitch(*coroutine)

// start allocates the coroutine that runs the frame body. The body
// does not run until the first switch into it.
func (h *Handle[T]) start() {
	h.c = newcoro(h.main)
}

// main is the coroutine entry point. It runs the body once and records
// how it ended. A frame destroyed before its first resume never runs
// the body.
func (h *Handle[T]) main(*coroutine) {
	defer func() {
		p := recover()

		h.mu.Lock()
		defer h.mu.Unlock()

		if h.canceled != nil {
			if p != nil && p != any(h.canceled) && h.err == nil {
				h.err = newPanicError(h.id, p)
			}
			return
		}
		if p != nil {
			h.err = newPanicError(h.id, p)
			h.state = StateFailed
		}
	}()

	h.mu.Lock()
	canceled := h.canceled != nil
	h.mu.Unlock()
	if canceled {
		return
	}

	v, err := h.body(&Co[T]{h: h})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canceled != nil {
		return
	}
	if err != nil {
		h.err = err
		h.state = StateFailed
		return
	}
	h.result = v
	h.state = StateCompleted
}

// suspend parks the running body and switches back to whoever resumed
// it. A non-nil action is the suspend action of a suspension point; it
// runs on the resuming side once the body has switched out, and the
// frame stays pending until the Resumer handed to it fires.
func (h *Handle[T]) suspend(action func(Resumer)) {
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
	h.state = StateSuspended
	if action != nil {
		h.gen++
		h.pending = true
		h.action = action
	}
	h.mu.Unlock()

	coroswitch(h.c)

	h.mu.Lock()
	err := h.canceled
	h.mu.Unlock()
	if err != nil {
		panic(err)
	}
}
