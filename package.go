// Package cotask provides cooperative coroutine tasks for Go:
// suspendable computations that hand control back to their driver at
// explicit suspension points and are resumed later, either by a caller
// pulling values out of them or by asynchronous triggers such as
// timers, queues, events and callback-based APIs.
//
// A computation is created with New, NewGenerator or Go, which return
// a Handle owning the computation's frame. The handle resumes the
// frame, reports whether it finished and destroys it. Every frame
// carries a Policy fixed at construction that decides whether its body
// starts running before the constructor returns and whether the frame
// releases itself when it finishes.
//
// Inside the body, the Co parameter produces values with Yield and
// waits on suspension points with Await. A suspension point implements
// the Awaiter contract: a ready check, a suspend action that registers
// a Resumer with whatever will trigger the wake-up, and a resume value
// returned to the body. Resumers never run a frame themselves; they
// post the frame's handle to its Driver, so only one goroutine resumes
// a frame at a time.
//
// Loop is a single-goroutine Driver that advances many frames until
// they all finish. Frames that are not bound to a driver are driven by
// their owner with Resume, Step or Run.
//
// Failures inside a frame body, whether returned errors or panics, are
// stored in the frame and surfaced to whoever resumes it. Panics keep
// their stack traces.
package cotask
