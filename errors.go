package cotask

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is wrapped by every error reporting an operation
	// that the frame's current state does not allow.
	ErrInvalidState = errors.New("cotask: invalid state")

	// ErrFinished is returned when resuming a frame that already
	// completed or failed.
	ErrFinished = fmt.Errorf("%w: frame finished", ErrInvalidState)

	// ErrDestroyed is returned by operations on a destroyed frame,
	// including a second Destroy.
	ErrDestroyed = fmt.Errorf("%w: frame destroyed", ErrInvalidState)

	// ErrRunning is returned when a frame is resumed or destroyed
	// while it is already running.
	ErrRunning = fmt.Errorf("%w: frame running", ErrInvalidState)

	// ErrPending is returned when a frame is resumed while it waits on
	// a suspension point that has not woken it yet.
	ErrPending = fmt.Errorf("%w: frame waiting on a suspension point", ErrInvalidState)

	// ErrNotFinished is returned by Result before the frame finished.
	ErrNotFinished = fmt.Errorf("%w: frame not finished", ErrInvalidState)

	// ErrBound is returned when a handle is bound to a second driver,
	// or driven by its owner while a driver owns it.
	ErrBound = fmt.Errorf("%w: frame bound to another driver", ErrInvalidState)

	// ErrCanceled is raised inside a frame body at its suspension
	// point when the frame is destroyed, and when yield or await is
	// called on a frame that is not running.
	ErrCanceled = errors.New("cotask: frame canceled")

	// ErrUnsupportedTarget is returned by Co.Await when neither the
	// frame's transform nor the default dispatch maps the target.
	ErrUnsupportedTarget = errors.New("cotask: unsupported await target")

	// ErrClosed is returned when pushing to a closed queue.
	ErrClosed = errors.New("cotask: queue closed")
)

// Refused reports whether err is a resume refused because of the
// frame's state, as opposed to a failure of the frame body.
func Refused(err error) bool {
	switch err {
	case ErrFinished, ErrDestroyed, ErrRunning, ErrPending:
		return true
	}
	return false
}
