package cotask

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
)

// panicError is the failure of a frame body that panicked. It keeps
// the panic value, the stack of the frame at the point of the panic and
// the frame that raised it.
type panicError struct {
	value any
	stack []byte
	frame uuid.UUID
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%v", p.value)
}

func (p *panicError) ErrorWithStack() string {
	return fmt.Sprintf("%v\n\nframe %s:\n%s", p.value, p.frame, p.stack)
}

func (p *panicError) Unwrap() error {
	err, ok := p.value.(error)
	if !ok {
		return nil
	}
	return err
}

// Frame returns the identifier of the frame whose body panicked.
func (p *panicError) Frame() uuid.UUID { return p.frame }

func (p *panicError) DebugString() string {
	var sb strings.Builder
	seen := make(map[error]bool)

	var unwrap func(error)
	unwrap = func(e error) {
		if e == nil || seen[e] {
			return
		}
		seen[e] = true

		if p, ok := e.(*panicError); ok {
			sb.WriteString(p.ErrorWithStack())
		} else {
			sb.WriteString(e.Error())
		}

		if unwrapper, ok := e.(interface{ Unwrap() []error }); ok {
			for _, ue := range unwrapper.Unwrap() {
				unwrap(ue)
			}
		} else if ue := errors.Unwrap(e); ue != nil {
			unwrap(ue)
		}
	}

	unwrap(p)
	return sb.String()
}

func newPanicError(frame uuid.UUID, v any) error {
	return &panicError{
		value: v,
		stack: debug.Stack(),
		frame: frame,
	}
}

// DebugString renders err with the stack traces of any frame panics it
// wraps.
func DebugString(err error) string {
	if err == nil {
		return ""
	}
	var p *panicError
	if errors.As(err, &p) {
		if p == err {
			return p.DebugString()
		}
		return err.Error() + "\n" + p.DebugString()
	}
	return err.Error()
}

// IsPanic reports whether err stems from a panic in a frame body.
func IsPanic(err error) bool {
	var p *panicError
	return errors.As(err, &p)
}
