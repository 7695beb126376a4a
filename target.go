package cotask

import (
	"fmt"
	"time"
)

// TargetKind tags what a Target waits for.
type TargetKind uint8

const (
	KindDelay TargetKind = iota + 1
	KindQueue
	KindEvent
	KindTask
	KindInput
	KindCallback
	KindCustom
)

func (k TargetKind) String() string {
	switch k {
	case KindDelay:
		return "delay"
	case KindQueue:
		return "queue"
	case KindEvent:
		return "event"
	case KindTask:
		return "task"
	case KindInput:
		return "input"
	case KindCallback:
		return "callback"
	case KindCustom:
		return "custom"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Target is a logical wait target handed to Co.Await: a duration, a
// queue, an event, another frame, the frame's input, a callback API or
// a custom value. The frame maps it to a suspension point by kind.
type Target struct {
	Kind  TargetKind
	Delay time.Duration
	Value any

	src source
}

type source interface {
	awaiter() Awaiter[any]
}

// After targets a delay of d.
func After(d time.Duration) Target {
	return Target{Kind: KindDelay, Delay: d}
}

// FromQueue targets the next item of q.
func FromQueue[E any](q *Queue[E]) Target {
	return Target{Kind: KindQueue, src: q}
}

// OnEvent targets ev being set.
func OnEvent[V any](ev *Event[V]) Target {
	return Target{Kind: KindEvent, src: ev}
}

// Join targets the completion of h.
func Join[R any](h *Handle[R]) Target {
	return Target{Kind: KindTask, src: h}
}

// Input targets the next value delivered with Handle.Send.
func Input() Target {
	return Target{Kind: KindInput}
}

type callbackSource[R any] func(complete func(R))

func (s callbackSource[R]) awaiter() Awaiter[any] {
	return Erase(FromCallback[R](s))
}

// Callback targets the completion of a callback-style API started by
// start.
func Callback[R any](start func(complete func(R))) Target {
	return Target{Kind: KindCallback, src: callbackSource[R](start)}
}

// Custom targets v. Only a transform installed with WithTransform can
// map it.
func Custom(v any) Target {
	return Target{Kind: KindCustom, Value: v}
}

func (h *Handle[T]) transform(t Target) (Awaiter[any], error) {
	if fn := h.opts.transform; fn != nil {
		if a, ok := fn(t); ok {
			return a, nil
		}
	}
	return dispatch(h, t)
}

// dispatch maps a target to the suspension point implementing it.
func dispatch(in inbox, t Target) (Awaiter[any], error) {
	switch t.Kind {
	case KindDelay:
		return Erase(Delay(t.Delay)), nil
	case KindInput:
		return &receive{in: in}, nil
	case KindQueue, KindEvent, KindTask, KindCallback:
		if t.src != nil {
			return t.src.awaiter(), nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedTarget, t.Kind)
}
