package cotask

import (
	"context"
	"errors"
)

// Outcome is the value of awaiting another frame: its result or its
// failure.
type Outcome[R any] struct {
	Value R
	Err   error
}

type outcome interface {
	unpack() (any, error)
}

func (o Outcome[R]) unpack() (any, error) {
	return o.Value, o.Err
}

type join[R any] struct {
	sub *Handle[R]
	out Outcome[R]
}

func (a *join[R]) Ready() bool {
	v, err := a.sub.Result()
	if errors.Is(err, ErrNotFinished) {
		return false
	}
	a.out = Outcome[R]{Value: v, Err: err}
	return true
}

// Suspend registers for the sub-frame's completion and makes sure
// something drives it: a sub-frame without a driver is spawned on the
// awaiting frame's driver, or run on its own goroutine when the
// awaiting frame has none.
func (a *join[R]) Suspend(r Resumer) {
	a.sub.Then(func(v R, err error) {
		a.out = Outcome[R]{Value: v, Err: err}
		r.Resume()
	})

	if a.sub.Driver() != nil {
		return
	}
	if d := r.Driver(); d != nil {
		if err := d.Spawn(a.sub); err == nil {
			return
		}
	}
	go func() {
		// The outcome reaches the awaiting frame through Then.
		_, _ = a.sub.Run(context.Background())
	}()
}

func (a *join[R]) Resume() Outcome[R] { return a.out }

// JoinOf is the suspension point of waiting for sub to finish.
func JoinOf[R any](sub *Handle[R]) Awaiter[Outcome[R]] {
	return &join[R]{sub: sub}
}

// AwaitTask suspends the frame until sub finishes and returns sub's
// result. A sub-frame nobody drives yet is driven on behalf of the
// awaiting frame.
func AwaitTask[T, R any](co *Co[T], sub *Handle[R]) (R, error) {
	o := Await(co, JoinOf(sub))
	return o.Value, o.Err
}

func (h *Handle[T]) awaiter() Awaiter[any] {
	return Erase(JoinOf(h))
}

// Go starts body as a detached frame on d: it runs up to its first
// suspension point before Go returns, is resumed by d afterwards and
// releases itself when it finishes. The returned handle can observe the
// frame but Destroy after it finished returns ErrDestroyed.
func Go(d Driver, body func(co *Co[struct{}]) error, opts ...Option) *Handle[struct{}] {
	if d == nil {
		panic("cotask: Go with nil driver")
	}
	o := buildOptions(opts)
	o.policy = Detached
	o.driver = d
	return newHandle(func(co *Co[struct{}]) (struct{}, error) {
		return struct{}{}, body(co)
	}, o)
}

type inbox interface {
	takeInput() (any, bool)
	waitInput(Resumer) bool
}

type receive struct {
	in  inbox
	v   any
	got bool
}

func (a *receive) Ready() bool {
	a.v, a.got = a.in.takeInput()
	return a.got
}

func (a *receive) Suspend(r Resumer) {
	if !a.in.waitInput(r) {
		r.Resume()
	}
}

func (a *receive) Resume() any {
	if !a.got {
		a.v, a.got = a.in.takeInput()
	}
	return a.v
}

// Receive suspends the frame until a value is delivered with
// Handle.Send, and returns it. A value sent before the frame reached
// Receive is returned without suspending. The second result is false
// when the value is not a V.
func Receive[V, T any](co *Co[T]) (V, bool) {
	v, ok := Await[T, any](co, &receive{in: co.h}).(V)
	return v, ok
}
