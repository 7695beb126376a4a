package pool

import (
	"context"

	"github.com/google/uuid"
)

// Waiter is anything WaitAll can wait for.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Future is completed with the result of an enqueued frame.
type Future[T any] struct {
	id   uuid.UUID
	done chan struct{}
	v    T
	err  error
}

func newFuture[T any](id uuid.UUID) *Future[T] {
	return &Future[T]{id: id, done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.v, f.err = v, err
	close(f.done)
}

// ID returns the identifier of the frame behind the future.
func (f *Future[T]) ID() uuid.UUID { return f.id }

// Done is closed once the frame finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get waits for the frame and returns its result.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.v, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait waits for the frame and returns its failure, if any.
func (f *Future[T]) Wait(ctx context.Context) error {
	_, err := f.Get(ctx)
	return err
}
