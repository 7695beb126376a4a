package cotask

import (
	"context"
	"errors"
	"iter"
)

// Generator pulls values out of a frame that produces them with
// Co.Yield. Generators always use the Lazy policy: the body starts on
// the first Next and stays around after it returns until Close.
type Generator[T any] struct {
	h   *Handle[T]
	err error
}

// NewGenerator creates a generator running body. WithPolicy and
// WithDriver options are ignored; the caller drives the generator.
func NewGenerator[T any](body func(co *Co[T]) error, opts ...Option) *Generator[T] {
	o := buildOptions(opts)
	o.policy = Lazy
	o.driver = nil
	h := newHandle(func(co *Co[T]) (T, error) {
		var zero T
		return zero, body(co)
	}, o)
	return &Generator[T]{h: h}
}

// Handle returns the generator's frame.
func (g *Generator[T]) Handle() *Handle[T] { return g.h }

// Next resumes the body until it yields the next value. It returns
// false once the body returned, failed or the generator was closed.
// Suspension points awaited by the body are waited for.
func (g *Generator[T]) Next() (T, bool) {
	return g.NextContext(context.Background())
}

// NextContext is Next with a context bounding the wait on suspension
// points.
func (g *Generator[T]) NextContext(ctx context.Context) (T, bool) {
	var zero T
	for {
		if err := g.h.wait(ctx); err != nil {
			g.err = err
			return zero, false
		}
		st, err := g.h.Step()
		switch {
		case st == StatusDone:
			if err != nil && !Refused(err) {
				g.err = err
			}
			return zero, false
		case errors.Is(err, ErrPending):
			continue
		case err != nil:
			g.err = err
			return zero, false
		}
		if v, ok := g.h.produced(); ok {
			return v, true
		}
	}
}

// All returns an iterator over the remaining values. Stopping the
// iteration early closes the generator.
func (g *Generator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := g.Next()
			if !ok {
				return
			}
			if !yield(v) {
				_ = g.Close()
				return
			}
		}
	}
}

// Err returns the failure that ended the generator, if any.
func (g *Generator[T]) Err() error { return g.err }

// Done reports whether the generator is exhausted or closed.
func (g *Generator[T]) Done() bool { return g.h.Done() }

// Close destroys the generator's frame.
func (g *Generator[T]) Close() error { return g.h.Destroy() }

func (h *Handle[T]) produced() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.yielded && h.state == StateSuspended
}
