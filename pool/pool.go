// Package pool runs cotask frames on a fixed set of worker goroutines.
//
// A Scheduler is a cotask.Driver: enqueued frames are resumed by
// whichever worker is free, but never by two workers at once, since a
// frame is only posted again after it yielded or after the suspension
// point it waits on woke it. Each enqueued frame gets a Future that is
// completed with the frame's result.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/webriots/cotask"
)

// ErrClosed is returned when enqueueing on a closed scheduler.
var ErrClosed = errors.New("pool: scheduler closed")

// Scheduler resumes frames on a fixed number of workers.
type Scheduler struct {
	log *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []cotask.Runnable
	queued  map[uuid.UUID]struct{}
	tasks   map[uuid.UUID]cotask.Runnable
	closed  bool
	workers sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New starts a scheduler with the given number of workers. A count
// below one starts a single worker.
func New(workers int, opts ...Option) *Scheduler {
	s := &Scheduler{
		queued: make(map[uuid.UUID]struct{}),
		tasks:  make(map[uuid.UUID]cotask.Runnable),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	s.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go s.work(i)
	}
	return s
}

// Enqueue hands h to s and returns a future completed with h's result.
// The frame stays registered with s until it finishes.
func Enqueue[T any](s *Scheduler, h *cotask.Handle[T]) (*Future[T], error) {
	f := newFuture[T](h.ID())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.tasks[h.ID()] = h
	s.mu.Unlock()

	h.Then(func(v T, err error) {
		s.forget(h.ID())
		f.complete(v, err)
	})

	if err := s.Spawn(h); err != nil {
		s.forget(h.ID())
		return nil, err
	}
	return f, nil
}

// Spawn binds r to s and schedules it if it can run.
func (s *Scheduler) Spawn(r cotask.Runnable) error {
	if err := r.Bind(s); err != nil {
		return err
	}
	if r.Done() || r.Pending() || r.State() == cotask.StateRunning {
		return nil
	}
	s.Post(r)
	return nil
}

// Post schedules r on the next free worker. A frame already waiting in
// the queue is not queued again.
func (s *Scheduler) Post(r cotask.Runnable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if !r.Done() {
			s.log.Warn("post after close", "task", r.ID())
		}
		return
	}
	if _, ok := s.queued[r.ID()]; ok {
		return
	}
	s.queued[r.ID()] = struct{}{}
	s.queue = append(s.queue, r)
	s.cond.Signal()
}

// Len returns the number of registered frames that have not finished.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// WaitAll waits for every future and returns their failures joined.
func (s *Scheduler) WaitAll(ctx context.Context, futures ...Waiter) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range futures {
		g.Go(func() error {
			err := f.Wait(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Close stops the workers once the queue drains. Frames that yield or
// wake up after Close are not resumed again.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.workers.Wait()
}

func (s *Scheduler) work(id int) {
	defer s.workers.Done()
	for {
		r, ok := s.next()
		if !ok {
			return
		}
		st, err := r.Step()
		switch {
		case cotask.Refused(err):
			s.log.Debug("stale wake-up", "worker", id, "task", r.ID(), "error", err)
		case st == cotask.StatusDone && err != nil:
			s.log.Error("task failed", "worker", id, "task", r.ID(), "error", err)
		case st == cotask.StatusDone:
			s.log.Debug("task finished", "worker", id, "task", r.ID())
		case st == cotask.StatusYielded:
			s.Post(r)
		}
	}
}

func (s *Scheduler) next() (cotask.Runnable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, false
	}
	r := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	delete(s.queued, r.ID())
	return r, true
}

func (s *Scheduler) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}
