package cotask

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Loop is a Driver that resumes frames on the single goroutine calling
// Run. Wake-ups from timers, queues, events and callbacks are posted to
// the loop and served in arrival order; frames that yield go to the
// back of the line.
type Loop struct {
	log *slog.Logger

	mu     sync.Mutex
	queue  []Runnable
	queued map[uuid.UUID]struct{}
	live   map[uuid.UUID]Runnable
	errs   []error
	notify chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger of the loop.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) { lp.log = l }
}

// NewLoop returns an idle loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		queued: make(map[uuid.UUID]struct{}),
		live:   make(map[uuid.UUID]Runnable),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Spawn binds r to the loop and schedules it if it can run. Spawning a
// frame twice is a no-op.
func (l *Loop) Spawn(r Runnable) error {
	if err := r.Bind(l); err != nil {
		return err
	}
	if r.Done() {
		return nil
	}

	l.mu.Lock()
	if _, ok := l.live[r.ID()]; ok {
		l.mu.Unlock()
		return nil
	}
	l.live[r.ID()] = r
	l.mu.Unlock()

	l.log.Debug("task spawned", "task", r.ID(), "state", r.State())
	if !r.Pending() && r.State() != StateRunning {
		l.Post(r)
	}
	return nil
}

// Post schedules r to be resumed. It is safe to call from any
// goroutine. A frame already waiting in the queue is not queued again.
func (l *Loop) Post(r Runnable) {
	l.mu.Lock()
	if _, ok := l.queued[r.ID()]; ok {
		l.mu.Unlock()
		return
	}
	l.queued[r.ID()] = struct{}{}
	l.queue = append(l.queue, r)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of spawned frames that have not finished.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Run resumes frames until every spawned frame finished or ctx is done.
// It returns the failures of the frames that failed, joined.
func (l *Loop) Run(ctx context.Context) error {
	for {
		r, idle := l.next()
		if r != nil {
			l.step(r)
			continue
		}
		if idle {
			return l.takeErrors()
		}
		select {
		case <-l.notify:
		case <-ctx.Done():
			return errors.Join(ctx.Err(), l.takeErrors())
		}
	}
}

func (l *Loop) next() (Runnable, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, len(l.live) == 0
	}
	r := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	delete(l.queued, r.ID())
	return r, false
}

func (l *Loop) step(r Runnable) {
	st, err := r.Step()
	switch {
	case Refused(err):
		l.log.Debug("stale wake-up", "task", r.ID(), "error", err)
		if r.Done() {
			l.forget(r)
		}
	case st == StatusDone:
		l.forget(r)
		if err != nil {
			l.log.Error("task failed", "task", r.ID(), "error", err)
			l.mu.Lock()
			l.errs = append(l.errs, err)
			l.mu.Unlock()
			return
		}
		l.log.Debug("task finished", "task", r.ID())
	case st == StatusYielded:
		l.Post(r)
	}
}

func (l *Loop) forget(r Runnable) {
	l.mu.Lock()
	delete(l.live, r.ID())
	l.mu.Unlock()
}

func (l *Loop) takeErrors() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := errors.Join(l.errs...)
	l.errs = nil
	return err
}
