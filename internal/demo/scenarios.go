package demo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webriots/cotask"
	"github.com/webriots/cotask/internal/config"
	"github.com/webriots/cotask/pool"
)

// Fibonacci returns a generator of the first limit Fibonacci numbers,
// starting 1, 1.
func Fibonacci(limit int) *cotask.Generator[int] {
	return cotask.NewGenerator(func(co *cotask.Co[int]) error {
		a, b := 1, 1
		for i := 0; i < limit; i++ {
			co.Yield(a)
			a, b = b, a+b
		}
		return nil
	})
}

func runFibonacci(_ context.Context, cfg *config.Config, log *slog.Logger) error {
	g := Fibonacci(cfg.Generator.Count)
	defer func() { _ = g.Close() }()

	var values []int
	for v := range g.All() {
		values = append(values, v)
	}
	log.Info("fibonacci", "values", values)
	return g.Err()
}

// Event is an item of the event scenario.
type Event struct {
	ID   int
	Data string
}

// ProcessEvents pushes cfg.Items events from a producer goroutine and
// handles them in a frame on a loop. With a poll interval the frame
// polls the queue like a busy consumer; without one it waits on it.
func ProcessEvents(ctx context.Context, cfg config.EventsConfig, log *slog.Logger) ([]Event, error) {
	q := cotask.NewQueue[Event]()
	loop := cotask.NewLoop(cotask.WithLoopLogger(log))

	var handled []Event
	consumer := cotask.New(func(co *cotask.Co[struct{}]) (struct{}, error) {
		for {
			if cfg.PollInterval > 0 {
				cotask.Await(co, cotask.Poll(cfg.PollInterval, func() bool {
					return q.Len() > 0 || q.Closed()
				}))
			}
			ev, ok := cotask.Pop(co, q)
			if !ok {
				return struct{}{}, nil
			}
			log.Info("handling event", "id", ev.ID, "data", ev.Data)
			handled = append(handled, ev)
		}
	}, cotask.WithPolicy(cotask.Eager), cotask.WithDriver(loop), cotask.WithLogger(log))
	defer func() { _ = consumer.Destroy() }()

	go func() {
		defer q.Close()
		for i := 0; i < cfg.Items; i++ {
			if err := q.Push(Event{ID: i, Data: fmt.Sprintf("EventData%d", i)}); err != nil {
				return
			}
			select {
			case <-time.After(cfg.Interval):
			case <-ctx.Done():
				return
			}
		}
	}()

	err := loop.Run(ctx)
	return handled, err
}

func runEvents(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	_, err := ProcessEvents(ctx, cfg.Events, log)
	return err
}

// Simulate launches detached movement tasks from a detached parent, all
// on one loop, and returns their names in completion order.
func Simulate(ctx context.Context, unit time.Duration, log *slog.Logger) ([]string, error) {
	loop := cotask.NewLoop(cotask.WithLoopLogger(log))

	var finished []string
	move := func(id, distance int) func(*cotask.Co[struct{}]) error {
		return func(co *cotask.Co[struct{}]) error {
			log.Info("entity moving", "entity", id, "distance", distance)
			cotask.Sleep(co, time.Duration(distance)*unit)
			finished = append(finished, fmt.Sprintf("move %d/%d", id, distance))
			return nil
		}
	}
	update := func(id int) func(*cotask.Co[struct{}]) error {
		return func(co *cotask.Co[struct{}]) error {
			log.Info("entity updating", "entity", id)
			cotask.Sleep(co, unit)
			finished = append(finished, fmt.Sprintf("update %d", id))
			return nil
		}
	}

	cotask.Go(loop, func(co *cotask.Co[struct{}]) error {
		cotask.Go(loop, move(1, 5))
		cotask.Go(loop, update(1))
		cotask.Go(loop, move(2, 3))
		cotask.Go(loop, update(2))
		cotask.Go(loop, move(1, 2))
		return nil
	})

	err := loop.Run(ctx)
	return finished, err
}

func runCoordination(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	finished, err := Simulate(ctx, cfg.Coordination.Unit, log)
	log.Info("simulation finished", "order", finished)
	return err
}

// AsyncCallbackAPI stands in for a callback-based asynchronous API. It
// returns at once and calls cb with userData, a fixed result and i from
// its own goroutine after latency.
func AsyncCallbackAPI(userData any, cb func(userData any, result, i int), i int, latency time.Duration) {
	go func() {
		time.Sleep(latency)
		cb(userData, 42, i)
	}()
}

// CallbackResult is what AsyncCallbackAPI delivered.
type CallbackResult struct {
	Result int
	I      int
}

// CallAPI awaits AsyncCallbackAPI from a frame. The completion function
// travels through the API as its user data.
func CallAPI(ctx context.Context, cfg config.CallbackConfig, log *slog.Logger) (CallbackResult, error) {
	h := cotask.New(func(co *cotask.Co[CallbackResult]) (CallbackResult, error) {
		log.Info("calling async API", "task", co.ID())
		res := cotask.AwaitCallback(co, func(complete func(CallbackResult)) {
			AsyncCallbackAPI(complete, func(userData any, result, i int) {
				userData.(func(CallbackResult))(CallbackResult{Result: result, I: i})
			}, cfg.Value, cfg.Latency)
		})
		log.Info("async API returned", "result", res.Result, "i", res.I)
		return res, nil
	})
	defer func() { _ = h.Destroy() }()
	return h.Run(ctx)
}

func runCallback(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	_, err := CallAPI(ctx, cfg.Callback, log)
	return err
}

// Span is the time a lock-guarded body ran.
type Span struct {
	Start time.Time
	End   time.Time
}

// RunLocked launches cfg.Tasks frames sharing one lock from as many
// goroutines. Each frame holds the lock from its initial to its final
// suspend point, so the bodies run one after another.
func RunLocked(ctx context.Context, cfg config.LockConfig, log *slog.Logger) ([]Span, error) {
	var mu sync.Mutex
	spans := make([]Span, cfg.Tasks)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Tasks; i++ {
		g.Go(func() error {
			log.Info("launching locked task", "n", i)
			h := cotask.New(func(co *cotask.Co[struct{}]) (struct{}, error) {
				spans[i].Start = time.Now()
				cotask.Sleep(co, cfg.Hold)
				spans[i].End = time.Now()
				return struct{}{}, nil
			}, cotask.WithLock(&mu), cotask.WithPolicy(cotask.Eager))
			defer func() { _ = h.Destroy() }()

			_, err := h.Run(ctx)
			log.Info("locked task done", "n", i)
			return err
		})
	}
	err := g.Wait()
	return spans, err
}

func runLocked(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	spans, err := RunLocked(ctx, cfg.Lock, log)
	for i, s := range spans {
		log.Info("critical section", "n", i, "start", s.Start.Format(time.StampMilli), "end", s.End.Format(time.StampMilli))
	}
	return err
}

// busySleep returns a frame that suspends repeatedly until d passed,
// then returns 42.
func busySleep(d time.Duration) *cotask.Handle[int] {
	return cotask.New(func(co *cotask.Co[int]) (int, error) {
		for start := time.Now(); time.Since(start) < d; {
			cotask.Await(co, cotask.Always())
		}
		return 42, nil
	})
}

// SleepOnPool enqueues a frame awaiting a busy-sleeping sub-frame and
// then three trivial frames, and waits for all of them.
func SleepOnPool(ctx context.Context, s *pool.Scheduler, d time.Duration, log *slog.Logger) (int, error) {
	task := cotask.New(func(co *cotask.Co[int]) (int, error) {
		sub := busySleep(d)
		defer func() { _ = sub.Destroy() }()
		return cotask.AwaitTask(co, sub)
	})
	defer func() { _ = task.Destroy() }()

	f, err := pool.Enqueue(s, task)
	if err != nil {
		return 0, err
	}
	v, err := f.Get(ctx)
	if err != nil {
		return 0, err
	}
	log.Info("sleep returned", "value", v)

	var futures []pool.Waiter
	for i := 0; i < 3; i++ {
		h := cotask.New(func(co *cotask.Co[struct{}]) (struct{}, error) {
			log.Info("coro starting", "task", co.ID())
			return struct{}{}, nil
		})
		f, err := pool.Enqueue(s, h)
		if err != nil {
			return 0, err
		}
		futures = append(futures, f)
	}
	return v, s.WaitAll(ctx, futures...)
}

func runPool(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	s := pool.New(cfg.Workers, pool.WithLogger(log))
	defer s.Close()
	_, err := SleepOnPool(ctx, s, 100*time.Millisecond, log)
	return err
}

// Compose runs a frame that awaits two sub-frames, one directly and one
// through a join target, and returns their sum. Completion callbacks
// chained on the parent see the same result.
func Compose(log *slog.Logger) (int, []int, error) {
	task := func(n int) *cotask.Handle[int] {
		return cotask.New(func(co *cotask.Co[int]) (int, error) {
			log.Info("sub task run", "n", n)
			return n, nil
		}, cotask.WithPolicy(cotask.Eager))
	}

	h := cotask.New(func(co *cotask.Co[int]) (int, error) {
		t1, t2 := task(1), task(2)
		defer func() { _ = t1.Destroy() }()
		defer func() { _ = t2.Destroy() }()

		d1, err := cotask.AwaitTask(co, t1)
		if err != nil {
			return 0, err
		}
		d2, err := co.Await(cotask.Join(t2))
		if err != nil {
			return 0, err
		}
		return d1 + d2.(int), nil
	}, cotask.WithPolicy(cotask.Eager))
	defer func() { _ = h.Destroy() }()

	var seen []int
	h.Then(func(v int, _ error) { seen = append(seen, v) }).
		Then(func(v int, _ error) { seen = append(seen, v) })

	v, err := h.Result()
	return v, seen, err
}

func runCompose(_ context.Context, _ *config.Config, log *slog.Logger) error {
	v, seen, err := Compose(log)
	log.Info("composed", "result", v, "callbacks", seen)
	return err
}

// Greet runs a frame that first awaits a duration given as a string
// target, then receives the message sent by its owner.
func Greet(ctx context.Context, msg string, log *slog.Logger) (string, error) {
	durations := func(t cotask.Target) (cotask.Awaiter[any], bool) {
		s, ok := t.Value.(string)
		if t.Kind != cotask.KindCustom || !ok {
			return nil, false
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, false
		}
		return cotask.Erase(cotask.Delay(d)), true
	}

	var got string
	h := cotask.New(func(co *cotask.Co[struct{}]) (struct{}, error) {
		if _, err := co.Await(cotask.Custom("10ms")); err != nil {
			return struct{}{}, err
		}
		log.Info("waiting for input")
		got, _ = cotask.Receive[string](co)
		return struct{}{}, nil
	}, cotask.WithTransform(durations))
	defer func() { _ = h.Destroy() }()

	if err := h.Send(msg); err != nil {
		return "", err
	}
	if _, err := h.Run(ctx); err != nil {
		return "", err
	}
	log.Info("received", "message", got)
	return got, nil
}

func runInput(ctx context.Context, _ *config.Config, log *slog.Logger) error {
	_, err := Greet(ctx, "Hello from main", log)
	return err
}
