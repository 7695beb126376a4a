package cotask

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDeliversInOrder(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	q := NewQueue[int]()

	var got []int
	consumer := New(func(co *Co[struct{}]) (struct{}, error) {
		for {
			v, ok := Pop(co, q)
			if !ok {
				return struct{}{}, nil
			}
			got = append(got, v)
		}
	}, WithDriver(loop))
	defer consumer.Destroy()

	go func() {
		defer q.Close()
		for i := 0; i < 5; i++ {
			if err := q.Push(i); err != nil {
				t.Errorf("Unexpected push error: %v", err)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.NoError(loop.Run(ctx))
	r.Equal([]int{0, 1, 2, 3, 4}, got)
	r.ErrorIs(q.Push(5), ErrClosed)
}

func TestQueueSkipsDestroyedWaiter(t *testing.T) {
	r := require.New(t)

	q := NewQueue[string]()
	pop := func(co *Co[string]) (string, error) {
		v, _ := Pop(co, q)
		return v, nil
	}

	gone := New(pop)
	r.NoError(gone.Resume())
	r.True(gone.Pending())
	r.NoError(gone.Destroy())

	live := New(pop)
	defer live.Destroy()
	r.NoError(live.Resume())

	r.NoError(q.Push("item"))
	v, err := live.Run(context.Background())
	r.NoError(err)
	r.Equal("item", v)
	r.Zero(q.Len())
}

func TestQueueTryPopAndTarget(t *testing.T) {
	r := require.New(t)

	q := NewQueue[int]()
	r.NoError(q.Push(1))
	r.NoError(q.Push(2))

	v, ok := q.TryPop()
	r.True(ok)
	r.Equal(1, v)

	h := New(func(co *Co[int]) (int, error) {
		v, err := co.Await(FromQueue(q))
		if err != nil {
			return 0, err
		}
		return v.(int), nil
	})
	defer h.Destroy()
	r.NoError(h.Resume())
	got, err := h.Result()
	r.NoError(err)
	r.Equal(2, got)

	q.Close()
	closed := New(func(co *Co[int]) (int, error) {
		_, err := co.Await(FromQueue(q))
		return 0, err
	})
	defer closed.Destroy()
	r.ErrorIs(closed.Resume(), ErrClosed)
}

func TestEventWakesAllWaiters(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	ev := NewEvent[string]()

	var got []string
	for i := 0; i < 2; i++ {
		Go(loop, func(co *Co[struct{}]) error {
			got = append(got, Wait(co, ev))
			return nil
		})
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		ev.Set("go")
	}()
	r.NoError(loop.Run(context.Background()))
	r.Equal([]string{"go", "go"}, got)
	r.False(ev.Set("again"))

	late := New(func(co *Co[string]) (string, error) {
		v, err := co.Await(OnEvent(ev))
		if err != nil {
			return "", err
		}
		return v.(string), nil
	})
	defer late.Destroy()
	r.NoError(late.Resume())
	v, err := late.Result()
	r.NoError(err)
	r.Equal("go", v)
}

func TestCallbackFirstCompletionWins(t *testing.T) {
	r := require.New(t)

	h := New(func(co *Co[int]) (int, error) {
		return AwaitCallback(co, func(complete func(int)) {
			go func() {
				complete(1)
				complete(2)
			}()
		}), nil
	})
	defer h.Destroy()

	v, err := h.Run(context.Background())
	r.NoError(err)
	r.Equal(1, v)
}

func TestCallbackTarget(t *testing.T) {
	r := require.New(t)

	h := New(func(co *Co[string]) (string, error) {
		v, err := co.Await(Callback(func(complete func(string)) {
			time.AfterFunc(5*time.Millisecond, func() { complete("called back") })
		}))
		if err != nil {
			return "", err
		}
		return v.(string), nil
	})
	defer h.Destroy()

	v, err := h.Run(context.Background())
	r.NoError(err)
	r.Equal("called back", v)
}

func TestPollWaitsForCondition(t *testing.T) {
	r := require.New(t)

	var flag atomic.Bool
	h := New(func(co *Co[struct{}]) (struct{}, error) {
		Await(co, Poll(time.Millisecond, flag.Load))
		return struct{}{}, nil
	})
	defer h.Destroy()

	r.NoError(h.Resume())
	r.True(h.Pending())

	time.AfterFunc(10*time.Millisecond, func() { flag.Store(true) })
	_, err := h.Run(context.Background())
	r.NoError(err)
}

func TestAlwaysHandsBackOnce(t *testing.T) {
	r := require.New(t)

	h := New(func(co *Co[int]) (int, error) {
		Await(co, Always())
		Await(co, Never())
		return 1, nil
	})
	defer h.Destroy()

	st, err := h.Step()
	r.NoError(err)
	r.Equal(StatusPending, st)
	r.False(h.Pending())

	st, err = h.Step()
	r.NoError(err)
	r.Equal(StatusDone, st)
}

func TestAwaitTransform(t *testing.T) {
	r := require.New(t)

	transform := func(tg Target) (Awaiter[any], bool) {
		if tg.Kind != KindCustom || tg.Value != "now" {
			return nil, false
		}
		return Erase(Never()), true
	}

	h := New(func(co *Co[int]) (int, error) {
		if _, err := co.Await(Custom("now")); err != nil {
			return 0, err
		}
		if _, err := co.Await(After(0)); err != nil {
			return 0, err
		}
		_, err := co.Await(Custom("later"))
		return 0, err
	}, WithTransform(transform))
	defer h.Destroy()

	err := h.Resume()
	r.ErrorIs(err, ErrUnsupportedTarget)
	r.Contains(err.Error(), "custom")

	plain := New(func(co *Co[int]) (int, error) {
		_, err := co.Await(Custom("now"))
		return 0, err
	})
	defer plain.Destroy()
	r.ErrorIs(plain.Resume(), ErrUnsupportedTarget)
}

func TestAwaitTaskDrivesSubFrame(t *testing.T) {
	r := require.New(t)

	sub := New(func(co *Co[int]) (int, error) {
		Sleep(co, 5*time.Millisecond)
		return 5, nil
	})
	defer sub.Destroy()

	parent := New(func(co *Co[int]) (int, error) {
		v, err := AwaitTask(co, sub)
		return v + 1, err
	})
	defer parent.Destroy()

	v, err := parent.Run(context.Background())
	r.NoError(err)
	r.Equal(6, v)
}

func TestAwaitTaskOnLoop(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	bad := errors.New("sub failed")
	sub := New(func(co *Co[int]) (int, error) {
		co.Suspend()
		return 0, bad
	})
	defer sub.Destroy()

	var seen Driver
	parent := New(func(co *Co[int]) (int, error) {
		seen = co.Driver()
		_, err := co.Await(Join(sub))
		return 0, err
	}, WithDriver(loop))
	defer parent.Destroy()

	err := loop.Run(context.Background())
	r.ErrorIs(err, bad)
	r.Equal(Driver(loop), seen)
	r.Equal(Driver(loop), sub.Driver())
	_, perr := parent.Result()
	r.ErrorIs(perr, bad)
}

func TestLoopJoinsFailures(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	errA := errors.New("a")
	errB := errors.New("b")

	a := New(func(co *Co[int]) (int, error) {
		return 0, errA
	}, WithDriver(loop))
	defer a.Destroy()
	b := New(func(co *Co[int]) (int, error) {
		Sleep(co, 5*time.Millisecond)
		return 0, errB
	}, WithDriver(loop))
	defer b.Destroy()
	ok := New(func(co *Co[int]) (int, error) {
		co.Yield(1)
		return 1, nil
	}, WithDriver(loop))
	defer ok.Destroy()

	r.Equal(3, loop.Len())
	err := loop.Run(context.Background())
	r.ErrorIs(err, errA)
	r.ErrorIs(err, errB)
	r.Zero(loop.Len())

	v, verr := ok.Result()
	r.NoError(verr)
	r.Equal(1, v)
}

func TestLoopStopsOnContext(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	h := New(func(co *Co[int]) (int, error) {
		Sleep(co, time.Hour)
		return 0, nil
	}, WithDriver(loop))
	defer h.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.ErrorIs(loop.Run(ctx), context.DeadlineExceeded)
	r.Equal(1, loop.Len())
}

func TestLoopForgetsDestroyedFrame(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	q := NewQueue[int]()
	h := New(func(co *Co[int]) (int, error) {
		v, _ := Pop(co, q)
		return v, nil
	}, WithPolicy(Eager), WithDriver(loop))
	r.True(h.Pending())
	r.Equal(1, loop.Len())

	r.NoError(h.Destroy())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.NoError(loop.Run(ctx))
	r.Zero(loop.Len())
	r.Equal(StateDestroyed, h.State())
}

func TestLoopQueuesEagerFrameOnce(t *testing.T) {
	r := require.New(t)

	loop := NewLoop()
	steps := 0
	h := New(func(co *Co[int]) (int, error) {
		steps++
		Await(co, Always())
		steps++
		return steps, nil
	}, WithPolicy(Eager), WithDriver(loop))
	defer h.Destroy()

	r.Len(loop.queue, 1)
	r.NoError(loop.Run(context.Background()))

	v, err := h.Result()
	r.NoError(err)
	r.Equal(2, v)
}

func TestPollNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			r := require.New(t)

			var flag atomic.Bool
			h := New(func(co *Co[struct{}]) (struct{}, error) {
				Await(co, Poll(interval, flag.Load))
				return struct{}{}, nil
			})
			defer h.Destroy()

			r.NoError(h.Resume())
			time.AfterFunc(5*time.Millisecond, func() { flag.Store(true) })

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := h.Run(ctx)
			r.NoError(err)
		})
	}
}

func TestQueueReturnsItemOfDestroyedConsumer(t *testing.T) {
	r := require.New(t)

	q := NewQueue[string]()
	pop := func(co *Co[string]) (string, error) {
		v, _ := Pop(co, q)
		return v, nil
	}

	woken := New(pop)
	r.NoError(woken.Resume())
	r.NoError(q.Push("a"))
	r.False(woken.Pending())

	// Destroyed after the item was handed over but before it ran.
	r.NoError(woken.Destroy())
	r.Equal(1, q.Len())

	next := New(pop)
	defer next.Destroy()
	r.NoError(next.Resume())
	v, err := next.Result()
	r.NoError(err)
	r.Equal("a", v)
}

func TestQueueConcurrentPushAndDestroy(t *testing.T) {
	const iterations = 2000

	lost := 0
	for i := 0; i < iterations; i++ {
		q := NewQueue[int]()
		h := New(func(co *Co[int]) (int, error) {
			v, _ := Pop(co, q)
			return v, nil
		})
		if err := h.Resume(); err != nil {
			t.Fatalf("Unexpected resume error: %v", err)
		}

		pushed := make(chan error, 1)
		go func() { pushed <- q.Push(1) }()
		if err := h.Destroy(); err != nil {
			t.Fatalf("Unexpected destroy error: %v", err)
		}
		if err := <-pushed; err != nil {
			t.Fatalf("Unexpected push error: %v", err)
		}

		if q.Len() != 1 {
			lost++
		}
	}
	if lost > 0 {
		t.Errorf("Expected every item to stay queued, lost %d of %d", lost, iterations)
	}
}
