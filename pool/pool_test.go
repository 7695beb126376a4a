package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webriots/cotask"
)

func TestEnqueueCompletesFuture(t *testing.T) {
	r := require.New(t)

	s := New(2)
	defer s.Close()

	h := cotask.New(func(co *cotask.Co[int]) (int, error) {
		cotask.Sleep(co, 5*time.Millisecond)
		return 42, nil
	})
	defer h.Destroy()

	f, err := Enqueue(s, h)
	r.NoError(err)
	r.Equal(h.ID(), f.ID())

	v, err := f.Get(context.Background())
	r.NoError(err)
	r.Equal(42, v)
	r.Zero(s.Len())

	select {
	case <-f.Done():
	default:
		t.Error("Expected future to be done")
	}
}

func TestYieldingFramesShareWorkers(t *testing.T) {
	r := require.New(t)

	s := New(2)
	defer s.Close()

	var (
		mu    sync.Mutex
		steps = map[int]int{}
	)
	var futures []Waiter
	for i := 0; i < 8; i++ {
		h := cotask.New(func(co *cotask.Co[struct{}]) (struct{}, error) {
			for j := 0; j < 10; j++ {
				mu.Lock()
				steps[i]++
				mu.Unlock()
				co.Yield(struct{}{})
			}
			return struct{}{}, nil
		})
		f, err := Enqueue(s, h)
		r.NoError(err)
		futures = append(futures, f)
	}

	r.NoError(s.WaitAll(context.Background(), futures...))
	for i := 0; i < 8; i++ {
		r.Equal(10, steps[i], "frame %d", i)
	}
}

func TestWaitAllJoinsFailures(t *testing.T) {
	r := require.New(t)

	s := New(3)
	defer s.Close()

	errA := errors.New("a")
	fail := func(err error) *cotask.Handle[int] {
		return cotask.New(func(co *cotask.Co[int]) (int, error) {
			return 0, err
		})
	}

	fa, err := Enqueue(s, fail(errA))
	r.NoError(err)
	fb, err := Enqueue(s, fail(nil))
	r.NoError(err)
	fc, err := Enqueue(s, cotask.New(func(co *cotask.Co[int]) (int, error) {
		panic("boom")
	}))
	r.NoError(err)

	err = s.WaitAll(context.Background(), fa, fb, fc)
	r.ErrorIs(err, errA)
	r.True(cotask.IsPanic(err))
}

func TestWaitAllHonorsContext(t *testing.T) {
	r := require.New(t)

	s := New(1)
	defer s.Close()

	h := cotask.New(func(co *cotask.Co[int]) (int, error) {
		cotask.Sleep(co, time.Hour)
		return 0, nil
	})
	f, err := Enqueue(s, h)
	r.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.ErrorIs(s.WaitAll(ctx, f), context.DeadlineExceeded)
	r.Equal(1, s.Len())
}

func TestAwaitTaskSpawnsOnScheduler(t *testing.T) {
	r := require.New(t)

	s := New(2)
	defer s.Close()

	sub := cotask.New(func(co *cotask.Co[int]) (int, error) {
		co.Yield(0)
		return 2, nil
	})
	defer sub.Destroy()

	parent := cotask.New(func(co *cotask.Co[int]) (int, error) {
		v, err := cotask.AwaitTask(co, sub)
		return v * 10, err
	})
	defer parent.Destroy()

	f, err := Enqueue(s, parent)
	r.NoError(err)
	v, err := f.Get(context.Background())
	r.NoError(err)
	r.Equal(20, v)
	r.Equal(cotask.Driver(s), sub.Driver())
}

func TestEnqueueAfterClose(t *testing.T) {
	r := require.New(t)

	s := New(1)
	s.Close()

	h := cotask.New(func(co *cotask.Co[int]) (int, error) { return 1, nil })
	defer h.Destroy()

	_, err := Enqueue(s, h)
	r.ErrorIs(err, ErrClosed)
	r.Equal(cotask.StateCreated, h.State())
}

func TestEnqueueBoundFrame(t *testing.T) {
	r := require.New(t)

	s := New(1)
	defer s.Close()

	loop := cotask.NewLoop()
	h := cotask.New(func(co *cotask.Co[int]) (int, error) { return 1, nil }, cotask.WithDriver(loop))
	defer h.Destroy()

	_, err := Enqueue(s, h)
	r.ErrorIs(err, cotask.ErrBound)
	r.Zero(s.Len())
	r.NoError(loop.Run(context.Background()))
}

func TestDestroyWaitingFrame(t *testing.T) {
	r := require.New(t)

	s := New(1)
	defer s.Close()

	q := cotask.NewQueue[int]()
	h := cotask.New(func(co *cotask.Co[int]) (int, error) {
		v, _ := cotask.Pop(co, q)
		return v, nil
	}, cotask.WithPolicy(cotask.Eager))

	f, err := Enqueue(s, h)
	r.NoError(err)
	r.True(h.Pending())
	r.NoError(h.Destroy())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.ErrorIs(f.Wait(ctx), cotask.ErrCanceled)
	r.Zero(s.Len())
}
