package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func Test_Controller_TicksRepeatedly(t *testing.T) {
	c := New()
	var ticks atomic.Int32

	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {
		ticks.Add(1)
	})
	defer c.Stop()

	waitFor(t, func() bool { return ticks.Load() >= 3 })
	if !c.Running() {
		t.Error("Running() = false while polling")
	}
}

func Test_Controller_FirstTickIsImmediate(t *testing.T) {
	c := New()
	fired := make(chan struct{}, 1)

	c.Start(context.Background(), Fixed(time.Hour), func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer c.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not run before the first sleep")
	}
}

func Test_Controller_StopTwiceIsNoop(t *testing.T) {
	c := New()
	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {})

	c.Stop()
	c.Stop()
	if c.Running() {
		t.Error("Running() = true after Stop")
	}
}

func Test_Controller_StopWithoutStart(t *testing.T) {
	var c Controller
	c.Stop()
	c.Stop()
	if c.Running() {
		t.Error("Running() = true on idle controller")
	}
}

func Test_Controller_NoTicksAfterStop(t *testing.T) {
	c := New()
	var ticks atomic.Int32
	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {
		ticks.Add(1)
	})
	waitFor(t, func() bool { return ticks.Load() >= 1 })

	c.Stop()
	after := ticks.Load()
	time.Sleep(5 * MinInterval)
	if got := ticks.Load(); got != after {
		t.Errorf("ticks after Stop = %d, want %d", got, after)
	}
}

func Test_Controller_RestartReplacesLoop(t *testing.T) {
	c := New()
	var first, second atomic.Int32

	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {
		first.Add(1)
	})
	waitFor(t, func() bool { return first.Load() >= 1 })

	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {
		second.Add(1)
	})
	defer c.Stop()

	frozen := first.Load()
	waitFor(t, func() bool { return second.Load() >= 3 })
	if got := first.Load(); got != frozen {
		t.Errorf("first loop ticked %d times after restart", got-frozen)
	}
}

func Test_Controller_TicksNeverOverlap(t *testing.T) {
	c := New()
	var (
		active  atomic.Int32
		overlap atomic.Bool
		ticks   atomic.Int32
	)

	c.Start(context.Background(), Fixed(MinInterval), func(ctx context.Context) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		// Slower than the interval.
		time.Sleep(3 * MinInterval)
		active.Add(-1)
		ticks.Add(1)
	})
	waitFor(t, func() bool { return ticks.Load() >= 3 })
	c.Stop()

	if overlap.Load() {
		t.Error("ticks overlapped")
	}
}

func Test_Controller_IntervalReadEachTick(t *testing.T) {
	c := New()
	var (
		mu       sync.Mutex
		interval = MinInterval
		reads    atomic.Int32
		ticks    atomic.Int32
	)
	live := func() time.Duration {
		reads.Add(1)
		mu.Lock()
		defer mu.Unlock()
		return interval
	}

	c.Start(context.Background(), live, func(ctx context.Context) {
		ticks.Add(1)
	})
	waitFor(t, func() bool { return ticks.Load() >= 2 })

	mu.Lock()
	interval = time.Hour
	mu.Unlock()

	c.Stop()
	if r, n := reads.Load(), ticks.Load(); r != n {
		t.Errorf("interval read %d times for %d ticks", r, n)
	}
}

func Test_Controller_ParentCancelEndsLoop(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, Fixed(MinInterval), func(ctx context.Context) {})

	cancel()
	waitFor(t, func() bool { return !c.Running() })
	c.Stop()
}

func Test_Controller_TickSeesCancelledContextOnStop(t *testing.T) {
	c := New()
	started := make(chan struct{})
	var sawCancel atomic.Bool

	c.Start(context.Background(), Fixed(time.Hour), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	<-started
	c.Stop()

	if !sawCancel.Load() {
		t.Error("in-flight tick did not observe cancellation")
	}
}
