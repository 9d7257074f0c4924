// Package poller runs a refresh callback on a live interval.
package poller

import (
	"context"
	"sync"
	"time"
)

// MinInterval is the shortest sleep between ticks. Shorter or non-positive
// intervals are raised to it.
const MinInterval = 10 * time.Millisecond

// IntervalFunc returns the current polling interval. It is consulted once
// per tick, so a changed setting applies from the next sleep.
type IntervalFunc func() time.Duration

// Fixed returns an IntervalFunc that always yields d.
func Fixed(d time.Duration) IntervalFunc {
	return func() time.Duration { return d }
}

// Controller owns at most one polling loop. Ticks run sequentially on the
// loop goroutine and never overlap. The zero value is ready to use.
//
// Start and Stop must not be called from inside onTick.
type Controller struct {
	op sync.Mutex // serializes Start and Stop

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle Controller.
func New() *Controller {
	return &Controller{}
}

// Start launches a loop that reads the interval, calls onTick and sleeps
// for that interval, until ctx is cancelled or Stop is called. A loop that
// is already running is stopped first and has fully exited by the time the
// new one starts.
func (c *Controller) Start(ctx context.Context, interval IntervalFunc, onTick func(ctx context.Context)) {
	c.op.Lock()
	defer c.op.Unlock()

	c.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go run(loopCtx, done, interval, onTick)
}

// Stop cancels the running loop and waits for it to exit. A tick already in
// progress is allowed to finish. Calling Stop on an idle Controller does
// nothing.
func (c *Controller) Stop() {
	c.op.Lock()
	defer c.op.Unlock()
	c.stopLocked()
}

// Running reports whether a loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (c *Controller) stopLocked() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func run(ctx context.Context, done chan<- struct{}, interval IntervalFunc, onTick func(ctx context.Context)) {
	defer close(done)

	for {
		d := interval()
		if d < MinInterval {
			d = MinInterval
		}

		onTick(ctx)
		if ctx.Err() != nil {
			return
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
