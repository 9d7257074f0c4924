package state

import (
	"context"
	"log"
	"sync"

	"github.com/rvkernel/rvkernel-mcp/internal/poller"
)

// LoadFunc reads a full snapshot of one screen from the device.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Monitor keeps a Store fresh by polling a LoadFunc.
type Monitor[T any] struct {
	name     string
	store    *Store[T]
	load     LoadFunc[T]
	interval poller.IntervalFunc
	ctrl     *poller.Controller
	op       sync.Mutex // serializes Start and Stop

	// OnStart, if set, runs before each Start, after any previous loop
	// has exited. Loaders with differential
	// state use it to drop their baseline.
	OnStart func()
}

// NewMonitor returns a stopped Monitor that publishes load results to
// store every interval.
func NewMonitor[T any](name string, store *Store[T], load LoadFunc[T], interval poller.IntervalFunc) *Monitor[T] {
	return &Monitor[T]{
		name:     name,
		store:    store,
		load:     load,
		interval: interval,
		ctrl:     poller.New(),
	}
}

// Name returns the monitor's name.
func (m *Monitor[T]) Name() string { return m.name }

// Store returns the store the monitor publishes to.
func (m *Monitor[T]) Store() *Store[T] { return m.store }

// Start begins polling. Calling Start again restarts the loop.
func (m *Monitor[T]) Start(ctx context.Context) {
	m.op.Lock()
	defer m.op.Unlock()

	// The old loop, including any in-flight tick, exits before OnStart.
	m.ctrl.Stop()
	if m.OnStart != nil {
		m.OnStart()
	}
	m.ctrl.Start(ctx, m.interval, func(ctx context.Context) {
		if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Printf("%s monitor: %v", m.name, err)
		}
	})
}

// Stop halts polling. It is safe to call more than once.
func (m *Monitor[T]) Stop() {
	m.op.Lock()
	defer m.op.Unlock()
	m.ctrl.Stop()
}

// Running reports whether the monitor is polling.
func (m *Monitor[T]) Running() bool {
	return m.ctrl.Running()
}

// Refresh loads once and publishes the result. On error the store keeps
// its previous value.
func (m *Monitor[T]) Refresh(ctx context.Context) error {
	v, err := m.load(ctx)
	if err != nil {
		return err
	}
	m.store.Set(v)
	return nil
}
