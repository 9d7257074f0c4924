package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rvkernel/rvkernel-mcp/internal/poller"
)

func Test_Monitor_RefreshPublishes(t *testing.T) {
	store := NewStore(0)
	m := NewMonitor("test", store, func(ctx context.Context) (int, error) {
		return 42, nil
	}, poller.Fixed(time.Hour))

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := store.Get(); got != 42 {
		t.Errorf("store = %d, want 42", got)
	}
}

func Test_Monitor_RefreshErrorKeepsValue(t *testing.T) {
	store := NewStore(7)
	m := NewMonitor("test", store, func(ctx context.Context) (int, error) {
		return 0, errors.New("shell gone")
	}, poller.Fixed(time.Hour))

	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil")
	}
	if got := store.Get(); got != 7 {
		t.Errorf("store = %d, want 7", got)
	}
}

func Test_Monitor_StartStop(t *testing.T) {
	store := NewStore(0)
	var (
		loads  atomic.Int32
		starts atomic.Int32
	)
	m := NewMonitor("test", store, func(ctx context.Context) (int, error) {
		return int(loads.Add(1)), nil
	}, poller.Fixed(poller.MinInterval))
	m.OnStart = func() { starts.Add(1) }

	m.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for store.Get() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if store.Get() < 2 {
		t.Fatalf("store = %d after polling, want >= 2", store.Get())
	}
	if !m.Running() {
		t.Error("Running() = false")
	}

	m.Start(context.Background())
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("Running() = true after Stop")
	}
	if got := starts.Load(); got != 2 {
		t.Errorf("OnStart ran %d times, want 2", got)
	}
	if m.Name() != "test" || m.Store() != store {
		t.Error("accessors returned unexpected values")
	}
}

func Test_Monitor_OnStartRunsAfterPreviousTickFinishes(t *testing.T) {
	store := NewStore(0)
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	held := make(chan struct{})
	allow := make(chan struct{})
	var loads atomic.Int32
	m := NewMonitor("test", store, func(ctx context.Context) (int, error) {
		n := loads.Add(1)
		if n == 1 {
			close(held)
			<-allow
		}
		record("load")
		return int(n), nil
	}, poller.Fixed(time.Hour))
	m.OnStart = func() { record("start") }
	defer m.Stop()

	m.Start(context.Background())
	<-held

	restarted := make(chan struct{})
	go func() {
		m.Start(context.Background())
		close(restarted)
	}()
	time.Sleep(20 * time.Millisecond)
	close(allow)
	<-restarted

	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()
	want := []string{"start", "load", "start"}
	if len(got) < len(want) {
		t.Fatalf("order = %v, want prefix %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want prefix %v", got, want)
		}
	}
}
