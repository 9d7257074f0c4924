package system

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/poller"
	"github.com/rvkernel/rvkernel-mcp/internal/shell"
	"github.com/rvkernel/rvkernel-mcp/internal/shell/shelltest"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
)

// statGate holds the first /proc/stat read until released. That read runs
// to completion even if its context is cancelled meanwhile, as a command
// already handed to the root shell does. Later reads see stat2.
type statGate struct {
	dev   *shelltest.Device
	next  string
	once  sync.Once
	held  chan struct{}
	allow chan struct{}
}

func (g *statGate) Run(ctx context.Context, command string) (shell.Result, error) {
	if !strings.Contains(command, paths.ProcStat) {
		return g.dev.Run(ctx, command)
	}
	first := false
	g.once.Do(func() { first = true })
	if !first {
		return g.dev.Run(ctx, command)
	}
	close(g.held)
	<-g.allow
	res, err := g.dev.Run(context.WithoutCancel(ctx), command)
	g.dev.Set(paths.ProcStat, g.next)
	return res, err
}

var _ shell.Runner = (*statGate)(nil)

func Test_Monitor_RestartDuringTickReportsCPUUnavailable(t *testing.T) {
	dev := newDevice(t)
	gate := &statGate{
		dev:   dev,
		next:  readTestdata(t, "stat2"),
		held:  make(chan struct{}),
		allow: make(chan struct{}),
	}
	mon := NewShellMonitor(sysfs.NewAccessor(gate))
	store := state.NewStore(Overview{})
	m := state.NewMonitor("system", store, mon.Load, poller.Fixed(time.Hour))
	m.OnStart = mon.ResetCPU
	defer m.Stop()

	ctx := context.Background()
	m.Start(ctx)
	<-gate.held

	restarted := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(restarted)
	}()
	// Let the restart reach the old loop before the held read completes.
	time.Sleep(20 * time.Millisecond)
	close(gate.allow)
	<-restarted

	deadline := time.Now().Add(3 * time.Second)
	for store.Get().Uptime == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ov := store.Get()
	if ov.Uptime == "" {
		t.Fatal("no overview published after restart")
	}
	if ov.CPUUsagePercent != nil {
		t.Errorf("first tick after restart reported CPU usage %.1f%%, want unavailable", *ov.CPUUsagePercent)
	}
}
