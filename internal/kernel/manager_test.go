package kernel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/shell"
	"github.com/rvkernel/rvkernel-mcp/internal/shell/shelltest"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
)

func newDevice() *shelltest.Device {
	dev := shelltest.NewDevice(map[string]string{
		paths.SchedAutogroup:         "1",
		paths.Printk:                 "4\t4\t1\t7",
		paths.SchedUtilClampMin:      "0",
		paths.SchedUtilClampMax:      "1024",
		paths.TCPCongestion:          "cubic",
		paths.TCPAvailableCongestion: "reno cubic bbr",
		paths.VMSwappiness:           "100",
		paths.VMDirtyRatio:           "20",
		paths.VMDirtyBackgroundRatio: "5",
		paths.ZramDiskSize:           "2147483648",
		paths.ZramCompAlgorithm:      "lzo lzo-rle [lz4] zstd",
		paths.ZramReset:              "",
	})
	ok := func([]string) shell.Result { return shell.Result{} }
	dev.Handle("swapoff", ok)
	dev.Handle("mkswap", ok)
	dev.Handle("swapon", ok)
	return dev
}

func newTestManager(dev *shelltest.Device) (*SysfsManager, *state.Store[Status]) {
	store := state.NewStore(Status{})
	return NewManager(sysfs.NewAccessor(dev), store), store
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func Test_Load(t *testing.T) {
	mgr, _ := newTestManager(newDevice())

	st, err := mgr.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p := st.Params
	if !p.SchedAutogroup.Enabled || p.Printk.Value != "4 4 1 7" {
		t.Errorf("params = %+v", p)
	}
	if p.UtilClampMax.Value != "1024" {
		t.Errorf("UtilClampMax = %+v", p.UtilClampMax)
	}
	if p.TCPCongestion.Current != "cubic" || strings.Join(p.TCPCongestion.Available, ",") != "reno,cubic,bbr" {
		t.Errorf("TCPCongestion = %+v", p.TCPCongestion)
	}

	mem := st.Memory
	if !mem.Zram.Supported || mem.Zram.DiskSizeBytes != 2<<30 || mem.Zram.DiskSize != "2.0 GiB" {
		t.Errorf("zram = %+v", mem.Zram)
	}
	if mem.Zram.Algorithm.Current != "lz4" || len(mem.Zram.Algorithm.Available) != 4 {
		t.Errorf("zram algorithm = %+v", mem.Zram.Algorithm)
	}
	if mem.Swappiness.Value != "100" || mem.DirtyRatio.Value != "20" || mem.DirtyBackgroundRatio.Value != "5" {
		t.Errorf("vm = %+v", mem)
	}
}

func Test_Load_MissingNodes(t *testing.T) {
	mgr, _ := newTestManager(shelltest.NewDevice(nil))

	st, err := mgr.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.Params.SchedAutogroup.Supported || st.Params.TCPCongestion.Supported || st.Params.Printk.Supported {
		t.Errorf("params reported supported: %+v", st.Params)
	}
	if st.Memory.Zram.Supported || st.Memory.Zram.DiskSize != "N/A" || st.Memory.Swappiness.Value != "N/A" {
		t.Errorf("memory = %+v", st.Memory)
	}
}

// ---------------------------------------------------------------------------
// Kernel writes
// ---------------------------------------------------------------------------

func Test_SetPrintk_Cases(t *testing.T) {
	tests := []struct {
		name    string
		levels  string
		want    string
		wantErr error
	}{
		{"spaces", "7 4 1 7", "7 4 1 7", nil},
		{"tabs normalized", "3\t4\t1\t7", "3 4 1 7", nil},
		{"too few", "4 4 1", "4\t4\t1\t7", sysfs.ErrInvalidValue},
		{"out of range", "8 4 1 7", "4\t4\t1\t7", sysfs.ErrInvalidValue},
		{"not a number", "a 4 1 7", "4\t4\t1\t7", sysfs.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			mgr, _ := newTestManager(dev)

			err := mgr.SetPrintk(context.Background(), tt.levels)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetPrintk() error = %v, want %v", err, tt.wantErr)
			}
			if got, _ := dev.File(paths.Printk); got != tt.want {
				t.Errorf("printk = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_SetUtilClamp_Cases(t *testing.T) {
	tests := []struct {
		name    string
		upper   bool
		value   int
		path    string
		want    string
		wantErr error
	}{
		{"min", false, 128, paths.SchedUtilClampMin, "128", nil},
		{"max", true, 900, paths.SchedUtilClampMax, "900", nil},
		{"too large", true, 1025, paths.SchedUtilClampMax, "1024", sysfs.ErrInvalidValue},
		{"negative", false, -1, paths.SchedUtilClampMin, "0", sysfs.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			mgr, _ := newTestManager(dev)

			err := mgr.SetUtilClamp(context.Background(), tt.upper, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetUtilClamp() error = %v, want %v", err, tt.wantErr)
			}
			if got, _ := dev.File(tt.path); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func Test_SetUtilClamp_RejectsCrossing(t *testing.T) {
	dev := newDevice()
	dev.Set(paths.SchedUtilClampMax, "512")
	mgr, _ := newTestManager(dev)

	err := mgr.SetUtilClamp(context.Background(), false, 600)
	if !errors.Is(err, sysfs.ErrInvalidValue) {
		t.Errorf("min above max error = %v, want ErrInvalidValue", err)
	}
}

func Test_SetTCPCongestion(t *testing.T) {
	dev := newDevice()
	mgr, store := newTestManager(dev)
	ctx := context.Background()

	if err := mgr.SetTCPCongestion(ctx, "westwood"); !errors.Is(err, sysfs.ErrInvalidValue) {
		t.Errorf("unavailable algorithm error = %v", err)
	}
	if err := mgr.SetTCPCongestion(ctx, "bbr"); err != nil {
		t.Fatalf("SetTCPCongestion(bbr) error = %v", err)
	}
	if got := store.Get().Params.TCPCongestion.Current; got != "bbr" {
		t.Errorf("stored congestion = %q", got)
	}
}

func Test_SetSchedAutogroup_Unsupported(t *testing.T) {
	dev := newDevice()
	dev.Remove(paths.SchedAutogroup)
	mgr, _ := newTestManager(dev)

	if err := mgr.SetSchedAutogroup(context.Background(), false); !errors.Is(err, sysfs.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

// ---------------------------------------------------------------------------
// Memory writes
// ---------------------------------------------------------------------------

func Test_SetVM_Cases(t *testing.T) {
	tests := []struct {
		name    string
		set     func(m *SysfsManager) error
		path    string
		want    string
		wantErr error
	}{
		{"swappiness", func(m *SysfsManager) error { return m.SetSwappiness(context.Background(), 60) },
			paths.VMSwappiness, "60", nil},
		{"swappiness above 200", func(m *SysfsManager) error { return m.SetSwappiness(context.Background(), 201) },
			paths.VMSwappiness, "100", sysfs.ErrInvalidValue},
		{"dirty ratio", func(m *SysfsManager) error { return m.SetDirtyRatio(context.Background(), false, 30) },
			paths.VMDirtyRatio, "30", nil},
		{"dirty background ratio", func(m *SysfsManager) error { return m.SetDirtyRatio(context.Background(), true, 10) },
			paths.VMDirtyBackgroundRatio, "10", nil},
		{"dirty ratio above 100", func(m *SysfsManager) error { return m.SetDirtyRatio(context.Background(), false, 101) },
			paths.VMDirtyRatio, "20", sysfs.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			mgr, _ := newTestManager(dev)

			if err := tt.set(mgr); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got, _ := dev.File(tt.path); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func zramCommands(dev *shelltest.Device) []string {
	var out []string
	for _, cmd := range dev.Commands() {
		switch {
		case strings.HasPrefix(cmd, "swap"), strings.HasPrefix(cmd, "mkswap"), strings.HasPrefix(cmd, "echo"):
			out = append(out, cmd)
		}
	}
	return out
}

func Test_SetZramAlgorithm_Sequence(t *testing.T) {
	dev := newDevice()
	mgr, _ := newTestManager(dev)

	if err := mgr.SetZramAlgorithm(context.Background(), "zstd"); err != nil {
		t.Fatalf("SetZramAlgorithm() error = %v", err)
	}

	want := []string{
		"swapoff '/dev/block/zram0'",
		"echo '1' > '" + paths.ZramReset + "'",
		"echo 'zstd' > '" + paths.ZramCompAlgorithm + "'",
		"echo '2147483648' > '" + paths.ZramDiskSize + "'",
		"mkswap '/dev/block/zram0'",
		"swapon '/dev/block/zram0'",
	}
	if got := zramCommands(dev); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func Test_SetZramAlgorithm_CompletesAfterCancel(t *testing.T) {
	dev := newDevice()
	mgr, _ := newTestManager(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dev.Handle("swapoff", func([]string) shell.Result {
		cancel()
		return shell.Result{}
	})

	if err := mgr.SetZramAlgorithm(ctx, "zstd"); err != nil {
		t.Fatalf("SetZramAlgorithm() error = %v", err)
	}
	got := zramCommands(dev)
	if len(got) != 6 || got[5] != "swapon '/dev/block/zram0'" {
		t.Errorf("sequence interrupted by cancellation:\n%s", strings.Join(got, "\n"))
	}
}

func Test_SetZramAlgorithm_Unavailable(t *testing.T) {
	dev := newDevice()
	mgr, _ := newTestManager(dev)

	err := mgr.SetZramAlgorithm(context.Background(), "deflate")
	if !errors.Is(err, sysfs.ErrInvalidValue) {
		t.Fatalf("error = %v, want ErrInvalidValue", err)
	}
	if got := zramCommands(dev); len(got) != 0 {
		t.Errorf("commands issued: %v", got)
	}
}

func Test_SetZramSize_KeepsAlgorithm(t *testing.T) {
	dev := newDevice()
	mgr, store := newTestManager(dev)

	if err := mgr.SetZramSize(context.Background(), 4<<30); err != nil {
		t.Fatalf("SetZramSize() error = %v", err)
	}
	if got, _ := dev.File(paths.ZramDiskSize); got != "4294967296" {
		t.Errorf("disksize = %q", got)
	}
	if got, _ := dev.File(paths.ZramCompAlgorithm); got != "lz4" {
		t.Errorf("comp_algorithm = %q, want lz4", got)
	}
	if got := store.Get().Memory.Zram.DiskSize; got != "4.0 GiB" {
		t.Errorf("stored size = %q", got)
	}
}

func Test_SetZramSize_Errors(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		mgr, _ := newTestManager(newDevice())
		if err := mgr.SetZramSize(context.Background(), 0); !errors.Is(err, sysfs.ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("no zram", func(t *testing.T) {
		mgr, _ := newTestManager(shelltest.NewDevice(nil))
		if err := mgr.SetZramSize(context.Background(), 1<<30); !errors.Is(err, sysfs.ErrUnsupported) {
			t.Errorf("error = %v, want ErrUnsupported", err)
		}
	})

	t.Run("mkswap fails", func(t *testing.T) {
		dev := newDevice()
		dev.Handle("mkswap", func([]string) shell.Result { return shell.Result{ExitStatus: 1} })
		mgr, store := newTestManager(dev)

		if err := mgr.SetZramSize(context.Background(), 1<<30); !errors.Is(err, sysfs.ErrWriteFailed) {
			t.Errorf("error = %v, want ErrWriteFailed", err)
		}
		if store.Snapshot().Version != 0 {
			t.Error("store updated after failed reconfigure")
		}
	})

	t.Run("denied touches nothing", func(t *testing.T) {
		dev := newDevice()
		fs := sysfs.NewAccessor(dev).WithGuard(func(p string) bool { return p != paths.ZramReset })
		mgr := NewManager(fs, nil)

		if err := mgr.SetZramSize(context.Background(), 1<<30); !errors.Is(err, sysfs.ErrDenied) {
			t.Errorf("error = %v, want ErrDenied", err)
		}
		if got := zramCommands(dev); len(got) != 0 {
			t.Errorf("commands issued: %v", got)
		}
	})
}
