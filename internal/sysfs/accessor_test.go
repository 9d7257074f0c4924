package sysfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rvkernel/rvkernel-mcp/internal/shell"
	"github.com/rvkernel/rvkernel-mcp/internal/shell/shelltest"
)

const (
	governorPath = "/sys/devices/system/cpu/cpufreq/policy0/scaling_governor"
	sconfigPath  = "/sys/class/thermal/thermal_message/sconfig"
)

func newDevice() *shelltest.Device {
	return shelltest.NewDevice(map[string]string{
		governorPath: "schedutil\n",
		sconfigPath:  "0",
	})
}

// --- Exists ---

func Test_Accessor_Exists_Cases(t *testing.T) {
	a := NewAccessor(newDevice())
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"present", governorPath, true},
		{"missing", "/sys/devices/system/cpu/cpufreq/policy4/scaling_governor", false},
		{"invalid path", "/sys/node; reboot", false},
		{"relative", "sys/node", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Exists(ctx, tt.path); got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func Test_Accessor_Exists_LocalStatShortCircuits(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "node")
	if err := os.WriteFile(local, []byte("1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dev := newDevice()
	a := NewLocalAccessor(dev)
	if !a.Exists(context.Background(), local) {
		t.Fatalf("Exists(%q) = false, want true", local)
	}
	if n := len(dev.Commands()); n != 0 {
		t.Errorf("shell received %d commands, want 0", n)
	}

	// Falls back to the shell when the direct stat fails.
	if !a.Exists(context.Background(), governorPath) {
		t.Error("Exists(governor) = false, want true via shell")
	}
	if n := len(dev.Commands()); n != 1 {
		t.Errorf("shell received %d commands, want 1", n)
	}
}

func Test_Accessor_Exists_RunError(t *testing.T) {
	dev := newDevice()
	dev.SetRunError(shell.ErrShellClosed)
	a := NewAccessor(dev)
	if a.Exists(context.Background(), governorPath) {
		t.Error("Exists() = true with a closed shell")
	}
}

// --- Read ---

func Test_Accessor_Read_Cases(t *testing.T) {
	dev := newDevice()
	dev.Set("/proc/version", "Linux version 5.10.0\n\n")
	dev.Set("/sys/empty", "")
	a := NewAccessor(dev)
	ctx := context.Background()

	tests := []struct {
		name       string
		path       string
		want       string
		wantOK     bool
		wantString string
	}{
		{"trimmed", governorPath, "schedutil", true, "schedutil"},
		{"trailing blank lines", "/proc/version", "Linux version 5.10.0", true, "Linux version 5.10.0"},
		{"empty file", "/sys/empty", "", true, NotAvailable},
		{"missing", "/sys/missing", "", false, NotAvailable},
		{"invalid", "/sys/$(id)", "", false, NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Read(ctx, tt.path); got != tt.want {
				t.Errorf("Read(%q) = %q, want %q", tt.path, got, tt.want)
			}
			r := a.ReadResult(ctx, tt.path)
			if r.OK != tt.wantOK {
				t.Errorf("ReadResult(%q).OK = %v, want %v", tt.path, r.OK, tt.wantOK)
			}
			if r.String() != tt.wantString {
				t.Errorf("ReadResult(%q).String() = %q, want %q", tt.path, r.String(), tt.wantString)
			}
		})
	}
}

func Test_Accessor_MissingPathReadsEmpty(t *testing.T) {
	a := NewAccessor(newDevice())
	ctx := context.Background()
	path := "/sys/class/kgsl/kgsl-3d0/devfreq/adrenoboost"

	if a.Exists(ctx, path) {
		t.Fatal("Exists() = true for missing node")
	}
	if got := a.Read(ctx, path); got != "" {
		t.Errorf("Read() = %q, want empty", got)
	}
}

// --- Write ---

func Test_Accessor_WriteThenRead(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev)
	ctx := context.Background()

	if !a.Write(ctx, governorPath, "performance") {
		t.Fatal("Write() = false")
	}
	if got := a.Read(ctx, governorPath); got != "performance" {
		t.Errorf("Read() after Write = %q, want %q", got, "performance")
	}
}

func Test_Accessor_Write_Cases(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *shelltest.Device)
		path  string
		value string
		want  bool
	}{
		{name: "ok", path: governorPath, value: "powersave", want: true},
		{name: "missing node", path: "/sys/missing", value: "1", want: false},
		{name: "kernel rejects", setup: func(d *shelltest.Device) { d.FailWrites(governorPath) }, path: governorPath, value: "bogus", want: false},
		{name: "read-only", setup: func(d *shelltest.Device) { d.SetMode(sconfigPath, "444") }, path: sconfigPath, value: "10", want: false},
		{name: "closed shell", setup: func(d *shelltest.Device) { d.SetRunError(shell.ErrShellClosed) }, path: governorPath, value: "x", want: false},
		{name: "invalid path", path: "/sys/a b", value: "1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			if tt.setup != nil {
				tt.setup(dev)
			}
			a := NewAccessor(dev)
			if got := a.Write(context.Background(), tt.path, tt.value); got != tt.want {
				t.Errorf("Write() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Accessor_Write_QuotesValue(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev)

	a.Write(context.Background(), governorPath, "x'; reboot; echo '")
	cmds := dev.Commands()
	if len(cmds) != 1 {
		t.Fatalf("commands = %v", cmds)
	}
	if v, _ := dev.File(governorPath); v != "x'; reboot; echo '" {
		t.Errorf("file = %q, value was not passed literally", v)
	}
}

// --- Permissions ---

func Test_Accessor_SetPermissions_Cases(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		path     string
		wantCmds int
	}{
		{"valid", "666", sconfigPath, 1},
		{"bad mode", "u+w", sconfigPath, 0},
		{"bad path", "666", "/sys/x;y", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			NewAccessor(dev).SetPermissions(context.Background(), tt.mode, tt.path)
			if n := len(dev.Commands()); n != tt.wantCmds {
				t.Errorf("commands = %d, want %d", n, tt.wantCmds)
			}
		})
	}
}

func Test_Accessor_WithWritable_RelocksOnSuccess(t *testing.T) {
	dev := newDevice()
	dev.SetMode(sconfigPath, "444")
	a := NewAccessor(dev)

	ok := a.WriteLocked(context.Background(), sconfigPath, "10", "666", "444")
	if !ok {
		t.Fatal("WriteLocked() = false")
	}
	if v, _ := dev.File(sconfigPath); v != "10" {
		t.Errorf("sconfig = %q, want 10", v)
	}
	if m := dev.Mode(sconfigPath); m != "444" {
		t.Errorf("mode = %q, want 444", m)
	}
}

func Test_Accessor_WithWritable_RelocksOnError(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev)
	wantErr := errors.New("boom")

	err := a.WithWritable(context.Background(), sconfigPath, "666", "444", func(ctx context.Context) error {
		if m := dev.Mode(sconfigPath); m != "666" {
			t.Errorf("mode inside fn = %q, want 666", m)
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("WithWritable() error = %v, want %v", err, wantErr)
	}
	if m := dev.Mode(sconfigPath); m != "444" {
		t.Errorf("mode = %q, want 444", m)
	}
}

func Test_Accessor_WithWritable_RelocksOnPanic(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev)

	func() {
		defer func() { _ = recover() }()
		_ = a.WithWritable(context.Background(), sconfigPath, "666", "444", func(ctx context.Context) error {
			panic("write exploded")
		})
	}()

	if m := dev.Mode(sconfigPath); m != "444" {
		t.Errorf("mode after panic = %q, want 444", m)
	}
}

func Test_Accessor_WithWritable_RelocksAfterCancel(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev)
	ctx, cancel := context.WithCancel(context.Background())

	_ = a.WithWritable(ctx, sconfigPath, "666", "444", func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})

	if m := dev.Mode(sconfigPath); m != "444" {
		t.Errorf("mode after cancel = %q, want 444", m)
	}
}

func Test_Accessor_WriteLocked_FailedWriteStillRelocks(t *testing.T) {
	dev := newDevice()
	dev.FailWrites(sconfigPath)
	a := NewAccessor(dev)

	if a.WriteLocked(context.Background(), sconfigPath, "10", "666", "444") {
		t.Error("WriteLocked() = true for rejected write")
	}
	if m := dev.Mode(sconfigPath); m != "444" {
		t.Errorf("mode = %q, want 444", m)
	}
}

// --- List / Command ---

func Test_Accessor_List(t *testing.T) {
	dev := shelltest.NewDevice(map[string]string{
		"/sys/class/thermal/thermal_zone0/temp": "40000",
		"/sys/class/thermal/thermal_zone1/temp": "41000",
	})
	a := NewAccessor(dev)

	got := a.List(context.Background(), "/sys/class/thermal")
	if strings.Join(got, ",") != "thermal_zone0,thermal_zone1" {
		t.Errorf("List() = %v", got)
	}
	if got := a.List(context.Background(), "/sys/none"); got != nil {
		t.Errorf("List(missing) = %v, want nil", got)
	}
}

func Test_Accessor_Command(t *testing.T) {
	dev := newDevice()
	var gotArgs []string
	dev.Handle("swapoff", func(args []string) shell.Result {
		gotArgs = args
		return shell.Result{}
	})
	a := NewAccessor(dev)

	if !a.Command(context.Background(), "swapoff", "/dev/block/zram0") {
		t.Fatal("Command() = false")
	}
	if len(gotArgs) != 2 || gotArgs[1] != "/dev/block/zram0" {
		t.Errorf("args = %q", gotArgs)
	}
	if a.Command(context.Background(), "mkswap", "/dev/block/zram0") {
		t.Error("Command() for unknown binary = true")
	}
}

func Test_Accessor_CommandOutput(t *testing.T) {
	dev := newDevice()
	dev.Handle("getprop", func(args []string) shell.Result {
		if len(args) == 2 && args[1] == "ro.product.model" {
			return shell.Result{Stdout: []string{"Pixel 7"}}
		}
		return shell.Result{ExitStatus: 1}
	})
	a := NewAccessor(dev)

	if got := a.CommandOutput(context.Background(), "getprop", "ro.product.model").String(); got != "Pixel 7" {
		t.Errorf("CommandOutput() = %q, want %q", got, "Pixel 7")
	}
	if got := a.CommandOutput(context.Background(), "getprop", "ro.missing"); got.OK {
		t.Errorf("CommandOutput(missing) = %+v, want not OK", got)
	}
}

// --- Apply ---

func Test_Accessor_Apply_Cases(t *testing.T) {
	denyGovernor := func(path string) bool { return path != governorPath }

	tests := []struct {
		name    string
		guard   Guard
		setup   func(d *shelltest.Device)
		path    string
		wantErr error
	}{
		{name: "written", path: governorPath},
		{name: "guard allows", guard: func(string) bool { return true }, path: governorPath},
		{name: "guard denies", guard: denyGovernor, path: governorPath, wantErr: ErrDenied},
		{name: "write rejected", setup: func(d *shelltest.Device) { d.FailWrites(governorPath) }, path: governorPath, wantErr: ErrWriteFailed},
		{name: "missing node", path: "/sys/missing", wantErr: ErrWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice()
			if tt.setup != nil {
				tt.setup(dev)
			}
			a := NewAccessor(dev)
			if tt.guard != nil {
				a = a.WithGuard(tt.guard)
			}

			err := a.Apply(context.Background(), tt.path, "performance")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func Test_Accessor_Apply_DeniedDoesNotTouchShell(t *testing.T) {
	dev := newDevice()
	a := NewAccessor(dev).WithGuard(func(string) bool { return false })

	if err := a.ApplyLocked(context.Background(), sconfigPath, "10", "644", "444"); !errors.Is(err, ErrDenied) {
		t.Fatalf("ApplyLocked() error = %v, want ErrDenied", err)
	}
	if n := len(dev.Commands()); n != 0 {
		t.Errorf("shell received %d commands, want 0", n)
	}
}

func Test_Accessor_WithGuard_LeavesOriginalUnguarded(t *testing.T) {
	base := NewAccessor(newDevice())
	_ = base.WithGuard(func(string) bool { return false })
	if !base.Allowed(governorPath) {
		t.Error("WithGuard mutated the original accessor")
	}
}
