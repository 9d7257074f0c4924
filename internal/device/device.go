// Package device assembles the managers, stores and monitors for one
// device behind a single root shell. Both binaries build their services
// through it.
package device

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rvkernel/rvkernel-mcp/internal/battery"
	"github.com/rvkernel/rvkernel-mcp/internal/config"
	"github.com/rvkernel/rvkernel-mcp/internal/httpapi"
	"github.com/rvkernel/rvkernel-mcp/internal/kernel"
	"github.com/rvkernel/rvkernel-mcp/internal/poller"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/shell"
	"github.com/rvkernel/rvkernel-mcp/internal/soc"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/system"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
	"github.com/rvkernel/rvkernel-mcp/internal/tunable"
)

// Screen names, as used in URLs and monitor log lines.
const (
	ScreenSystem  = "system"
	ScreenSoC     = "soc"
	ScreenBattery = "battery"
	ScreenKernel  = "kernel"
)

// Device owns every service built on one accessor.
type Device struct {
	FS *sysfs.Accessor

	SoC      *soc.SysfsManager
	Battery  *battery.SysfsManager
	Kernel   *kernel.SysfsManager
	System   *system.ShellMonitor
	Tunables *tunable.Service

	SystemMonitor  *state.Monitor[system.Overview]
	SoCMonitor     *state.Monitor[soc.Status]
	BatteryMonitor *state.Monitor[battery.Status]
	KernelMonitor  *state.Monitor[kernel.Status]
}

// New builds the services over fs. Monitors are created stopped and poll
// at interval once started.
func New(fs *sysfs.Accessor, interval poller.IntervalFunc) *Device {
	socStore := state.NewStore(soc.Status{})
	batteryStore := state.NewStore(battery.Status{})
	kernelStore := state.NewStore(kernel.Status{})
	systemStore := state.NewStore(system.Overview{})

	d := &Device{
		FS:       fs,
		SoC:      soc.NewManager(fs, socStore),
		Battery:  battery.NewManager(fs, batteryStore),
		Kernel:   kernel.NewManager(fs, kernelStore),
		System:   system.NewShellMonitor(fs),
		Tunables: tunable.NewService(fs),
	}

	d.SystemMonitor = state.NewMonitor(ScreenSystem, systemStore, d.System.Load, interval)
	d.SystemMonitor.OnStart = d.System.ResetCPU
	d.SoCMonitor = state.NewMonitor(ScreenSoC, socStore, d.SoC.Load, interval)
	d.BatteryMonitor = state.NewMonitor(ScreenBattery, batteryStore, d.Battery.Load, interval)
	d.KernelMonitor = state.NewMonitor(ScreenKernel, kernelStore, d.Kernel.Load, interval)
	return d
}

// Start starts every monitor. Each polls independently.
func (d *Device) Start(ctx context.Context) {
	d.SystemMonitor.Start(ctx)
	d.SoCMonitor.Start(ctx)
	d.BatteryMonitor.Start(ctx)
	d.KernelMonitor.Start(ctx)
}

// Stop stops every monitor and waits for in-flight ticks.
func (d *Device) Stop() {
	d.SystemMonitor.Stop()
	d.SoCMonitor.Stop()
	d.BatteryMonitor.Stop()
	d.KernelMonitor.Stop()
}

// Screens exposes the monitors to the HTTP state routes.
func (d *Device) Screens() map[string]httpapi.Screen {
	return map[string]httpapi.Screen{
		ScreenSystem:  httpapi.MonitorScreen(d.SystemMonitor),
		ScreenSoC:     httpapi.MonitorScreen(d.SoCMonitor),
		ScreenBattery: httpapi.MonitorScreen(d.BatteryMonitor),
		ScreenKernel:  httpapi.MonitorScreen(d.KernelMonitor),
	}
}

// DestructiveTools lists every tool that needs a confirmation token.
func DestructiveTools() []string {
	var names []string
	names = append(names, soc.DestructiveTools...)
	names = append(names, battery.DestructiveTools...)
	names = append(names, kernel.DestructiveTools...)
	names = append(names, tunable.DestructiveTools...)
	return names
}

// Registrations returns the MCP tools for every service.
func (d *Device) Registrations(confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	var regs []tools.Registration
	regs = append(regs, system.SystemTools(d.System, audit)...)
	regs = append(regs, soc.SoCTools(d.SoC, confirm, audit)...)
	regs = append(regs, battery.BatteryTools(d.Battery, confirm, audit)...)
	regs = append(regs, kernel.KernelTools(d.Kernel, confirm, audit)...)
	regs = append(regs, tunable.TunableTools(d.Tunables, confirm, audit)...)
	return regs
}

// OpenShell starts the root shell described by sc and returns it with an
// accessor bound to it. The caller closes the session.
func OpenShell(ctx context.Context, sc config.ShellConfig) (shell.Session, *sysfs.Accessor, error) {
	switch sc.Backend {
	case config.BackendLocal, "":
		sh, err := shell.NewLocalShell(sc.SuBinary)
		if err != nil {
			return nil, nil, err
		}
		if !sh.IsRoot(ctx) {
			log.Printf("warning: %s session is not root; most tunables will read as unsupported", sc.SuBinary)
		}
		return sh, sysfs.NewLocalAccessor(sh), nil

	case config.BackendSSH:
		sh, err := shell.NewSSHShell(SSHConfig(sc))
		if err != nil {
			return nil, nil, err
		}
		if err := sh.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return sh, sysfs.NewAccessor(sh), nil

	default:
		return nil, nil, fmt.Errorf("unknown shell backend %q", sc.Backend)
	}
}

// SSHConfig translates the ssh section of the configuration. A key path
// selects key auth, a password selects password auth, and neither falls
// back to the SSH agent.
func SSHConfig(sc config.ShellConfig) shell.SSHConfig {
	var auth shell.AuthMethod
	switch {
	case sc.SSH.KeyPath != "":
		auth = shell.KeyAuth{PrivateKeyPath: sc.SSH.KeyPath, Passphrase: sc.SSH.Passphrase}
	case sc.SSH.Password != "":
		auth = shell.PasswordAuth{Password: sc.SSH.Password}
	default:
		auth = shell.AgentAuth{}
	}
	return shell.SSHConfig{
		Host:           sc.SSH.Host,
		Port:           sc.SSH.Port,
		User:           sc.SSH.User,
		Auth:           auth,
		KnownHostsPath: sc.SSH.KnownHostsPath,
		UseSu:          sc.SSH.UseSu,
		SuBinary:       sc.SuBinary,
		CommandTimeout: time.Duration(sc.CommandTimeout) * time.Second,
	}
}
