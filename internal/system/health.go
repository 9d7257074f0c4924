package system

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

const thermalZonePrefix = "thermal_zone"

// Compile-time interface check.
var _ SystemMonitor = (*ShellMonitor)(nil)

// ShellMonitor implements SystemMonitor by reading procfs and sysfs through
// the root shell.
type ShellMonitor struct {
	fs  *sysfs.Accessor
	cpu transform.CPUUsage
}

// NewShellMonitor returns a ShellMonitor reading through fs.
func NewShellMonitor(fs *sysfs.Accessor) *ShellMonitor {
	return &ShellMonitor{fs: fs}
}

// GetOverview reads identity from getprop, the kernel release from
// /proc/version, uptime, CPU usage from /proc/stat, memory from
// /proc/meminfo, the GPU load and every thermal zone.
func (m *ShellMonitor) GetOverview(ctx context.Context) (*Overview, error) {
	ov := &Overview{
		Model:          m.fs.CommandOutput(ctx, "getprop", "ro.product.model").String(),
		AndroidVersion: m.fs.CommandOutput(ctx, "getprop", "ro.build.version.release").String(),
		KernelVersion:  kernelRelease(m.fs.Read(ctx, paths.ProcVersion)),
		Uptime:         transform.NotAvailable,
		GPUBusyPercent: transform.NotAvailable,
	}

	// --- Uptime ---
	if fields := strings.Fields(m.fs.Read(ctx, paths.ProcUptime)); len(fields) > 0 {
		if secs, err := strconv.ParseFloat(fields[0], 64); err == nil {
			ov.UptimeSeconds = &secs
			ov.Uptime = FormatUptime(time.Duration(secs * float64(time.Second)))
		}
	}

	// --- CPU ---
	if usage, ok := m.cpu.Sample(m.fs.Read(ctx, paths.ProcStat)); ok {
		ov.CPUUsagePercent = &usage
	}

	// --- Memory ---
	mem := transform.ParseMemInfo(m.fs.Read(ctx, paths.ProcMeminfo))
	ov.MemTotalKB = mem["MemTotal"]
	ov.MemFreeKB = mem["MemFree"]
	ov.MemAvailableKB = mem["MemAvailable"]
	ov.SwapTotalKB = mem["SwapTotal"]
	ov.SwapFreeKB = mem["SwapFree"]

	// --- GPU ---
	if v := strings.TrimSpace(strings.TrimSuffix(m.fs.Read(ctx, paths.GPUBusyPercentage), "%")); v != "" {
		ov.GPUBusyPercent = v
	}

	// --- Temperatures ---
	ov.Temperatures = m.readTemperatures(ctx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ov, nil
}

// Load is GetOverview by value, for use as a state.LoadFunc.
func (m *ShellMonitor) Load(ctx context.Context) (Overview, error) {
	ov, err := m.GetOverview(ctx)
	if err != nil {
		return Overview{}, err
	}
	return *ov, nil
}

// ResetCPU drops the CPU usage baseline.
func (m *ShellMonitor) ResetCPU() {
	m.cpu.Reset()
}

// readTemperatures lists the thermal_zone* directories and reads each
// zone's type and temperature. Zones with an unreadable temperature are
// skipped.
func (m *ShellMonitor) readTemperatures(ctx context.Context) []Temperature {
	var temps []Temperature
	for _, name := range m.fs.List(ctx, paths.ThermalZoneRoot) {
		if _, ok := zoneNumber(name); !ok {
			continue
		}
		dir := paths.ThermalZoneRoot + "/" + name
		celsius, ok := transform.ParseMilliCelsius(m.fs.Read(ctx, dir+"/temp"))
		if !ok {
			continue
		}
		temps = append(temps, Temperature{
			Zone:    name,
			Type:    m.fs.ReadResult(ctx, dir+"/type").String(),
			Celsius: celsius,
		})
	}

	sort.Slice(temps, func(i, j int) bool {
		a, _ := zoneNumber(temps[i].Zone)
		b, _ := zoneNumber(temps[j].Zone)
		return a < b
	})
	return temps
}

func zoneNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, thermalZonePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, thermalZonePrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// kernelRelease extracts the release from a /proc/version line:
//
//	Linux version 5.15.123-android14-11 (builder@host) (clang ...) #1 SMP ...
func kernelRelease(version string) string {
	fields := strings.Fields(version)
	if len(fields) < 3 || fields[0] != "Linux" || fields[1] != "version" {
		if version == "" {
			return transform.NotAvailable
		}
		return strings.TrimSpace(version)
	}
	return fields[2]
}

// FormatUptime renders d as "3d 4h 12m", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
