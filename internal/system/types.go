// Package system reports a device overview: identity, kernel, uptime, CPU
// load, memory and thermal zones.
package system

import "context"

// Overview holds a point-in-time snapshot of the device.
type Overview struct {
	// Model and AndroidVersion come from the property service and are
	// "N/A" when getprop is unavailable.
	Model          string `json:"model"`
	AndroidVersion string `json:"android_version"`

	// KernelVersion is the release string from /proc/version.
	KernelVersion string `json:"kernel_version"`

	// Uptime is a human-readable rendering of UptimeSeconds.
	UptimeSeconds *float64 `json:"uptime_seconds"`
	Uptime        string   `json:"uptime"`

	// CPUUsagePercent is the overall CPU utilisation since the previous
	// sample (0–100). It is nil on the first sample after a start.
	CPUUsagePercent *float64 `json:"cpu_usage_percent"`

	// Memory figures in kibibytes, as reported by /proc/meminfo.
	MemTotalKB     uint64 `json:"mem_total_kb"`
	MemFreeKB      uint64 `json:"mem_free_kb"`
	MemAvailableKB uint64 `json:"mem_available_kb"`
	SwapTotalKB    uint64 `json:"swap_total_kb"`
	SwapFreeKB     uint64 `json:"swap_free_kb"`

	// GPUBusyPercent is the GPU load, or "N/A".
	GPUBusyPercent string `json:"gpu_busy_percent"`

	// Temperatures lists every readable thermal zone, ordered by zone
	// number.
	Temperatures []Temperature `json:"temperatures"`
}

// Temperature is one thermal zone reading.
type Temperature struct {
	// Zone is the sysfs directory name, e.g. "thermal_zone12".
	Zone string `json:"zone"`

	// Type is the sensor name reported by the zone, e.g. "cpu-1-0-usr".
	Type string `json:"type"`

	// Celsius is the zone temperature converted from millidegrees.
	Celsius float64 `json:"celsius"`
}

// SystemMonitor defines the read-only operations for the device overview.
type SystemMonitor interface {
	// GetOverview returns a current snapshot. Unreadable sources leave
	// their fields empty rather than failing the whole overview.
	GetOverview(ctx context.Context) (*Overview, error)

	// ResetCPU drops the CPU usage baseline so the next overview reports
	// no usage.
	ResetCPU()
}
