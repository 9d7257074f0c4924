// Package paths is the registry of kernel nodes rvkernel-mcp reads and
// writes. Every node is a fixed absolute path known at compile time; the
// only runtime decision is which cpufreq policy backs the big cluster.
package paths

import "sort"

// Group is the feature a tunable belongs to.
type Group string

const (
	GroupCPU     Group = "cpu"
	GroupGPU     Group = "gpu"
	GroupBattery Group = "battery"
	GroupMemory  Group = "memory"
	GroupKernel  Group = "kernel"
	GroupNetwork Group = "network"
	GroupThermal Group = "thermal"
	GroupSystem  Group = "system"
)

// Unit is the unit a node stores frequencies in. Callers must honour the
// unit of each node rather than assume one for a whole device.
type Unit int

const (
	UnitNone Unit = iota
	UnitKHz
	UnitHz
	UnitMHz
)

// String returns the unit suffix.
func (u Unit) String() string {
	switch u {
	case UnitKHz:
		return "kHz"
	case UnitHz:
		return "Hz"
	case UnitMHz:
		return "MHz"
	default:
		return ""
	}
}

// TunablePath names one kernel node.
type TunablePath struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Group       Group  `json:"group"`
	Unit        Unit   `json:"-"`
	Description string `json:"description"`

	// UnlockMode and RelockMode are set for nodes kept read-only between
	// writes. Writers chmod to UnlockMode, write, then chmod to RelockMode.
	UnlockMode string `json:"-"`
	RelockMode string `json:"-"`
}

// Locked reports whether the node must be unlocked around a write.
func (t TunablePath) Locked() bool { return t.UnlockMode != "" }

// The thermal profile node stays read-only except during a write.
const (
	ThermalUnlockMode = "644"
	ThermalRelockMode = "444"
)

const (
	cpufreqRoot = "/sys/devices/system/cpu/cpufreq"
	kgslRoot    = "/sys/class/kgsl/kgsl-3d0"
	batteryRoot = "/sys/class/power_supply/battery"
	zramRoot    = "/sys/block/zram0"
)

// GPU nodes (Adreno kgsl). devfreq nodes are in Hz, the frequency table in
// MHz.
const (
	GPUMinFreq            = kgslRoot + "/devfreq/min_freq"
	GPUMaxFreq            = kgslRoot + "/devfreq/max_freq"
	GPUCurFreq            = kgslRoot + "/gpuclk"
	GPUAvailableFreqs     = kgslRoot + "/freq_table_mhz"
	GPUGovernor           = kgslRoot + "/devfreq/governor"
	GPUAvailableGovernors = kgslRoot + "/devfreq/available_governors"
	GPUBusyPercentage     = kgslRoot + "/gpu_busy_percentage"
	GPUAdrenoBoost        = kgslRoot + "/devfreq/adrenoboost"
	GPUThrottling         = kgslRoot + "/throttling"
	GPUModel              = kgslRoot + "/gpu_model"
)

// Battery nodes.
const (
	BatteryCapacity     = batteryRoot + "/capacity"
	BatteryStatus       = batteryRoot + "/status"
	BatteryHealth       = batteryRoot + "/health"
	BatteryTechnology   = batteryRoot + "/technology"
	BatteryTemp         = batteryRoot + "/temp"
	BatteryVoltageNow   = batteryRoot + "/voltage_now"
	BatteryCurrentNow   = batteryRoot + "/current_now"
	BatteryChargeFull   = batteryRoot + "/charge_full"
	BatteryChargeDesign = batteryRoot + "/charge_full_design"
	BatteryCycleCount   = batteryRoot + "/cycle_count"
	BatteryInputSuspend = batteryRoot + "/input_suspend"
	BatteryFastCharge   = "/sys/kernel/fast_charge/force_fast_charge"
)

// Thermal nodes.
const (
	ThermalProfile  = "/sys/class/thermal/thermal_message/sconfig"
	ThermalZoneRoot = "/sys/class/thermal"
)

// Memory nodes.
const (
	ZramDiskSize           = zramRoot + "/disksize"
	ZramCompAlgorithm      = zramRoot + "/comp_algorithm"
	ZramReset              = zramRoot + "/reset"
	ZramDevice             = "/dev/block/zram0"
	VMSwappiness           = "/proc/sys/vm/swappiness"
	VMDirtyRatio           = "/proc/sys/vm/dirty_ratio"
	VMDirtyBackgroundRatio = "/proc/sys/vm/dirty_background_ratio"
)

// Kernel and network nodes.
const (
	SchedAutogroup         = "/proc/sys/kernel/sched_autogroup_enabled"
	Printk                 = "/proc/sys/kernel/printk"
	SchedUtilClampMin      = "/proc/sys/kernel/sched_util_clamp_min"
	SchedUtilClampMax      = "/proc/sys/kernel/sched_util_clamp_max"
	TCPCongestion          = "/proc/sys/net/ipv4/tcp_congestion_control"
	TCPAvailableCongestion = "/proc/sys/net/ipv4/tcp_available_congestion_control"
)

// System nodes.
const (
	ProcVersion = "/proc/version"
	ProcUptime  = "/proc/uptime"
	ProcStat    = "/proc/stat"
	ProcMeminfo = "/proc/meminfo"
)

var registry = func() map[string]TunablePath {
	entries := []TunablePath{
		{Name: "gpu_min_freq", Path: GPUMinFreq, Group: GroupGPU, Unit: UnitHz, Description: "GPU minimum frequency"},
		{Name: "gpu_max_freq", Path: GPUMaxFreq, Group: GroupGPU, Unit: UnitHz, Description: "GPU maximum frequency"},
		{Name: "gpu_cur_freq", Path: GPUCurFreq, Group: GroupGPU, Unit: UnitHz, Description: "GPU current frequency"},
		{Name: "gpu_available_freqs", Path: GPUAvailableFreqs, Group: GroupGPU, Unit: UnitMHz, Description: "GPU frequency table"},
		{Name: "gpu_governor", Path: GPUGovernor, Group: GroupGPU, Description: "GPU devfreq governor"},
		{Name: "gpu_available_governors", Path: GPUAvailableGovernors, Group: GroupGPU, Description: "GPU devfreq governors"},
		{Name: "gpu_busy_percentage", Path: GPUBusyPercentage, Group: GroupGPU, Description: "GPU load"},
		{Name: "gpu_adreno_boost", Path: GPUAdrenoBoost, Group: GroupGPU, Description: "Adreno boost level (0-3)"},
		{Name: "gpu_throttling", Path: GPUThrottling, Group: GroupGPU, Description: "GPU thermal throttling switch"},
		{Name: "gpu_model", Path: GPUModel, Group: GroupGPU, Description: "GPU model"},

		{Name: "battery_capacity", Path: BatteryCapacity, Group: GroupBattery, Description: "Battery level in percent"},
		{Name: "battery_status", Path: BatteryStatus, Group: GroupBattery, Description: "Charging status"},
		{Name: "battery_health", Path: BatteryHealth, Group: GroupBattery, Description: "Battery health"},
		{Name: "battery_technology", Path: BatteryTechnology, Group: GroupBattery, Description: "Battery chemistry"},
		{Name: "battery_temp", Path: BatteryTemp, Group: GroupBattery, Description: "Battery temperature in deci-degrees Celsius"},
		{Name: "battery_voltage_now", Path: BatteryVoltageNow, Group: GroupBattery, Description: "Battery voltage in microvolts"},
		{Name: "battery_current_now", Path: BatteryCurrentNow, Group: GroupBattery, Description: "Battery current in microamps"},
		{Name: "battery_charge_full", Path: BatteryChargeFull, Group: GroupBattery, Description: "Full charge capacity in microamp-hours"},
		{Name: "battery_charge_full_design", Path: BatteryChargeDesign, Group: GroupBattery, Description: "Design capacity in microamp-hours"},
		{Name: "battery_cycle_count", Path: BatteryCycleCount, Group: GroupBattery, Description: "Charge cycles"},
		{Name: "battery_input_suspend", Path: BatteryInputSuspend, Group: GroupBattery, Description: "Bypass charging (input suspend)"},
		{Name: "battery_fast_charge", Path: BatteryFastCharge, Group: GroupBattery, Description: "Force USB fast charge"},

		{Name: "thermal_profile", Path: ThermalProfile, Group: GroupThermal, Description: "Thermal profile (sconfig)", UnlockMode: ThermalUnlockMode, RelockMode: ThermalRelockMode},

		{Name: "zram_disksize", Path: ZramDiskSize, Group: GroupMemory, Description: "ZRAM size in bytes"},
		{Name: "zram_comp_algorithm", Path: ZramCompAlgorithm, Group: GroupMemory, Description: "ZRAM compression algorithm"},
		{Name: "zram_reset", Path: ZramReset, Group: GroupMemory, Description: "ZRAM reset trigger (write only)"},
		{Name: "vm_swappiness", Path: VMSwappiness, Group: GroupMemory, Description: "VM swappiness"},
		{Name: "vm_dirty_ratio", Path: VMDirtyRatio, Group: GroupMemory, Description: "VM dirty ratio"},
		{Name: "vm_dirty_background_ratio", Path: VMDirtyBackgroundRatio, Group: GroupMemory, Description: "VM dirty background ratio"},

		{Name: "sched_autogroup_enabled", Path: SchedAutogroup, Group: GroupKernel, Description: "Scheduler autogroup"},
		{Name: "printk", Path: Printk, Group: GroupKernel, Description: "Kernel log levels"},
		{Name: "sched_util_clamp_min", Path: SchedUtilClampMin, Group: GroupKernel, Description: "Scheduler utilization clamp minimum"},
		{Name: "sched_util_clamp_max", Path: SchedUtilClampMax, Group: GroupKernel, Description: "Scheduler utilization clamp maximum"},
		{Name: "tcp_congestion_control", Path: TCPCongestion, Group: GroupNetwork, Description: "TCP congestion control algorithm"},
		{Name: "tcp_available_congestion_control", Path: TCPAvailableCongestion, Group: GroupNetwork, Description: "Available TCP congestion control algorithms"},

		{Name: "kernel_version", Path: ProcVersion, Group: GroupSystem, Description: "Kernel version string"},
		{Name: "uptime", Path: ProcUptime, Group: GroupSystem, Description: "Uptime in seconds"},
	}

	for _, policy := range []int{0, 4, 6, 7} {
		entries = append(entries, policyEntries(policy)...)
	}

	m := make(map[string]TunablePath, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}()

// Lookup returns the registered tunable with the given name.
func Lookup(name string) (TunablePath, bool) {
	tp, ok := registry[name]
	return tp, ok
}

// LookupPath returns the registered tunable whose path is path.
func LookupPath(path string) (TunablePath, bool) {
	for _, tp := range registry {
		if tp.Path == path {
			return tp, true
		}
	}
	return TunablePath{}, false
}

// All returns every registered tunable sorted by name.
func All() []TunablePath {
	out := make([]TunablePath, 0, len(registry))
	for _, tp := range registry {
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByGroup returns the tunables of one group sorted by name.
func ByGroup(g Group) []TunablePath {
	var out []TunablePath
	for _, tp := range All() {
		if tp.Group == g {
			out = append(out, tp)
		}
	}
	return out
}
