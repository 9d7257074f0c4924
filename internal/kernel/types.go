// Package kernel reads and tunes scheduler, logging, network and memory
// parameters of the running kernel.
package kernel

import "context"

// Toggle is an on/off parameter.
type Toggle struct {
	Supported bool `json:"supported"`
	Enabled   bool `json:"enabled"`
}

// Value is a parameter shown as read.
type Value struct {
	Supported bool   `json:"supported"`
	Value     string `json:"value"`
}

// Choice is a parameter with a current selection out of a published list.
type Choice struct {
	Supported bool     `json:"supported"`
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// Params holds the scheduler, printk and network parameters.
type Params struct {
	SchedAutogroup Toggle `json:"sched_autogroup"`
	Printk         Value  `json:"printk"`
	UtilClampMin   Value  `json:"sched_util_clamp_min"`
	UtilClampMax   Value  `json:"sched_util_clamp_max"`
	TCPCongestion  Choice `json:"tcp_congestion_control"`
}

// Zram describes the compressed swap device.
type Zram struct {
	Supported     bool   `json:"supported"`
	DiskSizeBytes uint64 `json:"disk_size_bytes"`
	DiskSize      string `json:"disk_size"`
	Algorithm     Choice `json:"algorithm"`
}

// Memory holds ZRAM and VM writeback parameters.
type Memory struct {
	Zram                 Zram  `json:"zram"`
	Swappiness           Value `json:"swappiness"`
	DirtyRatio           Value `json:"dirty_ratio"`
	DirtyBackgroundRatio Value `json:"dirty_background_ratio"`
}

// Status is the kernel parameter screen.
type Status struct {
	Params Params `json:"kernel"`
	Memory Memory `json:"memory"`
}

// Manager reads and writes kernel parameters.
type Manager interface {
	Load(ctx context.Context) (Status, error)

	SetSchedAutogroup(ctx context.Context, enabled bool) error

	// SetPrintk takes four console log levels, each 0-7, separated by
	// whitespace.
	SetPrintk(ctx context.Context, levels string) error

	// SetUtilClamp sets the upper or lower util clamp, 0-1024.
	SetUtilClamp(ctx context.Context, upper bool, value int) error

	SetTCPCongestion(ctx context.Context, algorithm string) error
	SetSwappiness(ctx context.Context, value int) error

	// SetDirtyRatio sets vm.dirty_ratio, or vm.dirty_background_ratio when
	// background is true.
	SetDirtyRatio(ctx context.Context, background bool, value int) error

	// SetZramAlgorithm and SetZramSize reinitialise the ZRAM swap device.
	SetZramAlgorithm(ctx context.Context, algorithm string) error
	SetZramSize(ctx context.Context, bytes uint64) error
}
