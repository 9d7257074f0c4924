// Package soc reads and tunes CPU clusters and the Adreno GPU.
package soc

import (
	"context"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
)

// Bound selects the lower or upper frequency limit.
type Bound string

const (
	BoundMin Bound = "min"
	BoundMax Bound = "max"
)

// ParseBound maps "min" or "max" to a Bound.
func ParseBound(s string) (Bound, bool) {
	switch Bound(s) {
	case BoundMin, BoundMax:
		return Bound(s), true
	}
	return "", false
}

// ClusterStatus is the state of one CPU cluster. Frequencies are in MHz.
type ClusterStatus struct {
	Cluster            string   `json:"cluster"`
	Policy             int      `json:"policy"`
	Supported          bool     `json:"supported"`
	MinFreqMHz         string   `json:"min_freq_mhz"`
	MaxFreqMHz         string   `json:"max_freq_mhz"`
	CurFreqMHz         string   `json:"cur_freq_mhz"`
	Governor           string   `json:"governor"`
	AvailableFreqsMHz  []string `json:"available_freqs_mhz"`
	AvailableGovernors []string `json:"available_governors"`
}

// GPUStatus is the state of the GPU. Frequencies are in MHz.
type GPUStatus struct {
	Supported           bool     `json:"supported"`
	Model               string   `json:"model"`
	MinFreqMHz          string   `json:"min_freq_mhz"`
	MaxFreqMHz          string   `json:"max_freq_mhz"`
	CurFreqMHz          string   `json:"cur_freq_mhz"`
	BusyPercent         string   `json:"busy_percent"`
	Governor            string   `json:"governor"`
	AvailableFreqsMHz   []string `json:"available_freqs_mhz"`
	AvailableGovernors  []string `json:"available_governors"`
	BoostSupported      bool     `json:"boost_supported"`
	Boost               string   `json:"boost"`
	ThrottlingSupported bool     `json:"throttling_supported"`
	Throttling          bool     `json:"throttling"`
}

// Status is a full SoC snapshot.
type Status struct {
	BigCluster string          `json:"big_cluster"`
	Clusters   []ClusterStatus `json:"clusters"`
	GPU        GPUStatus       `json:"gpu"`
}

// Cluster returns the status of the named cluster, if present.
func (s Status) Cluster(name string) (ClusterStatus, bool) {
	for _, c := range s.Clusters {
		if c.Cluster == name {
			return c, true
		}
	}
	return ClusterStatus{}, false
}

// Manager reads and writes CPU and GPU scaling nodes.
type Manager interface {
	// Load resolves the big cluster and reads every cluster and the GPU.
	Load(ctx context.Context) (Status, error)

	// Cluster reads one cluster. Reading the big cluster on a device
	// without one returns an unsupported status.
	Cluster(ctx context.Context, cluster paths.Cluster) (ClusterStatus, error)

	// GPU reads the GPU nodes.
	GPU(ctx context.Context) (GPUStatus, error)

	SetCPUFreq(ctx context.Context, cluster paths.Cluster, bound Bound, mhz int64) error
	SetCPUGovernor(ctx context.Context, cluster paths.Cluster, governor string) error
	SetGPUFreq(ctx context.Context, bound Bound, mhz int64) error
	SetGPUGovernor(ctx context.Context, governor string) error

	// SetGPUBoost sets the Adreno boost level, 0 (off) to 3.
	SetGPUBoost(ctx context.Context, level int) error
	SetGPUThrottling(ctx context.Context, enabled bool) error
}
