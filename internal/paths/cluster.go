package paths

import (
	"context"
	"fmt"
)

// Cluster identifies a group of CPU cores sharing one cpufreq policy.
type Cluster int

const (
	ClusterLittle Cluster = iota
	ClusterBig
	ClusterPrime
)

// String returns the lower-case cluster name.
func (c Cluster) String() string {
	switch c {
	case ClusterLittle:
		return "little"
	case ClusterBig:
		return "big"
	case ClusterPrime:
		return "prime"
	default:
		return fmt.Sprintf("cluster(%d)", int(c))
	}
}

// ParseCluster maps a cluster name back to its Cluster.
func ParseCluster(name string) (Cluster, bool) {
	switch name {
	case "little":
		return ClusterLittle, true
	case "big":
		return ClusterBig, true
	case "prime":
		return ClusterPrime, true
	default:
		return 0, false
	}
}

// Fixed policies of the little and prime clusters.
const (
	LittlePolicy = 0
	PrimePolicy  = 7
)

// BigCluster is the outcome of probing for the big cluster's cpufreq
// policy. The zero value is BigClusterNotFound.
type BigCluster int

const (
	BigClusterNotFound BigCluster = iota
	BigClusterPolicy4
	BigClusterPolicy6
)

// Found reports whether a big cluster was detected.
func (b BigCluster) Found() bool {
	return b != BigClusterNotFound
}

// Policy returns the cpufreq policy index, or -1 when not found.
func (b BigCluster) Policy() int {
	switch b {
	case BigClusterPolicy4:
		return 4
	case BigClusterPolicy6:
		return 6
	default:
		return -1
	}
}

func (b BigCluster) String() string {
	switch b {
	case BigClusterPolicy4:
		return "policy4"
	case BigClusterPolicy6:
		return "policy6"
	default:
		return "not_found"
	}
}

// ExistsFunc reports whether a node exists on the device.
type ExistsFunc func(ctx context.Context, path string) bool

// ResolveBigCluster checks policy4 and then policy6. The first candidate
// whose scaling_cur_freq node exists wins.
func ResolveBigCluster(ctx context.Context, exists ExistsFunc) BigCluster {
	for _, candidate := range []BigCluster{BigClusterPolicy4, BigClusterPolicy6} {
		if exists(ctx, PolicyDir(candidate.Policy())+"/scaling_cur_freq") {
			return candidate
		}
	}
	return BigClusterNotFound
}

// ClusterDescriptor holds the cpufreq nodes of one cluster. All frequency
// nodes are in kHz.
type ClusterDescriptor struct {
	Cluster            Cluster
	Policy             int
	MinFreq            string
	MaxFreq            string
	CurFreq            string
	Governor           string
	AvailableFreqs     string
	AvailableGovernors string
}

// Unit is the unit of the descriptor's frequency nodes.
func (d ClusterDescriptor) Unit() Unit {
	return UnitKHz
}

// PolicyDir returns the cpufreq directory of a policy.
func PolicyDir(policy int) string {
	return fmt.Sprintf("%s/policy%d", cpufreqRoot, policy)
}

// PolicyDescriptor builds the descriptor of cluster backed by policy.
func PolicyDescriptor(cluster Cluster, policy int) ClusterDescriptor {
	dir := PolicyDir(policy)
	return ClusterDescriptor{
		Cluster:            cluster,
		Policy:             policy,
		MinFreq:            dir + "/scaling_min_freq",
		MaxFreq:            dir + "/scaling_max_freq",
		CurFreq:            dir + "/scaling_cur_freq",
		Governor:           dir + "/scaling_governor",
		AvailableFreqs:     dir + "/scaling_available_frequencies",
		AvailableGovernors: dir + "/scaling_available_governors",
	}
}

// Descriptors returns the descriptors for every cluster present given a
// resolved big cluster. Little and prime are always returned; callers
// check existence before reading.
func Descriptors(big BigCluster) []ClusterDescriptor {
	out := []ClusterDescriptor{PolicyDescriptor(ClusterLittle, LittlePolicy)}
	if big.Found() {
		out = append(out, PolicyDescriptor(ClusterBig, big.Policy()))
	}
	return append(out, PolicyDescriptor(ClusterPrime, PrimePolicy))
}

func policyEntries(policy int) []TunablePath {
	d := PolicyDescriptor(0, policy)
	name := func(suffix string) string {
		return fmt.Sprintf("cpu_policy%d_%s", policy, suffix)
	}
	return []TunablePath{
		{Name: name("min_freq"), Path: d.MinFreq, Group: GroupCPU, Unit: UnitKHz, Description: fmt.Sprintf("Policy %d minimum frequency", policy)},
		{Name: name("max_freq"), Path: d.MaxFreq, Group: GroupCPU, Unit: UnitKHz, Description: fmt.Sprintf("Policy %d maximum frequency", policy)},
		{Name: name("cur_freq"), Path: d.CurFreq, Group: GroupCPU, Unit: UnitKHz, Description: fmt.Sprintf("Policy %d current frequency", policy)},
		{Name: name("governor"), Path: d.Governor, Group: GroupCPU, Description: fmt.Sprintf("Policy %d governor", policy)},
		{Name: name("available_freqs"), Path: d.AvailableFreqs, Group: GroupCPU, Unit: UnitKHz, Description: fmt.Sprintf("Policy %d frequency table", policy)},
		{Name: name("available_governors"), Path: d.AvailableGovernors, Group: GroupCPU, Description: fmt.Sprintf("Policy %d governors", policy)},
	}
}
