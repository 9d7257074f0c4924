package soc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

// Compile-time interface check.
var _ Manager = (*SysfsManager)(nil)

// SysfsManager implements Manager on top of a sysfs.Accessor. Successful
// writes re-read the affected cluster or the GPU and publish it to the
// store; failed writes leave the store untouched.
type SysfsManager struct {
	fs    *sysfs.Accessor
	store *state.Store[Status]

	mu       sync.Mutex
	big      paths.BigCluster
	resolved bool
}

// NewManager returns a SysfsManager. store may be nil.
func NewManager(fs *sysfs.Accessor, store *state.Store[Status]) *SysfsManager {
	return &SysfsManager{fs: fs, store: store}
}

// Load resolves the big cluster afresh and reads all clusters and the GPU.
func (m *SysfsManager) Load(ctx context.Context) (Status, error) {
	big := paths.ResolveBigCluster(ctx, m.fs.Exists)
	m.mu.Lock()
	m.big, m.resolved = big, true
	m.mu.Unlock()

	st := Status{BigCluster: big.String()}
	for _, c := range []paths.Cluster{paths.ClusterLittle, paths.ClusterBig, paths.ClusterPrime} {
		st.Clusters = append(st.Clusters, m.readClusterWith(ctx, c, big))
	}
	st.GPU = m.readGPU(ctx)

	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Cluster reads one cluster using the big-cluster resolution of the last
// Load, resolving it now if nothing has been loaded yet.
func (m *SysfsManager) Cluster(ctx context.Context, cluster paths.Cluster) (ClusterStatus, error) {
	return m.readClusterWith(ctx, cluster, m.bigCluster(ctx)), ctx.Err()
}

// GPU reads the GPU nodes.
func (m *SysfsManager) GPU(ctx context.Context) (GPUStatus, error) {
	return m.readGPU(ctx), ctx.Err()
}

// SetCPUFreq sets the min or max frequency of a cluster. When the cluster
// publishes a frequency table, mhz must match one of its entries.
func (m *SysfsManager) SetCPUFreq(ctx context.Context, cluster paths.Cluster, bound Bound, mhz int64) error {
	d, err := m.descriptor(ctx, cluster)
	if err != nil {
		return fmt.Errorf("soc set cpu freq: %w", err)
	}
	if !m.fs.Exists(ctx, d.CurFreq) {
		return fmt.Errorf("soc set cpu freq: %s cluster: %w", cluster, sysfs.ErrUnsupported)
	}

	raw, err := pickFrequency(m.fs.Read(ctx, d.AvailableFreqs), d.Unit(), d.Unit(), mhz)
	if err != nil {
		return fmt.Errorf("soc set cpu freq: %s cluster: %w", cluster, err)
	}
	if err := checkBounds(bound, mhz, m.fs.Read(ctx, d.MinFreq), m.fs.Read(ctx, d.MaxFreq), d.Unit()); err != nil {
		return fmt.Errorf("soc set cpu freq: %s cluster: %w", cluster, err)
	}

	target := d.MaxFreq
	if bound == BoundMin {
		target = d.MinFreq
	}
	if err := m.fs.Apply(ctx, target, raw); err != nil {
		return fmt.Errorf("soc set cpu freq: %w", err)
	}
	m.publishCluster(m.readCluster(ctx, d))
	return nil
}

// SetCPUGovernor sets the governor of a cluster.
func (m *SysfsManager) SetCPUGovernor(ctx context.Context, cluster paths.Cluster, governor string) error {
	d, err := m.descriptor(ctx, cluster)
	if err != nil {
		return fmt.Errorf("soc set cpu governor: %w", err)
	}
	if err := m.applyChoice(ctx, d.Governor, d.AvailableGovernors, governor); err != nil {
		return fmt.Errorf("soc set cpu governor: %s cluster: %w", cluster, err)
	}
	m.publishCluster(m.readCluster(ctx, d))
	return nil
}

// SetGPUFreq sets the GPU min or max frequency. The devfreq nodes take Hz
// while the frequency table lists MHz.
func (m *SysfsManager) SetGPUFreq(ctx context.Context, bound Bound, mhz int64) error {
	target := paths.GPUMaxFreq
	if bound == BoundMin {
		target = paths.GPUMinFreq
	}
	if !m.fs.Exists(ctx, target) {
		return fmt.Errorf("soc set gpu freq: %w", sysfs.ErrUnsupported)
	}

	raw, err := pickFrequency(m.fs.Read(ctx, paths.GPUAvailableFreqs), unitOf(paths.GPUAvailableFreqs), unitOf(target), mhz)
	if err != nil {
		return fmt.Errorf("soc set gpu freq: %w", err)
	}
	if err := checkBounds(bound, mhz, m.fs.Read(ctx, paths.GPUMinFreq), m.fs.Read(ctx, paths.GPUMaxFreq), unitOf(target)); err != nil {
		return fmt.Errorf("soc set gpu freq: %w", err)
	}
	if err := m.fs.Apply(ctx, target, raw); err != nil {
		return fmt.Errorf("soc set gpu freq: %w", err)
	}
	m.publishGPU(m.readGPU(ctx))
	return nil
}

// SetGPUGovernor sets the devfreq governor of the GPU.
func (m *SysfsManager) SetGPUGovernor(ctx context.Context, governor string) error {
	if err := m.applyChoice(ctx, paths.GPUGovernor, paths.GPUAvailableGovernors, governor); err != nil {
		return fmt.Errorf("soc set gpu governor: %w", err)
	}
	m.publishGPU(m.readGPU(ctx))
	return nil
}

// SetGPUBoost sets the Adreno boost level.
func (m *SysfsManager) SetGPUBoost(ctx context.Context, level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("soc set gpu boost: level %d not in 0-3: %w", level, sysfs.ErrInvalidValue)
	}
	if !m.fs.Exists(ctx, paths.GPUAdrenoBoost) {
		return fmt.Errorf("soc set gpu boost: %w", sysfs.ErrUnsupported)
	}
	if err := m.fs.Apply(ctx, paths.GPUAdrenoBoost, strconv.Itoa(level)); err != nil {
		return fmt.Errorf("soc set gpu boost: %w", err)
	}
	m.publishGPU(m.readGPU(ctx))
	return nil
}

// SetGPUThrottling switches GPU thermal throttling on or off.
func (m *SysfsManager) SetGPUThrottling(ctx context.Context, enabled bool) error {
	if !m.fs.Exists(ctx, paths.GPUThrottling) {
		return fmt.Errorf("soc set gpu throttling: %w", sysfs.ErrUnsupported)
	}
	if err := m.fs.Apply(ctx, paths.GPUThrottling, boolValue(enabled)); err != nil {
		return fmt.Errorf("soc set gpu throttling: %w", err)
	}
	m.publishGPU(m.readGPU(ctx))
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (m *SysfsManager) bigCluster(ctx context.Context) paths.BigCluster {
	m.mu.Lock()
	big, ok := m.big, m.resolved
	m.mu.Unlock()
	if ok {
		return big
	}

	big = paths.ResolveBigCluster(ctx, m.fs.Exists)
	m.mu.Lock()
	m.big, m.resolved = big, true
	m.mu.Unlock()
	return big
}

func (m *SysfsManager) descriptor(ctx context.Context, cluster paths.Cluster) (paths.ClusterDescriptor, error) {
	switch cluster {
	case paths.ClusterLittle:
		return paths.PolicyDescriptor(cluster, paths.LittlePolicy), nil
	case paths.ClusterPrime:
		return paths.PolicyDescriptor(cluster, paths.PrimePolicy), nil
	case paths.ClusterBig:
		big := m.bigCluster(ctx)
		if !big.Found() {
			return paths.ClusterDescriptor{}, fmt.Errorf("big cluster: %w", sysfs.ErrUnsupported)
		}
		return paths.PolicyDescriptor(cluster, big.Policy()), nil
	default:
		return paths.ClusterDescriptor{}, fmt.Errorf("%s: %w", cluster, sysfs.ErrInvalidValue)
	}
}

func (m *SysfsManager) readClusterWith(ctx context.Context, cluster paths.Cluster, big paths.BigCluster) ClusterStatus {
	if cluster == paths.ClusterBig && !big.Found() {
		return unsupportedCluster(cluster, -1)
	}
	policy := paths.LittlePolicy
	switch cluster {
	case paths.ClusterBig:
		policy = big.Policy()
	case paths.ClusterPrime:
		policy = paths.PrimePolicy
	}
	return m.readCluster(ctx, paths.PolicyDescriptor(cluster, policy))
}

func (m *SysfsManager) readCluster(ctx context.Context, d paths.ClusterDescriptor) ClusterStatus {
	if !m.fs.Exists(ctx, d.CurFreq) {
		return unsupportedCluster(d.Cluster, d.Policy)
	}
	return ClusterStatus{
		Cluster:            d.Cluster.String(),
		Policy:             d.Policy,
		Supported:          true,
		MinFreqMHz:         transform.ToMHz(d.Unit(), m.fs.Read(ctx, d.MinFreq)),
		MaxFreqMHz:         transform.ToMHz(d.Unit(), m.fs.Read(ctx, d.MaxFreq)),
		CurFreqMHz:         transform.ToMHz(d.Unit(), m.fs.Read(ctx, d.CurFreq)),
		Governor:           m.fs.ReadResult(ctx, d.Governor).String(),
		AvailableFreqsMHz:  transform.FrequencyTable(d.Unit(), m.fs.Read(ctx, d.AvailableFreqs)),
		AvailableGovernors: transform.ParseAvailable(m.fs.Read(ctx, d.AvailableGovernors)),
	}
}

func unsupportedCluster(cluster paths.Cluster, policy int) ClusterStatus {
	return ClusterStatus{
		Cluster:    cluster.String(),
		Policy:     policy,
		MinFreqMHz: transform.NotAvailable,
		MaxFreqMHz: transform.NotAvailable,
		CurFreqMHz: transform.NotAvailable,
		Governor:   transform.NotAvailable,
	}
}

func (m *SysfsManager) readGPU(ctx context.Context) GPUStatus {
	g := GPUStatus{
		Supported:           m.fs.Exists(ctx, paths.GPUCurFreq),
		BoostSupported:      m.fs.Exists(ctx, paths.GPUAdrenoBoost),
		ThrottlingSupported: m.fs.Exists(ctx, paths.GPUThrottling),
		Model:               transform.NotAvailable,
		MinFreqMHz:          transform.NotAvailable,
		MaxFreqMHz:          transform.NotAvailable,
		CurFreqMHz:          transform.NotAvailable,
		BusyPercent:         transform.NotAvailable,
		Governor:            transform.NotAvailable,
		Boost:               transform.NotAvailable,
	}
	if g.Supported {
		g.Model = m.fs.ReadResult(ctx, paths.GPUModel).String()
		g.MinFreqMHz = transform.ToMHz(unitOf(paths.GPUMinFreq), m.fs.Read(ctx, paths.GPUMinFreq))
		g.MaxFreqMHz = transform.ToMHz(unitOf(paths.GPUMaxFreq), m.fs.Read(ctx, paths.GPUMaxFreq))
		g.CurFreqMHz = transform.ToMHz(unitOf(paths.GPUCurFreq), m.fs.Read(ctx, paths.GPUCurFreq))
		g.BusyPercent = busyPercent(m.fs.Read(ctx, paths.GPUBusyPercentage))
		g.Governor = m.fs.ReadResult(ctx, paths.GPUGovernor).String()
		g.AvailableFreqsMHz = transform.FrequencyTable(unitOf(paths.GPUAvailableFreqs), m.fs.Read(ctx, paths.GPUAvailableFreqs))
		g.AvailableGovernors = transform.ParseAvailable(m.fs.Read(ctx, paths.GPUAvailableGovernors))
	}
	if g.BoostSupported {
		g.Boost = m.fs.ReadResult(ctx, paths.GPUAdrenoBoost).String()
	}
	if g.ThrottlingSupported {
		g.Throttling = m.fs.Read(ctx, paths.GPUThrottling) == "1"
	}
	return g
}

// ---------------------------------------------------------------------------
// Store updates
// ---------------------------------------------------------------------------

func (m *SysfsManager) publishCluster(cs ClusterStatus) {
	if m.store == nil {
		return
	}
	m.store.Update(func(s Status) Status {
		clusters := make([]ClusterStatus, 0, len(s.Clusters)+1)
		replaced := false
		for _, c := range s.Clusters {
			if c.Cluster == cs.Cluster {
				c, replaced = cs, true
			}
			clusters = append(clusters, c)
		}
		if !replaced {
			clusters = append(clusters, cs)
		}
		s.Clusters = clusters
		return s
	})
}

func (m *SysfsManager) publishGPU(g GPUStatus) {
	if m.store == nil {
		return
	}
	m.store.Update(func(s Status) Status {
		s.GPU = g
		return s
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *SysfsManager) applyChoice(ctx context.Context, path, availablePath, value string) error {
	if value == "" {
		return fmt.Errorf("empty value: %w", sysfs.ErrInvalidValue)
	}
	if !m.fs.Exists(ctx, path) {
		return sysfs.ErrUnsupported
	}
	if available := m.fs.Read(ctx, availablePath); available != "" && !transform.Contains(available, value) {
		return fmt.Errorf("%q not in [%s]: %w", value, strings.Join(transform.ParseAvailable(available), " "), sysfs.ErrInvalidValue)
	}
	return m.fs.Apply(ctx, path, value)
}

// pickFrequency returns the raw value to write for mhz. table lists the
// supported frequencies in tableUnit; when it is non-empty mhz must match
// one entry. The result is expressed in nodeUnit.
func pickFrequency(table string, tableUnit, nodeUnit paths.Unit, mhz int64) (string, error) {
	if mhz <= 0 {
		return "", fmt.Errorf("frequency %d MHz: %w", mhz, sysfs.ErrInvalidValue)
	}
	entries := transform.ParseAvailable(table)
	if len(entries) == 0 {
		return transform.FromMHz(nodeUnit, mhz), nil
	}

	want := strconv.FormatInt(mhz, 10)
	for _, raw := range entries {
		if transform.ToMHz(tableUnit, raw) != want {
			continue
		}
		if tableUnit == nodeUnit {
			// Keep the exact table entry; kHz values rarely divide evenly.
			return raw, nil
		}
		return transform.FromMHz(nodeUnit, mhz), nil
	}
	return "", fmt.Errorf("%d MHz not in [%s]: %w", mhz, strings.Join(transform.FrequencyTable(tableUnit, table), " "), sysfs.ErrInvalidValue)
}

// checkBounds rejects a min above the current max or a max below the
// current min. Unreadable limits are not checked.
func checkBounds(bound Bound, mhz int64, rawMin, rawMax string, unit paths.Unit) error {
	switch bound {
	case BoundMin:
		if hi, err := strconv.ParseInt(transform.ToMHz(unit, rawMax), 10, 64); err == nil && mhz > hi {
			return fmt.Errorf("min %d MHz above max %d MHz: %w", mhz, hi, sysfs.ErrInvalidValue)
		}
	case BoundMax:
		if lo, err := strconv.ParseInt(transform.ToMHz(unit, rawMin), 10, 64); err == nil && mhz < lo {
			return fmt.Errorf("max %d MHz below min %d MHz: %w", mhz, lo, sysfs.ErrInvalidValue)
		}
	default:
		return fmt.Errorf("bound %q: %w", bound, sysfs.ErrInvalidValue)
	}
	return nil
}

func unitOf(path string) paths.Unit {
	if tp, ok := paths.LookupPath(path); ok {
		return tp.Unit
	}
	return paths.UnitNone
}

func busyPercent(raw string) string {
	v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if v == "" {
		return transform.NotAvailable
	}
	return v
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
