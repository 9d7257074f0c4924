package kernel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

// Limits accepted by the kernel.
const (
	MaxUtilClamp  = 1024
	MaxSwappiness = 200
	MaxRatio      = 100
	MaxLogLevel   = 7
)

// Compile-time interface check.
var _ Manager = (*SysfsManager)(nil)

// SysfsManager implements Manager on top of a sysfs.Accessor.
type SysfsManager struct {
	fs    *sysfs.Accessor
	store *state.Store[Status]
}

// NewManager returns a SysfsManager. store may be nil.
func NewManager(fs *sysfs.Accessor, store *state.Store[Status]) *SysfsManager {
	return &SysfsManager{fs: fs, store: store}
}

// Load reads every kernel and memory parameter.
func (m *SysfsManager) Load(ctx context.Context) (Status, error) {
	st := Status{Params: m.readParams(ctx), Memory: m.readMemory(ctx)}
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return st, nil
}

func (m *SysfsManager) SetSchedAutogroup(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	if err := m.apply(ctx, paths.SchedAutogroup, value); err != nil {
		return fmt.Errorf("kernel set sched autogroup: %w", err)
	}
	m.refreshParams(ctx)
	return nil
}

func (m *SysfsManager) SetPrintk(ctx context.Context, levels string) error {
	normalized, err := normalizePrintk(levels)
	if err != nil {
		return fmt.Errorf("kernel set printk: %w", err)
	}
	if err := m.apply(ctx, paths.Printk, normalized); err != nil {
		return fmt.Errorf("kernel set printk: %w", err)
	}
	m.refreshParams(ctx)
	return nil
}

func (m *SysfsManager) SetUtilClamp(ctx context.Context, upper bool, value int) error {
	if value < 0 || value > MaxUtilClamp {
		return fmt.Errorf("kernel set util clamp: %d not in 0-%d: %w", value, MaxUtilClamp, sysfs.ErrInvalidValue)
	}
	target, other := paths.SchedUtilClampMin, paths.SchedUtilClampMax
	if upper {
		target, other = other, target
	}
	if cur, ok := transform.ParseInt(m.fs.Read(ctx, other)); ok {
		if (upper && int64(value) < cur) || (!upper && int64(value) > cur) {
			return fmt.Errorf("kernel set util clamp: %d crosses the other bound %d: %w", value, cur, sysfs.ErrInvalidValue)
		}
	}
	if err := m.apply(ctx, target, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("kernel set util clamp: %w", err)
	}
	m.refreshParams(ctx)
	return nil
}

func (m *SysfsManager) SetTCPCongestion(ctx context.Context, algorithm string) error {
	if err := m.applyChoice(ctx, paths.TCPCongestion, m.fs.Read(ctx, paths.TCPAvailableCongestion), algorithm); err != nil {
		return fmt.Errorf("kernel set tcp congestion: %w", err)
	}
	m.refreshParams(ctx)
	return nil
}

func (m *SysfsManager) SetSwappiness(ctx context.Context, value int) error {
	if value < 0 || value > MaxSwappiness {
		return fmt.Errorf("memory set swappiness: %d not in 0-%d: %w", value, MaxSwappiness, sysfs.ErrInvalidValue)
	}
	if err := m.apply(ctx, paths.VMSwappiness, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("memory set swappiness: %w", err)
	}
	m.refreshMemory(ctx)
	return nil
}

func (m *SysfsManager) SetDirtyRatio(ctx context.Context, background bool, value int) error {
	if value < 0 || value > MaxRatio {
		return fmt.Errorf("memory set dirty ratio: %d not in 0-%d: %w", value, MaxRatio, sysfs.ErrInvalidValue)
	}
	target := paths.VMDirtyRatio
	if background {
		target = paths.VMDirtyBackgroundRatio
	}
	if err := m.apply(ctx, target, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("memory set dirty ratio: %w", err)
	}
	m.refreshMemory(ctx)
	return nil
}

// SetZramAlgorithm switches the compression algorithm, keeping the current
// disk size.
func (m *SysfsManager) SetZramAlgorithm(ctx context.Context, algorithm string) error {
	raw := m.fs.Read(ctx, paths.ZramCompAlgorithm)
	if raw == "" {
		return fmt.Errorf("memory set zram algorithm: %w", sysfs.ErrUnsupported)
	}
	if algorithm == "" || !transform.Contains(raw, algorithm) {
		return fmt.Errorf("memory set zram algorithm: %q not in [%s]: %w",
			algorithm, strings.Join(transform.ParseAvailable(raw), " "), sysfs.ErrInvalidValue)
	}
	size, ok := transform.ParseInt(m.fs.Read(ctx, paths.ZramDiskSize))
	if !ok || size <= 0 {
		return fmt.Errorf("memory set zram algorithm: current disk size unknown: %w", sysfs.ErrUnsupported)
	}
	if err := m.reconfigureZram(ctx, algorithm, uint64(size)); err != nil {
		return fmt.Errorf("memory set zram algorithm: %w", err)
	}
	m.refreshMemory(ctx)
	return nil
}

// SetZramSize resizes the ZRAM device, keeping the current algorithm.
func (m *SysfsManager) SetZramSize(ctx context.Context, bytes uint64) error {
	if bytes == 0 {
		return fmt.Errorf("memory set zram size: zero size: %w", sysfs.ErrInvalidValue)
	}
	algorithm := transform.ParseCurrentSelection(m.fs.Read(ctx, paths.ZramCompAlgorithm))
	if algorithm == "" || !m.fs.Exists(ctx, paths.ZramDiskSize) {
		return fmt.Errorf("memory set zram size: %w", sysfs.ErrUnsupported)
	}
	if err := m.reconfigureZram(ctx, algorithm, bytes); err != nil {
		return fmt.Errorf("memory set zram size: %w", err)
	}
	m.refreshMemory(ctx)
	return nil
}

// reconfigureZram tears the swap device down and brings it back with the
// given algorithm and size. The algorithm and size can only change while
// the device is reset. Once started the sequence ignores cancellation of
// ctx so swap is never left off halfway through.
func (m *SysfsManager) reconfigureZram(ctx context.Context, algorithm string, size uint64) error {
	ctx = context.WithoutCancel(ctx)
	for _, p := range []string{paths.ZramReset, paths.ZramCompAlgorithm, paths.ZramDiskSize} {
		if !m.fs.Allowed(p) {
			return fmt.Errorf("%s: %w", p, sysfs.ErrDenied)
		}
	}

	// Ignored: swapoff fails when the device is not active.
	m.fs.Command(ctx, "swapoff", paths.ZramDevice)

	if err := m.fs.Apply(ctx, paths.ZramReset, "1"); err != nil {
		return err
	}
	if err := m.fs.Apply(ctx, paths.ZramCompAlgorithm, algorithm); err != nil {
		return err
	}
	if err := m.fs.Apply(ctx, paths.ZramDiskSize, strconv.FormatUint(size, 10)); err != nil {
		return err
	}
	if !m.fs.Command(ctx, "mkswap", paths.ZramDevice) {
		return fmt.Errorf("mkswap %s: %w", paths.ZramDevice, sysfs.ErrWriteFailed)
	}
	if !m.fs.Command(ctx, "swapon", paths.ZramDevice) {
		return fmt.Errorf("swapon %s: %w", paths.ZramDevice, sysfs.ErrWriteFailed)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (m *SysfsManager) readParams(ctx context.Context) Params {
	p := Params{
		Printk:       m.readValue(ctx, paths.Printk),
		UtilClampMin: m.readValue(ctx, paths.SchedUtilClampMin),
		UtilClampMax: m.readValue(ctx, paths.SchedUtilClampMax),
	}
	if p.Printk.Supported {
		p.Printk.Value = strings.Join(strings.Fields(p.Printk.Value), " ")
	}
	if m.fs.Exists(ctx, paths.SchedAutogroup) {
		p.SchedAutogroup = Toggle{Supported: true, Enabled: m.fs.Read(ctx, paths.SchedAutogroup) == "1"}
	}
	if m.fs.Exists(ctx, paths.TCPCongestion) {
		p.TCPCongestion = Choice{
			Supported: true,
			Current:   m.fs.ReadResult(ctx, paths.TCPCongestion).String(),
			Available: transform.ParseAvailable(m.fs.Read(ctx, paths.TCPAvailableCongestion)),
		}
	}
	return p
}

func (m *SysfsManager) readMemory(ctx context.Context) Memory {
	mem := Memory{
		Swappiness:           m.readValue(ctx, paths.VMSwappiness),
		DirtyRatio:           m.readValue(ctx, paths.VMDirtyRatio),
		DirtyBackgroundRatio: m.readValue(ctx, paths.VMDirtyBackgroundRatio),
		Zram:                 Zram{DiskSize: transform.NotAvailable},
	}
	if !m.fs.Exists(ctx, paths.ZramDiskSize) {
		return mem
	}

	mem.Zram.Supported = true
	if n, ok := transform.ParseInt(m.fs.Read(ctx, paths.ZramDiskSize)); ok && n >= 0 {
		mem.Zram.DiskSizeBytes = uint64(n)
		mem.Zram.DiskSize = transform.FormatBytes(uint64(n))
	}
	if raw := m.fs.Read(ctx, paths.ZramCompAlgorithm); raw != "" {
		mem.Zram.Algorithm = Choice{
			Supported: true,
			Current:   transform.ParseCurrentSelection(raw),
			Available: transform.ParseAvailable(raw),
		}
	}
	return mem
}

func (m *SysfsManager) readValue(ctx context.Context, path string) Value {
	if !m.fs.Exists(ctx, path) {
		return Value{Value: transform.NotAvailable}
	}
	return Value{Supported: true, Value: m.fs.ReadResult(ctx, path).String()}
}

func (m *SysfsManager) refreshParams(ctx context.Context) {
	if m.store == nil {
		return
	}
	p := m.readParams(ctx)
	m.store.Update(func(s Status) Status { s.Params = p; return s })
}

func (m *SysfsManager) refreshMemory(ctx context.Context) {
	if m.store == nil || ctx.Err() != nil {
		return
	}
	mem := m.readMemory(ctx)
	m.store.Update(func(s Status) Status { s.Memory = mem; return s })
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *SysfsManager) apply(ctx context.Context, path, value string) error {
	if !m.fs.Exists(ctx, path) {
		return sysfs.ErrUnsupported
	}
	return m.fs.Apply(ctx, path, value)
}

func (m *SysfsManager) applyChoice(ctx context.Context, path, available, value string) error {
	if value == "" {
		return fmt.Errorf("empty value: %w", sysfs.ErrInvalidValue)
	}
	if available != "" && !transform.Contains(available, value) {
		return fmt.Errorf("%q not in [%s]: %w", value, strings.Join(transform.ParseAvailable(available), " "), sysfs.ErrInvalidValue)
	}
	return m.apply(ctx, path, value)
}

// normalizePrintk validates four whitespace separated levels, each 0-7,
// and joins them with single spaces.
func normalizePrintk(levels string) (string, error) {
	fields := strings.Fields(levels)
	if len(fields) != 4 {
		return "", fmt.Errorf("printk needs 4 levels, got %d: %w", len(fields), sysfs.ErrInvalidValue)
	}
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > MaxLogLevel {
			return "", fmt.Errorf("printk level %q not in 0-%d: %w", f, MaxLogLevel, sysfs.ErrInvalidValue)
		}
	}
	return strings.Join(fields, " "), nil
}
