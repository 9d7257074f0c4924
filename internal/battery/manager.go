package battery

import (
	"context"
	"fmt"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
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

// Load reads every battery node.
func (m *SysfsManager) Load(ctx context.Context) (Status, error) {
	st := Status{
		Supported:  m.fs.Exists(ctx, paths.BatteryCapacity),
		State:      m.fs.ReadResult(ctx, paths.BatteryStatus).String(),
		Health:     m.fs.ReadResult(ctx, paths.BatteryHealth).String(),
		Technology: m.fs.ReadResult(ctx, paths.BatteryTechnology).String(),
	}

	if v, ok := transform.ParseInt(m.fs.Read(ctx, paths.BatteryCapacity)); ok {
		st.Level = &v
	}
	if v, ok := transform.ParseDeciCelsius(m.fs.Read(ctx, paths.BatteryTemp)); ok {
		st.TemperatureC = &v
	}
	if v, ok := transform.ParseMicroVolts(m.fs.Read(ctx, paths.BatteryVoltageNow)); ok {
		st.VoltageV = &v
	}
	if v, ok := transform.ParseMicroAmps(m.fs.Read(ctx, paths.BatteryCurrentNow)); ok {
		st.CurrentMA = &v
	}
	if v, ok := transform.ParseMicroAmpHours(m.fs.Read(ctx, paths.BatteryChargeFull)); ok {
		st.ChargeFullMAh = &v
	}
	if v, ok := transform.ParseMicroAmpHours(m.fs.Read(ctx, paths.BatteryChargeDesign)); ok {
		st.ChargeDesignMAh = &v
	}
	if st.ChargeFullMAh != nil && st.ChargeDesignMAh != nil {
		pct := transform.CapacityPercent(*st.ChargeFullMAh, *st.ChargeDesignMAh)
		st.CapacityPercent = &pct
	}
	if v, ok := transform.ParseInt(m.fs.Read(ctx, paths.BatteryCycleCount)); ok {
		st.CycleCount = &v
	}

	st.FastCharge = m.readToggle(ctx, paths.BatteryFastCharge)
	st.BypassCharging = m.readToggle(ctx, paths.BatteryInputSuspend)
	st.ThermalProfile = m.readThermalProfile(ctx)

	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	return st, nil
}

// SetFastCharge switches forced USB fast charging.
func (m *SysfsManager) SetFastCharge(ctx context.Context, enabled bool) error {
	if err := m.applyToggle(ctx, paths.BatteryFastCharge, enabled); err != nil {
		return fmt.Errorf("battery set fast charge: %w", err)
	}
	t := m.readToggle(ctx, paths.BatteryFastCharge)
	m.publish(func(s Status) Status { s.FastCharge = t; return s })
	return nil
}

// SetBypassCharging switches input suspend.
func (m *SysfsManager) SetBypassCharging(ctx context.Context, enabled bool) error {
	if err := m.applyToggle(ctx, paths.BatteryInputSuspend, enabled); err != nil {
		return fmt.Errorf("battery set bypass charging: %w", err)
	}
	t := m.readToggle(ctx, paths.BatteryInputSuspend)
	m.publish(func(s Status) Status { s.BypassCharging = t; return s })
	return nil
}

// SetThermalProfile writes the thermal profile, unlocking the node around
// the write.
func (m *SysfsManager) SetThermalProfile(ctx context.Context, profile string) error {
	value, ok := ProfileValue(profile)
	if !ok {
		return fmt.Errorf("battery set thermal profile: unknown profile %q: %w", profile, sysfs.ErrInvalidValue)
	}
	if !m.fs.Exists(ctx, paths.ThermalProfile) {
		return fmt.Errorf("battery set thermal profile: %w", sysfs.ErrUnsupported)
	}
	if err := m.fs.ApplyLocked(ctx, paths.ThermalProfile, value, paths.ThermalUnlockMode, paths.ThermalRelockMode); err != nil {
		return fmt.Errorf("battery set thermal profile: %w", err)
	}
	tp := m.readThermalProfile(ctx)
	m.publish(func(s Status) Status { s.ThermalProfile = tp; return s })
	return nil
}

func (m *SysfsManager) readToggle(ctx context.Context, path string) Toggle {
	if !m.fs.Exists(ctx, path) {
		return Toggle{}
	}
	return Toggle{Supported: true, Enabled: m.fs.Read(ctx, path) == "1"}
}

func (m *SysfsManager) applyToggle(ctx context.Context, path string, enabled bool) error {
	if !m.fs.Exists(ctx, path) {
		return sysfs.ErrUnsupported
	}
	value := "0"
	if enabled {
		value = "1"
	}
	return m.fs.Apply(ctx, path, value)
}

func (m *SysfsManager) readThermalProfile(ctx context.Context) ThermalProfileStatus {
	if !m.fs.Exists(ctx, paths.ThermalProfile) {
		return ThermalProfileStatus{Value: transform.NotAvailable, Name: transform.NotAvailable}
	}
	v := m.fs.ReadResult(ctx, paths.ThermalProfile).String()
	return ThermalProfileStatus{Supported: true, Value: v, Name: ProfileName(v)}
}

func (m *SysfsManager) publish(fn func(Status) Status) {
	if m.store != nil {
		m.store.Update(fn)
	}
}
