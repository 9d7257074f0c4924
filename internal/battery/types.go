// Package battery reads charge state and switches charging and thermal
// behaviour.
package battery

import (
	"context"
	"strconv"
)

// Toggle is an on/off node that may be absent on a given kernel.
type Toggle struct {
	Supported bool `json:"supported"`
	Enabled   bool `json:"enabled"`
}

// ThermalProfileStatus is the current thermal profile.
type ThermalProfileStatus struct {
	Supported bool   `json:"supported"`
	Value     string `json:"value"`
	Name      string `json:"name"`
}

// Status is a battery snapshot. Numeric fields are nil when the node is
// missing or unparseable.
type Status struct {
	Supported       bool     `json:"supported"`
	Level           *int64   `json:"level_percent"`
	State           string   `json:"status"`
	Health          string   `json:"health"`
	Technology      string   `json:"technology"`
	TemperatureC    *float64 `json:"temperature_c"`
	VoltageV        *float64 `json:"voltage_v"`
	CurrentMA       *float64 `json:"current_ma"`
	ChargeFullMAh   *int64   `json:"charge_full_mah"`
	ChargeDesignMAh *int64   `json:"charge_full_design_mah"`
	CapacityPercent *int     `json:"capacity_percent"`
	CycleCount      *int64   `json:"cycle_count"`

	FastCharge     Toggle               `json:"fast_charge"`
	BypassCharging Toggle               `json:"bypass_charging"`
	ThermalProfile ThermalProfileStatus `json:"thermal_profile"`
}

// Manager reads the battery and writes its switches.
type Manager interface {
	Load(ctx context.Context) (Status, error)
	SetFastCharge(ctx context.Context, enabled bool) error

	// SetBypassCharging suspends charging input while keeping the device
	// powered from the charger.
	SetBypassCharging(ctx context.Context, enabled bool) error

	// SetThermalProfile accepts a profile name or its raw numeric value.
	SetThermalProfile(ctx context.Context, profile string) error
}

// Profile is a named thermal profile value.
type Profile struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profiles lists the known thermal profiles.
var Profiles = []Profile{
	{Name: "default", Value: "0"},
	{Name: "benchmark", Value: "10"},
	{Name: "gaming", Value: "13"},
	{Name: "camera", Value: "16"},
}

// ProfileValue resolves a profile name or a non-negative integer to the
// value written to the node.
func ProfileValue(profile string) (string, bool) {
	for _, p := range Profiles {
		if p.Name == profile {
			return p.Value, true
		}
	}
	if n, err := strconv.Atoi(profile); err == nil && n >= 0 {
		return strconv.Itoa(n), true
	}
	return "", false
}

// ProfileName returns the name for value, or "custom".
func ProfileName(value string) string {
	for _, p := range Profiles {
		if p.Value == value {
			return p.Name
		}
	}
	return "custom"
}
