// Package transform converts raw kernel node contents into display values
// and back. Every function is pure except CPUUsage, which keeps the
// previous /proc/stat sample.
package transform

import (
	"strconv"
	"strings"

	"github.com/rvkernel/rvkernel-mcp/internal/paths"
)

// NotAvailable is returned for values that cannot be parsed.
const NotAvailable = "N/A"

// KHzToMHz converts a kHz reading (CPU cpufreq nodes) to whole MHz.
func KHzToMHz(raw string) string {
	return divide(raw, 1000)
}

// HzToMHz converts a Hz reading (GPU devfreq nodes) to whole MHz.
func HzToMHz(raw string) string {
	return divide(raw, 1_000_000)
}

// MHzString validates a reading that is already in MHz.
func MHzString(raw string) string {
	return divide(raw, 1)
}

// ToMHz converts raw from unit to whole MHz.
func ToMHz(unit paths.Unit, raw string) string {
	switch unit {
	case paths.UnitKHz:
		return KHzToMHz(raw)
	case paths.UnitHz:
		return HzToMHz(raw)
	case paths.UnitMHz:
		return MHzString(raw)
	default:
		s := strings.TrimSpace(raw)
		if s == "" {
			return NotAvailable
		}
		return s
	}
}

// FromMHz converts a frequency in MHz into the unit a node expects.
func FromMHz(unit paths.Unit, mhz int64) string {
	switch unit {
	case paths.UnitKHz:
		return strconv.FormatInt(mhz*1000, 10)
	case paths.UnitHz:
		return strconv.FormatInt(mhz*1_000_000, 10)
	default:
		return strconv.FormatInt(mhz, 10)
	}
}

// FrequencyTable parses a whitespace separated frequency list in unit and
// returns it in MHz. Unparseable entries are dropped.
func FrequencyTable(unit paths.Unit, raw string) []string {
	var out []string
	for _, tok := range ParseAvailable(raw) {
		if v := ToMHz(unit, tok); v != NotAvailable {
			out = append(out, v)
		}
	}
	return out
}

func divide(raw string, by int64) string {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return NotAvailable
	}
	return strconv.FormatInt(v/by, 10)
}
