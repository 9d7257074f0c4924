package transform

import (
	"math"
	"strconv"
	"strings"
)

// CapacityPercent returns round(maxCap / designCap * 100). A design
// capacity of zero or less yields 0.
func CapacityPercent(maxCap, designCap int64) int {
	if designCap <= 0 {
		return 0
	}
	return int(math.Round(float64(maxCap) / float64(designCap) * 100))
}

// ParseInt parses a trimmed integer node.
func ParseInt(raw string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseMilliCelsius converts a thermal zone reading to degrees Celsius.
func ParseMilliCelsius(raw string) (float64, bool) {
	return scaled(raw, 1000)
}

// ParseDeciCelsius converts a power_supply temp reading to degrees Celsius.
func ParseDeciCelsius(raw string) (float64, bool) {
	return scaled(raw, 10)
}

// ParseMicroVolts converts a voltage_now reading to volts.
func ParseMicroVolts(raw string) (float64, bool) {
	return scaled(raw, 1_000_000)
}

// ParseMicroAmps converts a current_now reading to milliamps. The sign is
// kept; vendors disagree on whether charging is positive.
func ParseMicroAmps(raw string) (float64, bool) {
	return scaled(raw, 1000)
}

// ParseMicroAmpHours converts a charge_full reading to mAh.
func ParseMicroAmpHours(raw string) (int64, bool) {
	v, ok := ParseInt(raw)
	if !ok {
		return 0, false
	}
	return v / 1000, true
}

func scaled(raw string, by float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v / by, true
}
