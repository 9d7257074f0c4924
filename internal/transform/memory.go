package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMemInfo parses /proc/meminfo into a map of field name to kB.
// Lines that do not parse are skipped.
func ParseMemInfo(raw string) map[string]uint64 {
	out := make(map[string]uint64)
	for _, line := range strings.Split(raw, "\n") {
		// MemTotal:       7812345 kB
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "kB"))
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			continue
		}
		out[strings.TrimSpace(key)] = n
	}
	return out
}

// FormatBytes renders n bytes with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// ParseSize parses a size such as "2G", "512M", "1073741824" or "3GiB"
// into bytes.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	upper := strings.TrimSuffix(strings.TrimSuffix(strings.ToUpper(s), "B"), "I")
	mult := uint64(1)
	switch {
	case strings.HasSuffix(upper, "K"):
		mult = 1 << 10
	case strings.HasSuffix(upper, "M"):
		mult = 1 << 20
	case strings.HasSuffix(upper, "G"):
		mult = 1 << 30
	}
	if mult != 1 {
		upper = upper[:len(upper)-1]
	}
	n, err := strconv.ParseUint(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	return n * mult, nil
}
