package transform

import (
	"bufio"
	"strconv"
	"strings"
	"sync"
)

// cpuTimes holds aggregate jiffies from the first line of /proc/stat.
type cpuTimes struct {
	total uint64
	idle  uint64
}

// CPUUsage computes overall CPU usage from consecutive /proc/stat samples.
// The zero value is ready to use.
type CPUUsage struct {
	mu   sync.Mutex
	prev cpuTimes
	have bool
}

// Sample records stat as the new baseline and returns usage in percent
// since the previous sample. ok is false for the first sample after
// creation or Reset, for a sample with no elapsed jiffies, and for input
// without an aggregate cpu line.
func (c *CPUUsage) Sample(stat string) (usage float64, ok bool) {
	cur, parsed := parseCPUTimes(stat)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !parsed {
		return 0, false
	}
	prev, had := c.prev, c.have
	c.prev, c.have = cur, true
	if !had || cur.total <= prev.total {
		return 0, false
	}

	dTotal := cur.total - prev.total
	var dIdle uint64
	if cur.idle > prev.idle {
		dIdle = cur.idle - prev.idle
	}
	if dIdle > dTotal {
		dIdle = dTotal
	}
	return 100 * float64(dTotal-dIdle) / float64(dTotal), true
}

// Reset discards the baseline.
func (c *CPUUsage) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prev, c.have = cpuTimes{}, false
}

// parseCPUTimes reads the aggregate "cpu" line:
//
//	cpu  user nice system idle iowait irq softirq steal guest guest_nice
//
// guest and guest_nice are already counted in user and nice. iowait is
// treated as idle.
func parseCPUTimes(stat string) (cpuTimes, bool) {
	scanner := bufio.NewScanner(strings.NewReader(stat))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t cpuTimes
		for i, f := range fields[1:] {
			if i >= 8 {
				break
			}
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuTimes{}, false
			}
			t.total += v
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		return t, true
	}
	return cpuTimes{}, false
}
