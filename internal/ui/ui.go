// Package ui renders the monitored screens in a terminal.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rvkernel/rvkernel-mcp/internal/battery"
	"github.com/rvkernel/rvkernel-mcp/internal/kernel"
	"github.com/rvkernel/rvkernel-mcp/internal/soc"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
	"github.com/rvkernel/rvkernel-mcp/internal/system"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

// Sources are the stores the dashboard reads from.
type Sources struct {
	System  *state.Store[system.Overview]
	SoC     *state.Store[soc.Status]
	Battery *state.Store[battery.Status]
	Kernel  *state.Store[kernel.Status]

	// Refresh reloads one screen on demand. Optional.
	Refresh func(ctx context.Context, screen string) error
}

// Tab identifies a screen.
type Tab int

const (
	TabSystem Tab = iota
	TabSoC
	TabBattery
	TabKernel
)

var tabNames = []string{"system", "soc", "battery", "kernel"}

func (t Tab) String() string { return tabNames[t] }

// ThemeMsg switches the colour theme while the program runs.
type ThemeMsg string

type (
	tickMsg    struct{}
	refreshMsg struct {
		screen string
		err    error
	}
)

// Model renders the latest value of each store.
type Model struct {
	src    Sources
	theme  theme
	tab    Tab
	status string
	width  int

	sys     system.Overview
	soc     soc.Status
	battery battery.Status
	kernel  kernel.Status

	// Store subscription ids and channels.
	sysID, socID, batID, kerID string
	sysCh                      <-chan system.Overview
	socCh                      <-chan soc.Status
	batCh                      <-chan battery.Status
	kerCh                      <-chan kernel.Status
}

// New subscribes to every store and returns a Model showing their current
// values.
func New(src Sources, themeName string) *Model {
	m := &Model{
		src:     src,
		theme:   themeFor(themeName),
		width:   100,
		sys:     src.System.Get(),
		soc:     src.SoC.Get(),
		battery: src.Battery.Get(),
		kernel:  src.Kernel.Get(),
	}
	m.sysID, m.sysCh = src.System.Subscribe()
	m.socID, m.socCh = src.SoC.Subscribe()
	m.batID, m.batCh = src.Battery.Subscribe()
	m.kerID, m.kerCh = src.Kernel.Subscribe()
	return m
}

// Close releases the store subscriptions.
func (m *Model) Close() {
	m.src.System.Unsubscribe(m.sysID)
	m.src.SoC.Unsubscribe(m.socID)
	m.src.Battery.Unsubscribe(m.batID)
	m.src.Kernel.Unsubscribe(m.kerID)
}

// Tab returns the selected screen.
func (m *Model) Tab() Tab { return m.tab }

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.tab = (m.tab + 1) % Tab(len(tabNames))
		case "shift+tab", "left", "h":
			m.tab = (m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		case "1", "2", "3", "4":
			m.tab = Tab(msg.String()[0] - '1')
		case "r":
			return m, m.refreshCmd(m.tab.String())
		}
	case ThemeMsg:
		m.theme = themeFor(string(msg))
	case refreshMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("refresh %s: %v", msg.screen, msg.err)
		} else {
			m.status = "refreshed " + msg.screen
		}
	case tickMsg:
		m.drain()
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) refreshCmd(screen string) tea.Cmd {
	if m.src.Refresh == nil {
		return nil
	}
	refresh := m.src.Refresh
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return refreshMsg{screen: screen, err: refresh(ctx, screen)}
	}
}

// drain takes whatever the stores have published since the last tick.
func (m *Model) drain() {
	select {
	case v, ok := <-m.sysCh:
		if ok {
			m.sys = v
		}
	default:
	}
	select {
	case v, ok := <-m.socCh:
		if ok {
			m.soc = v
		}
	default:
	}
	select {
	case v, ok := <-m.batCh:
		if ok {
			m.battery = v
		}
	default:
	}
	select {
	case v, ok := <-m.kerCh:
		if ok {
			m.kernel = v
		}
	default:
	}
}

func (m *Model) View() string {
	var body string
	switch m.tab {
	case TabSystem:
		body = m.viewSystem()
	case TabSoC:
		body = m.viewSoC()
	case TabBattery:
		body = m.viewBattery()
	case TabKernel:
		body = m.viewKernel()
	}

	footer := m.theme.subtle.Render("tab/1-4 switch  r refresh  q quit")
	if m.status != "" {
		footer += "  " + m.theme.subtle.Render(m.status)
	}
	view := lipgloss.JoinVertical(lipgloss.Left, m.header(), body, footer)
	if m.width > 0 {
		view = lipgloss.NewStyle().MaxWidth(m.width).Render(view)
	}
	return view
}

func (m *Model) header() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == m.tab {
			tabs[i] = m.theme.activeTab.Render(name)
		} else {
			tabs[i] = m.theme.tab.Render(name)
		}
	}
	title := m.theme.title.Render("rvktop") + "  " + m.theme.subtle.Render(m.sys.Model+" "+m.sys.KernelVersion)
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(tabs, " "))
}

// --- Screens ---

func (m *Model) viewSystem() string {
	s := m.sys
	info := m.card("Device", strings.Join([]string{
		"model    " + s.Model,
		"android  " + s.AndroidVersion,
		"kernel   " + s.KernelVersion,
		"uptime   " + s.Uptime,
	}, "\n"))

	cpu := transform.NotAvailable
	if s.CPUUsagePercent != nil {
		cpu = gaugeBar(*s.CPUUsagePercent, 24)
	}
	memUsed := s.MemTotalKB - s.MemAvailableKB
	load := m.card("Load", strings.Join([]string{
		"cpu   " + cpu,
		"mem   " + gaugeBar(pct(memUsed, s.MemTotalKB), 24),
		"swap  " + gaugeBar(pct(s.SwapTotalKB-s.SwapFreeKB, s.SwapTotalKB), 24),
		"gpu   " + s.GPUBusyPercent + "%",
	}, "\n"))

	var temps []string
	for i, t := range s.Temperatures {
		if i == 8 {
			temps = append(temps, fmt.Sprintf("... %d more", len(s.Temperatures)-i))
			break
		}
		temps = append(temps, fmt.Sprintf("%-20s %5.1f°C", truncate(t.Type, 20), t.Celsius))
	}
	if len(temps) == 0 {
		temps = []string{transform.NotAvailable}
	}
	zones := m.card("Thermal", strings.Join(temps, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, info, load, zones)
}

func (m *Model) viewSoC() string {
	var cards []string
	for _, c := range m.soc.Clusters {
		if !c.Supported {
			cards = append(cards, m.card(c.Cluster, m.theme.subtle.Render("not present")))
			continue
		}
		cards = append(cards, m.card(fmt.Sprintf("%s (policy%d)", c.Cluster, c.Policy), strings.Join([]string{
			"cur  " + c.CurFreqMHz + " MHz",
			"min  " + c.MinFreqMHz + " MHz",
			"max  " + c.MaxFreqMHz + " MHz",
			"gov  " + c.Governor,
		}, "\n")))
	}

	g := m.soc.GPU
	gpuBody := m.theme.subtle.Render("not present")
	if g.Supported {
		lines := []string{
			"model  " + g.Model,
			"cur    " + g.CurFreqMHz + " MHz",
			"range  " + g.MinFreqMHz + "-" + g.MaxFreqMHz + " MHz",
			"busy   " + g.BusyPercent + "%",
			"gov    " + g.Governor,
		}
		if g.BoostSupported {
			lines = append(lines, "boost  "+g.Boost)
		}
		if g.ThrottlingSupported {
			lines = append(lines, "throttling  "+onOff(g.Throttling))
		}
		gpuBody = strings.Join(lines, "\n")
	}
	cards = append(cards, m.card("GPU", gpuBody))
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m *Model) viewBattery() string {
	b := m.battery
	if !b.Supported {
		return m.card("Battery", m.theme.subtle.Render("not present"))
	}

	level := transform.NotAvailable
	if b.Level != nil {
		level = gaugeBar(float64(*b.Level), 24)
	}
	charge := m.card("Battery", strings.Join([]string{
		"level   " + level,
		"status  " + b.State,
		"health  " + b.Health,
		"temp    " + floatOr(b.TemperatureC, "%.1f°C"),
		"volt    " + floatOr(b.VoltageV, "%.3f V"),
		"current " + floatOr(b.CurrentMA, "%.0f mA"),
	}, "\n"))

	capacity := transform.NotAvailable
	if b.CapacityPercent != nil {
		capacity = fmt.Sprintf("%d%%", *b.CapacityPercent)
	}
	cycles := transform.NotAvailable
	if b.CycleCount != nil {
		cycles = fmt.Sprintf("%d", *b.CycleCount)
	}
	wear := m.card("Wear", strings.Join([]string{
		"capacity  " + capacity,
		"cycles    " + cycles,
	}, "\n"))

	controls := m.card("Controls", strings.Join([]string{
		"fast charge  " + toggle(b.FastCharge.Supported, b.FastCharge.Enabled),
		"bypass       " + toggle(b.BypassCharging.Supported, b.BypassCharging.Enabled),
		"thermal      " + thermal(b.ThermalProfile),
	}, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, charge, wear, controls)
}

func (m *Model) viewKernel() string {
	p := m.kernel.Params
	params := m.card("Kernel", strings.Join([]string{
		"sched_autogroup  " + toggle(p.SchedAutogroup.Supported, p.SchedAutogroup.Enabled),
		"printk           " + value(p.Printk),
		"util_clamp_min   " + value(p.UtilClampMin),
		"util_clamp_max   " + value(p.UtilClampMax),
		"tcp congestion   " + choice(p.TCPCongestion),
	}, "\n"))

	mem := m.kernel.Memory
	zram := transform.NotAvailable
	if mem.Zram.Supported {
		zram = mem.Zram.DiskSize + " " + choice(mem.Zram.Algorithm)
	}
	memory := m.card("Memory", strings.Join([]string{
		"zram                  " + zram,
		"swappiness            " + value(mem.Swappiness),
		"dirty_ratio           " + value(mem.DirtyRatio),
		"dirty_background      " + value(mem.DirtyBackgroundRatio),
	}, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, params, memory)
}

// --- Helpers ---

func (m *Model) card(title, body string) string {
	return m.theme.card.Render(m.theme.label.Render(title) + "\n" + body)
}

func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		pct)
}

func pct(used, total uint64) float64 {
	if total == 0 || used > total {
		return 0
	}
	return float64(used) * 100 / float64(total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func floatOr(v *float64, format string) string {
	if v == nil {
		return transform.NotAvailable
	}
	return fmt.Sprintf(format, *v)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func toggle(supported, enabled bool) string {
	if !supported {
		return transform.NotAvailable
	}
	return onOff(enabled)
}

func value(v kernel.Value) string {
	if !v.Supported {
		return transform.NotAvailable
	}
	return v.Value
}

func choice(c kernel.Choice) string {
	if !c.Supported {
		return transform.NotAvailable
	}
	return c.Current
}

func thermal(t battery.ThermalProfileStatus) string {
	if !t.Supported {
		return transform.NotAvailable
	}
	return fmt.Sprintf("%s (%s)", t.Name, t.Value)
}

// Run starts the program and blocks until the user quits. onStart receives
// the program so callers can forward messages such as ThemeMsg.
func Run(src Sources, themeName string, onStart func(p *tea.Program)) error {
	m := New(src, themeName)
	defer m.Close()

	prog := tea.NewProgram(m, tea.WithAltScreen())
	if onStart != nil {
		onStart(prog)
	}
	_, err := prog.Run()
	return err
}
