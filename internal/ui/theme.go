package ui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	name      string
	title     lipgloss.Style
	subtle    lipgloss.Style
	label     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	card      lipgloss.Style
}

type palette struct {
	accent, muted, label, border, tabFg, activeFg, activeBg string
}

var palettes = map[string]palette{
	"dark":   {accent: "45", muted: "244", label: "81", border: "60", tabFg: "250", activeFg: "16", activeBg: "45"},
	"light":  {accent: "25", muted: "243", label: "31", border: "250", tabFg: "240", activeFg: "231", activeBg: "25"},
	"amoled": {accent: "208", muted: "240", label: "214", border: "236", tabFg: "245", activeFg: "16", activeBg: "208"},
}

// Themes returns the accepted theme names.
func Themes() []string { return []string{"amoled", "dark", "light"} }

// themeFor returns the named theme, or the dark theme for unknown names.
func themeFor(name string) theme {
	p, ok := palettes[name]
	if !ok {
		name, p = "dark", palettes["dark"]
	}
	return theme{
		name:      name,
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.accent)),
		subtle:    lipgloss.NewStyle().Foreground(lipgloss.Color(p.muted)),
		label:     lipgloss.NewStyle().Foreground(lipgloss.Color(p.label)).Bold(true),
		tab:       lipgloss.NewStyle().Foreground(lipgloss.Color(p.tabFg)).Padding(0, 1),
		activeTab: lipgloss.NewStyle().Foreground(lipgloss.Color(p.activeFg)).Background(lipgloss.Color(p.activeBg)).Bold(true).Padding(0, 1),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(p.border)).
			Padding(0, 1).
			MarginRight(1),
	}
}
