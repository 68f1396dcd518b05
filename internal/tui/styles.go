package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	success  lipgloss.Style
	pending  lipgloss.Style
	accent   lipgloss.Style
	muted    lipgloss.Style
	err      lipgloss.Style
	selected lipgloss.Style
	done     lipgloss.Style
	panel    lipgloss.Style
}

func newStyles(dark bool) styles {
	fg, border, accent := lipgloss.Color("236"), lipgloss.Color("8"), lipgloss.Color("12")
	if dark {
		fg, border, accent = lipgloss.Color("252"), lipgloss.Color("240"), lipgloss.Color("117")
	}
	base := lipgloss.NewStyle().Foreground(fg)
	return styles{
		title:    base.Bold(true),
		tab:      base.Padding(0, 1).Faint(true),
		tabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true).Foreground(accent),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		accent:   lipgloss.NewStyle().Foreground(accent),
		muted:    base.Faint(true),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		selected: lipgloss.NewStyle().Bold(true).Foreground(accent),
		done:     base.Faint(true).Strikethrough(true),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}

const (
	boxChecked   = "☑"
	boxUnchecked = "☐"
)
