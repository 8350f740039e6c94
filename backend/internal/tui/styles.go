package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title  lipgloss.Style
	Detail lipgloss.Style
	Tile   lipgloss.Style
	Slug   lipgloss.Style
	Liked  lipgloss.Style
	Muted  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#bd93f9")),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#bd93f9")).
			Padding(0, 1),
		Tile: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#6272a4")).
			Padding(0, 1),
		Slug:  lipgloss.NewStyle().Bold(true),
		Liked: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4")),
	}
}
