package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/sonoscan/internal/ui"
)

// AppName is shown in the frame header
const AppName = "SONOS SPEAKERS"

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ui.WarningColor).
			Bold(true)
)

// renderFrame lays out the header, content and help footer, each separated
// by a rule, inside a rounded border
func renderFrame(title, content, help string, width int) string {
	if width < ui.MinTerminalWidth {
		width = ui.MinTerminalWidth
	}

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderBottom(true).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Render(TitleStyle.Render(title))

	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderTop(true).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1).
		Render(help)

	body := lipgloss.NewStyle().Width(width - 4).Render(content)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.PrimaryColor).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}
