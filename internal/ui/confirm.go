package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm displays a warning box on out and reads one line from in.
// It returns true only if the line, trimmed, equals phrase.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}
	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	_, _ = fmt.Fprintln(out, WarningBoxStyle(width).Render(strings.Join(lines, "\n")))
	_, _ = fmt.Fprintln(out)

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	_, _ = fmt.Fprint(out, promptStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	// A final line without a newline still counts
	input, _ := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)

	if strings.TrimSpace(input) == phrase {
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	_, _ = fmt.Fprintln(out, cancelStyle.Render("  Operation cancelled."))
	return false
}

// ConfirmCacheDelete asks before the saved speaker snapshot at path is removed
func ConfirmCacheDelete(in io.Reader, out io.Writer, path string) bool {
	return Confirm(in, out,
		"DELETE SPEAKER CACHE",
		[]string{
			"This removes the saved speaker snapshot at " + path,
			"Name lookups will run a full discovery until the cache is saved again",
		},
		"yes",
	)
}
