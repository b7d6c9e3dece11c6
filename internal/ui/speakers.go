package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/sonoscan/internal/discovery"
)

// speakerColumns are the headings of the speaker table
var speakerColumns = []string{"Name", "Address", "Model", "Version", "Household", "Zone"}

// SpeakerRows converts devices to table rows in the order given
func SpeakerRows(devices []discovery.Device) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		zone := SuccessMarker
		if !d.Visible {
			zone = HiddenMarker
		}
		rows = append(rows, []string{name, d.IP, d.Model, d.Version, d.HouseholdID, zone})
	}
	return rows
}

// RenderSpeakerTable renders devices as a bordered table. Speakers that are
// not visible zones are dimmed.
func RenderSpeakerTable(devices []discovery.Device) string {
	rows := SpeakerRows(devices)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(speakerColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row >= 0 && row < len(devices) && !devices[row].Visible:
				return TableHiddenStyle
			default:
				return TableCellStyle
			}
		})

	return t.Render()
}

// WriteSpeakersPlain writes one tab-separated line per device, for scripts.
// Columns match the table: name, address, model, version, household and a
// "visible" or "hidden" marker.
func WriteSpeakersPlain(w io.Writer, devices []discovery.Device) error {
	for _, d := range devices {
		zone := "visible"
		if !d.Visible {
			zone = "hidden"
		}
		line := strings.Join([]string{d.Name, d.IP, d.Model, d.Version, d.HouseholdID, zone}, "\t")
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
