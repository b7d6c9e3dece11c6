package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/muurk/sonoscan/internal/discovery"
	"github.com/muurk/sonoscan/internal/ui"
)

// speakerJSON is the JSON form of a device
type speakerJSON struct {
	Name        string `json:"name"`
	IP          string `json:"ip"`
	Model       string `json:"model,omitempty"`
	Version     string `json:"version,omitempty"`
	HouseholdID string `json:"household_id"`
	Visible     bool   `json:"visible"`
}

func toJSON(devices []discovery.Device) []speakerJSON {
	out := make([]speakerJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, speakerJSON{
			Name:        d.Name,
			IP:          d.IP,
			Model:       d.Model,
			Version:     d.Version,
			HouseholdID: d.HouseholdID,
			Visible:     d.Visible,
		})
	}
	return out
}

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeDevices prints devices in the requested format
func writeDevices(printer *ui.Printer, format string, devices []discovery.Device) error {
	switch format {
	case formatJSON:
		return writeJSON(printer.Writer(), toJSON(devices))
	case formatPlain:
		return ui.WriteSpeakersPlain(printer.Writer(), devices)
	default:
		if len(devices) > 0 {
			printer.PrintSpeakers(devices)
		}
		return nil
	}
}

// visibleOnly drops speakers that are not visible zones
func visibleOnly(devices []discovery.Device) []discovery.Device {
	out := make([]discovery.Device, 0, len(devices))
	for _, d := range devices {
		if d.Visible {
			out = append(out, d)
		}
	}
	return out
}
