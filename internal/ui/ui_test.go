package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/sonoscan/internal/discovery"
)

var testDevices = []discovery.Device{
	{HouseholdID: "Sonos_a", IP: "192.168.1.10", Name: "Lounge", Visible: true, Model: "Sonos One", Version: "16.1"},
	{HouseholdID: "Sonos_a", IP: "192.168.1.40", Name: "", Visible: false, Model: "Sonos Boost"},
}

func TestHeader_RenderKeepsParamOrder(t *testing.T) {
	h := NewHeader("Discover", "sonoscan discover",
		Field{Key: "Workers", Value: "256"},
		Field{Key: "Timeout", Value: "2s"},
		Field{Key: "Networks", Value: "192.168.1.0/24"},
	).SetWidth(80)

	out := h.Render()
	assert.Contains(t, out, "DISCOVER")
	assert.Contains(t, out, "sonoscan discover")
	assert.Contains(t, out, "192.168.1.0/24")

	workers := strings.Index(out, "Workers:")
	timeout := strings.Index(out, "Timeout:")
	networks := strings.Index(out, "Networks:")
	assert.True(t, workers < timeout && timeout < networks, "params out of order:\n%s", out)
}

func TestHeader_NoParams(t *testing.T) {
	out := NewHeader("List", "sonoscan list").SetWidth(10).Render()
	assert.Contains(t, out, "LIST")
	assert.NotContains(t, out, ":")
}

func TestResult_Render(t *testing.T) {
	success := NewSuccessResult("Found 2 speakers",
		Field{Key: "Identified", Value: "1"},
		Field{Key: "Reconciled", Value: "1"},
	).SetWidth(80).Render()
	assert.Contains(t, success, "SUCCESS")
	assert.Contains(t, success, "Found 2 speakers")
	assert.Less(t, strings.Index(success, "Identified:"), strings.Index(success, "Reconciled:"))

	failure := NewFailureResult("Discovery failed", errors.New("no networks to scan"),
		[]string{"Pass --network 192.168.1.0/24"}).SetWidth(80).Render()
	assert.Contains(t, failure, "FAILED")
	assert.Contains(t, failure, "Error: no networks to scan")
	assert.Contains(t, failure, "Troubleshooting:")
	assert.Contains(t, failure, "Pass --network 192.168.1.0/24")

	warning := NewWarningResult("Scan interrupted", Field{Key: "Skipped", Value: "12"}).Render()
	assert.Contains(t, warning, "WARNING")
	assert.Contains(t, warning, "Skipped:")
}

func TestSpeakerRows(t *testing.T) {
	rows := SpeakerRows(testDevices)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Lounge", "192.168.1.10", "Sonos One", "16.1", "Sonos_a", SuccessMarker}, rows[0])
	assert.Equal(t, "(unnamed)", rows[1][0])
	assert.Equal(t, HiddenMarker, rows[1][5])
}

func TestRenderSpeakerTable(t *testing.T) {
	out := RenderSpeakerTable(testDevices)
	for _, want := range []string{"Name", "Address", "Household", "Lounge", "192.168.1.40", "Sonos Boost"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Lounge"), strings.Index(out, "192.168.1.40"))
}

func TestWriteSpeakersPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSpeakersPlain(&buf, testDevices))
	assert.Equal(t,
		"Lounge\t192.168.1.10\tSonos One\t16.1\tSonos_a\tvisible\n"+
			"\t192.168.1.40\tSonos Boost\t\tSonos_a\thidden\n",
		buf.String())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintHeader("Find", "sonoscan find lounge", Field{Key: "Name", Value: "lounge"})
	p.PrintSpeakers(testDevices[:1])
	p.PrintFile("config.yaml", "version: 1\n")
	p.PrintError("Lookup failed", errors.New("speaker not found"), nil)

	out := buf.String()
	assert.Contains(t, out, "FIND")
	assert.Contains(t, out, "Lounge")
	assert.Contains(t, out, "version: 1")
	assert.Contains(t, out, "speaker not found")
	assert.Same(t, &buf, p.Writer())
}

func TestScanProgress_Update(t *testing.T) {
	m := NewScanProgress("Probing")
	assert.Zero(t, m.Percent())

	next, cmd := m.Update(ProgressMsg{Done: 5, Total: 10})
	assert.Nil(t, cmd)
	m = next.(ScanProgress)
	assert.InDelta(t, 0.5, m.Percent(), 1e-9)
	view := m.View()
	assert.Contains(t, view, "Probing")
	assert.Contains(t, view, "[5/10]")
	assert.Contains(t, view, "50%")

	next, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, next.(ScanProgress).Width)

	boom := errors.New("boom")
	next, cmd = m.Update(finishedMsg{err: boom})
	require.NotNil(t, cmd)
	m = next.(ScanProgress)
	assert.True(t, m.Finished)
	assert.Equal(t, boom, m.Err)
	assert.False(t, m.Interrupted)
}

func TestScanProgress_CtrlC(t *testing.T) {
	next, cmd := NewScanProgress("").Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, next.(ScanProgress).Interrupted)
}

func TestScanProgress_PercentCapped(t *testing.T) {
	m := ScanProgress{Done: 12, Total: 10}
	assert.Equal(t, 1.0, m.Percent())
}

func TestRunWithProgress_NotInteractive(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	called := false

	err := RunWithProgress(context.Background(), &buf, "Probing", false,
		func(ctx context.Context, report discovery.ProgressFunc) error {
			called = true
			assert.Nil(t, report)
			return boom
		})

	assert.True(t, called)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, buf.String())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "exact phrase", input: "yes\n", want: true},
		{name: "surrounding space", input: "  yes  \n", want: true},
		{name: "phrase without newline", input: "yes", want: true},
		{name: "other answer", input: "y\n", want: false},
		{name: "no input", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmCacheDelete(strings.NewReader(tt.input), &out, "/tmp/speakers.yaml")
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "/tmp/speakers.yaml")
			if !tt.want {
				assert.Contains(t, out.String(), "Operation cancelled.")
			}
		})
	}
}
