package tui

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/sonoscan/internal/discovery"
	"github.com/muurk/sonoscan/internal/ui"
)

// DiscoverFunc runs a discovery, reporting progress through report, and
// returns the speakers found
type DiscoverFunc func(ctx context.Context, report discovery.ProgressFunc) ([]discovery.Device, error)

// Messages from a running scan
type scanProgressMsg struct {
	done, total int
}

type scanDoneMsg struct {
	devices []discovery.Device
	err     error
}

// speakerItem wraps a Device for use with bubbles/list
type speakerItem struct {
	device discovery.Device
}

// FilterValue implements list.Item
func (s speakerItem) FilterValue() string {
	return s.device.Name + " " + s.device.IP
}

// Title returns the zone name for list display
func (s speakerItem) Title() string {
	if s.device.Name == "" {
		return s.device.IP
	}
	return s.device.Name
}

// Description returns speaker details for list display
func (s speakerItem) Description() string {
	parts := []string{s.device.IP}
	if s.device.Model != "" {
		parts = append(parts, s.device.Model)
	}
	if s.device.Version != "" {
		parts = append(parts, s.device.Version)
	}
	if !s.device.Visible {
		parts = append(parts, "hidden")
	}
	return strings.Join(parts, " • ")
}

// Model is the speaker browser. It lists speakers, can rescan, and ends
// when a speaker is selected or the user quits.
type Model struct {
	Scanning   bool
	ShowHidden bool
	ManualMode bool
	Done       int
	Total      int
	Err        error
	Width      int
	Height     int

	devices  []discovery.Device
	selected *discovery.Device
	inputErr string

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	bar     progress.Model
	help    help.Model

	keys         browseKeyMap
	manualKeys   manualKeyMap
	scanningKeys scanningKeyMap

	ctx      context.Context
	discover DiscoverFunc
	updates  chan tea.Msg
	initCmd  tea.Cmd
}

// NewModel creates a browser showing devices. When devices is empty and
// discover is set, a scan starts as soon as the program runs.
func NewModel(ctx context.Context, devices []discovery.Device, discover DiscoverFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "192.168.1.20"
	input.CharLimit = 15 // Max length for IPv4 address
	input.Width = 30

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ui.SuccessColor).
		BorderForeground(ui.SuccessColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		BorderForeground(ui.SuccessColor)

	speakers := list.New(nil, delegate, ui.MinTerminalWidth, 20)
	speakers.Title = "Speakers"
	speakers.Styles.Title = TitleStyle
	speakers.SetShowHelp(false)
	speakers.SetShowStatusBar(true)
	speakers.SetFilteringEnabled(true)

	m := Model{
		devices:      devices,
		list:         speakers,
		input:        input,
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:         help.New(),
		keys:         newBrowseKeys(),
		manualKeys:   newManualKeys(),
		scanningKeys: newScanningKeys(),
		ctx:          ctx,
		discover:     discover,
	}
	m.refreshItems()

	if len(devices) == 0 && discover != nil {
		m.initCmd = m.startScan()
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.initCmd == nil {
		return nil
	}
	return tea.Batch(m.initCmd, m.spinner.Tick)
}

// startScan marks the model as scanning and returns the command that runs
// the scan. Progress and the result arrive as messages on a fresh channel.
func (m *Model) startScan() tea.Cmd {
	updates := make(chan tea.Msg, 64)
	m.updates = updates
	m.Scanning = true
	m.Done, m.Total = 0, 0
	m.Err = nil

	ctx, discover := m.ctx, m.discover
	return func() tea.Msg {
		go func() {
			report := func(done, total int) {
				// Dropping an update only delays the bar
				select {
				case updates <- scanProgressMsg{done: done, total: total}:
				default:
				}
			}
			devices, err := discover(ctx, report)
			select {
			case updates <- scanDoneMsg{devices: devices, err: err}:
			case <-ctx.Done():
			}
		}()
		return <-updates
	}
}

// waitForScan reads the next message of a running scan
func waitForScan(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

// refreshItems rebuilds the list from devices
func (m *Model) refreshItems() tea.Cmd {
	items := make([]list.Item, 0, len(m.devices))
	for _, d := range m.devices {
		if d.Visible || m.ShowHidden {
			items = append(items, speakerItem{device: d})
		}
	}
	return m.list.SetItems(items)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case m.ManualMode:
			return m.updateManualMode(msg)
		case m.Scanning:
			if key.Matches(msg, m.scanningKeys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.list.SetSize(msg.Width-4, max(msg.Height-8, 5)) // Leave room for header and footer
		m.help.Width = msg.Width - 4

	case scanProgressMsg:
		m.Done, m.Total = msg.done, msg.total
		return m, waitForScan(m.updates)

	case scanDoneMsg:
		m.Scanning = false
		m.Err = msg.err
		if msg.devices != nil || msg.err == nil {
			m.devices = msg.devices
		}
		return m, m.refreshItems()

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.ManualMode && !m.Scanning {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// updateNormalMode handles keyboard input in the speaker list
func (m Model) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// While typing a filter every key belongs to the list
	if m.list.FilterState() == list.Filtering {
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(speakerItem); ok {
			d := item.device
			m.selected = &d
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.Hidden):
		m.ShowHidden = !m.ShowHidden
		return m, m.refreshItems()

	case key.Matches(msg, m.keys.Rescan):
		if m.discover == nil {
			return m, nil
		}
		scan := m.startScan()
		return m, tea.Batch(scan, m.spinner.Tick)

	case key.Matches(msg, m.keys.Manual):
		m.ManualMode = true
		m.inputErr = ""
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// updateManualMode handles keyboard input in manual address entry
func (m Model) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.manualKeys.Cancel):
		m.ManualMode = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.manualKeys.Confirm):
		addr, err := netip.ParseAddr(strings.TrimSpace(m.input.Value()))
		if err != nil || !addr.Is4() {
			m.inputErr = "Enter an IPv4 address such as 192.168.1.20"
			return m, nil
		}
		m.selected = &discovery.Device{IP: addr.String(), Visible: true}
		m.ManualMode = false
		m.input.Blur()
		return m, tea.Quit
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Selected returns the chosen speaker, or nil when the user quit
func (m Model) Selected() *discovery.Device {
	return m.selected
}

// Devices returns the speakers from the most recent scan or the initial list
func (m Model) Devices() []discovery.Device {
	return m.devices
}

// View implements tea.Model
func (m Model) View() string {
	width := m.Width
	if width == 0 {
		width = ui.GetTerminalWidth()
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.help.View(m.manualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.help.View(m.scanningKeys)
	default:
		content = m.renderSpeakers()
		helpText = m.help.View(m.keys)
	}

	return renderFrame(AppName, content, helpText, width)
}

// renderScanning renders a centered spinner and progress bar
func (m Model) renderScanning(width int) string {
	percent := 0.0
	if m.Total > 0 {
		percent = float64(m.Done) / float64(m.Total)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.spinner.View()+" SEARCHING FOR SPEAKERS"),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Probing port %d on the local networks", discovery.ControlPort)),
		"",
		m.bar.ViewAs(percent),
		"",
		SubtitleStyle.Render(fmt.Sprintf("%d of %d addresses", m.Done, m.Total)),
		"",
	)
	return lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderSpeakers renders the speaker list, or why it is empty
func (m Model) renderSpeakers() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString("  " + ErrorStyle.Render(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
	}

	if len(m.list.Items()) == 0 {
		b.WriteString("  " + WarningStyle.Render("⚠ No speakers to show"))
		b.WriteString("\n\n")
		hidden := len(m.devices)
		switch {
		case hidden > 0 && !m.ShowHidden:
			b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  %d hidden speakers; press a to show them", hidden)))
		case m.discover != nil:
			b.WriteString(SubtitleStyle.Render("  Press r to scan the network"))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.list.View())
	return b.String()
}

// renderManualEntry renders the address entry dialog
func (m Model) renderManualEntry() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("  Enter a speaker address"))
	b.WriteString("\n\n")
	b.WriteString("  IP Address: ")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.inputErr != "" {
		b.WriteString("\n  " + ErrorStyle.Render(m.inputErr) + "\n")
	}
	return b.String()
}

// Run shows the browser full screen on out and returns the final model.
// Drawing on stderr leaves stdout free for the selected address.
func Run(ctx context.Context, out io.Writer, devices []discovery.Device, discover DiscoverFunc) (Model, error) {
	p := tea.NewProgram(NewModel(ctx, devices, discover),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)

	final, err := p.Run()
	if err != nil {
		return Model{}, fmt.Errorf("speaker browser failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Model{}, fmt.Errorf("speaker browser returned %T", final)
	}
	return m, nil
}
