package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/sonoscan/internal/discovery"
)

// ProgressMsg reports that done of total candidates have been examined
type ProgressMsg struct {
	Done  int
	Total int
}

// finishedMsg ends the progress program once the operation returns
type finishedMsg struct {
	err error
}

// ScanProgress is a Bubble Tea model showing a progress bar for a scan.
// It is fed ProgressMsg values and quits when the operation finishes or the
// user presses ctrl+c.
type ScanProgress struct {
	Label       string
	Done        int
	Total       int
	Width       int
	Err         error
	Finished    bool
	Interrupted bool
	bar         progress.Model
}

// NewScanProgress creates a progress model with the given label
func NewScanProgress(label string) ScanProgress {
	m := ScanProgress{Label: label}
	return m.withWidth(GetTerminalWidth())
}

// withWidth resizes the bar to fit width
func (m ScanProgress) withWidth(width int) ScanProgress {
	m.Width = width
	barWidth := width - 24 // Leave room for percentage and counter
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	m.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return m
}

// Percent returns the completed fraction in [0, 1]
func (m ScanProgress) Percent() float64 {
	if m.Total <= 0 {
		return 0
	}
	p := float64(m.Done) / float64(m.Total)
	if p > 1 {
		return 1
	}
	return p
}

// Init implements tea.Model
func (m ScanProgress) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m ScanProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.Done, m.Total = msg.Done, msg.Total
	case finishedMsg:
		m.Finished = true
		m.Err = msg.err
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m = m.withWidth(clampWidth(msg.Width))
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Interrupted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model
func (m ScanProgress) View() string {
	var b strings.Builder
	if m.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(m.Label))
		b.WriteString("\n\n")
	}

	line := fmt.Sprintf("%s  %3.0f%%  %s",
		m.bar.ViewAs(m.Percent()),
		m.Percent()*100,
		ProgressCountStyle.Render(fmt.Sprintf("[%d/%d]", m.Done, m.Total)))
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).Render(line))
	b.WriteString("\n")
	return b.String()
}

// ProgressOperation is a long running operation that reports progress
// through the callback it is given.
type ProgressOperation func(ctx context.Context, report discovery.ProgressFunc) error

// RunWithProgress runs op while showing a progress bar on out. When
// interactive is false, op runs without a bar. Pressing ctrl+c cancels the
// context passed to op; the error op returns is passed through either way.
func RunWithProgress(ctx context.Context, out io.Writer, label string, interactive bool, op ProgressOperation) error {
	if !interactive {
		return op(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewScanProgress(label),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)

	errCh := make(chan error, 1)
	go func() {
		err := op(ctx, func(done, total int) {
			p.Send(ProgressMsg{Done: done, Total: total})
		})
		p.Send(finishedMsg{err: err})
		errCh <- err
	}()

	// A program that fails to start leaves op running without a bar
	final, _ := p.Run()
	if m, ok := final.(ScanProgress); ok && m.Interrupted {
		cancel()
	}
	return <-errCh
}
