package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muurk/sonoscan/internal/discovery"
)

// Printer provides methods for printing UI components to a writer.
// This is the primary way commands should output styled content.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Field) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details ...Field) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintSpeakers prints devices as a table
func (p *Printer) PrintSpeakers(devices []discovery.Device) {
	p.Println(RenderSpeakerTable(devices))
}

// PrintNote prints a muted, indented line
func (p *Printer) PrintNote(note string) {
	p.Println(NoteStyle.Render(note))
}

// PrintFile prints a titled box holding file contents
func (p *Printer) PrintFile(title, content string) {
	p.Println(RenderFileBox(title, content, p.width))
}

// RenderFileBox renders file contents, such as the configuration file, in
// a muted box with the title on the first line.
func RenderFileBox(title, content string, width int) string {
	width = clampWidth(width)
	body := strings.TrimRight(content, "\n")

	lines := []string{
		FileBoxTitleStyle.Render(title),
		FileBoxContentStyle.Render(body),
	}
	return FileBoxStyle(width).Render(strings.Join(lines, "\n"))
}
