// Package ui provides terminal UI components for the sonoscan CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output for
// discovery and lookup commands. Apart from the scan progress bar, the
// components follow a "render once" pattern: they produce styled strings
// and never wait for input.
//
// # Components
//
//   - Header: command banner showing the operation and its parameters
//   - ScanProgress: Bubble Tea model driving a progress bar during a scan
//   - Result: success, failure and warning boxes
//   - Speaker table: lipgloss table of discovered speakers
//   - File box: configuration file contents for "config show"
//
// # Usage Pattern
//
//	printer := ui.NewPrinter(os.Stdout)
//	printer.PrintHeader("Discover", "sonoscan discover",
//	    ui.Field{Key: "Workers", Value: "256"})
//
//	err := ui.RunWithProgress(ctx, os.Stdout, "Probing local networks", ui.IsTerminal(os.Stdout),
//	    func(ctx context.Context, report discovery.ProgressFunc) error {
//	        scanner.Progress = report
//	        result, err = scanner.Discover(ctx)
//	        return err
//	    })
//
//	printer.PrintSpeakers(result.Devices())
//
// # Logging Integration
//
// Logging is controlled via the SONOSCAN_LOG_LEVEL environment variable or
// the --log-level flag. When unset, zap logging is silent so that the styled
// output is displayed cleanly. Logs go to stderr and never interleave with
// the table on stdout.
package ui
