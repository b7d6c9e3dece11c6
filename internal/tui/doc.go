// Package tui provides the interactive speaker browser behind
// "sonoscan browse".
//
// The browser is a Bubble Tea program that lists speakers with the bubbles
// list component. Users filter by typing, toggle hidden speakers, rescan
// the network, or type an address by hand. Pressing enter ends the program
// with the highlighted speaker selected.
//
// Scans run in a goroutine started by a command. Progress and the result
// reach the model as messages read from a channel, one command per message,
// so Update never blocks.
//
// Example:
//
//	m, err := tui.Run(ctx, os.Stderr, cached, func(ctx context.Context, report discovery.ProgressFunc) ([]discovery.Device, error) {
//	    scanner.Progress = report
//	    result, err := scanner.Discover(ctx)
//	    if result == nil {
//	        return nil, err
//	    }
//	    return result.Devices(), err
//	})
//	if err == nil && m.Selected() != nil {
//	    fmt.Println(m.Selected().IP)
//	}
package tui
