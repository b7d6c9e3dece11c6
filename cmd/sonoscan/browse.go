package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/sonoscan/internal/cache"
	"github.com/muurk/sonoscan/internal/discovery"
	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/tui"
)

var browseFlags scanFlags

// browseCmd opens the interactive speaker browser
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Pick a speaker interactively",
	Long: `Open a full-screen list of the cached speakers.

Type / to filter, a to show hidden speakers, r to rescan the network, or m
to type an address. Enter prints the selected speaker's address and exits,
so the command can be used in shell substitutions:

  curl "http://$(sonoscan browse):1400/status"

A rescan that completes replaces the speaker cache.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	addScanFlags(browseCmd, &browseFlags)
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	p, err := applyScanFlags(cmd, prefs, &browseFlags)
	if err != nil {
		return err
	}
	scanner, err := newScanner(p)
	if err != nil {
		return err
	}
	c, err := openCache()
	if err != nil {
		return err
	}

	log := logging.Named("browse")
	if err := c.Load(); err != nil && !errors.Is(err, cache.ErrNoSnapshot) {
		log.Warn("Ignoring unreadable speaker cache", zap.Error(err))
	}

	discover := func(ctx context.Context, report discovery.ProgressFunc) ([]discovery.Device, error) {
		scanner.Progress = report
		result, err := c.Discover(ctx, scanner)
		if result == nil {
			return nil, err
		}
		if err == nil {
			if saveErr := c.Save(); saveErr != nil && !errors.Is(saveErr, cache.ErrEmptyCache) {
				log.Warn("Failed to save speaker cache", zap.Error(saveErr))
			}
		}
		return result.Devices(), err
	}

	m, err := tui.Run(cmd.Context(), cmd.ErrOrStderr(), c.Devices(), discover)
	if err != nil {
		return err
	}
	if selected := m.Selected(); selected != nil {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), selected.IP)
	}
	return err
}
