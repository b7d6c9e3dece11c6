// Sonoscan discovers Sonos speakers on the local network.
//
// It sweeps the host's private IPv4 networks for devices listening on the
// speaker control port, identifies them over their HTTP API, completes each
// household from its topology, and keeps the result in a local cache so
// later lookups by name are instant.
//
// Usage:
//
//	sonoscan [command] [flags]
//
// See 'sonoscan --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/sonoscan/internal/config"
	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/version"
)

// Root command flags
var (
	logLevel  string
	configDir string
)

// prefs holds the loaded preferences; set before any subcommand runs
var prefs *config.Preferences

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sonoscan",
	Short: "Sonos speaker discovery",
	Long: `Discover Sonos speakers on the local network and look them up by name.

Discovery probes every address of the host's private IPv4 networks on the
speaker control port, identifies what answers, and completes each household
from its topology so speakers that missed the sweep are still listed. The
result is saved to a local cache that name lookups use.

Defaults come from the configuration file (see 'sonoscan config show');
flags override them.`,
	Version: version.Version,
	Example: `  # Discover speakers and save them to the cache
  sonoscan discover

  # List the cached speakers, including bridges and subwoofers
  sonoscan list --all

  # Print the address of a speaker by name
  sonoscan find "kitchen" --format plain`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"Configuration and cache directory; overrides "+config.DirEnvVar)

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging and loads preferences for every subcommand
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	registry, err := config.LoadRegistry(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	prefs = registry.Preferences
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sonoscan %s %s\n", version.Full(), version.Platform())
	},
}
