package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/muurk/sonoscan/internal/config"
	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/ui"
)

// Admin command flags
var (
	assumeYes   bool
	forceConfig bool
)

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	cacheDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Delete without asking")
	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "Replace an existing configuration file")
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the speaker cache",
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the location of the speaker cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), c.Path())
		return err
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved speakers",
	Long: `Remove the saved speaker snapshot so the next lookup rediscovers.

Succeeds when there is no snapshot, which makes it safe in scripts. Use
'cache delete' to be asked first and told when nothing was there.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}
		c.Clear()
		if err := c.RemoveSaveFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Speaker cache cleared",
			ui.Field{Key: "Cache", Value: c.Path()})
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the speaker cache file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache()
		if err != nil {
			return err
		}

		if !assumeYes && !ui.ConfirmCacheDelete(cmd.InOrStdin(), cmd.OutOrStdout(), c.Path()) {
			return nil
		}
		if err := c.RemoveSaveFile(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Speaker cache deleted",
			ui.Field{Key: "Removed", Value: c.Path()})
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	Long: `Show or create the configuration file.

The file holds the defaults for discovery and lookup. Command-line flags
override it for a single run.`,
	// A broken file must not stop 'config init --force' from replacing it
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry(configDir)
		if err != nil {
			return err
		}
		data, path, err := config.Render(registry, configDir)
		if err != nil {
			return err
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		printer.PrintFile(path, string(data))
		if !fileExists(path) {
			printer.PrintNote("Built-in defaults; run 'sonoscan config init' to create this file")
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the built-in defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig(configDir, forceConfig)
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use --force to replace it)", err)
		}
		if err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration created",
			ui.Field{Key: "Path", Value: path})
		return nil
	},
}
