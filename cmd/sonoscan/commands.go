package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/sonoscan/internal/cache"
	"github.com/muurk/sonoscan/internal/discovery"
	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/resolver"
	"github.com/muurk/sonoscan/internal/ui"
)

// Command flags
var (
	discoverFlags  scanFlags
	discoverFormat string
	noSave         bool

	listFormat string
	listAll    bool

	findFlags   scanFlags
	findFormat  string
	findAll     bool
	findRefresh bool
	findNoCache bool
)

// scanTroubleshooting is shown when a scan has nothing to work with
var scanTroubleshooting = []string{
	"Check that this machine is connected to the speakers' network",
	"Only private IPv4 networks are scanned (10/8, 172.16/12, 192.168/16)",
	"Name the network explicitly: --network 192.168.1.0/24",
	"Run with --log-level debug to see which interfaces were skipped",
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(findCmd)
}

// discoverCmd sweeps the network and saves the result to the cache
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover speakers on the local network",
	Long: `Sweep the local networks for speakers and save them to the cache.

Every address of each network is probed on the speaker control port. Anything
that answers is identified over HTTP, then each household's topology is
queried so that zones which missed the sweep are added. The complete,
sorted list replaces the cached snapshot.`,
	Example: `  # Sweep the host's own networks
  sonoscan discover

  # Sweep a specific network with fewer workers
  sonoscan discover --network 10.1.4.0/24 --workers 64

  # Slow Wi-Fi: allow more time per probe
  sonoscan discover --timeout 5s

  # Print JSON without touching the cache
  sonoscan discover --format json --no-save`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	addScanFlags(discoverCmd, &discoverFlags)
	discoverCmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the result to the speaker cache")
	discoverCmd.Flags().StringVarP(&discoverFormat, "format", "f", formatTable, "Output format (table, plain, json)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if err := checkFormat(discoverFormat); err != nil {
		return err
	}
	p, err := applyScanFlags(cmd, prefs, &discoverFlags)
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

	printer := ui.NewPrinter(cmd.OutOrStdout())
	styled := discoverFormat == formatTable
	if styled {
		printer.PrintHeader("Discover", cmd.CommandPath(), scanParams(p)...)
	}

	var result *discovery.ScanResult
	interactive := styled && ui.IsTerminal(os.Stdout)
	err = ui.RunWithProgress(cmd.Context(), printer.Writer(),
		fmt.Sprintf("Probing for speakers on port %d", discovery.ControlPort), interactive,
		func(ctx context.Context, report discovery.ProgressFunc) error {
			scanner.Progress = report
			var scanErr error
			result, scanErr = c.Discover(ctx, scanner)
			return scanErr
		})
	if result == nil {
		return err
	}
	if errors.Is(err, discovery.ErrNoCandidates) {
		if styled {
			printer.PrintError("Nothing to scan", err, scanTroubleshooting)
		}
		return err
	}

	devices := result.Devices()
	if outErr := writeDevices(printer, discoverFormat, devices); outErr != nil {
		return outErr
	}

	saved := ""
	if err == nil && !noSave {
		switch saveErr := c.Save(); {
		case saveErr == nil:
			saved = c.Path()
		case errors.Is(saveErr, cache.ErrEmptyCache):
			// Nothing found; the previous snapshot stays
		default:
			return fmt.Errorf("failed to save speaker cache: %w", saveErr)
		}
	}

	if styled {
		printDiscoverSummary(printer, result, saved, err)
	}
	return err
}

// printDiscoverSummary prints the result box after a discovery
func printDiscoverSummary(printer *ui.Printer, result *discovery.ScanResult, saved string, err error) {
	stats := result.Stats()
	networks := make([]string, 0, len(result.Networks))
	for _, n := range result.Networks {
		networks = append(networks, n.String())
	}

	details := []ui.Field{
		{Key: "Networks", Value: strings.Join(networks, ", ")},
		{Key: "Probed", Value: fmt.Sprintf("%d addresses, %d open", stats.Candidates, stats.Open)},
		{Key: "Identified", Value: fmt.Sprint(stats.Identified)},
		{Key: "Reconciled", Value: fmt.Sprint(stats.Reconciled)},
		{Key: "Elapsed", Value: result.Elapsed.Round(time.Millisecond).String()},
	}

	switch {
	case err != nil:
		details = append(details, ui.Field{Key: "Skipped", Value: fmt.Sprint(stats.Skipped)})
		printer.PrintWarning("Discovery incomplete, cache not updated", details...)
	case result.Len() == 0:
		printer.PrintWarning("No speakers found", details...)
	default:
		if saved != "" {
			details = append(details, ui.Field{Key: "Saved to", Value: saved})
		}
		printer.PrintSuccess(fmt.Sprintf("Found %d speakers", result.Len()), details...)
	}
}

// listCmd prints the cached speakers
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached speakers",
	Long: `Print the speakers saved by the last discovery, without touching the network.

Bridges, boosts and home theatre satellites are not zones of their own and
are hidden unless --all is given.`,
	Example: `  sonoscan list
  sonoscan list --all --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include speakers that are not visible zones")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "Output format (table, plain, json)")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := checkFormat(listFormat); err != nil {
		return err
	}
	c, err := openCache()
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if err := c.Load(); err != nil {
		if !errors.Is(err, cache.ErrNoSnapshot) {
			return err
		}
		if listFormat == formatTable {
			printer.PrintWarning("No saved speakers",
				ui.Field{Key: "Cache", Value: c.Path()},
				ui.Field{Key: "Next step", Value: "sonoscan discover"})
		}
		return writeDevices(printer, listFormat, nil)
	}

	all := c.Devices()
	devices := all
	if !listAll {
		devices = visibleOnly(all)
	}
	if err := writeDevices(printer, listFormat, devices); err != nil {
		return err
	}

	if listFormat == formatTable {
		note := fmt.Sprintf("%d speakers, saved %s", len(devices), c.SavedAt().Local().Format(time.DateTime))
		if hidden := len(all) - len(devices); hidden > 0 {
			note += fmt.Sprintf(" (%d hidden, use --all)", hidden)
		}
		printer.PrintNote(note)
	}
	return nil
}

// findCmd resolves a speaker name
var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find a speaker by name",
	Long: `Resolve a speaker name, or an IPv4 address, to a speaker.

Names are matched against the cached speakers in order of preference: exact,
case-insensitive, ignoring apostrophe style, prefix, then substring. The first
kind of match that finds anything wins. When several speakers share a partial
match the first in sorted order is used and the others are listed.

An empty cache is loaded from disk or filled by a discovery. With
refresh_on_miss set in the configuration, a name that is not found triggers
one rediscovery before giving up.`,
	Example: `  sonoscan find kitchen
  sonoscan find "kids' room" --format plain
  sonoscan find boost --all
  sonoscan find lounge --refresh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFind,
}

func init() {
	addScanFlags(findCmd, &findFlags)
	findCmd.Flags().BoolVarP(&findAll, "all", "a", false, "Also match speakers that are not visible zones")
	findCmd.Flags().BoolVar(&findRefresh, "refresh", false, "Rediscover and save the cache before the lookup")
	findCmd.Flags().BoolVar(&findNoCache, "no-cache", false, "Run a live discovery instead of using the cache")
	findCmd.Flags().StringVarP(&findFormat, "format", "f", formatTable, "Output format (table, plain, json)")
}

func runFind(cmd *cobra.Command, args []string) error {
	if err := checkFormat(findFormat); err != nil {
		return err
	}
	p, err := applyScanFlags(cmd, prefs, &findFlags)
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

	ctx := cmd.Context()
	log := logging.Named("resolve")
	r := resolver.New(c, scanner, log)
	r.UseCache = p.UseCache && !findNoCache
	r.RefreshOnMiss = p.RefreshOnMiss

	if findRefresh && r.UseCache {
		if _, err := c.Discover(ctx, scanner); err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		if err := c.Save(); err != nil && !errors.Is(err, cache.ErrEmptyCache) {
			log.Warn("Failed to save speaker cache", zap.Error(err))
		}
	}

	name := strings.Join(args, " ")
	printer := ui.NewPrinter(cmd.OutOrStdout())

	matches, tier, err := r.Matches(ctx, name, !findAll)
	if err != nil {
		if findFormat != formatTable {
			return err
		}
		switch {
		case errors.Is(err, resolver.ErrNotFound):
			printer.PrintError(fmt.Sprintf("No speaker matches %q", name), err, []string{
				"List known speakers: sonoscan list --all",
				"Bridges and satellites only match with --all",
				"Rediscover first: sonoscan find " + name + " --refresh",
			})
		case errors.Is(err, discovery.ErrNoCandidates):
			printer.PrintError("Nothing to scan", err, scanTroubleshooting)
		}
		return err
	}

	best := matches[0]
	switch findFormat {
	case formatPlain:
		_, err = fmt.Fprintln(printer.Writer(), best.IP)
		return err
	case formatJSON:
		return writeJSON(printer.Writer(), struct {
			speakerJSON
			Match string `json:"match"`
		}{toJSON([]discovery.Device{best})[0], tier.String()})
	}

	printer.PrintSpeakers([]discovery.Device{best})
	if tier.Partial() && len(matches) > 1 {
		others := make([]string, 0, len(matches)-1)
		for _, d := range matches[1:] {
			others = append(others, fmt.Sprintf("%s (%s)", d.Name, d.IP))
		}
		printer.PrintWarning(fmt.Sprintf("%d speakers match %q", len(matches), name),
			ui.Field{Key: "Using", Value: best.Name},
			ui.Field{Key: "Also", Value: strings.Join(others, ", ")})
	}
	return nil
}
