package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/sonoscan/internal/cache"
	"github.com/muurk/sonoscan/internal/config"
	"github.com/muurk/sonoscan/internal/discovery"
	"github.com/muurk/sonoscan/internal/logging"
	"github.com/muurk/sonoscan/internal/ui"
)

// Output formats
const (
	formatTable = "table"
	formatPlain = "plain"
	formatJSON  = "json"
)

// scanFlags are the discovery flags shared by discover and find
type scanFlags struct {
	workers    int
	timeout    time.Duration
	networks   []string
	minNetmask int
	noMDNS     bool
}

// addScanFlags registers the discovery flags on cmd. Their defaults are
// only shown in help; unset flags keep the configured preferences.
func addScanFlags(cmd *cobra.Command, f *scanFlags) {
	defaults := config.DefaultPreferences()
	cmd.Flags().IntVarP(&f.workers, "workers", "w", defaults.Workers,
		fmt.Sprintf("Concurrent scan workers (1-%d)", discovery.MaxWorkers))
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", defaults.Timeout,
		fmt.Sprintf("Per-probe timeout (max %s)", discovery.MaxTimeout))
	cmd.Flags().StringSliceVarP(&f.networks, "network", "n", nil,
		"Network to sweep in CIDR form, repeatable (default: the host's own networks)")
	cmd.Flags().IntVar(&f.minNetmask, "min-netmask", defaults.MinPrefixLen,
		fmt.Sprintf("Narrow wider host networks to this prefix length (%d-%d)",
			discovery.MinPrefixLenLower, discovery.MinPrefixLenUpper))
	cmd.Flags().BoolVar(&f.noMDNS, "no-mdns", false, "Do not seed the sweep with mDNS responders")
}

// applyScanFlags copies the flags the user set over a copy of p and
// validates the result
func applyScanFlags(cmd *cobra.Command, p *config.Preferences, f *scanFlags) (*config.Preferences, error) {
	merged := *p
	flags := cmd.Flags()

	if flags.Changed("workers") {
		merged.Workers = f.workers
	}
	if flags.Changed("timeout") {
		merged.Timeout = f.timeout
	}
	if flags.Changed("network") {
		merged.Networks = f.networks
	}
	if flags.Changed("min-netmask") {
		merged.MinPrefixLen = f.minNetmask
	}
	if f.noMDNS {
		merged.UseMDNS = false
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// newScanner builds a scanner from validated preferences
func newScanner(p *config.Preferences) (*discovery.Scanner, error) {
	networks, err := discovery.ParseNetworks(p.Networks)
	if err != nil {
		return nil, err
	}

	opts := []discovery.Option{
		discovery.WithWorkers(p.Workers),
		discovery.WithTimeout(p.Timeout),
		discovery.WithNetworks(networks...),
		discovery.WithMinPrefixLen(p.MinPrefixLen),
		discovery.WithLogger(logging.Named("scan")),
	}
	if p.UseMDNS && p.MDNSWindow > 0 {
		browser := discovery.NewMDNSBrowser()
		browser.Window = p.MDNSWindow
		opts = append(opts, discovery.WithMDNS(browser))
	}

	scanner := discovery.NewScanner(opts...)
	if err := scanner.Validate(); err != nil {
		return nil, err
	}
	return scanner, nil
}

// openCache opens the speaker cache in the configuration directory
func openCache() (*cache.Cache, error) {
	if configDir != "" {
		return cache.New(configDir, logging.Named("cache"))
	}
	return cache.NewDefault(logging.Named("cache"))
}

// checkFormat rejects unknown --format values
func checkFormat(format string) error {
	switch format {
	case formatTable, formatPlain, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q (use %s, %s or %s)", format, formatTable, formatPlain, formatJSON)
	}
}

// scanParams describes a scan for the command header
func scanParams(p *config.Preferences) []ui.Field {
	networks := "host interfaces"
	if len(p.Networks) > 0 {
		networks = strings.Join(p.Networks, ", ")
	}
	mdns := "off"
	if p.UseMDNS && p.MDNSWindow > 0 {
		mdns = p.MDNSWindow.String()
	}
	return []ui.Field{
		{Key: "Networks", Value: networks},
		{Key: "Workers", Value: fmt.Sprint(p.Workers)},
		{Key: "Timeout", Value: p.Timeout.String()},
		{Key: "mDNS", Value: mdns},
	}
}

// fileExists reports whether path names an existing file
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
