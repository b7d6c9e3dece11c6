package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/muurk/sonoscan/internal/discovery"
)

// ErrInvalidPreferences is returned by Validate
var ErrInvalidPreferences = errors.New("invalid preferences")

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int          `yaml:"version"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// Preferences holds the defaults for discovery and lookup. Command-line
// flags override them.
type Preferences struct {
	Workers       int           `yaml:"workers"`            // Concurrent scan workers (1-1024)
	Timeout       time.Duration `yaml:"timeout"`            // Per-probe timeout (e.g. "2s")
	MinPrefixLen  int           `yaml:"min_prefix_len"`     // Narrow wider networks to this prefix length
	Networks      []string      `yaml:"networks,omitempty"` // Networks to sweep instead of the host's own
	UseMDNS       bool          `yaml:"use_mdns"`           // Seed the sweep with mDNS responders
	MDNSWindow    time.Duration `yaml:"mdns_window"`        // How long to listen for mDNS responses
	UseCache      bool          `yaml:"use_cache"`          // Resolve names from the speaker cache
	RefreshOnMiss bool          `yaml:"refresh_on_miss"`    // Rediscover once when a cached lookup misses
}

// DefaultPreferences returns the built-in preferences
func DefaultPreferences() *Preferences {
	return &Preferences{
		Workers:       discovery.DefaultWorkers,
		Timeout:       discovery.DefaultTimeout,
		MinPrefixLen:  discovery.DefaultMinPrefixLen,
		UseMDNS:       true,
		MDNSWindow:    discovery.DefaultMDNSWindow,
		UseCache:      true,
		RefreshOnMiss: true,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Preferences: DefaultPreferences(),
	}
}

// Validate checks the preferences against the bounds discovery accepts
func (p *Preferences) Validate() error {
	if p.Workers < 1 || p.Workers > discovery.MaxWorkers {
		return fmt.Errorf("%w: workers must be between 1 and %d, got %d",
			ErrInvalidPreferences, discovery.MaxWorkers, p.Workers)
	}
	if p.Timeout <= 0 || p.Timeout > discovery.MaxTimeout {
		return fmt.Errorf("%w: timeout must be greater than 0 and at most %s, got %s",
			ErrInvalidPreferences, discovery.MaxTimeout, p.Timeout)
	}
	if p.MinPrefixLen < discovery.MinPrefixLenLower || p.MinPrefixLen > discovery.MinPrefixLenUpper {
		return fmt.Errorf("%w: min_prefix_len must be between %d and %d, got %d",
			ErrInvalidPreferences, discovery.MinPrefixLenLower, discovery.MinPrefixLenUpper, p.MinPrefixLen)
	}
	if p.MDNSWindow < 0 || p.MDNSWindow > discovery.MaxTimeout {
		return fmt.Errorf("%w: mdns_window must be between 0 and %s, got %s",
			ErrInvalidPreferences, discovery.MaxTimeout, p.MDNSWindow)
	}
	if _, err := discovery.ParseNetworks(p.Networks); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	return nil
}
