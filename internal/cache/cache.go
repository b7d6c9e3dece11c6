package cache

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/sonoscan/internal/config"
	"github.com/muurk/sonoscan/internal/discovery"
)

const (
	// FileName is the snapshot file inside the cache directory
	FileName = "speakers.yaml"

	// CurrentVersion is the on-disk schema version written by Save
	CurrentVersion = 2
)

// legacyFiles are snapshots written by earlier releases. They are removed on
// construction so Load never sees them.
var legacyFiles = []string{"speakers.dat", "speakers_v1.yaml"}

var (
	// ErrEmptyCache is returned by Save when there is nothing to save
	ErrEmptyCache = errors.New("speaker cache is empty")

	// ErrNoSnapshot is returned by Load when no snapshot exists
	ErrNoSnapshot = errors.New("no saved speaker snapshot")

	// ErrCorruptSnapshot is returned by Load when the snapshot cannot be decoded
	ErrCorruptSnapshot = errors.New("speaker snapshot is corrupt")

	// ErrUnsupportedVersion is returned by Load for unknown schema versions
	ErrUnsupportedVersion = errors.New("unsupported speaker snapshot version")
)

// Discoverer runs a discovery pass
type Discoverer interface {
	Discover(ctx context.Context) (*discovery.ScanResult, error)
}

// snapshot is the on-disk layout
type snapshot struct {
	Version  int       `yaml:"version"`
	SavedAt  time.Time `yaml:"saved_at"`
	Networks []string  `yaml:"networks,omitempty"`
	Devices  []speaker `yaml:"devices"`
}

type speaker struct {
	HouseholdID string `yaml:"household_id"`
	IP          string `yaml:"ip"`
	Name        string `yaml:"name"`
	Visible     bool   `yaml:"visible"`
	Model       string `yaml:"model,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

// Cache holds the most recent discovery result and persists it between runs.
// It is safe for concurrent use within one process; two processes saving at
// once is not coordinated.
type Cache struct {
	dir  string
	path string
	log  *zap.Logger

	mu       sync.RWMutex
	devices  []discovery.Device
	networks []netip.Prefix
	savedAt  time.Time
}

// New creates a cache stored in dir. Legacy and outdated snapshots in dir are
// deleted.
func New(dir string, log *zap.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory must not be empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Cache{
		dir:  dir,
		path: filepath.Join(dir, FileName),
		log:  log,
	}
	if err := c.removeOutdated(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewDefault creates a cache in the user's configuration directory
func NewDefault(log *zap.Logger) (*Cache, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return New(dir, log)
}

// Path returns the snapshot file path
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) removeOutdated() error {
	for _, name := range legacyFiles {
		path := filepath.Join(c.dir, name)
		if err := os.Remove(path); err == nil {
			c.log.Info("Removed legacy speaker cache", zap.String("path", path))
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove legacy speaker cache: %w", err)
		}
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		// Missing is normal; anything else surfaces from Load
		return nil
	}

	var header struct {
		Version int `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil
	}
	if header.Version < CurrentVersion {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove outdated speaker cache: %w", err)
		}
		c.log.Info("Removed outdated speaker cache",
			zap.String("path", c.path),
			zap.Int("version", header.Version))
	}
	return nil
}

// Devices returns a copy of the cached devices in stored order
func (c *Cache) Devices() []discovery.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.devices)
}

// Networks returns the networks swept by the discovery that produced the cache
func (c *Cache) Networks() []netip.Prefix {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.networks)
}

// SavedAt returns when the snapshot was last saved or loaded from disk
func (c *Cache) SavedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.savedAt
}

// Len returns the number of cached devices
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.devices)
}

// Replace swaps the in-memory contents wholesale
func (c *Cache) Replace(devices []discovery.Device, networks []netip.Prefix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = slices.Clone(devices)
	c.networks = slices.Clone(networks)
}

// Clear empties the in-memory list. The snapshot on disk is untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = nil
	c.networks = nil
}

// Discover runs d and replaces the in-memory contents with its result. The
// result is never merged with what was cached before. A discovery that
// returns an error, including a partial result from a cancelled scan, leaves
// the contents alone; the result is still returned to the caller.
func (c *Cache) Discover(ctx context.Context, d Discoverer) (*discovery.ScanResult, error) {
	result, err := d.Discover(ctx)
	if err != nil {
		return result, err
	}
	if result != nil {
		c.Replace(result.Devices(), result.Networks)
		c.log.Debug("Cache replaced from discovery", zap.Int("devices", result.Len()))
	}
	return result, err
}

// Save writes the in-memory list to disk. An empty list is refused so that a
// failed discovery never erases a good snapshot; use RemoveSaveFile for that.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.devices) == 0 {
		return ErrEmptyCache
	}

	snap := snapshot{
		Version: CurrentVersion,
		SavedAt: time.Now().UTC().Truncate(time.Second),
		Devices: make([]speaker, 0, len(c.devices)),
	}
	for _, n := range c.networks {
		snap.Networks = append(snap.Networks, n.String())
	}
	for _, d := range c.devices {
		snap.Devices = append(snap.Devices, speaker{
			HouseholdID: d.HouseholdID,
			IP:          d.IP,
			Name:        d.Name,
			Visible:     d.Visible,
			Model:       d.Model,
			Version:     d.Version,
		})
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal speaker cache: %w", err)
	}

	header := []byte(`# Speaker cache written by sonoscan discover.
# Safe to delete; it is rebuilt by the next discovery.

`)
	data = append(header, data...)

	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write to temporary file first (atomic write)
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save speaker cache: %w", err)
	}

	c.savedAt = snap.SavedAt
	c.log.Debug("Saved speaker cache",
		zap.String("path", c.path),
		zap.Int("devices", len(snap.Devices)))
	return nil
}

// Load replaces the in-memory list with the snapshot on disk. On any error
// the in-memory list is left as it was.
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoSnapshot
		}
		return fmt.Errorf("failed to read speaker cache: %w", err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version != CurrentVersion {
		return fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, snap.Version, CurrentVersion)
	}

	devices := make([]discovery.Device, 0, len(snap.Devices))
	for i, s := range snap.Devices {
		addr, err := netip.ParseAddr(s.IP)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("%w: device %d has invalid address %q", ErrCorruptSnapshot, i, s.IP)
		}
		devices = append(devices, discovery.Device{
			HouseholdID: s.HouseholdID,
			IP:          s.IP,
			Name:        s.Name,
			Visible:     s.Visible,
			Model:       s.Model,
			Version:     s.Version,
		})
	}

	var networks []netip.Prefix
	for _, n := range snap.Networks {
		prefix, err := netip.ParsePrefix(n)
		if err != nil {
			return fmt.Errorf("%w: invalid network %q", ErrCorruptSnapshot, n)
		}
		networks = append(networks, prefix)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = devices
	c.networks = networks
	c.savedAt = snap.SavedAt

	c.log.Debug("Loaded speaker cache",
		zap.String("path", c.path),
		zap.Int("devices", len(devices)))
	return nil
}

// RemoveSaveFile deletes the snapshot on disk. A missing file is reported
// as an error wrapping os.ErrNotExist.
func (c *Cache) RemoveSaveFile() error {
	if err := os.Remove(c.path); err != nil {
		return fmt.Errorf("failed to remove speaker cache: %w", err)
	}
	c.log.Info("Removed speaker cache", zap.String("path", c.path))
	return nil
}
