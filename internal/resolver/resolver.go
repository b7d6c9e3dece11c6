package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/muurk/sonoscan/internal/cache"
	"github.com/muurk/sonoscan/internal/discovery"
)

// ErrNotFound is returned when no speaker matches a name
var ErrNotFound = errors.New("speaker not found")

// Tier is the matching rule that selected a speaker. Lower tiers win.
type Tier int

const (
	// TierNone means nothing matched
	TierNone Tier = iota
	// TierAddress means the query was an IPv4 address and no lookup was done
	TierAddress
	// TierExact is a byte-for-byte name match
	TierExact
	// TierCaseInsensitive ignores case
	TierCaseInsensitive
	// TierApostrophe also treats curly and straight apostrophes as equal
	TierApostrophe
	// TierPrefix matches names that start with the query
	TierPrefix
	// TierSubstring matches names that contain the query
	TierSubstring
)

// String returns a human-readable name for the tier
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierAddress:
		return "address"
	case TierExact:
		return "exact"
	case TierCaseInsensitive:
		return "case-insensitive"
	case TierApostrophe:
		return "apostrophe-normalized"
	case TierPrefix:
		return "prefix"
	case TierSubstring:
		return "substring"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Partial reports whether the tier can match more than one distinct name
func (t Tier) Partial() bool {
	return t == TierPrefix || t == TierSubstring
}

// Resolver turns user-supplied names into speakers
type Resolver struct {
	// Cache holds the known speakers. Required when UseCache is set.
	Cache *cache.Cache

	// Discoverer runs a live discovery when the cache cannot answer
	Discoverer cache.Discoverer

	// UseCache answers from the cache, loading it from disk or discovering
	// when it is empty. When false every lookup runs a live discovery.
	UseCache bool

	// RefreshOnMiss rediscovers once when a cached lookup finds nothing
	RefreshOnMiss bool

	Logger *zap.Logger
}

// New creates a cache-backed resolver
func New(c *cache.Cache, d cache.Discoverer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Cache:      c,
		Discoverer: d,
		UseCache:   true,
		Logger:     log,
	}
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Find returns the one speaker name refers to. An IPv4 address is returned
// as a direct handle without consulting the cache. When several speakers
// match the winning tier, the first in stored order is returned; use Matches
// to detect that.
func (r *Resolver) Find(ctx context.Context, name string, requireVisible bool) (*discovery.Device, error) {
	matches, _, err := r.Matches(ctx, name, requireVisible)
	if err != nil {
		return nil, err
	}
	device := matches[0]
	return &device, nil
}

// Matches returns every speaker matched by the winning tier, in stored order
func (r *Resolver) Matches(ctx context.Context, name string, requireVisible bool) ([]discovery.Device, Tier, error) {
	// Names are matched as given; surrounding space only matters for the
	// empty and address checks
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, TierNone, fmt.Errorf("%w: empty name", ErrNotFound)
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil && addr.Is4() {
		return []discovery.Device{{IP: addr.String(), Visible: true}}, TierAddress, nil
	}

	devices, fresh, err := r.devices(ctx)
	if err != nil {
		return nil, TierNone, err
	}

	matches, tier := Match(devices, name, requireVisible)
	if len(matches) == 0 && !fresh && r.RefreshOnMiss {
		r.logger().Debug("No cached match, rediscovering", zap.String("name", name))
		if err := r.refresh(ctx); err != nil {
			return nil, TierNone, err
		}
		matches, tier = Match(r.Cache.Devices(), name, requireVisible)
	}

	if len(matches) == 0 {
		return nil, TierNone, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	r.logger().Debug("Resolved speaker",
		zap.String("name", name),
		zap.String("ip", matches[0].IP),
		zap.Stringer("tier", tier),
		zap.Int("candidates", len(matches)))
	return matches, tier, nil
}

// devices returns the speakers to match against and whether they come from
// a discovery run by this call
func (r *Resolver) devices(ctx context.Context) ([]discovery.Device, bool, error) {
	if !r.UseCache || r.Cache == nil {
		if r.Discoverer == nil {
			return nil, false, fmt.Errorf("no speaker source configured")
		}
		result, err := r.Discoverer.Discover(ctx)
		if err != nil {
			return nil, true, fmt.Errorf("discovery failed: %w", err)
		}
		return result.Devices(), true, nil
	}

	fresh := false
	if r.Cache.Len() == 0 {
		if err := r.Cache.Load(); err != nil {
			r.logger().Debug("Speaker cache unavailable", zap.Error(err))
			if err := r.refresh(ctx); err != nil {
				return nil, false, err
			}
			fresh = r.Discoverer != nil
		}
	}
	return r.Cache.Devices(), fresh, nil
}

// refresh rediscovers into the cache and saves it. A failed or interrupted
// discovery leaves both the cache and its snapshot untouched.
func (r *Resolver) refresh(ctx context.Context) error {
	if r.Discoverer == nil {
		return nil
	}

	if _, err := r.Cache.Discover(ctx, r.Discoverer); err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if err := r.Cache.Save(); err != nil && !errors.Is(err, cache.ErrEmptyCache) {
		r.logger().Warn("Failed to save speaker cache", zap.Error(err))
	}
	return nil
}

// Match applies the matching tiers to devices in order and returns every
// device of the first tier that matches anything
func Match(devices []discovery.Device, name string, requireVisible bool) ([]discovery.Device, Tier) {
	candidates := make([]discovery.Device, 0, len(devices))
	for _, d := range devices {
		if requireVisible && !d.Visible {
			continue
		}
		candidates = append(candidates, d)
	}

	foldedQuery := foldName(name)
	looseQuery := looseName(name)

	tiers := []struct {
		tier  Tier
		match func(stored string) bool
	}{
		{TierExact, func(s string) bool { return s == name }},
		{TierCaseInsensitive, func(s string) bool { return foldName(s) == foldedQuery }},
		{TierApostrophe, func(s string) bool { return looseName(s) == looseQuery }},
		{TierPrefix, func(s string) bool { return strings.HasPrefix(looseName(s), looseQuery) }},
		{TierSubstring, func(s string) bool { return strings.Contains(looseName(s), looseQuery) }},
	}

	for _, t := range tiers {
		var matches []discovery.Device
		for _, d := range candidates {
			if t.match(d.Name) {
				matches = append(matches, d)
			}
		}
		if len(matches) > 0 {
			return matches, t.tier
		}
	}
	return nil, TierNone
}

// foldName applies Unicode case folding
func foldName(s string) string {
	return cases.Fold().String(s)
}

var apostrophes = strings.NewReplacer(
	"’", "'", // right single quotation mark
	"‘", "'", // left single quotation mark
	"ʼ", "'", // modifier letter apostrophe
)

// looseName folds case, composes to NFC and straightens apostrophes
func looseName(s string) string {
	return foldName(apostrophes.Replace(norm.NFC.String(s)))
}
