package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/sonoscan/internal/logging"
)

const (
	// DefaultWorkers is the default number of concurrent scan workers
	DefaultWorkers = 256

	// MaxWorkers is the largest accepted worker count
	MaxWorkers = 1024

	// DefaultTimeout is the default per-probe timeout
	DefaultTimeout = 2 * time.Second

	// MaxTimeout is the largest accepted per-probe timeout
	MaxTimeout = 60 * time.Second
)

var (
	// ErrInvalidWorkers is returned when the worker count is out of bounds
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTimeout is returned when the probe timeout is out of bounds
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrNoCandidates is returned when there is nothing to scan. The
	// accompanying result is empty but valid.
	ErrNoCandidates = errors.New("no candidate addresses to scan")

	// ErrWorkerFailed is returned when a worker stopped abnormally. Results
	// gathered by the other workers are still returned.
	ErrWorkerFailed = errors.New("scan worker failed")

	// ErrIncompleteScanner is returned by Validate for a scanner without a
	// prober or identifier. NewScanner always sets both.
	ErrIncompleteScanner = errors.New("scanner has no prober or identifier")
)

// CandidateSource supplies extra candidate addresses ahead of the sweep
type CandidateSource interface {
	Candidates(ctx context.Context) ([]netip.Addr, error)
}

// ProgressFunc is called after each candidate is processed. It is called from
// worker goroutines and must be safe for concurrent use.
type ProgressFunc func(done, total int)

// Scanner sweeps local networks for speakers on the control port. Create it
// with NewScanner; the zero value is rejected by Validate.
type Scanner struct {
	// Workers is the maximum number of concurrent workers (1..1024)
	Workers int

	// Timeout bounds each probe and identity request (0 < t <= 60s)
	Timeout time.Duration

	// Networks to sweep. When empty, networks are enumerated from the host's
	// interfaces.
	Networks []netip.Prefix

	// MinPrefixLen narrows enumerated networks (see FindNetworks)
	MinPrefixLen int

	// Interfaces lists host interfaces (SystemInterfaces if nil)
	Interfaces InterfaceLister

	// MDNS optionally contributes candidates before the sweep
	MDNS CandidateSource

	Prober     Prober
	Identifier Identifier

	// Topology is used by Discover to complete households. When nil and
	// Identifier also implements Topology, the identifier is used.
	Topology Topology

	Progress ProgressFunc
	Logger   *zap.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithWorkers sets the worker count
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.Workers = n }
}

// WithTimeout sets the per-probe timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.Timeout = d }
}

// WithNetworks sets explicit networks to sweep
func WithNetworks(networks ...netip.Prefix) Option {
	return func(s *Scanner) { s.Networks = networks }
}

// WithMinPrefixLen sets the narrowing applied to enumerated networks
func WithMinPrefixLen(bits int) Option {
	return func(s *Scanner) { s.MinPrefixLen = bits }
}

// WithInterfaces overrides interface enumeration
func WithInterfaces(list InterfaceLister) Option {
	return func(s *Scanner) { s.Interfaces = list }
}

// WithMDNS adds an mDNS candidate source
func WithMDNS(src CandidateSource) Option {
	return func(s *Scanner) { s.MDNS = src }
}

// WithProber overrides the port prober
func WithProber(p Prober) Option {
	return func(s *Scanner) { s.Prober = p }
}

// WithIdentifier overrides the device identifier
func WithIdentifier(id Identifier) Option {
	return func(s *Scanner) { s.Identifier = id }
}

// WithTopology overrides the household topology source
func WithTopology(t Topology) Option {
	return func(s *Scanner) { s.Topology = t }
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.Progress = fn }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Scanner) { s.Logger = log }
}

// NewScanner creates a scanner with default settings. The TCP prober and
// HTTP identifier are created from the final timeout unless overridden.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		Workers:      DefaultWorkers,
		Timeout:      DefaultTimeout,
		MinPrefixLen: DefaultMinPrefixLen,
		Interfaces:   SystemInterfaces,
		Logger:       logging.Named("scan"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.Prober == nil {
		s.Prober = NewTCPProber(s.Timeout)
	}
	if s.Identifier == nil {
		id := NewSpeakerIdentifier(s.Timeout)
		s.Identifier = id
		if s.Topology == nil {
			s.Topology = id
		}
	}
	if s.Topology == nil {
		if t, ok := s.Identifier.(Topology); ok {
			s.Topology = t
		}
	}
	return s
}

// Validate checks the worker count and timeout bounds
func (s *Scanner) Validate() error {
	if s.Prober == nil || s.Identifier == nil {
		return ErrIncompleteScanner
	}
	if s.Workers < 1 || s.Workers > MaxWorkers {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidWorkers, s.Workers, MaxWorkers)
	}
	if s.Timeout <= 0 || s.Timeout > MaxTimeout {
		return fmt.Errorf("%w: %s (must be greater than 0 and at most %s)", ErrInvalidTimeout, s.Timeout, MaxTimeout)
	}
	if len(s.Networks) == 0 && (s.MinPrefixLen < MinPrefixLenLower || s.MinPrefixLen > MinPrefixLenUpper) {
		return fmt.Errorf("%w: minimum prefix length %d outside %d..%d",
			ErrInvalidNetwork, s.MinPrefixLen, MinPrefixLenLower, MinPrefixLenUpper)
	}
	return nil
}

func (s *Scanner) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}


// Candidates builds the deduplicated candidate list: mDNS responders first,
// then every host of every network
func (s *Scanner) Candidates(ctx context.Context) ([]netip.Addr, []netip.Prefix, error) {
	networks := s.Networks
	if len(networks) == 0 {
		list := s.Interfaces
		if list == nil {
			list = SystemInterfaces
		}
		found, err := FindNetworks(list, s.MinPrefixLen)
		if err != nil {
			return nil, nil, err
		}
		networks = found
	}

	seen := make(map[netip.Addr]struct{})
	candidates := []netip.Addr{}
	add := func(addr netip.Addr) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		candidates = append(candidates, addr)
	}

	if s.MDNS != nil {
		hits, err := s.MDNS.Candidates(ctx)
		if err != nil {
			s.logger().Warn("mDNS browse failed, continuing with sweep", zap.Error(err))
		}
		for _, addr := range hits {
			if addr.Is4() {
				add(addr)
			}
		}
	}

	for _, network := range networks {
		for _, addr := range Hosts(network) {
			add(addr)
		}
	}

	return candidates, networks, nil
}

// Scan probes and identifies every candidate with a bounded worker pool and
// returns once all workers have finished. Per-address failures are counted,
// not returned. The result is non-nil whenever validation and network
// enumeration succeeded, even if an error is also returned.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	candidates, networks, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	result := newScanResult(networks, len(candidates))
	if len(candidates) == 0 {
		s.logger().Info("No candidate addresses to scan")
		return result, ErrNoCandidates
	}

	result.Workers = min(s.Workers, len(candidates))

	// Pre-filled and closed, so a receive is an atomic pop-or-empty
	queue := make(chan netip.Addr, len(candidates))
	for _, addr := range candidates {
		queue <- addr
	}
	close(queue)

	s.logger().Info("Starting scan",
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", result.Workers),
		zap.Int("networks", len(networks)),
		zap.Duration("timeout", s.Timeout))

	prober := s.Prober
	identifier := s.Identifier
	start := time.Now()

	var g errgroup.Group
	for i := 0; i < result.Workers; i++ {
		id := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: worker %d: %v", ErrWorkerFailed, id, r)
				}
			}()
			s.worker(ctx, queue, result, prober, identifier)
			return nil
		})
	}

	// Barrier: nothing reads the result until every worker has returned
	err = g.Wait()
	result.Elapsed = time.Since(start)

	stats := result.Stats()
	s.logger().Info("Scan complete",
		zap.Int("identified", stats.Identified),
		zap.Int("open", stats.Open),
		zap.Int("mismatch", stats.Mismatch),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("elapsed", result.Elapsed))

	if err != nil {
		s.logger().Error("Scan worker failed", zap.Error(err))
		return result, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, nil
}

// worker drains the queue. Cancellation is only observed between candidates;
// remaining candidates are counted as skipped.
func (s *Scanner) worker(ctx context.Context, queue <-chan netip.Addr, result *ScanResult, prober Prober, identifier Identifier) {
	for addr := range queue {
		if ctx.Err() != nil {
			result.skipped.Add(1)
			s.reportProgress(result)
			continue
		}
		s.scanOne(ctx, addr, result, prober, identifier)
		s.reportProgress(result)
	}
}

func (s *Scanner) scanOne(ctx context.Context, addr netip.Addr, result *ScanResult, prober Prober, identifier Identifier) {
	if !prober.Probe(ctx, addr) {
		result.closed.Add(1)
		return
	}
	result.open.Add(1)

	id := identifier.Identify(ctx, addr)
	switch id.Status {
	case StatusIdentified:
		result.identified.Add(1)
		result.add(id.Device)
		s.logger().Debug("Identified speaker",
			zap.String("ip", id.Device.IP),
			zap.String("name", id.Device.Name),
			zap.String("household", id.Device.HouseholdID))
	case StatusMismatch:
		result.mismatch.Add(1)
		s.logger().Debug("Port open but not a speaker",
			zap.Stringer("ip", addr),
			zap.Error(id.Err))
	default:
		result.unreachable.Add(1)
		s.logger().Debug("Speaker did not answer",
			zap.Stringer("ip", addr),
			zap.Error(id.Err))
	}
}

func (s *Scanner) reportProgress(result *ScanResult) {
	done := result.done.Add(1)
	if s.Progress != nil {
		s.Progress(int(done), result.Candidates)
	}
}

// Discover scans and then completes every household found through its
// topology, so zones that did not answer the sweep are still listed. The
// returned devices are sorted.
func (s *Scanner) Discover(ctx context.Context) (*ScanResult, error) {
	result, err := s.Scan(ctx)
	if result == nil || errors.Is(err, ErrNoCandidates) {
		return result, err
	}

	reconciler := &Reconciler{
		Topology:    s.Topology,
		Identifier:  s.Identifier,
		Concurrency: min(s.Workers, DefaultReconcileConcurrency),
		Logger:      s.logger(),
	}
	devices := reconciler.Reconcile(ctx, result.Devices())
	result.replace(devices)

	return result, err
}

// ScanStats counts what happened to each candidate
type ScanStats struct {
	Candidates  int
	Open        int
	Closed      int
	Unreachable int
	Mismatch    int
	Identified  int
	Skipped     int
	Reconciled  int
}

// ScanResult collects the devices found by a scan. Devices are appended by
// workers in no particular order.
type ScanResult struct {
	// Networks that were swept
	Networks []netip.Prefix

	// Candidates is the number of addresses queued
	Candidates int

	// Workers is the number of workers actually started
	Workers int

	// Elapsed is the wall time of the sweep
	Elapsed time.Duration

	mu         sync.Mutex
	devices    []Device
	reconciled int

	done        atomic.Int64
	open        atomic.Int64
	closed      atomic.Int64
	unreachable atomic.Int64
	mismatch    atomic.Int64
	identified  atomic.Int64
	skipped     atomic.Int64
}

func newScanResult(networks []netip.Prefix, candidates int) *ScanResult {
	return &ScanResult{
		Networks:   networks,
		Candidates: candidates,
		devices:    []Device{},
	}
}

// NewScanResult wraps an already known device list, e.g. one loaded from a
// snapshot
func NewScanResult(devices []Device, networks []netip.Prefix) *ScanResult {
	r := newScanResult(networks, 0)
	r.devices = slices.Clone(devices)
	return r
}

func (r *ScanResult) add(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, d)
}

func (r *ScanResult) replace(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciled = max(0, len(devices)-len(r.devices))
	r.devices = devices
}

// Devices returns a copy of the devices found
func (r *ScanResult) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.devices)
}

// Len returns the number of devices found
func (r *ScanResult) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Stats returns the per-outcome counters
func (r *ScanResult) Stats() ScanStats {
	r.mu.Lock()
	reconciled := r.reconciled
	r.mu.Unlock()

	return ScanStats{
		Candidates:  r.Candidates,
		Open:        int(r.open.Load()),
		Closed:      int(r.closed.Load()),
		Unreachable: int(r.unreachable.Load()),
		Mismatch:    int(r.mismatch.Load()),
		Identified:  int(r.identified.Load()),
		Skipped:     int(r.skipped.Load()),
		Reconciled:  reconciled,
	}
}
