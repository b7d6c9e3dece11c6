package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/muurk/sonoscan/internal/sonos/sonostest"
)

func TestNewScanner_Defaults(t *testing.T) {
	s := NewScanner()

	assert.Equal(t, DefaultWorkers, s.Workers)
	assert.Equal(t, DefaultTimeout, s.Timeout)
	assert.Equal(t, DefaultMinPrefixLen, s.MinPrefixLen)
	require.IsType(t, &TCPProber{}, s.Prober)
	assert.Equal(t, DefaultTimeout, s.Prober.(*TCPProber).Timeout)
	require.IsType(t, &SpeakerIdentifier{}, s.Identifier)
	assert.Same(t, s.Identifier, s.Topology)
	assert.NoError(t, s.Validate())
}

func TestNewScanner_TopologyFromIdentifier(t *testing.T) {
	id := &SpeakerIdentifier{Timeout: time.Second}
	s := NewScanner(WithIdentifier(id))
	assert.Same(t, id, s.Topology)

	s = NewScanner(WithIdentifier(&fakeIdentifier{}))
	assert.Nil(t, s.Topology)
}

func TestScanner_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "defaults", opts: nil},
		{name: "one worker", opts: []Option{WithWorkers(1)}},
		{name: "max workers", opts: []Option{WithWorkers(MaxWorkers)}},
		{name: "zero workers", opts: []Option{WithWorkers(0)}, wantErr: ErrInvalidWorkers},
		{name: "too many workers", opts: []Option{WithWorkers(MaxWorkers + 1)}, wantErr: ErrInvalidWorkers},
		{name: "max timeout", opts: []Option{WithTimeout(MaxTimeout)}},
		{name: "zero timeout", opts: []Option{WithTimeout(0)}, wantErr: ErrInvalidTimeout},
		{name: "negative timeout", opts: []Option{WithTimeout(-time.Second)}, wantErr: ErrInvalidTimeout},
		{name: "timeout too long", opts: []Option{WithTimeout(MaxTimeout + time.Millisecond)}, wantErr: ErrInvalidTimeout},
		{name: "prefix too short", opts: []Option{WithMinPrefixLen(8)}, wantErr: ErrInvalidNetwork},
		{
			name: "prefix ignored with explicit networks",
			opts: []Option{WithMinPrefixLen(8), WithNetworks(netip.MustParsePrefix("192.168.1.0/24"))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewScanner(tt.opts...).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestScanner_InvalidConfigRejectedBeforeWork(t *testing.T) {
	prober := &fakeProber{}
	s := NewScanner(
		WithWorkers(0),
		WithNetworks(hostNetworks("192.168.1.10")...),
		WithProber(prober),
		WithIdentifier(&fakeIdentifier{}),
	)

	result, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrInvalidWorkers)
	assert.Nil(t, result)
	assert.Zero(t, prober.calls.Load())
}

func TestScanner_ZeroValueRejected(t *testing.T) {
	s := &Scanner{
		Workers:  4,
		Timeout:  time.Second,
		Networks: hostNetworks("192.168.1.10"),
	}

	result, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteScanner)
	assert.Nil(t, result)

	_, err = s.Discover(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteScanner)
}

func TestScanner_NoCandidates(t *testing.T) {
	s := NewScanner(
		WithInterfaces(fixtureInterfaces()),
		WithProber(&fakeProber{}),
		WithIdentifier(&fakeIdentifier{}),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrNoCandidates)
	require.NotNil(t, result)
	assert.Zero(t, result.Len())
	assert.Zero(t, result.Workers)

	result, err = s.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoCandidates)
	require.NotNil(t, result)
}

func TestScanner_Scan(t *testing.T) {
	prober := &fakeProber{open: openSet("192.168.1.1", "192.168.1.2", "192.168.1.3", "192.168.1.4")}
	identifier := &fakeIdentifier{results: map[netip.Addr]Identification{
		netip.MustParseAddr("192.168.1.1"): identified("Sonos_a", "192.168.1.1", "Kitchen"),
		netip.MustParseAddr("192.168.1.2"): identified("Sonos_a", "192.168.1.2", "Office"),
		netip.MustParseAddr("192.168.1.3"): {Status: StatusMismatch},
	}}

	var progressCalls atomic.Int32
	var lastDone atomic.Int32
	s := NewScanner(
		WithWorkers(4),
		WithNetworks(netip.MustParsePrefix("192.168.1.0/29")),
		WithProber(prober),
		WithIdentifier(identifier),
		WithProgress(func(done, total int) {
			progressCalls.Add(1)
			if done == total {
				lastDone.Store(int32(done))
			}
		}),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"192.168.1.1", "192.168.1.2"}, deviceIPs(result.Devices()))
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.1.0/29")}, result.Networks)

	stats := result.Stats()
	assert.Equal(t, ScanStats{
		Candidates:  6,
		Open:        4,
		Closed:      2,
		Unreachable: 1,
		Mismatch:    1,
		Identified:  2,
	}, stats)

	assert.Equal(t, int32(6), progressCalls.Load())
	assert.Equal(t, int32(6), lastDone.Load())
}

func TestScanner_WorkerCountClamped(t *testing.T) {
	prober := &fakeProber{delay: 50 * time.Millisecond}
	s := NewScanner(
		WithWorkers(100),
		WithNetworks(hostNetworks("10.0.0.1", "10.0.0.2", "10.0.0.3")...),
		WithProber(prober),
		WithIdentifier(&fakeIdentifier{}),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Workers)
	assert.LessOrEqual(t, prober.maxActive.Load(), int32(3))
	assert.Equal(t, int32(3), prober.calls.Load())
}

func TestScanner_BoundedByWorkers(t *testing.T) {
	prober := &fakeProber{delay: 10 * time.Millisecond}
	s := NewScanner(
		WithWorkers(4),
		WithNetworks(netip.MustParsePrefix("10.0.0.0/27")),
		WithProber(prober),
		WithIdentifier(&fakeIdentifier{}),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Workers)
	assert.LessOrEqual(t, prober.maxActive.Load(), int32(4))
	assert.Equal(t, int32(30), prober.calls.Load())
}

func TestScanner_JoinsAllWorkersBeforeReturning(t *testing.T) {
	var ips []string
	results := make(map[netip.Addr]Identification)
	for i := 1; i <= 20; i++ {
		ip := fmt.Sprintf("192.168.5.%d", i)
		ips = append(ips, ip)
		results[netip.MustParseAddr(ip)] = identified("Sonos_a", ip, fmt.Sprintf("Zone %d", i))
	}

	identifier := &fakeIdentifier{
		results: results,
		// Uneven delays so workers finish at different times
		delay: func(addr netip.Addr) time.Duration {
			return time.Duration(addr.As4()[3]%5) * 10 * time.Millisecond
		},
	}
	s := NewScanner(
		WithWorkers(6),
		WithNetworks(hostNetworks(ips...)...),
		WithProber(&fakeProber{open: openSet(ips...)}),
		WithIdentifier(identifier),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Zero(t, identifier.active.Load(), "identify still running after Scan returned")
	n := result.Len()
	assert.Equal(t, 20, n)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, result.Len(), "result changed after Scan returned")
}

func TestScanner_WorkerPanicKeepsPartialResults(t *testing.T) {
	ips := []string{"10.1.0.1", "10.1.0.2", "10.1.0.3", "10.1.0.4"}
	results := make(map[netip.Addr]Identification)
	for _, ip := range ips {
		results[netip.MustParseAddr(ip)] = identified("Sonos_a", ip, ip)
	}

	s := NewScanner(
		WithWorkers(2),
		WithNetworks(hostNetworks(ips...)...),
		WithProber(&fakeProber{open: openSet(ips...)}),
		WithIdentifier(&fakeIdentifier{results: results, panicOn: netip.MustParseAddr("10.1.0.2")}),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, ErrWorkerFailed)
	require.NotNil(t, result)
	assert.ElementsMatch(t, []string{"10.1.0.1", "10.1.0.3", "10.1.0.4"}, deviceIPs(result.Devices()))
}

func TestScanner_CancelledBetweenCandidates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := &fakeProber{}
	s := NewScanner(
		WithNetworks(netip.MustParsePrefix("10.2.0.0/28")),
		WithProber(prober),
		WithIdentifier(&fakeIdentifier{}),
	)

	result, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 14, result.Stats().Skipped)
	assert.Zero(t, prober.calls.Load())
}

func TestScanner_MDNSCandidatesMerged(t *testing.T) {
	prober := &fakeProber{}
	s := NewScanner(
		WithNetworks(netip.MustParsePrefix("192.168.1.0/30")),
		WithMDNS(fakeSource{addrs: []netip.Addr{
			netip.MustParseAddr("192.168.1.2"),  // also in the sweep
			netip.MustParseAddr("192.168.9.50"), // another subnet
			netip.MustParseAddr("fe80::1"),
		}}),
		WithProber(prober),
		WithIdentifier(&fakeIdentifier{}),
	)

	candidates, _, err := s.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("192.168.1.2"),
		netip.MustParseAddr("192.168.9.50"),
		netip.MustParseAddr("192.168.1.1"),
	}, candidates)
}

func TestScanner_MDNSFailureIgnored(t *testing.T) {
	s := NewScanner(
		WithNetworks(netip.MustParsePrefix("192.168.1.0/30")),
		WithMDNS(fakeSource{err: fmt.Errorf("no multicast")}),
		WithProber(&fakeProber{}),
		WithIdentifier(&fakeIdentifier{}),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
}

func TestScanner_EnumeratesInterfaces(t *testing.T) {
	s := NewScanner(
		WithInterfaces(fixtureInterfaces(iface("eth0", []string{"up"}, "192.168.3.9/16"))),
		WithMinPrefixLen(28),
		WithProber(&fakeProber{}),
		WithIdentifier(&fakeIdentifier{}),
	)

	result, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("192.168.3.0/28")}, result.Networks)
	assert.Equal(t, 14, result.Candidates)
}

// A household coordinator answers the sweep, two of its zones are firewalled
// from the probe, and one address is some other service on the control port.
// Discovery must list the three zones and nothing else.
func TestScanner_Discover_EndToEnd(t *testing.T) {
	members := []sonostest.Member{
		{UUID: "RINCON_LOUNGE", IP: "192.168.1.10", Name: "Lounge"},
		{UUID: "RINCON_KITCHEN", IP: "192.168.1.11", Name: "Kitchen"},
		{UUID: "RINCON_PATIO", IP: "192.168.1.12", Name: "Patio"},
	}

	routes := map[netip.Addr]string{}
	for _, m := range members {
		srv := sonostest.NewServer(t, sonostest.Speaker{
			Name:      m.Name,
			Model:     "Sonos Five",
			Version:   "16.1",
			Household: "Sonos_home",
			UUID:      m.UUID,
			Members:   members,
		})
		routes[netip.MustParseAddr(m.IP)] = srv.URL
	}

	banner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "lighttpd")
		_, _ = w.Write([]byte("<html><body>NAS admin</body></html>"))
	}))
	defer banner.Close()
	routes[netip.MustParseAddr("192.168.1.13")] = banner.URL

	identifier := newTestIdentifier(t, routes)
	// The firewall drops the kitchen and patio probes
	prober := &fakeProber{open: openSet("192.168.1.10", "192.168.1.13")}

	s := NewScanner(
		WithWorkers(8),
		WithNetworks(hostNetworks("192.168.1.10", "192.168.1.11", "192.168.1.12", "192.168.1.13")...),
		WithProber(prober),
		WithIdentifier(identifier),
		WithLogger(zaptest.NewLogger(t)),
	)

	result, err := s.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Workers)
	assert.Equal(t, []Device{
		{HouseholdID: "Sonos_home", IP: "192.168.1.11", Name: "Kitchen", Visible: true, Model: "Sonos Five", Version: "16.1"},
		{HouseholdID: "Sonos_home", IP: "192.168.1.10", Name: "Lounge", Visible: true, Model: "Sonos Five", Version: "16.1"},
		{HouseholdID: "Sonos_home", IP: "192.168.1.12", Name: "Patio", Visible: true, Model: "Sonos Five", Version: "16.1"},
	}, result.Devices())

	stats := result.Stats()
	assert.Equal(t, 1, stats.Identified)
	assert.Equal(t, 1, stats.Mismatch)
	assert.Equal(t, 2, stats.Closed)
	assert.Equal(t, 2, stats.Reconciled)
}

func TestNewScanResult(t *testing.T) {
	devices := []Device{{IP: "192.168.1.2", Name: "Den"}}
	result := NewScanResult(devices, nil)

	devices[0].Name = "changed"
	assert.Equal(t, "Den", result.Devices()[0].Name)

	got := result.Devices()
	got[0].Name = "also changed"
	assert.Equal(t, "Den", result.Devices()[0].Name)
}
