package discovery

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// fakeProber reports the addresses in open as reachable
type fakeProber struct {
	open  map[netip.Addr]bool
	delay time.Duration

	mu    sync.Mutex
	seen  []netip.Addr
	calls atomic.Int32

	active    atomic.Int32
	maxActive atomic.Int32
}

func (p *fakeProber) Probe(ctx context.Context, addr netip.Addr) bool {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	p.mu.Lock()
	p.seen = append(p.seen, addr)
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.open[addr]
}

// fakeIdentifier answers from a fixed table; unknown addresses are unreachable
type fakeIdentifier struct {
	results map[netip.Addr]Identification
	delay   func(netip.Addr) time.Duration
	panicOn netip.Addr

	active atomic.Int32
	calls  atomic.Int32
}

func (f *fakeIdentifier) Identify(ctx context.Context, addr netip.Addr) Identification {
	f.calls.Add(1)
	f.active.Add(1)
	defer f.active.Add(-1)

	if f.delay != nil {
		time.Sleep(f.delay(addr))
	}
	if f.panicOn.IsValid() && addr == f.panicOn {
		panic("identify blew up")
	}
	if id, ok := f.results[addr]; ok {
		return id
	}
	return Identification{Status: StatusUnreachable, Err: errors.New("no answer")}
}

// fakeTopology returns fixed household listings. Any member of a listing
// answers with the whole listing.
type fakeTopology struct {
	members map[netip.Addr][]HouseholdMember
	err     error
	calls   atomic.Int32

	mu    sync.Mutex
	asked []netip.Addr
}

func (f *fakeTopology) HouseholdMembers(ctx context.Context, addr netip.Addr) ([]HouseholdMember, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.asked = append(f.asked, addr)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if members, ok := f.members[addr]; ok {
		return members, nil
	}
	for _, members := range f.members {
		for _, m := range members {
			if m.Addr == addr {
				return members, nil
			}
		}
	}
	return nil, errors.New("unknown speaker")
}

// fakeSource is a fixed mDNS candidate list
type fakeSource struct {
	addrs []netip.Addr
	err   error
}

func (f fakeSource) Candidates(ctx context.Context) ([]netip.Addr, error) {
	return f.addrs, f.err
}

func identified(household, ip, name string) Identification {
	return Identification{
		Status: StatusIdentified,
		Device: Device{HouseholdID: household, IP: ip, Name: name, Visible: true, Model: "Sonos One"},
	}
}

func hostNetworks(ips ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(ips))
	for _, ip := range ips {
		prefixes = append(prefixes, netip.PrefixFrom(netip.MustParseAddr(ip), 32))
	}
	return prefixes
}

func openSet(ips ...string) map[netip.Addr]bool {
	set := make(map[netip.Addr]bool, len(ips))
	for _, ip := range ips {
		set[netip.MustParseAddr(ip)] = true
	}
	return set
}

func deviceIPs(devices []Device) []string {
	ips := make([]string, 0, len(devices))
	for _, d := range devices {
		ips = append(ips, d.IP)
	}
	return ips
}
