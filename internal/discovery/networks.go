package discovery

import (
	"errors"
	"fmt"
	"net/netip"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const (
	// DefaultMinPrefixLen narrows large networks: a host on a /16 is scanned
	// as the /24 around its own address
	DefaultMinPrefixLen = 24

	// MinPrefixLenLower and MinPrefixLenUpper bound MinPrefixLen. A /16 is
	// 65k candidates which is already slow at the default timeout.
	MinPrefixLenLower = 16
	MinPrefixLenUpper = 30
)

// ErrInvalidNetwork is returned for user-supplied networks that are not IPv4 CIDRs
var ErrInvalidNetwork = errors.New("invalid network")

// InterfaceLister lists the host's network interfaces. psnet.Interfaces is
// the production implementation; tests supply fixtures.
type InterfaceLister func() ([]psnet.InterfaceStat, error)

// SystemInterfaces lists interfaces via gopsutil
func SystemInterfaces() ([]psnet.InterfaceStat, error) {
	return psnet.Interfaces()
}

// FindNetworks returns the private IPv4 networks attached to the host's up,
// non-loopback interfaces, narrowed to at least minPrefixLen bits. It returns
// an empty slice, not an error, when nothing qualifies.
func FindNetworks(list InterfaceLister, minPrefixLen int) ([]netip.Prefix, error) {
	if minPrefixLen < MinPrefixLenLower || minPrefixLen > MinPrefixLenUpper {
		return nil, fmt.Errorf("%w: minimum prefix length %d outside %d..%d",
			ErrInvalidNetwork, minPrefixLen, MinPrefixLenLower, MinPrefixLenUpper)
	}

	ifaces, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	networks := []netip.Prefix{}
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			if network, ok := scanNetwork(prefix, minPrefixLen); ok {
				networks = append(networks, network)
			}
		}
	}

	return compactNetworks(networks), nil
}

// ParseNetworks parses user-supplied CIDR strings. Host bits are masked off.
func ParseNetworks(cidrs []string) ([]netip.Prefix, error) {
	networks := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidNetwork, cidr, err)
		}
		if !prefix.Addr().Is4() {
			return nil, fmt.Errorf("%w %q: only IPv4 networks can be scanned", ErrInvalidNetwork, cidr)
		}
		if prefix.Bits() < MinPrefixLenLower {
			return nil, fmt.Errorf("%w %q: prefix shorter than /%d", ErrInvalidNetwork, cidr, MinPrefixLenLower)
		}
		networks = append(networks, prefix.Masked())
	}
	return compactNetworks(networks), nil
}

// scanNetwork decides whether an interface address yields a network worth
// scanning, and which one
func scanNetwork(prefix netip.Prefix, minPrefixLen int) (netip.Prefix, bool) {
	addr := prefix.Addr()
	if !addr.Is4() || addr.IsLoopback() || !addr.IsPrivate() {
		return netip.Prefix{}, false
	}
	if prefix.Bits() < minPrefixLen {
		prefix = netip.PrefixFrom(addr, minPrefixLen)
	}
	return prefix.Masked(), true
}

func compactNetworks(networks []netip.Prefix) []netip.Prefix {
	slices.SortFunc(networks, func(a, b netip.Prefix) int {
		if c := a.Addr().Compare(b.Addr()); c != 0 {
			return c
		}
		return a.Bits() - b.Bits()
	})
	return slices.Compact(networks)
}

// Hosts expands a network into its usable host addresses. The network and
// broadcast addresses are skipped except for /31 and /32.
func Hosts(prefix netip.Prefix) []netip.Addr {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil
	}

	var hosts []netip.Addr
	for addr := prefix.Addr(); addr.IsValid() && prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr)
	}

	if prefix.Bits() < 31 && len(hosts) >= 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts
}
