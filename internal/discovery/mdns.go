package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/sonoscan/internal/logging"
)

const (
	// MDNSService is the service type speakers advertise
	MDNSService = "_sonos._tcp"

	// MDNSDomain is the mDNS domain (typically "local.")
	MDNSDomain = "local."

	// DefaultMDNSWindow is how long to listen for responses
	DefaultMDNSWindow = time.Second
)

// MDNSBrowser collects the addresses of speakers that answer an mDNS browse.
// Its hits are only candidates; they are still probed and identified.
type MDNSBrowser struct {
	// Window is the maximum time to wait for responses
	Window time.Duration

	Logger *zap.Logger
}

// NewMDNSBrowser creates a browser with the default window
func NewMDNSBrowser() *MDNSBrowser {
	return &MDNSBrowser{
		Window: DefaultMDNSWindow,
		Logger: logging.Named("mdns"),
	}
}

// Candidates browses for Window and returns the IPv4 addresses seen
func (b *MDNSBrowser) Candidates(ctx context.Context) ([]netip.Addr, error) {
	window := b.Window
	if window <= 0 {
		window = DefaultMDNSWindow
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	var addrs []netip.Addr

	// The collector owns addrs until done is closed
	go func() {
		defer close(done)
		seen := make(map[netip.Addr]struct{})
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				for _, addr := range entryAddrs(entry) {
					if _, dup := seen[addr]; dup {
						continue
					}
					seen[addr] = struct{}{}
					addrs = append(addrs, addr)
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, MDNSService, MDNSDomain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	if b.Logger != nil {
		b.Logger.Debug("mDNS browse finished", zap.Int("responders", len(addrs)))
	}
	return addrs, nil
}

// entryAddrs extracts the usable IPv4 addresses from a service entry
func entryAddrs(entry *zeroconf.ServiceEntry) []netip.Addr {
	if entry == nil {
		return nil
	}
	var addrs []netip.Addr
	for _, ip := range entry.AddrIPv4 {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is4() && !addr.IsUnspecified() && !addr.IsLoopback() {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
