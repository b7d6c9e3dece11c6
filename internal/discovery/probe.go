package discovery

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/muurk/sonoscan/internal/sonos"
)

// ControlPort is the TCP port every speaker serves its control API on
const ControlPort = sonos.DefaultPort

// Prober decides cheaply whether an address is worth identifying
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr) bool
}

// TCPProber reports whether a TCP connection to Port can be opened within
// Timeout. Refused, unreachable and silent addresses all report false.
type TCPProber struct {
	Port    int
	Timeout time.Duration
}

// NewTCPProber creates a prober for the control port
func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{
		Port:    ControlPort,
		Timeout: timeout,
	}
}

// Probe attempts a TCP connect and closes the connection immediately
func (p *TCPProber) Probe(ctx context.Context, addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(p.Port)))
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}
