package discovery

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"
)

// Device represents a speaker found on the network
type Device struct {
	// HouseholdID groups speakers belonging to one system (e.g., "Sonos_abc123")
	HouseholdID string

	// IP is the IPv4 address (e.g., "192.168.1.20")
	IP string

	// Name is the zone (room) name (e.g., "Kitchen")
	Name string

	// Visible is false for hidden infrastructure such as bridges, boosts,
	// and home theatre satellites
	Visible bool

	// Model is the model name (e.g., "Sonos One")
	Model string

	// Version is the display version of the firmware (e.g., "15.9")
	Version string
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	if d.Name == "" {
		return fmt.Sprintf("Speaker at %s", d.IP)
	}
	return fmt.Sprintf("%s (%s) at %s", d.Name, d.Model, d.IP)
}

// BaseURL returns the HTTP control URL for the device
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, ControlPort)
}

// Addr parses IP, returning the zero Addr if it is not a valid address
func (d *Device) Addr() netip.Addr {
	addr, err := netip.ParseAddr(d.IP)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// Key is the (household, address) pair that identifies a device within one
// discovery pass
func (d *Device) Key() string {
	return d.HouseholdID + "/" + d.IP
}

// SortDevices orders devices by household, name, then address. Discovery
// results are sorted before they are cached so that name lookups that match
// several speakers always pick the same one.
func SortDevices(devices []Device) {
	slices.SortStableFunc(devices, func(a, b Device) int {
		if c := cmp.Compare(a.HouseholdID, b.HouseholdID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return a.Addr().Compare(b.Addr())
	})
}
