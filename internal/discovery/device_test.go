package discovery

import (
	"net/netip"
	"testing"
)

func TestDevice_String(t *testing.T) {
	tests := []struct {
		name     string
		device   Device
		expected string
	}{
		{
			name:     "identified speaker",
			device:   Device{IP: "192.168.1.20", Name: "Kitchen", Model: "Sonos One"},
			expected: "Kitchen (Sonos One) at 192.168.1.20",
		},
		{
			name:     "direct address handle",
			device:   Device{IP: "192.168.0.35", Visible: true},
			expected: "Speaker at 192.168.0.35",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.String(); got != tt.expected {
				t.Errorf("Device.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_BaseURL(t *testing.T) {
	device := &Device{IP: "10.0.0.5"}
	if got := device.BaseURL(); got != "http://10.0.0.5:1400" {
		t.Errorf("Device.BaseURL() = %v, want http://10.0.0.5:1400", got)
	}
}

func TestDevice_Addr(t *testing.T) {
	device := &Device{IP: "192.168.1.20"}
	if got := device.Addr(); got != netip.MustParseAddr("192.168.1.20") {
		t.Errorf("Device.Addr() = %v", got)
	}

	bad := &Device{IP: "kitchen"}
	if bad.Addr().IsValid() {
		t.Errorf("Device.Addr() should be invalid for %q", bad.IP)
	}
}

func TestDevice_Key(t *testing.T) {
	device := &Device{HouseholdID: "Sonos_abc", IP: "192.168.1.20"}
	if got := device.Key(); got != "Sonos_abc/192.168.1.20" {
		t.Errorf("Device.Key() = %v", got)
	}
}

func TestSortDevices(t *testing.T) {
	devices := []Device{
		{HouseholdID: "Sonos_b", IP: "192.168.1.5", Name: "Office"},
		{HouseholdID: "Sonos_a", IP: "192.168.1.30", Name: "Rear Reception"},
		{HouseholdID: "Sonos_a", IP: "192.168.1.100", Name: "Front Reception"},
		{HouseholdID: "Sonos_a", IP: "192.168.1.9", Name: "Front Reception"},
	}

	SortDevices(devices)

	want := []string{"192.168.1.9", "192.168.1.100", "192.168.1.30", "192.168.1.5"}
	for i, ip := range want {
		if devices[i].IP != ip {
			t.Errorf("devices[%d].IP = %v, want %v", i, devices[i].IP, ip)
		}
	}
}
