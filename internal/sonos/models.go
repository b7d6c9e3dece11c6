package sonos

import (
	"encoding/xml"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// DeviceDescription is the subset of the UPnP device description that
// identifies a speaker. Served at DescriptionPath on the control port.
type DeviceDescription struct {
	DeviceType      string `xml:"device>deviceType"`
	FriendlyName    string `xml:"device>friendlyName"`
	Manufacturer    string `xml:"device>manufacturer"`
	ModelNumber     string `xml:"device>modelNumber"`
	ModelName       string `xml:"device>modelName"`
	SoftwareVersion string `xml:"device>softwareVersion"`
	DisplayVersion  string `xml:"device>displayVersion"`
	UDN             string `xml:"device>UDN"`
	RoomName        string `xml:"device>roomName"`
}

// IsSpeaker reports whether the description came from a controllable speaker
// rather than some other UPnP device that happens to use the same port.
func (d *DeviceDescription) IsSpeaker() bool {
	return strings.Contains(strings.ToLower(d.Manufacturer), "sonos")
}

// UUID returns the device UDN without its "uuid:" prefix
func (d *DeviceDescription) UUID() string {
	return strings.TrimPrefix(d.UDN, "uuid:")
}

// ZoneGroupState is the household topology as reported by any one member
type ZoneGroupState struct {
	Groups []ZoneGroup
}

// ZoneGroup is one group of zones playing in sync under a coordinator
type ZoneGroup struct {
	ID          string            `xml:"ID,attr"`
	Coordinator string            `xml:"Coordinator,attr"`
	Members     []ZoneGroupMember `xml:"ZoneGroupMember"`
}

// ZoneGroupMember is one zone in a group. Home theatre setups report their
// surrounds and subs as Satellites of the main member.
type ZoneGroupMember struct {
	UUID       string            `xml:"UUID,attr"`
	Location   string            `xml:"Location,attr"`
	ZoneName   string            `xml:"ZoneName,attr"`
	Invisible  string            `xml:"Invisible,attr"`
	Satellites []ZoneGroupMember `xml:"Satellite"`
}

// Visible reports whether the member is a user-facing zone
func (m ZoneGroupMember) Visible() bool {
	return m.Invisible != "1"
}

// Addr extracts the member's IPv4 address from its description Location URL
func (m ZoneGroupMember) Addr() (netip.Addr, error) {
	u, err := url.Parse(m.Location)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid member location %q: %w", m.Location, err)
	}
	addr, err := netip.ParseAddr(u.Hostname())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid member address in %q: %w", m.Location, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("member address %s is not IPv4", addr)
	}
	return addr, nil
}

// Members flattens every zone in the household, satellites included
func (s *ZoneGroupState) Members() []ZoneGroupMember {
	var members []ZoneGroupMember
	for _, g := range s.Groups {
		for _, m := range g.Members {
			members = append(members, m)
			members = append(members, m.Satellites...)
		}
	}
	return members
}

// MemberByAddr finds the member whose Location points at addr
func (s *ZoneGroupState) MemberByAddr(addr netip.Addr) (ZoneGroupMember, bool) {
	for _, m := range s.Members() {
		if a, err := m.Addr(); err == nil && a == addr {
			return m, true
		}
	}
	return ZoneGroupMember{}, false
}

// ParseZoneGroupState decodes the topology document. Older firmware roots the
// document at <ZoneGroups>, newer firmware wraps it in <ZoneGroupState>.
func ParseZoneGroupState(data []byte) (*ZoneGroupState, error) {
	var doc struct {
		XMLName xml.Name
		Groups  []ZoneGroup `xml:"ZoneGroup"`
		Nested  []ZoneGroup `xml:"ZoneGroups>ZoneGroup"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	switch doc.XMLName.Local {
	case "ZoneGroups":
		return &ZoneGroupState{Groups: doc.Groups}, nil
	case "ZoneGroupState":
		return &ZoneGroupState{Groups: doc.Nested}, nil
	default:
		return nil, fmt.Errorf("unexpected topology root element <%s>", doc.XMLName.Local)
	}
}

// soapFault is the body of a failed SOAP action
type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		Code        string `xml:"UPnPError>errorCode"`
		Description string `xml:"UPnPError>errorDescription"`
	} `xml:"detail"`
}

type soapEnvelope struct {
	Body struct {
		Fault   *soapFault `xml:"Fault"`
		Content []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type householdIDResponse struct {
	HouseholdID string `xml:"CurrentHouseholdID"`
}

type zoneGroupStateResponse struct {
	ZoneGroupState string `xml:"ZoneGroupState"`
}
