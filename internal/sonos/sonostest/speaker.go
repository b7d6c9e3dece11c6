// Package sonostest provides an in-process fake speaker for tests.
package sonostest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Member is one zone reported in a fake household topology
type Member struct {
	UUID      string
	IP        string
	Name      string
	Invisible bool
}

// Speaker configures what the fake speaker answers
type Speaker struct {
	Name         string
	Model        string
	Version      string
	Household    string
	UUID         string
	Manufacturer string // defaults to "Sonos, Inc."

	// Members is the household topology. Ignored when RawTopology is set.
	Members []Member

	// RawTopology is returned verbatim (before escaping) as the zone group state
	RawTopology string

	// HouseholdFault makes GetHouseholdID answer with a UPnP fault
	HouseholdFault bool
}

// NewServer starts an httptest server that answers like a speaker and is
// closed when the test ends.
func NewServer(t testing.TB, sp Speaker) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Handler(sp))
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns the fake speaker's HTTP handler
func Handler(sp Speaker) http.Handler {
	if sp.Manufacturer == "" {
		sp.Manufacturer = "Sonos, Inc."
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/xml/device_description.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = fmt.Fprint(w, DescriptionXML(sp))
	})
	mux.HandleFunc("/DeviceProperties/Control", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("SOAPACTION"), "#GetHouseholdID") {
			writeFault(w, "401")
			return
		}
		if sp.HouseholdFault {
			writeFault(w, "501")
			return
		}
		writeResponse(w, "GetHouseholdID", "urn:schemas-upnp-org:service:DeviceProperties:1",
			"<CurrentHouseholdID>"+sp.Household+"</CurrentHouseholdID>")
	})
	mux.HandleFunc("/ZoneGroupTopology/Control", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("SOAPACTION"), "#GetZoneGroupState") {
			writeFault(w, "401")
			return
		}
		topology := sp.RawTopology
		if topology == "" {
			topology = TopologyXML(sp.Members...)
		}
		writeResponse(w, "GetZoneGroupState", "urn:schemas-upnp-org:service:ZoneGroupTopology:1",
			"<ZoneGroupState>"+html.EscapeString(topology)+"</ZoneGroupState>")
	})
	return mux
}

// DescriptionXML renders a UPnP device description for sp
func DescriptionXML(sp Speaker) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:ZonePlayer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>%s</manufacturer>
    <modelNumber>S18</modelNumber>
    <modelName>%s</modelName>
    <softwareVersion>79.1-56030</softwareVersion>
    <displayVersion>%s</displayVersion>
    <UDN>uuid:%s</UDN>
    <roomName>%s</roomName>
  </device>
</root>`, html.EscapeString(sp.Name), html.EscapeString(sp.Manufacturer), html.EscapeString(sp.Model),
		html.EscapeString(sp.Version), sp.UUID, html.EscapeString(sp.Name))
}

// TopologyXML renders a single-group ZoneGroupState document
func TopologyXML(members ...Member) string {
	var b strings.Builder
	b.WriteString("<ZoneGroupState><ZoneGroups>")
	if len(members) > 0 {
		fmt.Fprintf(&b, `<ZoneGroup Coordinator="%s" ID="%s:1">`, members[0].UUID, members[0].UUID)
		for _, m := range members {
			invisible := ""
			if m.Invisible {
				invisible = ` Invisible="1"`
			}
			fmt.Fprintf(&b, `<ZoneGroupMember UUID="%s" Location="http://%s:1400/xml/device_description.xml" ZoneName="%s"%s/>`,
				m.UUID, m.IP, html.EscapeString(m.Name), invisible)
		}
		b.WriteString("</ZoneGroup>")
	}
	b.WriteString("</ZoneGroups><VanishedDevices></VanishedDevices></ZoneGroupState>")
	return b.String()
}

func writeResponse(w http.ResponseWriter, action, service, inner string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	_, _ = fmt.Fprintf(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><u:%sResponse xmlns:u="%s">%s</u:%sResponse></s:Body></s:Envelope>`, action, service, inner, action)
}

func writeFault(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = fmt.Fprintf(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
		`<s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>`+
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0"><errorCode>%s</errorCode></UPnPError></detail>`+
		`</s:Fault></s:Body></s:Envelope>`, code)
}
