// Package sonos is a minimal client for the HTTP control surface that speakers
// expose on TCP port 1400.
//
// Only the calls discovery needs are implemented:
//
//   - DeviceDescription: GET /xml/device_description.xml (room, model, version)
//   - HouseholdID: DeviceProperties#GetHouseholdID
//   - ZoneGroupState: ZoneGroupTopology#GetZoneGroupState (all zones of a household)
//
// Errors are returned as *DeviceError values. IsNetworkError separates "nothing
// answered" from "something answered, but not the way a speaker would", which is
// the distinction the discovery scan cares about.
package sonos
