// Package cache keeps the speakers found by the last discovery and persists
// them between runs.
//
// The snapshot is a versioned YAML file (speakers.yaml) in the user's
// configuration directory:
//
//	version: 2
//	saved_at: 2026-01-02T15:04:05Z
//	networks:
//	    - 192.168.1.0/24
//	devices:
//	    - household_id: Sonos_abc123
//	      ip: 192.168.1.20
//	      name: Kitchen
//	      visible: true
//	      model: Sonos One
//	      version: "15.9"
//
// A Cache is created explicitly and passed to whoever needs it. Saving an
// empty list is refused, Load never changes memory on failure, and snapshots
// from older releases are deleted when the Cache is created.
//
// There is no locking between processes. Two processes saving at the same
// time may lose one of the writes.
package cache
