// Package config provides user configuration management for sonoscan.
//
// This package manages a YAML-based configuration file that stores the
// defaults for discovery (worker count, probe timeout, networks, mDNS) and
// name lookup (cache use, refresh on miss). The configuration follows
// OS-specific conventions for storage location, and the speaker cache is
// kept in the same directory.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/sonoscan/config.yaml or $HOME/.config/sonoscan/config.yaml
//   - macOS: $HOME/.config/sonoscan/config.yaml
//   - Windows: %LOCALAPPDATA%\sonoscan\config.yaml
//
// SONOSCAN_CONFIG_DIR, or the --config-dir flag, replaces the directory.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.Preferences.Workers = 128
//	if err := registry.Preferences.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Save changes atomically
//	if err := registry.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// File writes are protected by a mutex and go through a temporary file and
// rename. Nothing coordinates writes between processes.
package config
