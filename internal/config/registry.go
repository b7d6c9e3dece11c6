package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "sonoscan"
	configFile = "config.yaml"

	// DirEnvVar overrides the configuration directory
	DirEnvVar = "SONOSCAN_CONFIG_DIR"
)

// ErrConfigExists is returned by CreateDefaultConfig when a file is already present
var ErrConfigExists = errors.New("config file already exists")

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/sonoscan or $HOME/.config/sonoscan
//   - macOS: $HOME/.config/sonoscan (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\sonoscan
//
// SONOSCAN_CONFIG_DIR takes precedence on every platform.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(DirEnvVar); dir != "" {
		return dir, nil
	}

	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			// Fallback to USERPROFILE\AppData\Local if LOCALAPPDATA not set
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// resolveDir returns dir, or the default configuration directory when dir is empty
func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return GetConfigDir()
}

// GetConfigPath returns the full path to the configuration file in dir
// (the default directory when dir is empty).
func GetConfigPath(dir string) (string, error) {
	configDir, err := resolveDir(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// LoadRegistry loads the configuration registry from dir (the default
// directory when dir is empty). If the file doesn't exist, returns a new
// default registry.
func LoadRegistry(dir string) (*Registry, error) {
	configPath, err := GetConfigPath(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return loadRegistryFromFile(configPath)
}

// loadRegistryFromFile performs the actual file loading.
func loadRegistryFromFile(configPath string) (*Registry, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Config doesn't exist - return new default registry
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so keys missing from the file keep their default
	registry := NewRegistry()
	if err := yaml.Unmarshal(data, registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if registry.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", registry.Version)
	}

	if registry.Preferences == nil {
		registry.Preferences = DefaultPreferences()
	}
	if err := registry.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return registry, nil
}

// marshalRegistry renders the registry with its header comment
func marshalRegistry(r *Registry, configPath string) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# sonoscan configuration file
# Defaults for discovery and name lookup. Command-line flags override them.
#
# Location: ` + configPath + `

`)
	return append(header, data...), nil
}

// Save saves the registry to dir (the default directory when dir is empty).
// Performs an atomic write to prevent corruption on crash.
func (r *Registry) Save(dir string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	configDir, err := resolveDir(dir)
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, configFile)
	data, err := marshalRegistry(r, configPath)
	if err != nil {
		return err
	}

	// Write to temporary file first (atomic write)
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes a configuration file with the built-in
// defaults to dir and returns its path. An existing file is only replaced
// when overwrite is set.
func CreateDefaultConfig(dir string, overwrite bool) (string, error) {
	configPath, err := GetConfigPath(dir)
	if err != nil {
		return "", err
	}

	if !overwrite {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, fmt.Errorf("%w: %s", ErrConfigExists, configPath)
		}
	}

	if err := NewRegistry().Save(dir); err != nil {
		return "", err
	}
	return configPath, nil
}

// Render returns the registry as it would be written to dir, with its
// header comment, together with the file path
func Render(r *Registry, dir string) ([]byte, string, error) {
	configPath, err := GetConfigPath(dir)
	if err != nil {
		return nil, "", err
	}
	data, err := marshalRegistry(r, configPath)
	if err != nil {
		return nil, "", err
	}
	return data, configPath, nil
}
