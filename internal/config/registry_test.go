package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv(DirEnvVar, "")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "sonoscan") {
		t.Errorf("GetConfigDir() = %v, should contain 'sonoscan'", configDir)
	}

	// Platform-specific checks
	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}
	t.Setenv(DirEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join("/tmp/xdg", "sonoscan") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/sonoscan", configDir)
	}
}

func TestGetConfigDir_EnvOverride(t *testing.T) {
	t.Setenv(DirEnvVar, "/srv/sonoscan")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != "/srv/sonoscan" {
		t.Errorf("GetConfigDir() = %v, want /srv/sonoscan", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := t.TempDir()
	configPath, err := GetConfigPath(dir)
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if configPath != filepath.Join(dir, "config.yaml") {
		t.Errorf("GetConfigPath() = %v, want %v", configPath, filepath.Join(dir, "config.yaml"))
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.Workers != 256 {
		t.Errorf("NewRegistry().Preferences.Workers = %v, want 256", reg.Preferences.Workers)
	}

	if reg.Preferences.Timeout != 2*time.Second {
		t.Errorf("NewRegistry().Preferences.Timeout = %v, want 2s", reg.Preferences.Timeout)
	}

	if !reg.Preferences.UseCache {
		t.Error("NewRegistry().Preferences.UseCache should be true by default")
	}

	if err := reg.Preferences.Validate(); err != nil {
		t.Errorf("default preferences should be valid: %v", err)
	}
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *Preferences)
		wantErr bool
	}{
		{name: "defaults", modify: func(p *Preferences) {}},
		{name: "one worker", modify: func(p *Preferences) { p.Workers = 1 }},
		{name: "max workers", modify: func(p *Preferences) { p.Workers = 1024 }},
		{name: "zero workers", modify: func(p *Preferences) { p.Workers = 0 }, wantErr: true},
		{name: "too many workers", modify: func(p *Preferences) { p.Workers = 1025 }, wantErr: true},
		{name: "sixty second timeout", modify: func(p *Preferences) { p.Timeout = 60 * time.Second }},
		{name: "zero timeout", modify: func(p *Preferences) { p.Timeout = 0 }, wantErr: true},
		{name: "timeout too long", modify: func(p *Preferences) { p.Timeout = 61 * time.Second }, wantErr: true},
		{name: "prefix too wide", modify: func(p *Preferences) { p.MinPrefixLen = 8 }, wantErr: true},
		{name: "mdns window negative", modify: func(p *Preferences) { p.MDNSWindow = -time.Second }, wantErr: true},
		{name: "valid network", modify: func(p *Preferences) { p.Networks = []string{"192.168.1.0/24"} }},
		{name: "bad network", modify: func(p *Preferences) { p.Networks = []string{"192.168.1.0"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPreferences()
			tt.modify(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPreferences) {
				t.Errorf("Validate() error should wrap ErrInvalidPreferences: %v", err)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	reg := NewRegistry()
	reg.Preferences.Workers = 64
	reg.Preferences.Timeout = 750 * time.Millisecond
	reg.Preferences.Networks = []string{"10.0.0.0/24"}
	reg.Preferences.UseMDNS = false

	if err := reg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "config.yaml"))
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# sonoscan configuration file") {
		t.Error("saved config should start with the header comment")
	}
	if !strings.Contains(string(data), "timeout: 750ms") {
		t.Errorf("timeout should be written as a duration string:\n%s", data)
	}

	loaded, err := LoadRegistry(tmpDir)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	if loaded.Preferences.Workers != 64 {
		t.Errorf("Workers = %v, want 64", loaded.Preferences.Workers)
	}
	if loaded.Preferences.Timeout != 750*time.Millisecond {
		t.Errorf("Timeout = %v, want 750ms", loaded.Preferences.Timeout)
	}
	if len(loaded.Preferences.Networks) != 1 || loaded.Preferences.Networks[0] != "10.0.0.0/24" {
		t.Errorf("Networks = %v, want [10.0.0.0/24]", loaded.Preferences.Networks)
	}
	if loaded.Preferences.UseMDNS {
		t.Error("UseMDNS should be false after round trip")
	}
}

func TestLoadRegistry_Missing(t *testing.T) {
	reg, err := LoadRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if reg.Preferences.Workers != 256 {
		t.Errorf("missing config should load defaults, got workers = %v", reg.Preferences.Workers)
	}
}

func TestLoadRegistry_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := "version: 1\npreferences:\n  workers: 32\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(tmpDir)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if reg.Preferences.Workers != 32 {
		t.Errorf("Workers = %v, want 32", reg.Preferences.Workers)
	}
	if reg.Preferences.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want default 2s", reg.Preferences.Timeout)
	}
}

func TestLoadRegistry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "version: [1\n"},
		{name: "unsupported version", content: "version: 7\n"},
		{name: "workers out of range", content: "version: 1\npreferences:\n  workers: 5000\n"},
		{name: "bad timeout", content: "version: 1\npreferences:\n  timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistry(tmpDir); err == nil {
				t.Error("LoadRegistry() should fail")
			}
		})
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()

	path, err := CreateDefaultConfig(tmpDir, false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if path != filepath.Join(tmpDir, "config.yaml") {
		t.Errorf("path = %v", path)
	}

	if _, err := CreateDefaultConfig(tmpDir, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second CreateDefaultConfig() error = %v, want ErrConfigExists", err)
	}

	if _, err := CreateDefaultConfig(tmpDir, true); err != nil {
		t.Errorf("CreateDefaultConfig(overwrite) error = %v", err)
	}
}

func TestRender(t *testing.T) {
	tmpDir := t.TempDir()
	reg := NewRegistry()
	reg.Preferences.Networks = []string{"192.168.7.0/24"}

	data, path, err := Render(reg, tmpDir)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if path != filepath.Join(tmpDir, "config.yaml") {
		t.Errorf("path = %v", path)
	}
	for _, want := range []string{"# Location: " + path, "workers: 256", "- 192.168.7.0/24"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("rendered config missing %q:\n%s", want, data)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("Render() should not write the file")
	}
}
