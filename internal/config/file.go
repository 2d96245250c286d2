package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/weatherbird/provisioning/internal/identity"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "weatherbird"
	configFile = "provisioning.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/weatherbird or $HOME/.config/weatherbird
//   - macOS: $HOME/.config/weatherbird (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\weatherbird
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
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

// GetConfigPath returns the full path to the default settings file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetConfigPath()
}

// Load reads the settings file at path, or the default location when path
// is empty. A missing file yields Default().
func Load(path string) (*Settings, error) {
	configPath, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding over the defaults keeps every field the file leaves out.
	settings := Default()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if settings.Version != Version {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", settings.Version, Version)
	}
	if settings.Stations == nil {
		settings.Stations = make(map[string]*StationEntry)
	}
	if settings.Preferences == nil {
		settings.Preferences = Default().Preferences
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return settings, nil
}

// maxInterfaceName is the Linux limit on network interface names.
const maxInterfaceName = 15

// Validate checks values that would otherwise fail deep inside a component.
func (s *Settings) Validate() error {
	var errs []error

	switch s.Radio.Backend {
	case BackendNMCLI, BackendSimulated:
	default:
		errs = append(errs, fmt.Errorf("radio.backend must be %q or %q, got %q", BackendNMCLI, BackendSimulated, s.Radio.Backend))
	}
	if s.Station.HardwareID != "" {
		if _, err := identity.ParseHex(s.Station.HardwareID); err != nil {
			errs = append(errs, fmt.Errorf("station.hardware_id: %w", err))
		}
	}
	if s.Storage.Slots < 1 {
		errs = append(errs, fmt.Errorf("storage.slots must be at least 1, got %d", s.Storage.Slots))
	}
	if s.HTTP.Port < 0 || s.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", s.HTTP.Port))
	}
	if _, _, err := net.ParseCIDR(s.HTTP.APSubnet); err != nil {
		errs = append(errs, fmt.Errorf("http.ap_subnet: %w", err))
	}
	if u, err := url.Parse(s.Claim.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("claim.url must be an absolute URL, got %q", s.Claim.URL))
	}
	if s.Claim.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("claim.timeout must be positive"))
	}
	if s.Discovery.Duration <= 0 {
		errs = append(errs, fmt.Errorf("discovery.duration must be positive"))
	}
	if s.Radio.APInterface != "" && s.Radio.APInterface == s.Station.Interface {
		errs = append(errs, fmt.Errorf("radio.ap_interface must differ from station.interface %q, leave it empty to share one interface", s.Station.Interface))
	}
	if len(s.Radio.APInterface) > maxInterfaceName {
		errs = append(errs, fmt.Errorf("radio.ap_interface %q is longer than %d characters", s.Radio.APInterface, maxInterfaceName))
	}
	if s.Radio.MaxChannel < 1 || s.Radio.MaxChannel > 14 {
		errs = append(errs, fmt.Errorf("radio.max_channel must be between 1 and 14, got %d", s.Radio.MaxChannel))
	}
	return errors.Join(errs...)
}

// Save writes the settings to path, or the default location when path is
// empty. Performs an atomic write to prevent corruption on crash.
func (s *Settings) Save(path string) error {
	configPath, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# WeatherBird Provisioning Configuration File
#
# Security Note: WiFi passwords and the cloud password are NEVER stored in
# this file. They live only in the station's configuration record.
#
# Location: ` + configPath + `

`)
	data = append(header, data...)

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
