// Package config manages the WeatherBird settings file.
//
// One YAML file serves both binaries. The station daemon reads the station,
// discovery, radio, storage, http, claim, button and mdns sections; the
// configuration CLI keeps a small registry of stations it has seen under
// stations and its own preferences.
//
// # Configuration File Location
//
// The file is stored in platform-appropriate locations unless a path is
// given explicitly:
//   - Linux: $XDG_CONFIG_HOME/weatherbird/provisioning.yaml or $HOME/.config/weatherbird/provisioning.yaml
//   - macOS: $HOME/.config/weatherbird/provisioning.yaml
//   - Windows: %LOCALAPPDATA%\weatherbird\provisioning.yaml
//
// A missing file yields Default(). Fields left out of an existing file keep
// their default values.
//
// # Security
//
// WiFi credentials and the cloud password live only in the station's
// configuration record, never in this file.
//
// # Usage Example
//
//	settings, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := record.NewStore(settings.StoreConfig())
//
//	settings.UpdateStationLastSeen("ABC123", "192.168.1.50")
//	if err := settings.Save(""); err != nil {
//	    log.Fatal(err)
//	}
package config
