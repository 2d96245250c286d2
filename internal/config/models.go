package config

import (
	"time"

	"github.com/weatherbird/provisioning/internal/identity"
	"github.com/weatherbird/provisioning/internal/radio"
	"github.com/weatherbird/provisioning/internal/record"
)

// Version is the only supported settings file version.
const Version = 1

// Radio backends.
const (
	BackendNMCLI     = "nmcli"
	BackendSimulated = "simulated"
)

// Settings represents the entire settings file.
type Settings struct {
	Version   int               `yaml:"version"`
	Station   StationSettings   `yaml:"station"`
	Discovery DiscoverySettings `yaml:"discovery"`
	Radio     RadioSettings     `yaml:"radio"`
	Storage   StorageSettings   `yaml:"storage"`
	HTTP      HTTPSettings      `yaml:"http"`
	Claim     ClaimSettings     `yaml:"claim"`
	Button    ButtonSettings    `yaml:"button"`
	MDNS      MDNSSettings      `yaml:"mdns"`

	Stations    map[string]*StationEntry `yaml:"stations,omitempty"` // Keyed by hardware id
	Preferences *Preferences             `yaml:"preferences,omitempty"`
}

// StationSettings describe the station's identity.
type StationSettings struct {
	HardwareID     string `yaml:"hardware_id,omitempty"` // Hex override; default is derived from the interface MAC
	Interface      string `yaml:"interface"`             // Wireless interface, e.g. wlan0
	StationPrefix  string `yaml:"station_prefix"`
	SSIDPrefix     string `yaml:"ssid_prefix"`
	PasswordPrefix string `yaml:"password_prefix"`
	HostnamePrefix string `yaml:"hostname_prefix"`
	EmailDomain    string `yaml:"email_domain"`
}

// DiscoverySettings control forced discovery mode and connectivity checks.
type DiscoverySettings struct {
	Duration             time.Duration `yaml:"duration"`              // Forced discovery window after a long press
	ExitDelay            time.Duration `yaml:"exit_delay"`            // Pause before client mode after exiting configuration
	ConnectivityInterval time.Duration `yaml:"connectivity_interval"` // Period of live association checks
}

// RadioSettings select the radio backend and the association policy.
type RadioSettings struct {
	Backend          string        `yaml:"backend"` // nmcli or simulated
	Rounds           int           `yaml:"rounds"`
	RoundDelay       time.Duration `yaml:"round_delay"`
	JoinPolls        int           `yaml:"join_polls"`
	JoinPollInterval time.Duration `yaml:"join_poll_interval"`
	MaxChannel       int           `yaml:"max_channel"`
	CommandTimeout   time.Duration `yaml:"command_timeout"` // Per nmcli invocation
	APInterface      string        `yaml:"ap_interface"`    // Virtual interface for the access point, empty to share station.interface
}

// StorageSettings locate the configuration record.
type StorageSettings struct {
	Dir   string `yaml:"dir"`
	Slots int    `yaml:"slots"`
}

// HTTPSettings configure the configuration web surface.
type HTTPSettings struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APSubnet    string `yaml:"ap_subnet"`
	HomepageURL string `yaml:"homepage_url"`
	Metrics     bool   `yaml:"metrics"`
}

// ClaimSettings configure the cloud identity claim.
type ClaimSettings struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ButtonSettings configure the provisioning button sources.
type ButtonSettings struct {
	SerialPort string        `yaml:"serial_port,omitempty"` // Empty disables the serial source
	BaudRate   int           `yaml:"baud_rate"`
	LongPress  time.Duration `yaml:"long_press"`
	Signal     bool          `yaml:"signal"` // SIGUSR1 acts as a long press
}

// MDNSSettings configure the mDNS advertisement.
type MDNSSettings struct {
	Enabled bool `yaml:"enabled"`
}

// StationEntry is what the configuration CLI remembers about a station.
type StationEntry struct {
	Nickname string    `yaml:"nickname,omitempty"`
	LastIP   string    `yaml:"last_ip,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences are configuration CLI preferences.
type Preferences struct {
	DiscoverTimeout int    `yaml:"discover_timeout"`          // mDNS discovery timeout in seconds
	DefaultStation  string `yaml:"default_station,omitempty"` // Base URL used when --station is not given
}

// Default returns settings with every default filled in.
func Default() *Settings {
	rc := radio.DefaultConfig()
	p := identity.DefaultPrefixes()
	return &Settings{
		Version: Version,
		Station: StationSettings{
			Interface:      "wlan0",
			StationPrefix:  p.Station,
			SSIDPrefix:     p.SSID,
			PasswordPrefix: p.Password,
			HostnamePrefix: p.Hostname,
			EmailDomain:    p.EmailDomain,
		},
		Discovery: DiscoverySettings{
			Duration:             time.Hour,
			ExitDelay:            time.Second,
			ConnectivityInterval: 30 * time.Second,
		},
		Radio: RadioSettings{
			Backend:          BackendNMCLI,
			Rounds:           rc.Rounds,
			RoundDelay:       rc.RoundDelay,
			JoinPolls:        rc.JoinPolls,
			JoinPollInterval: rc.JoinPollInterval,
			MaxChannel:       rc.MaxChannel,
			CommandTimeout:   45 * time.Second,
			APInterface:      "ap0",
		},
		Storage: StorageSettings{
			Dir:   "/var/lib/weatherbird",
			Slots: record.DefaultSlots,
		},
		HTTP: HTTPSettings{
			Port:        80,
			APSubnet:    "10.42.0.0/24",
			HomepageURL: "http://weather.sourceauditor.com",
			Metrics:     true,
		},
		Claim: ClaimSettings{
			URL:     "https://weather.sourceauditor.com/api/claimstation",
			Timeout: 15 * time.Second,
		},
		Button: ButtonSettings{
			BaudRate:  115200,
			LongPress: time.Second,
			Signal:    true,
		},
		MDNS: MDNSSettings{Enabled: true},
		Stations: make(map[string]*StationEntry),
		Preferences: &Preferences{
			DiscoverTimeout: 10,
		},
	}
}

// Prefixes returns the identity prefixes.
func (s *Settings) Prefixes() identity.Prefixes {
	return identity.Prefixes{
		Station:     s.Station.StationPrefix,
		SSID:        s.Station.SSIDPrefix,
		Password:    s.Station.PasswordPrefix,
		Hostname:    s.Station.HostnamePrefix,
		EmailDomain: s.Station.EmailDomain,
	}
}

// RadioConfig returns the association policy.
func (s *Settings) RadioConfig() radio.Config {
	return radio.Config{
		Rounds:           s.Radio.Rounds,
		RoundDelay:       s.Radio.RoundDelay,
		JoinPolls:        s.Radio.JoinPolls,
		JoinPollInterval: s.Radio.JoinPollInterval,
		MaxChannel:       s.Radio.MaxChannel,
	}
}

// StoreConfig returns the record store location.
func (s *Settings) StoreConfig() record.StoreConfig {
	return record.StoreConfig{Dir: s.Storage.Dir, Slots: s.Storage.Slots}
}

// GetStation retrieves a station entry by hardware id.
// Returns nil if the station is unknown.
func (s *Settings) GetStation(hardwareID string) *StationEntry {
	return s.Stations[hardwareID]
}

// EnsureStation returns the entry for hardwareID, creating it if needed.
func (s *Settings) EnsureStation(hardwareID string) *StationEntry {
	if s.Stations == nil {
		s.Stations = make(map[string]*StationEntry)
	}
	if entry, ok := s.Stations[hardwareID]; ok {
		return entry
	}
	entry := &StationEntry{}
	s.Stations[hardwareID] = entry
	return entry
}

// UpdateStationLastSeen records when and where a station was last seen.
func (s *Settings) UpdateStationLastSeen(hardwareID, ip string) {
	entry := s.EnsureStation(hardwareID)
	entry.LastSeen = time.Now()
	entry.LastIP = ip
}

// SetStationNickname sets a user-friendly nickname for a station.
func (s *Settings) SetStationNickname(hardwareID, nickname string) {
	s.EnsureStation(hardwareID).Nickname = nickname
}
