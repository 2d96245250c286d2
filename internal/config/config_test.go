package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/weatherbird/provisioning/internal/record"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "weatherbird") {
		t.Errorf("GetConfigDir() = %v, should contain 'weatherbird'", configDir)
	}
	if runtime.GOOS == "linux" && os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
		t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "weatherbird") {
		t.Errorf("GetConfigDir() = %s", dir)
	}
	path, _ := GetConfigPath()
	if filepath.Base(path) != "provisioning.yaml" {
		t.Errorf("GetConfigPath() = %s", path)
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if s.Version != 1 {
		t.Errorf("Version = %d, want 1", s.Version)
	}
	if s.Discovery.Duration != time.Hour || s.Discovery.ExitDelay != time.Second {
		t.Errorf("discovery = %+v", s.Discovery)
	}
	if s.Storage.Slots != record.DefaultSlots {
		t.Errorf("Slots = %d, want %d", s.Storage.Slots, record.DefaultSlots)
	}

	p := s.Prefixes()
	if p.SSID != "WEATHERBIRD" || p.Password != "WBPASS" || p.Hostname != "ES32-" || p.Station != "ESP" {
		t.Errorf("Prefixes() = %+v", p)
	}
	rc := s.RadioConfig()
	if rc.Rounds != 10 || rc.RoundDelay != 3*time.Second || rc.MaxChannel != 11 {
		t.Errorf("RadioConfig() = %+v", rc)
	}
	if sc := s.StoreConfig(); sc.Dir != s.Storage.Dir || sc.Slots != 2 {
		t.Errorf("StoreConfig() = %+v", sc)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Claim.URL != Default().Claim.URL {
		t.Errorf("Claim.URL = %q", s.Claim.URL)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisioning.yaml")
	data := `version: 1
radio:
  backend: simulated
  round_delay: 500ms
discovery:
  duration: 10m
storage:
  dir: /tmp/wb
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Radio.Backend != BackendSimulated || s.Radio.RoundDelay != 500*time.Millisecond {
		t.Errorf("radio = %+v", s.Radio)
	}
	if s.Radio.Rounds != 10 {
		t.Errorf("Rounds = %d, default should be kept", s.Radio.Rounds)
	}
	if s.Discovery.Duration != 10*time.Minute {
		t.Errorf("Duration = %v", s.Discovery.Duration)
	}
	if s.Radio.APInterface != "ap0" {
		t.Errorf("APInterface = %q, want the ap0 default", s.Radio.APInterface)
	}
	if s.HTTP.Port != 80 || s.Storage.Dir != "/tmp/wb" {
		t.Errorf("http/storage = %+v %+v", s.HTTP, s.Storage)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"wrong version", "version: 2\n", "unsupported config version"},
		{"bad yaml", "version: [\n", "failed to parse"},
		{"bad backend", "version: 1\nradio:\n  backend: wext\n", "radio.backend"},
		{"bad hardware id", "version: 1\nstation:\n  hardware_id: xyz\n", "station.hardware_id"},
		{"bad subnet", "version: 1\nhttp:\n  ap_subnet: nope\n", "http.ap_subnet"},
		{"relative claim url", "version: 1\nclaim:\n  url: /api\n", "claim.url"},
		{"zero slots", "version: 1\nstorage:\n  slots: 0\n", "storage.slots"},
		{"shared ap interface", "version: 1\nstation:\n  interface: wlan0\nradio:\n  ap_interface: wlan0\n", "radio.ap_interface"},
		{"long ap interface", "version: 1\nradio:\n  ap_interface: weatherbird-access-point\n", "radio.ap_interface"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "provisioning.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "provisioning.yaml")

	s := Default()
	s.Station.HardwareID = "abc123"
	s.Button.SerialPort = "/dev/ttyUSB0"
	s.SetStationNickname("ABC123", "Back garden")
	s.UpdateStationLastSeen("ABC123", "192.168.1.50")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "# WeatherBird") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(raw), "duration: 1h0m0s") {
		t.Errorf("durations should be written as strings:\n%s", raw)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be gone")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Station.HardwareID != "abc123" || loaded.Button.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("loaded = %+v %+v", loaded.Station, loaded.Button)
	}
	entry := loaded.GetStation("ABC123")
	if entry == nil || entry.Nickname != "Back garden" || entry.LastIP != "192.168.1.50" {
		t.Errorf("station entry = %+v", entry)
	}
}

func TestEnsureStation(t *testing.T) {
	s := &Settings{}
	a := s.EnsureStation("FF")
	b := s.EnsureStation("FF")
	if a != b {
		t.Error("EnsureStation should return the existing entry")
	}
	if s.GetStation("EE") != nil {
		t.Error("unknown station should be nil")
	}
}
