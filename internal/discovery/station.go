package discovery

import (
	"fmt"
	"strconv"
	"time"
)

// Station represents a discovered WeatherBird station on the network
type Station struct {
	// HardwareID is the hex hardware id taken from the hostname (e.g., "ABC123")
	HardwareID string

	// Hostname is the mDNS hostname (e.g., "ES32-ABC123.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the station has none
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the station was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the station
func (s *Station) String() string {
	return fmt.Sprintf("WeatherBird %s (%s) at %s:%d", s.StationID(), s.Hostname, s.IP, s.Port)
}

// BaseURL returns the HTTP base URL for the station
func (s *Station) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.IP, s.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Station) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// StationID returns the advertised station id, falling back to the
// hardware id when the TXT record has none.
func (s *Station) StationID() string {
	if id := s.GetMetadata(TXTStation); id != "" {
		return id
	}
	return s.HardwareID
}

// State returns the advertised provisioning state, or -1 when unknown.
func (s *Station) State() int {
	n, err := strconv.Atoi(s.GetMetadata(TXTState))
	if err != nil {
		return -1
	}
	return n
}
