package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type stations advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for station discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default HTTP port of a station
	DefaultPort = 80
)

// hostnamePattern matches station hostnames (e.g., "ES32-ABC123.local.")
var hostnamePattern = regexp.MustCompile(`^ES32-([0-9A-Fa-f]+)\.local\.?$`)

// Scanner handles mDNS station discovery
type Scanner struct {
	// Timeout is the maximum time to wait for station discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForStations discovers all stations on the local network
func (s *Scanner) ScanForStations() ([]*Station, error) {
	return s.ScanForStationsWithContext(context.Background())
}

// ScanForStationsWithContext discovers stations with a custom context
func (s *Scanner) ScanForStationsWithContext(ctx context.Context) ([]*Station, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu       sync.Mutex
		stations []*Station
		seen     = make(map[string]bool)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			station := s.parseServiceEntry(entry)
			if station == nil {
				continue
			}
			mu.Lock()
			if !seen[station.HardwareID] {
				seen[station.HardwareID] = true
				stations = append(stations, station)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// Let the collector drain entries still in flight.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Station(nil), stations...), nil
}

// WaitForStation waits for a station by hardware id (case-insensitive)
func (s *Scanner) WaitForStation(ctx context.Context, hardwareID string) (*Station, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Station, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			station := s.parseServiceEntry(entry)
			if station != nil && strings.EqualFold(station.HardwareID, hardwareID) {
				select {
				case found <- station:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case station := <-found:
		return station, nil
	case <-ctx.Done():
		select {
		case station := <-found:
			return station, nil
		default:
		}
		return nil, fmt.Errorf("station %s not found within %s", hardwareID, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Station.
// Returns nil if the entry is not a station.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Station {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := hostnamePattern.FindStringSubmatch(hostname)
	if len(matches) < 2 {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Station{
		HardwareID:   strings.ToUpper(matches[1]),
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     parseTXT(entry.Text),
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" TXT records. A bare key maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	return metadata
}
