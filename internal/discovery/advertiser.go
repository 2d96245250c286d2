package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/weatherbird/provisioning/internal/logging"
	"go.uber.org/zap"
)

// TXT record keys.
const (
	TXTPath    = "path"
	TXTStation = "station"
	TXTState   = "state"
)

// AdvertiserConfig describes the announced service.
type AdvertiserConfig struct {
	// Hostname is used as both instance and host name (e.g., "ES32-ABC123")
	Hostname string

	StationID string
	Port      int

	// Interface restricts announcements to one network interface. Empty
	// means all multicast-capable interfaces.
	Interface string
}

// Advertiser announces the station over mDNS and keeps the state TXT
// record current.
type Advertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	state   int
	changed chan struct{}
}

// NewAdvertiser creates an advertiser. Nothing is sent until Advertise runs.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	return &Advertiser{
		config:  config,
		changed: make(chan struct{}, 1),
	}
}

// SetState records the provisioning state to advertise. It never blocks.
func (a *Advertiser) SetState(state int) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// TXT returns the current TXT records.
func (a *Advertiser) TXT() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return txtRecords(a.config.StationID, a.state)
}

// Advertise registers the service and blocks until ctx is done, then
// withdraws the announcement.
func (a *Advertiser) Advertise(ctx context.Context) error {
	ifaces, ips, err := a.addresses()
	if err != nil {
		return err
	}

	server, err := zeroconf.RegisterProxy(
		a.config.Hostname,
		ServiceType,
		ServiceDomain,
		a.config.Port,
		a.config.Hostname,
		ips,
		a.TXT(),
		ifaces,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	defer server.Shutdown()

	logging.Info("mDNS service registered",
		zap.String("host", a.config.Hostname+"."+ServiceDomain),
		zap.String("service", ServiceType),
		zap.Int("port", a.config.Port),
		zap.Strings("ips", ips),
	)

	for {
		select {
		case <-ctx.Done():
			logging.Debug("mDNS service withdrawn", zap.String("host", a.config.Hostname))
			return nil
		case <-a.changed:
			txt := a.TXT()
			server.SetText(txt)
			logging.Debug("mDNS TXT updated", zap.Strings("txt", txt))
		}
	}
}

// addresses lists the IPv4 addresses to announce, limited to the configured
// interface when one is set.
func (a *Advertiser) addresses() ([]net.Interface, []string, error) {
	var candidates []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find interface %s: %w", a.config.Interface, err)
		}
		candidates = []net.Interface{*iface}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list interfaces: %w", err)
		}
		candidates = all
	}

	var (
		ifaces []net.Interface
		ips    []string
	)
	for _, iface := range candidates {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		found := false
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP.String())
				found = true
			}
		}
		if found {
			ifaces = append(ifaces, iface)
		}
	}
	if len(ips) == 0 {
		return nil, nil, fmt.Errorf("no IPv4 address to advertise")
	}
	return ifaces, ips, nil
}

func txtRecords(stationID string, state int) []string {
	return []string{
		TXTPath + "=/",
		TXTStation + "=" + stationID,
		TXTState + "=" + strconv.Itoa(state),
	}
}
