package radio

import (
	"context"
	"fmt"
	"sort"

	"github.com/weatherbird/provisioning/internal/record"
)

// Mode is the operating mode of the radio.
type Mode int

const (
	// ModeOff disables the radio
	ModeOff Mode = iota
	// ModeClient associates with an infrastructure network only
	ModeClient
	// ModeDiscovery runs the station's own access point alongside the client
	ModeDiscovery
)

// String returns a human-readable mode name
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeClient:
		return "client"
	case ModeDiscovery:
		return "discovery"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// AccessPoint describes the discovery network the station hosts.
type AccessPoint struct {
	SSID     string
	Password string
	Channel  int
}

// Network is one entry of a scan.
type Network struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`
	Security string `json:"security,omitempty"`
}

// Link describes the current association. Channel is zero when unknown.
type Link struct {
	SSID    string
	IP      string
	Channel int
}

// Interface is the hardware capability the controller drives.
type Interface interface {
	Associated(ctx context.Context) bool
	Disconnect(ctx context.Context) error
	SetMode(ctx context.Context, mode Mode) error
	StartAccessPoint(ctx context.Context, ap AccessPoint) error
	Join(ctx context.Context, cred record.Credential) error
	Scan(ctx context.Context) ([]Network, error)
	Link(ctx context.Context) (Link, error)
}

// ConcurrentAP is implemented by radios that can host the discovery access
// point on a second interface while the client stays associated. Radios
// without it lose the access point whenever they join a network.
type ConcurrentAP interface {
	ConcurrentAP() bool
}

// SortBySignal orders networks strongest first, drops hidden networks and
// keeps only the strongest entry per name.
func SortBySignal(networks []Network) []Network {
	best := make(map[string]Network, len(networks))
	for _, n := range networks {
		if n.SSID == "" {
			continue
		}
		if cur, ok := best[n.SSID]; !ok || n.Signal > cur.Signal {
			best[n.SSID] = n
		}
	}

	out := make([]Network, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Signal != out[j].Signal {
			return out[i].Signal > out[j].Signal
		}
		return out[i].SSID < out[j].SSID
	})
	return out
}
