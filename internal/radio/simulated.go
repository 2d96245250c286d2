package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/weatherbird/provisioning/internal/record"
)

// ErrUnreachable is returned by Simulated.Join for unknown or out-of-range networks.
var ErrUnreachable = errors.New("network unreachable")

// ErrBadPassword is returned by Simulated.Join on a secret mismatch.
var ErrBadPassword = errors.New("authentication rejected")

type simNetwork struct {
	password  string
	signal    int
	reachable bool
}

// Simulated is an in-memory radio.
type Simulated struct {
	// SingleRadio makes the access point and the client exclusive the way a
	// NetworkManager device without an access point interface behaves:
	// starting one drops the other.
	SingleRadio bool

	mu         sync.Mutex
	networks   map[string]*simNetwork
	associated string
	mode       Mode
	ap         *AccessPoint
	ip         string
	channel    int
	joins      int
}

// NewSimulated creates a radio with no networks in range.
func NewSimulated() *Simulated {
	return &Simulated{
		networks: make(map[string]*simNetwork),
		ip:       "192.168.1.50",
	}
}

// AddNetwork puts a network in range.
func (s *Simulated) AddNetwork(ssid, password string, signal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[ssid] = &simNetwork{password: password, signal: signal, reachable: true}
}

// SetReachable moves a network in or out of range. Going out of range drops
// the association.
func (s *Simulated) SetReachable(ssid string, reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.networks[ssid]; ok {
		n.reachable = reachable
	}
	if !reachable && s.associated == ssid {
		s.associated = ""
	}
}

// SetChannel sets the channel reported for the association.
func (s *Simulated) SetChannel(channel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channel
}

// ConcurrentAP implements ConcurrentAP.
func (s *Simulated) ConcurrentAP() bool {
	return !s.SingleRadio
}

// Mode returns the current mode.
func (s *Simulated) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// AccessPoint returns the running access point, if any.
func (s *Simulated) AccessPoint() (AccessPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ap == nil {
		return AccessPoint{}, false
	}
	return *s.ap, true
}

// Joins returns the number of Join calls so far.
func (s *Simulated) Joins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joins
}

// Associated implements Interface.
func (s *Simulated) Associated(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.associated != ""
}

// Disconnect implements Interface.
func (s *Simulated) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.associated = ""
	return nil
}

// SetMode implements Interface.
func (s *Simulated) SetMode(_ context.Context, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if mode != ModeDiscovery {
		s.ap = nil
	}
	if mode == ModeOff {
		s.associated = ""
	}
	return nil
}

// StartAccessPoint implements Interface.
func (s *Simulated) StartAccessPoint(_ context.Context, ap AccessPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeDiscovery {
		return fmt.Errorf("access point requires %s mode, radio is in %s mode", ModeDiscovery, s.mode)
	}
	s.ap = &ap
	if s.SingleRadio {
		s.associated = ""
	}
	return nil
}

// Join implements Interface.
func (s *Simulated) Join(_ context.Context, cred record.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins++
	if s.mode == ModeOff {
		return errors.New("radio is off")
	}
	n, ok := s.networks[cred.SSID]
	if !ok || !n.reachable {
		return fmt.Errorf("%s: %w", cred.SSID, ErrUnreachable)
	}
	if s.SingleRadio && s.ap != nil {
		s.ap = nil
		s.mode = ModeClient
	}
	if n.password != cred.Password {
		return fmt.Errorf("%s: %w", cred.SSID, ErrBadPassword)
	}
	s.associated = cred.SSID
	return nil
}

// Scan implements Interface.
func (s *Simulated) Scan(context.Context) ([]Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Network, 0, len(s.networks))
	for ssid, n := range s.networks {
		if !n.reachable {
			continue
		}
		security := "WPA2"
		if n.password == "" {
			security = ""
		}
		out = append(out, Network{SSID: ssid, Signal: n.signal, Security: security})
	}
	return out, nil
}

// Link implements Interface.
func (s *Simulated) Link(context.Context) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.associated == "" {
		return Link{}, errors.New("not associated")
	}
	return Link{SSID: s.associated, IP: s.ip, Channel: s.channel}, nil
}
