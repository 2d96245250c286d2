// Package identity derives the stable names of a station from its hardware id.
package identity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Default prefixes, matching stations already deployed in the field.
const (
	DefaultStationPrefix  = "ESP"
	DefaultSSIDPrefix     = "WEATHERBIRD"
	DefaultPasswordPrefix = "WBPASS"
	DefaultHostnamePrefix = "ES32-"
	DefaultEmailDomain    = "sourceauditor.com"
	hostnameMaxLen        = 24
)

// Prefixes holds the fixed parts of every derived name.
type Prefixes struct {
	Station     string
	SSID        string
	Password    string
	Hostname    string
	EmailDomain string
}

// DefaultPrefixes returns the stock prefixes.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Station:     DefaultStationPrefix,
		SSID:        DefaultSSIDPrefix,
		Password:    DefaultPasswordPrefix,
		Hostname:    DefaultHostnamePrefix,
		EmailDomain: DefaultEmailDomain,
	}
}

// Device is the immutable identity of one station.
type Device struct {
	HardwareID uint32
	Prefixes   Prefixes
}

// New creates a device identity, filling empty prefixes with defaults.
func New(hardwareID uint32, p Prefixes) Device {
	d := DefaultPrefixes()
	if p.Station != "" {
		d.Station = p.Station
	}
	if p.SSID != "" {
		d.SSID = p.SSID
	}
	if p.Password != "" {
		d.Password = p.Password
	}
	if p.Hostname != "" {
		d.Hostname = p.Hostname
	}
	if p.EmailDomain != "" {
		d.EmailDomain = p.EmailDomain
	}
	return Device{HardwareID: hardwareID, Prefixes: d}
}

// FromMAC takes the low 32 bits of a hardware address, reading the first
// four octets little-endian the way the radio firmware reports its id.
func FromMAC(mac net.HardwareAddr) (uint32, error) {
	if len(mac) < 4 {
		return 0, fmt.Errorf("hardware address too short: %d bytes", len(mac))
	}
	return binary.LittleEndian.Uint32(mac[:4]), nil
}

// FromInterface reads the hardware id of a named network interface.
func FromInterface(name string) (uint32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	return FromMAC(iface.HardwareAddr)
}

// ParseHex parses a hardware id given as hexadecimal, with or without 0x.
func ParseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, errors.New("empty hardware id")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hardware id %q: %w", s, err)
	}
	return uint32(v), nil
}

// Hex is the lowercase hexadecimal hardware id without leading zeros.
func (d Device) Hex() string {
	return strconv.FormatUint(uint64(d.HardwareID), 16)
}

// StationID identifies the station to the cloud service.
func (d Device) StationID() string {
	return d.Prefixes.Station + d.Hex()
}

// Email is the account name the station claims under.
func (d Device) Email() string {
	return d.StationID() + "@" + d.Prefixes.EmailDomain
}

// DiscoverySSID is the network name advertised in discovery mode.
func (d Device) DiscoverySSID() string {
	return d.Prefixes.SSID + d.Hex()
}

// DiscoveryPassword is the secret of the discovery network.
func (d Device) DiscoveryPassword() string {
	return d.Prefixes.Password + d.Hex()
}

// Hostname is the RFC 952 host name used for mDNS.
func (d Device) Hostname() string {
	return SanitizeHostname(strings.ToUpper(d.Prefixes.Hostname + d.Hex()))
}

// SanitizeHostname keeps letters, digits and inner hyphens, capped at 24 characters.
func SanitizeHostname(name string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= hostnameMaxLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
