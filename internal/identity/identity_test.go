package identity

import (
	"net"
	"testing"
)

func TestDerivedNames(t *testing.T) {
	d := New(0x1a2b3c4d, Prefixes{})

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"hex", d.Hex(), "1a2b3c4d"},
		{"station id", d.StationID(), "ESP1a2b3c4d"},
		{"email", d.Email(), "ESP1a2b3c4d@sourceauditor.com"},
		{"discovery ssid", d.DiscoverySSID(), "WEATHERBIRD1a2b3c4d"},
		{"discovery password", d.DiscoveryPassword(), "WBPASS1a2b3c4d"},
		{"hostname", d.Hostname(), "ES32-1A2B3C4D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCustomPrefixes(t *testing.T) {
	d := New(0xff, Prefixes{SSID: "LAB", EmailDomain: "example.org"})
	if d.DiscoverySSID() != "LABff" {
		t.Errorf("DiscoverySSID() = %q", d.DiscoverySSID())
	}
	if d.Email() != "ESPff@example.org" {
		t.Errorf("Email() = %q", d.Email())
	}
	if d.DiscoveryPassword() != "WBPASSff" {
		t.Errorf("unset prefix should default, got %q", d.DiscoveryPassword())
	}
}

func TestFromMAC(t *testing.T) {
	mac, _ := net.ParseMAC("4d:3c:2b:1a:00:11")
	id, err := FromMAC(mac)
	if err != nil {
		t.Fatalf("FromMAC() error = %v", err)
	}
	if id != 0x1a2b3c4d {
		t.Errorf("FromMAC() = %#x, want 0x1a2b3c4d", id)
	}

	if _, err := FromMAC(net.HardwareAddr{1, 2}); err == nil {
		t.Error("short address should fail")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"1a2b3c4d", 0x1a2b3c4d, false},
		{"0xDEADBEEF", 0xdeadbeef, false},
		{"  ff ", 0xff, false},
		{"", 0, true},
		{"xyz", 0, true},
		{"123456789", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeHostname(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ES32-ABC", "ES32-ABC"},
		{"-bad_name!-", "badname"},
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZ", "ABCDEFGHIJKLMNOPQRSTUVWX"},
	}
	for _, tt := range tests {
		if got := SanitizeHostname(tt.in); got != tt.want {
			t.Errorf("SanitizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
