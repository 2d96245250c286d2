package radio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/record"
	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds one nmcli invocation.
const DefaultCommandTimeout = 45 * time.Second

// HotspotConnection is the NetworkManager connection name of the discovery AP.
const HotspotConnection = "weatherbird-discovery"

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return stdout.Bytes(), fmt.Errorf("%s timed out after %s", name, timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
	}
	return stdout.Bytes(), nil
}

// NMCLI drives a wireless interface through NetworkManager.
//
// NetworkManager keeps one active connection per device, so a hotspot on the
// client device replaces its association and the reverse. When APDevice
// names a second interface the hotspot runs there instead; it is created on
// first use as an AP-type virtual interface of Device. Hardware that refuses
// the virtual interface falls back to the client device.
type NMCLI struct {
	Device   string
	APDevice string
	Binary   string
	IWBinary string
	runner   Runner

	apFailed atomic.Bool
}

// NewNMCLI creates a backend for device with no separate access point
// interface. A nil runner uses ExecRunner.
func NewNMCLI(device string, runner Runner) *NMCLI {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &NMCLI{Device: device, Binary: "nmcli", IWBinary: "iw", runner: runner}
}

func (n *NMCLI) run(ctx context.Context, args ...string) ([]byte, error) {
	return n.runner.Run(ctx, n.Binary, args...)
}

// ConcurrentAP implements ConcurrentAP.
func (n *NMCLI) ConcurrentAP() bool {
	return n.APDevice != "" && n.APDevice != n.Device && !n.apFailed.Load()
}

// apInterface returns the device the hotspot runs on, creating the access
// point interface when it does not exist yet.
func (n *NMCLI) apInterface(ctx context.Context) string {
	if !n.ConcurrentAP() {
		return n.Device
	}
	if _, err := n.runner.Run(ctx, n.IWBinary, "dev", n.APDevice, "info"); err == nil {
		return n.APDevice
	}
	if _, err := n.runner.Run(ctx, n.IWBinary, "dev", n.Device, "interface", "add", n.APDevice, "type", "__ap"); err != nil {
		n.apFailed.Store(true)
		logging.Warn("Access point interface unavailable, sharing the client interface",
			zap.String("device", n.Device),
			zap.String("ap_device", n.APDevice),
			zap.Error(err),
		)
		return n.Device
	}
	if _, err := n.run(ctx, "device", "set", n.APDevice, "managed", "yes"); err != nil {
		logging.Warn("Failed to hand the access point interface to NetworkManager", zap.Error(err))
	}
	return n.APDevice
}

// Associated implements Interface.
func (n *NMCLI) Associated(ctx context.Context) bool {
	out, err := n.run(ctx, "-t", "-f", "DEVICE,TYPE,STATE,CONNECTION", "device", "status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := splitTerse(line)
		if len(fields) < 4 || fields[0] != n.Device {
			continue
		}
		return fields[2] == "connected" && fields[3] != HotspotConnection
	}
	return false
}

// Disconnect implements Interface.
func (n *NMCLI) Disconnect(ctx context.Context) error {
	_, err := n.run(ctx, "device", "disconnect", n.Device)
	return err
}

// SetMode implements Interface. NetworkManager has no separate discovery
// mode; leaving it tears the hotspot down.
func (n *NMCLI) SetMode(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeOff:
		_, err := n.run(ctx, "radio", "wifi", "off")
		return err
	case ModeClient:
		if _, err := n.run(ctx, "radio", "wifi", "on"); err != nil {
			return err
		}
		// The hotspot may not exist.
		_, _ = n.run(ctx, "connection", "down", HotspotConnection)
		return nil
	case ModeDiscovery:
		_, err := n.run(ctx, "radio", "wifi", "on")
		return err
	default:
		return fmt.Errorf("unsupported mode %s", mode)
	}
}

// StartAccessPoint implements Interface.
func (n *NMCLI) StartAccessPoint(ctx context.Context, ap AccessPoint) error {
	args := []string{"device", "wifi", "hotspot",
		"ifname", n.apInterface(ctx),
		"con-name", HotspotConnection,
		"ssid", ap.SSID,
		"band", "bg",
	}
	if ap.Channel > 0 {
		args = append(args, "channel", strconv.Itoa(ap.Channel))
	}
	if ap.Password != "" {
		args = append(args, "password", ap.Password)
	}
	_, err := n.run(ctx, args...)
	return err
}

// Join implements Interface.
func (n *NMCLI) Join(ctx context.Context, cred record.Credential) error {
	args := []string{"device", "wifi", "connect", cred.SSID}
	if cred.Password != "" {
		args = append(args, "password", cred.Password)
	}
	args = append(args, "ifname", n.Device)
	_, err := n.run(ctx, args...)
	return err
}

// Scan implements Interface.
func (n *NMCLI) Scan(ctx context.Context) ([]Network, error) {
	out, err := n.run(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list", "ifname", n.Device, "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	return parseScan(out), nil
}

// Link implements Interface.
func (n *NMCLI) Link(ctx context.Context) (Link, error) {
	out, err := n.run(ctx, "-t", "-f", "ACTIVE,SSID,CHAN", "device", "wifi", "list", "ifname", n.Device, "--rescan", "no")
	if err != nil {
		return Link{}, err
	}
	var link Link
	for _, line := range strings.Split(string(out), "\n") {
		fields := splitTerse(line)
		if len(fields) >= 2 && fields[0] == "yes" {
			link.SSID = fields[1]
			if len(fields) > 2 {
				link.Channel, _ = strconv.Atoi(fields[2])
			}
			break
		}
	}
	if link.SSID == "" {
		return Link{}, fmt.Errorf("%s is not associated", n.Device)
	}

	out, err = n.run(ctx, "-t", "-f", "IP4.ADDRESS", "device", "show", n.Device)
	if err != nil {
		return link, nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && strings.HasPrefix(key, "IP4.ADDRESS") {
			ip, _, _ := strings.Cut(value, "/")
			link.IP = ip
			break
		}
	}
	return link, nil
}

func parseScan(out []byte) []Network {
	var networks []Network
	for _, line := range strings.Split(string(out), "\n") {
		fields := splitTerse(line)
		if len(fields) < 2 {
			continue
		}
		signal, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		nw := Network{SSID: fields[0], Signal: signal}
		if len(fields) > 2 {
			nw.Security = fields[2]
		}
		networks = append(networks, nw)
	}
	return networks
}

// splitTerse splits one line of nmcli terse output, honoring the \: and \\
// escapes nmcli uses inside values.
func splitTerse(line string) []string {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}
