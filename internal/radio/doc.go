// Package radio switches the station's wireless interface between client
// and discovery modes and associates it with stored networks.
//
// The Controller holds the policy: how many association rounds to try,
// how long to wait between them, and which channel the discovery access
// point uses. The hardware itself sits behind Interface, with two backends:
//
//   - NMCLI drives a Linux interface through NetworkManager's nmcli tool.
//     NetworkManager runs one connection per device, so the access point
//     lives on a second virtual interface created with iw. Without one the
//     client association is suspended while the access point is up.
//   - Simulated keeps everything in memory and is used by tests and by
//     the daemon's --radio simulated flag.
//
// Failing to associate is reported through ConnectResult, never as an
// error: a station without a network is a normal state.
//
// Usage:
//
//	ctrl := radio.NewController(radio.NewNMCLI("wlan0", nil), radio.DefaultConfig(), logger)
//	res := ctrl.Connect(ctx, rec.Usable())
//	if !res.Connected {
//	    _ = ctrl.EnterDiscoveryMode(ctx, ap)
//	}
package radio
