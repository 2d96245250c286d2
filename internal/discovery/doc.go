// Package discovery advertises and finds WeatherBird stations over mDNS.
//
// A station announces its configuration surface as an "_http._tcp" service
// in the "local." domain. The instance and host name are the station
// hostname ("ES32-" followed by the uppercase hardware id) and the TXT
// record carries:
//
//	path=/          root of the configuration pages
//	station=<id>    cloud station id, e.g. ESPabc123
//	state=<n>       numeric provisioning state, refreshed on every transition
//
// # Advertising
//
//	adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
//	    Hostname:  dev.Hostname(),
//	    StationID: dev.StationID(),
//	    Port:      80,
//	})
//	go adv.Advertise(ctx)
//	adv.SetState(int(status.State))
//
// # Scanning
//
// Scanner browses for the same service type and keeps only entries whose
// host name matches a station hostname:
//
//	stations, err := discovery.NewScanner().ScanForStations()
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Stations must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
