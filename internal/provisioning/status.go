package provisioning

import "time"

// SlotSummary is the non-secret view of one credential slot. An empty SSID
// means the slot is unused.
type SlotSummary struct {
	SSID        string
	HasPassword bool
}

// Status is an immutable snapshot published after every change.
type Status struct {
	State                State
	StationID            string
	Associated           bool
	SSID                 string
	LocalIP              string
	ForcedDiscoveryUntil *time.Time
	OwnerID              string
	Initialized          bool
	ForcedPortal         bool
	Slots                []SlotSummary
	UpdatedAt            time.Time
}

// InDiscoveryWindow reports whether a forced discovery deadline is pending.
func (s *Status) InDiscoveryWindow() bool {
	return s.ForcedDiscoveryUntil != nil
}
