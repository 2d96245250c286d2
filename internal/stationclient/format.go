package stationclient

import (
	"fmt"
	"strings"

	"github.com/weatherbird/provisioning/internal/server"
)

// Summary returns a one-line summary of the station status
func Summary(doc *server.StatusDocument) string {
	if doc.Associated {
		return fmt.Sprintf("WeatherBird %s: %s on %s (%s)", doc.ID, doc.StateName, doc.SSID, doc.LocalIP)
	}
	return fmt.Sprintf("WeatherBird %s: %s (not associated)", doc.ID, doc.StateName)
}

// FormatStatus returns a compact multi-line format suitable for terminal display
func FormatStatus(doc *server.StatusDocument) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Station:  %s\n", doc.ID))
	b.WriteString(fmt.Sprintf("State:    %s (%d)\n", doc.StateName, doc.State))
	if doc.Associated {
		b.WriteString(fmt.Sprintf("Network:  %s (%s)\n", doc.SSID, doc.LocalIP))
	} else {
		b.WriteString("Network:  not associated\n")
	}
	if doc.ForcedDiscoveryUntil != nil {
		b.WriteString(fmt.Sprintf("Discovery: forced until %s\n", doc.ForcedDiscoveryUntil.Local().Format("15:04:05")))
	}
	if doc.Config.Initialized {
		b.WriteString(fmt.Sprintf("Owner:    %s\n", doc.Config.OwnerID))
	} else {
		b.WriteString("Owner:    (unclaimed)\n")
	}
	b.WriteString(FormatSlots(doc.Config.Slots))

	return b.String()
}

// FormatSlots lists the credential slots.
func FormatSlots(slots []server.SlotDocument) string {
	var b strings.Builder
	b.WriteString("Slots:\n")
	for i, slot := range slots {
		switch {
		case slot.SSID == "":
			b.WriteString(fmt.Sprintf("  [%d] EMPTY\n", i))
		case slot.HasPassword:
			b.WriteString(fmt.Sprintf("  [%d] %s (password set)\n", i, slot.SSID))
		default:
			b.WriteString(fmt.Sprintf("  [%d] %s (open)\n", i, slot.SSID))
		}
	}
	return b.String()
}

// FormatEvent returns a one-line description of a station event.
func FormatEvent(msg server.EventMessage) string {
	if msg.Transition == nil {
		return "snapshot: " + Summary(&msg.Status)
	}
	t := msg.Transition
	return fmt.Sprintf("%s  %s -> %s on %s",
		t.At.Local().Format("15:04:05"), t.From, t.To, t.Event)
}
