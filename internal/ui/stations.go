package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/weatherbird/provisioning/internal/discovery"
	"github.com/weatherbird/provisioning/internal/provisioning"
)

// StationTable renders stations found by a scan. Nicknames maps hardware
// ids to user-chosen names and may be nil.
func StationTable(stations []*discovery.Station, nicknames map[string]string) string {
	if len(stations) == 0 {
		return MutedStyle.Render("  No stations found.")
	}

	header := lipgloss.NewStyle().Foreground(MutedColor).Bold(true)
	lines := []string{header.Render(fmt.Sprintf("  %-4s %-12s %-22s %-20s %s", "#", "STATION", "ADDRESS", "NAME", "STATE"))}

	for i, st := range stations {
		name := nicknames[st.HardwareID]
		if name == "" {
			name = "-"
		}
		state := MutedStyle.Render("unknown")
		if s := st.State(); s >= 0 && s < len(provisioning.AllStates) {
			state = RenderState(provisioning.State(s))
		}
		lines = append(lines, fmt.Sprintf("  %-4d %-12s %-22s %-20s %s",
			i+1, st.StationID(), fmt.Sprintf("%s:%d", st.IP, st.Port), name, state))
	}
	return strings.Join(lines, "\n")
}
