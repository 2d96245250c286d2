// Package ui provides terminal UI components for the weatherbird-cfg CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output for
// station commands. Most components follow a "print once" pattern: a
// command renders a header, talks to a station, and prints a result box.
// The watch view is the one interactive component; it streams state
// transitions until the user quits.
//
// # Components
//
//   - Header: command banner showing operation name and parameters
//   - Result: success, failure and warning boxes with details
//   - StationTable: stations found by an mDNS scan
//   - WatchModel: live station state with a discovery-window countdown
//   - Confirm: typed confirmation before destructive operations
//
// # Logging Integration
//
// This package expects logging to be controlled via the WEATHERBIRD_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
