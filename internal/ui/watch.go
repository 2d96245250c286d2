package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/server"
)

const maxWatchLog = 8

// EventMsg carries one message from the station's event stream.
type EventMsg server.EventMessage

// StreamClosedMsg is sent when the event stream ends.
type StreamClosedMsg struct{ Err error }

type clockMsg time.Time

// WatchModel shows a station's live state. Events arrive on a channel that
// the caller closes when the stream ends, after sending the stream's error
// (or nil) on errc.
type WatchModel struct {
	station  string
	window   time.Duration
	events   <-chan server.EventMessage
	errc     <-chan error
	spinner  spinner.Model
	bar      progress.Model
	status   *server.StatusDocument
	log      []string
	now      time.Time
	err      error
	quitting bool
}

// NewWatchModel creates the watch view. window is the length of the forced
// discovery window, used to draw its countdown.
func NewWatchModel(station string, window time.Duration, events <-chan server.EventMessage, errc <-chan error) WatchModel {
	return WatchModel{
		station: station,
		window:  window,
		events:  events,
		errc:    errc,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		now: time.Now(),
	}
}

// Err returns the error that ended the stream, if any.
func (m WatchModel) Err() error {
	return m.err
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), tickClock())
}

func (m WatchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return StreamClosedMsg{Err: <-m.errc}
		}
		return EventMsg(ev)
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-12, 60), 20)

	case EventMsg:
		status := msg.Status
		m.status = &status
		if msg.Transition != nil {
			m.log = append(m.log, fmt.Sprintf("%s  %s → %s  (%s)",
				msg.Transition.At.Local().Format("15:04:05"),
				msg.Transition.From, msg.Transition.To, msg.Transition.Event))
			if len(m.log) > maxWatchLog {
				m.log = m.log[len(m.log)-maxWatchLog:]
			}
		}
		return m, m.waitForEvent()

	case StreamClosedMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case clockMsg:
		m.now = time.Time(msg)
		return m, tickClock()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// discoveryRemaining returns the time left in the forced discovery window.
func (m WatchModel) discoveryRemaining() (time.Duration, bool) {
	if m.status == nil || m.status.ForcedDiscoveryUntil == nil {
		return 0, false
	}
	return max(m.status.ForcedDiscoveryUntil.Sub(m.now), 0), true
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("WEATHERBIRD " + m.station))
	b.WriteString("\n\n")

	if m.status == nil {
		b.WriteString("  " + m.spinner.View() + " Connecting to event stream...\n")
	} else {
		st := m.status
		b.WriteString(fmt.Sprintf("  %s State:   %s\n", m.spinner.View(), RenderState(provisioning.State(st.State))))
		if st.Associated {
			b.WriteString(fmt.Sprintf("    Network: %s (%s)\n", st.SSID, st.LocalIP))
		} else {
			b.WriteString("    Network: " + ErrorMessageStyle.Render("not associated") + "\n")
		}
		owner := "(unclaimed)"
		if st.Config.Initialized {
			owner = st.Config.OwnerID
		}
		b.WriteString("    Owner:   " + owner + "\n")

		if remaining, ok := m.discoveryRemaining(); ok {
			percent := 0.0
			if m.window > 0 {
				percent = min(float64(remaining)/float64(m.window), 1)
			}
			b.WriteString(fmt.Sprintf("\n    Discovery window: %s left\n    %s\n",
				remaining.Truncate(time.Second), m.bar.ViewAs(percent)))
		}
	}

	if len(m.log) > 0 {
		b.WriteString("\n" + TroubleshootingTitleStyle.Render("  Transitions") + "\n")
		for _, line := range m.log {
			b.WriteString(MutedStyle.Render("    "+line) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + ErrorMessageStyle.Render("  Stream closed: "+m.err.Error()) + "\n")
	}
	if !m.quitting {
		b.WriteString("\n" + MutedStyle.Render("  q to quit") + "\n")
	}
	return b.String()
}
