package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/weatherbird/provisioning/internal/config"
	"github.com/weatherbird/provisioning/internal/discovery"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/server"
	"github.com/weatherbird/provisioning/internal/stationclient"
	"github.com/weatherbird/provisioning/internal/ui"
)

// Common flags
var (
	stationAddr  string
	stationPort  int
	timeout      time.Duration
	outputFormat string
)

// Command flags
var (
	scanTimeout int
	slotFlag    int
	ssidFlag    string
	passFlag    string
	openNetwork bool
	clearSlot   bool
	noVerify    bool
	ownerFlag   string
	nickname    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&stationAddr, "station", "", "Station address or URL (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&stationPort, "port", discovery.DefaultPort, "Station HTTP port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", stationclient.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setNetworkCmd)
	rootCmd.AddCommand(exitConfigCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(reconfigureCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(nameCmd)
}

// scanCmd discovers stations on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for WeatherBird stations on the network",
	Long: `Scan for WeatherBird stations using mDNS/DNS-SD discovery.

Stations announce themselves as ES32-<ID>.local with their station id and
provisioning state in TXT records.`,
	Example: `  # Scan for 10 seconds (default)
  weatherbird-cfg scan

  # Quick 3-second scan
  weatherbird-cfg scan --scan-timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 0, "Scan timeout in seconds (default: from settings)")
}

func runScan(cmd *cobra.Command, args []string) error {
	settings, err := config.Load("")
	if err != nil {
		return err
	}
	seconds := scanTimeout
	if seconds <= 0 {
		seconds = settings.Preferences.DiscoverTimeout
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Println(fmt.Sprintf("Scanning for WeatherBird stations (timeout: %ds)...", seconds))

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(seconds) * time.Second
	stations, err := scanner.ScanForStationsWithContext(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	nicknames := make(map[string]string)
	for _, st := range stations {
		settings.UpdateStationLastSeen(st.HardwareID, st.IP)
		if entry := settings.GetStation(st.HardwareID); entry.Nickname != "" {
			nicknames[st.HardwareID] = entry.Nickname
		}
	}
	if len(stations) > 0 {
		if err := settings.Save(""); err != nil {
			p.Println(ui.MutedStyle.Render("  Could not remember stations: " + err.Error()))
		}
	}

	if outputFormat == "json" {
		return printJSON(cmd, stations)
	}

	p.Newline()
	p.Println(ui.StationTable(stations, nicknames))
	p.Newline()
	if len(stations) == 0 {
		p.PrintWarning("No stations found", map[string]string{
			"Hint": "Join the WEATHERBIRD<id> network or hold the provisioning button",
		})
		return nil
	}
	p.Println(ui.MutedStyle.Render("Use 'weatherbird-cfg status --station <address>' to view a station"))
	return nil
}

// statusCmd displays a station's status document
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show station status",
	Example: `  weatherbird-cfg status --station 10.42.0.1
  weatherbird-cfg status --station ES32-1A2B3C.local --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := client.Status(cmd.Context())
		if err != nil {
			return reportError(cmd, "Status unavailable", err)
		}
		if outputFormat == "json" {
			return printJSON(cmd, doc)
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("Station Status", "weatherbird-cfg status", map[string]string{"Station": client.BaseURL})
		p.Println(stationclient.FormatStatus(doc))
		return nil
	},
}

// setNetworkCmd writes a credential slot
var setNetworkCmd = &cobra.Command{
	Use:   "set-network",
	Short: "Store WiFi credentials in a slot and join the network",
	Long: `Store WiFi credentials in one of the station's slots.

The station tries to join the network right away and reports whether it
succeeded. Credentials are stored even when the join fails.`,
	Example: `  # Store a WPA network in slot 0
  weatherbird-cfg set-network --slot 0 --ssid HomeNet --password secret

  # Store an open network in slot 1
  weatherbird-cfg set-network --slot 1 --ssid Cafe --open

  # Clear slot 1
  weatherbird-cfg set-network --slot 1 --clear`,
	RunE: runSetNetwork,
}

func init() {
	setNetworkCmd.Flags().IntVar(&slotFlag, "slot", 0, "Credential slot")
	setNetworkCmd.Flags().StringVar(&ssidFlag, "ssid", "", "Network name")
	setNetworkCmd.Flags().StringVar(&passFlag, "password", "", "Network password")
	setNetworkCmd.Flags().BoolVar(&openNetwork, "open", false, "The network has no password")
	setNetworkCmd.Flags().BoolVar(&clearSlot, "clear", false, "Clear the slot")
	setNetworkCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip reading the slot back after the update")
	setNetworkCmd.MarkFlagsMutuallyExclusive("clear", "ssid")
	setNetworkCmd.MarkFlagsMutuallyExclusive("open", "password")
}

// networkUpdate builds the slot update from the flags.
func networkUpdate() (stationclient.NetworkUpdate, error) {
	slot := slotFlag
	update := stationclient.NetworkUpdate{Slot: &slot}
	switch {
	case clearSlot:
		update.SSID = stationclient.String("")
	case ssidFlag == "":
		return update, fmt.Errorf("--ssid or --clear is required")
	case openNetwork:
		update.SSID = stationclient.String(ssidFlag)
		update.Password = stationclient.String("")
	case passFlag == "":
		return update, fmt.Errorf("--password or --open is required")
	default:
		update.SSID = stationclient.String(ssidFlag)
		update.Password = stationclient.String(passFlag)
	}
	return update, nil
}

func runSetNetwork(cmd *cobra.Command, args []string) error {
	update, err := networkUpdate()
	if err != nil {
		return err
	}
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Network Configuration", "weatherbird-cfg set-network", map[string]string{
		"Station": client.BaseURL,
		"Slot":    fmt.Sprint(slotFlag),
	})

	slots := 0
	if doc, err := client.Status(cmd.Context()); err == nil {
		slots = len(doc.Config.Slots)
	}
	warnings, critical := stationclient.SeparateWarningsAndErrors(stationclient.ValidateNetworkUpdate(update, slots))
	if len(critical) > 0 {
		p.PrintError("Invalid network", fmt.Errorf("%s", stationclient.FormatValidationErrors(critical)), nil)
		return critical[0]
	}
	for _, w := range warnings {
		p.Println(ui.MutedStyle.Render("  " + stationclient.GetShortErrorMessage(w)))
	}

	p.Println(ui.MutedStyle.Render("  Waiting for the station to join..."))
	status, err := client.SubmitNetwork(cmd.Context(), update)
	if err != nil {
		return reportError(cmd, "Network not stored", err)
	}

	details := map[string]string{"Slot": fmt.Sprint(slotFlag), "Join": string(status)}
	if !clearSlot {
		details["SSID"] = ssidFlag
	}

	if status == provisioning.ConnectionPending {
		// The station joins after replying and its access point goes down
		// with the join, so there is nothing left to read back over it.
		p.PrintWarning("Stored, the station is joining and its access point will go down", details)
		return nil
	}

	if !noVerify {
		result := client.VerifyNetwork(cmd.Context(), update, nil)
		if !result.Success {
			details["Verified"] = "no"
			p.PrintWarning("Stored, but the slot could not be read back", details)
			return nil
		}
		details["Verified"] = "yes"
	}

	switch status {
	case provisioning.ConnectionFailed:
		p.PrintWarning("Stored, but the station could not join", details)
	default:
		p.PrintSuccess("Network stored", details)
	}
	return nil
}

var exitConfigCmd = &cobra.Command{
	Use:   "exit-config",
	Short: "Leave configuration mode and keep the current network",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleAction(cmd, "Configuration mode left", "Exit refused", func(ctx context.Context, c *stationclient.Client) error {
			return c.ExitConfiguration(ctx)
		})
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the station with the weather service",
	Long: `Register the station with the weather service under an owner id.

The station generates a new cloud password, registers it and stores the
owner. A failed registration leaves the station ready to retry.`,
	Example: `  weatherbird-cfg claim --owner user123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ownerFlag == "" {
			return fmt.Errorf("--owner is required (use 'cancel' to abandon sign-in)")
		}
		return simpleAction(cmd, "Station claimed by "+ownerFlag, "Claim failed", func(ctx context.Context, c *stationclient.Client) error {
			return c.Claim(ctx, ownerFlag)
		})
	},
}

func init() {
	claimCmd.Flags().StringVar(&ownerFlag, "owner", "", "Owner id")
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Abandon identity configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleAction(cmd, "Sign-in cancelled", "Cancel refused", func(ctx context.Context, c *stationclient.Client) error {
			return c.Cancel(ctx)
		})
	},
}

var reconfigureCmd = &cobra.Command{
	Use:   "reconfigure",
	Short: "Allow a configured station to be claimed by a new owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleAction(cmd, "Reconfiguration requested", "Reconfiguration refused", func(ctx context.Context, c *stationclient.Client) error {
			return c.Reconfigure(ctx)
		})
	},
}

// watchCmd streams transitions
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the station's state live",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	events := make(chan server.EventMessage, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- client.Watch(ctx, func(msg server.EventMessage) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		})
		close(events)
	}()

	if outputFormat == "json" || !ui.IsTerminal() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for msg := range events {
			if outputFormat == "json" {
				_ = enc.Encode(msg)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), stationclient.FormatEvent(msg))
			}
		}
		if err := <-errc; err != nil {
			return reportError(cmd, "Event stream closed", err)
		}
		return nil
	}

	settings, err := config.Load("")
	if err != nil {
		return err
	}
	model := ui.NewWatchModel(client.BaseURL, settings.Discovery.Duration, events, errc)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	stop()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if wm, ok := final.(ui.WatchModel); ok && wm.Err() != nil {
		return wm.Err()
	}
	return nil
}

// nameCmd remembers a nickname for a station
var nameCmd = &cobra.Command{
	Use:   "name <hardware-id> <nickname>",
	Short: "Give a station a nickname shown by scan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load("")
		if err != nil {
			return err
		}
		id := strings.ToUpper(args[0])
		settings.SetStationNickname(id, args[1])
		if err := settings.Save(""); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Nickname saved", map[string]string{"Station": id, "Nickname": args[1]})
		return nil
	},
}

func simpleAction(cmd *cobra.Command, success, failure string, fn func(context.Context, *stationclient.Client) error) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(cmd.Context(), client); err != nil {
		return reportError(cmd, failure, err)
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess(success, map[string]string{"Station": client.BaseURL})
	return nil
}

// newClient resolves the station from --station, the default station in
// the settings, or mDNS discovery.
func newClient(ctx context.Context) (*stationclient.Client, error) {
	base, err := stationURL(ctx)
	if err != nil {
		return nil, err
	}
	client := stationclient.New(base)
	client.SetTimeout(timeout)
	return client, nil
}

func stationURL(ctx context.Context) (string, error) {
	addr := stationAddr
	if addr == "" {
		settings, err := config.Load("")
		if err != nil {
			return "", err
		}
		addr = settings.Preferences.DefaultStation
	}
	if addr != "" {
		return normalizeStation(addr, stationPort)
	}

	scanner := discovery.NewScanner()
	stations, err := scanner.ScanForStationsWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}
	switch len(stations) {
	case 0:
		return "", fmt.Errorf("no station found; use --station or join the WEATHERBIRD<id> network")
	case 1:
		return stations[0].BaseURL(), nil
	default:
		return "", fmt.Errorf("%d stations found; choose one with --station (see 'weatherbird-cfg scan')", len(stations))
	}
}

// normalizeStation turns a host, host:port or URL into a base URL.
func normalizeStation(addr string, port int) (string, error) {
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid station URL %q", addr)
		}
		return strings.TrimRight(u.String(), "/"), nil
	}
	if strings.Contains(addr, ":") {
		return "http://" + addr, nil
	}
	return fmt.Sprintf("http://%s:%d", addr, port), nil
}

func reportError(cmd *cobra.Command, title string, err error) error {
	p := ui.NewPrinter(cmd.ErrOrStderr())
	p.PrintError(title, fmt.Errorf("%s", stationclient.GetShortErrorMessage(err)), ui.HintLines(stationclient.GetTroubleshootingHint(err)))
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
