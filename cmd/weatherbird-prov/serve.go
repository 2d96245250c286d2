package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weatherbird/provisioning/internal/button"
	"github.com/weatherbird/provisioning/internal/claim"
	"github.com/weatherbird/provisioning/internal/config"
	"github.com/weatherbird/provisioning/internal/discovery"
	"github.com/weatherbird/provisioning/internal/identity"
	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/metrics"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/radio"
	"github.com/weatherbird/provisioning/internal/record"
	"github.com/weatherbird/provisioning/internal/server"
)

// Serve command flags
var (
	logLevel          string
	radioBackend      string
	listenHost        string
	listenPort        int
	storageDir        string
	serialPort        string
	hardwareID        string
	simulatedNetworks []string
	noMDNS            bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provisioning service",
	Long: `Run the provisioning service until interrupted.

Flags override the matching values of the settings file. The simulated
radio backend needs no wireless hardware; networks it can join are given
with --simulate-network.

Send SIGUSR1 to the process to simulate a long press of the
provisioning button.`,
	Example: `  # Run on a station with NetworkManager
  sudo weatherbird-prov serve

  # Run on a development machine with a simulated radio
  weatherbird-prov serve --radio simulated --hardware-id 1a2b3c \
    --listen 127.0.0.1 --port 8080 --storage-dir ./state \
    --simulate-network HomeNet:secret --log-level debug

  # Read the provisioning button from a microcontroller
  weatherbird-prov serve --serial-port /dev/ttyUSB0`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&radioBackend, "radio", "", "Radio backend (nmcli, simulated)")
	serveCmd.Flags().StringVar(&listenHost, "listen", "", "HTTP listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&listenPort, "port", 0, "HTTP port")
	serveCmd.Flags().StringVar(&storageDir, "storage-dir", "", "Directory of the configuration record")
	serveCmd.Flags().StringVar(&serialPort, "serial-port", "", "Serial port of the button controller")
	serveCmd.Flags().StringVar(&hardwareID, "hardware-id", "", "Hardware id in hex (default: derived from the interface MAC)")
	serveCmd.Flags().StringArrayVar(&simulatedNetworks, "simulate-network", nil, "SSID[:password] the simulated radio can join (repeatable)")
	serveCmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Do not announce the station over mDNS")
}

// applyServeFlags overrides settings with the flags that were given.
func applyServeFlags(s *config.Settings) {
	if radioBackend != "" {
		s.Radio.Backend = radioBackend
	}
	if listenHost != "" {
		s.HTTP.Host = listenHost
	}
	if listenPort != 0 {
		s.HTTP.Port = listenPort
	}
	if storageDir != "" {
		s.Storage.Dir = storageDir
	}
	if serialPort != "" {
		s.Button.SerialPort = serialPort
	}
	if hardwareID != "" {
		s.Station.HardwareID = hardwareID
	}
	if noMDNS {
		s.MDNS.Enabled = false
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	applyServeFlags(settings)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := resolveIdentity(settings)
	if err != nil {
		return err
	}
	rad, err := newRadio(settings, simulatedNetworks)
	if err != nil {
		return err
	}

	collector := metrics.New()
	mgr := provisioning.NewManager(provisioning.Options{
		Store:                record.NewStore(settings.StoreConfig()),
		Radio:                radio.NewController(rad, settings.RadioConfig(), logging.GetLogger()),
		Claimer:              claim.NewClient(settings.Claim.URL, settings.Claim.Timeout),
		Identity:             dev,
		DiscoveryDuration:    settings.Discovery.Duration,
		ExitDelay:            settings.Discovery.ExitDelay,
		ConnectivityInterval: settings.Discovery.ConnectivityInterval,
		Observer:             collector,
	})

	logging.Info("Starting WeatherBird provisioning",
		zap.String("station", dev.StationID()),
		zap.String("hostname", dev.Hostname()),
		zap.String("radio", settings.Radio.Backend),
	)
	if err := mgr.Begin(ctx); err != nil {
		return fmt.Errorf("failed to start provisioning: %w", err)
	}

	var m server.Metrics
	if settings.HTTP.Metrics {
		m = collector
	}
	srv, err := server.New(serverConfig(settings), mgr, m)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		stop()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			fail(fmt.Errorf("server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		buttons := button.Merge(ctx, buttonSources(settings)...)
		if err := mgr.Run(ctx, buttons); err != nil && !errors.Is(err, context.Canceled) {
			fail(fmt.Errorf("provisioning: %w", err))
		}
	}()

	if settings.MDNS.Enabled {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Hostname:  dev.Hostname(),
			StationID: dev.StationID(),
			Port:      settings.HTTP.Port,
			Interface: settings.Station.Interface,
		})
		defer followState(mgr, adv.SetState)()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adv.Advertise(ctx); err != nil {
				logging.Warn("mDNS advertisement unavailable", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logging.Info("Shutting down...")
	wg.Wait()
	return firstErr
}

// resolveIdentity derives the station identity from the configured
// hardware id or the wireless interface MAC.
func resolveIdentity(s *config.Settings) (identity.Device, error) {
	var (
		id  uint32
		err error
	)
	if s.Station.HardwareID != "" {
		id, err = identity.ParseHex(s.Station.HardwareID)
	} else {
		id, err = identity.FromInterface(s.Station.Interface)
	}
	if err != nil {
		return identity.Device{}, fmt.Errorf("failed to determine hardware id (set station.hardware_id or --hardware-id): %w", err)
	}
	return identity.New(id, s.Prefixes()), nil
}

// serverConfig maps the HTTP settings onto the server configuration.
func serverConfig(s *config.Settings) *server.Config {
	return &server.Config{
		Host:        s.HTTP.Host,
		Port:        s.HTTP.Port,
		APSubnet:    s.HTTP.APSubnet,
		HomepageURL: s.HTTP.HomepageURL,
	}
}

// stateSource is the part of the manager followState needs.
type stateSource interface {
	State() provisioning.State
	Subscribe(fn func(provisioning.Transition)) (unsubscribe func())
}

// followState mirrors the provisioning state into set. It subscribes before
// seeding with the current state so a transition racing the seed is not lost.
func followState(src stateSource, set func(int)) (unsubscribe func()) {
	unsubscribe = src.Subscribe(func(t provisioning.Transition) {
		set(int(t.To))
	})
	set(int(src.State()))
	return unsubscribe
}

// newRadio creates the configured radio backend.
func newRadio(s *config.Settings, networks []string) (radio.Interface, error) {
	switch s.Radio.Backend {
	case config.BackendSimulated:
		sim := radio.NewSimulated()
		for i, n := range networks {
			ssid, password, _ := strings.Cut(n, ":")
			if ssid == "" {
				return nil, fmt.Errorf("invalid --simulate-network %q", n)
			}
			sim.AddNetwork(ssid, password, -40-10*i)
		}
		return sim, nil
	case config.BackendNMCLI:
		n := radio.NewNMCLI(s.Station.Interface, radio.ExecRunner{Timeout: s.Radio.CommandTimeout})
		n.APDevice = s.Radio.APInterface
		return n, nil
	default:
		return nil, fmt.Errorf("unknown radio backend %q", s.Radio.Backend)
	}
}

// buttonSources opens the configured button inputs. A serial port that
// cannot be opened is logged and skipped.
func buttonSources(s *config.Settings) []button.Source {
	var sources []button.Source
	if s.Button.SerialPort != "" {
		src, err := button.OpenSerial(s.Button.SerialPort, s.Button.BaudRate, s.Button.LongPress)
		if err != nil {
			logging.Error("Button serial port unavailable", zap.Error(err))
		} else {
			sources = append(sources, src)
		}
	}
	if s.Button.Signal {
		sources = append(sources, button.NewSignalSource())
	}
	return sources
}
