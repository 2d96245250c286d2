// Weatherbird-prov runs the provisioning service of a WeatherBird station.
//
// It owns the station's configuration record and wireless radio, serves the
// configuration pages, announces the station over mDNS and reacts to the
// provisioning button. It also offers local maintenance commands for the
// configuration record.
//
// Usage:
//
//	weatherbird-prov serve [flags]
//	weatherbird-prov record show|reset
//	weatherbird-prov portal on|off|status
//
// See 'weatherbird-prov --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weatherbird/provisioning/internal/config"
	"github.com/weatherbird/provisioning/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "weatherbird-prov",
	Short: "WeatherBird Station Provisioning Service",
	Long: `The provisioning service of a WeatherBird weather station.

On start the service joins a stored WiFi network. When none can be joined,
or when the provisioning button is held, it opens the WEATHERBIRD<id>
access point and serves configuration pages until the owner has entered
network credentials and claimed the station with the weather service.

For configuring a station from another machine, use 'weatherbird-cfg'.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: $XDG_CONFIG_HOME/weatherbird/provisioning.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(portalCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings reads the settings file selected by --config.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weatherbird-prov %s\n", version.Full())
	},
}
