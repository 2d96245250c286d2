// Weatherbird-cfg configures WeatherBird stations from another machine.
//
// It finds stations over mDNS, reads their provisioning status, submits
// WiFi credentials, claims or cancels the cloud identity and streams
// state transitions. It talks to the same configuration pages a phone
// would use and does not need access to the station itself.
//
// Usage:
//
//	weatherbird-cfg [command] [flags]
//
// See 'weatherbird-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "weatherbird-cfg",
	Short: "WeatherBird Station Configuration Utility",
	Long: `A standalone utility for configuring WeatherBird weather stations.

Join the station's WEATHERBIRD<id> access point (password WBPASS<id>), or
the network the station is on, then use the commands below. Without
--station the station is found over mDNS.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weatherbird-cfg %s\n", version.Full())
	},
}
