package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/record"
	"github.com/weatherbird/provisioning/internal/ui"
)

// Record command flags
var (
	recordDir   string
	showSecrets bool
	assumeYes   bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect or reset the configuration record",
	Long: `Inspect or reset the station's configuration record.

The record holds the WiFi credential slots, the cloud identity and its
checksum. It is written to a primary and a backup file. Stop the
provisioning service before resetting the record.`,
}

var recordShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configuration record",
	Example: `  # Show the record without secrets
  weatherbird-prov record show

  # Include WiFi and cloud passwords
  sudo weatherbird-prov record show --show-secrets`,
	RunE: runRecordShow,
}

var recordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase every credential slot and the cloud identity",
	RunE:  runRecordReset,
}

var portalCmd = &cobra.Command{
	Use:       "portal on|off|status",
	Short:     "Set or show the forced configuration portal flag",
	Long:      `When the flag is set the station opens its access point on the next start even if a stored network can be joined.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off", "status"},
	RunE:      runPortal,
}

func init() {
	for _, c := range []*cobra.Command{recordCmd, portalCmd} {
		c.PersistentFlags().StringVar(&recordDir, "storage-dir", "", "Directory of the configuration record (default: from settings)")
	}
	recordShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print passwords in clear text")
	recordResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	recordCmd.AddCommand(recordShowCmd)
	recordCmd.AddCommand(recordResetCmd)
}

// openStore opens the record store from --storage-dir or the settings file.
func openStore() (*record.Store, error) {
	if err := logging.InitializeFromEnv(); err != nil {
		return nil, err
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	cfg := settings.StoreConfig()
	if recordDir != "" {
		cfg.Dir = recordDir
	}
	return record.NewStore(cfg), nil
}

func runRecordShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	rec, src := store.Load()
	primary, backup := store.Paths()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Configuration Record", "weatherbird-prov record show", map[string]string{
		"Primary": primary,
		"Backup":  backup,
	})

	details := map[string]string{
		"Source":      src.String(),
		"Checksum":    fmt.Sprintf("0x%08x", rec.Checksum),
		"Owner":       rec.OwnerID,
		"Initialized": strconv.FormatBool(rec.CloudInitialized),
		"Portal flag": strconv.FormatBool(store.ForcedPortal()),
	}
	if showSecrets {
		details["Cloud pass"] = rec.CloudPassword
	}
	for i, c := range rec.Credentials {
		key := fmt.Sprintf("Slot %d", i)
		switch {
		case c.IsEmpty():
			details[key] = "EMPTY"
		case showSecrets:
			details[key] = fmt.Sprintf("%s / %s", c.SSID, c.Password)
		default:
			details[key] = fmt.Sprintf("%s / %s", c.SSID, logging.Redact(c.Password))
		}
	}

	if src == record.SourcePrimary || src == record.SourceBackup {
		p.PrintSuccess("Record is valid", details)
	} else {
		p.PrintWarning("No valid record stored", details)
	}
	return nil
}

func runRecordReset(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if !assumeYes && !ui.Confirm(os.Stdin, cmd.OutOrStdout(), "RESET CONFIGURATION RECORD", []string{
		"Every stored WiFi network is erased",
		"The station forgets its owner and must be claimed again",
		"Stop the provisioning service first",
	}, "RESET") {
		return nil
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if err := store.Save(record.Default(store.Slots())); err != nil {
		p.PrintError("Reset failed", err, nil)
		return err
	}
	primary, backup := store.Paths()
	p.PrintSuccess("Record reset", map[string]string{"Primary": primary, "Backup": backup})
	return nil
}

func runPortal(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	switch args[0] {
	case "status":
		p.Println(fmt.Sprintf("Forced configuration portal: %v", store.ForcedPortal()))
		return nil
	case "on", "off":
		on := args[0] == "on"
		if err := store.SetForcedPortal(on); err != nil {
			p.PrintError("Failed to write portal flag", err, nil)
			return err
		}
		p.PrintSuccess("Portal flag written", map[string]string{"Forced portal": strconv.FormatBool(on)})
		return nil
	}
	return fmt.Errorf("unknown portal argument %q", args[0])
}
