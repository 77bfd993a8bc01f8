package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Agrid-Dev/thermopid/cmd/app"
)

var (
	configPath string
	verbose    bool
	noColor    bool

	cfg app.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "thermopid",
	Short: "PID room heating simulator.",
	Long: `thermopid simulates a room heated by a power limited heater under
PID control, second by second, and exposes the simulator over HTTP, MQTT
and Modbus.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		log.SetLevel(cfg.Level())
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if noColor {
			pterm.DisableColor()
			pterm.DisableStyling()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (.yaml/.yml/.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "More verbose output")
	rootCmd.PersistentFlags().BoolVarP(&noColor, "no-color", "", false, "Disable all terminal output coloration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
