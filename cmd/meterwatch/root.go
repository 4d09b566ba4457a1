package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "meterwatch",
	Short: "Single-phase energy meter poller",
	Long: `meterwatch polls a single-phase energy meter over a half-duplex
RS-485 serial bus (Modbus RTU, FC03), decodes the register block into
physical units and republishes the latest reading as a key-protected
web dashboard and JSON endpoint.

Examples:
  # Run the daemon with a config file
  meterwatch serve --config /etc/meterwatch.yaml

  # One-shot reading, printed as a table
  meterwatch read --device /dev/ttyUSB0

  # One-shot reading as JSON
  meterwatch read --device /dev/ttyUSB0 -o json

  # Check a config file
  meterwatch config validate --config /etc/meterwatch.yaml`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(configCmd)
}
