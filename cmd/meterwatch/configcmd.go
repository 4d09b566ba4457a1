package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgeo-scada/meterwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		fmt.Println("config OK")
		fmt.Printf("  Device: %s (%d %d%s%d)\n", cfg.Serial.Device,
			cfg.Serial.BaudRate, cfg.Serial.DataBits, cfg.Serial.Parity, cfg.Serial.StopBits)
		fmt.Printf("  Slave: %d, block 0x%04X+%d\n", cfg.Meter.SlaveID,
			cfg.Meter.BaseAddress, cfg.Meter.RegisterCount)
		fmt.Printf("  Poll: every %v, timeout %v\n", cfg.Meter.PollInterval, cfg.Meter.Timeout)
		fmt.Printf("  HTTP: %s\n", cfg.HTTP.Listen)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
