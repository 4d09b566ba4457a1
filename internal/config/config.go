// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the meterwatch configuration from YAML, with
// METERWATCH_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	Meter  MeterConfig  `mapstructure:"meter"`
	HTTP   HTTPConfig   `mapstructure:"http"`
}

// SerialConfig holds the field-bus link parameters.
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// MeterConfig holds the meter addressing and poll cycle settings.
type MeterConfig struct {
	SlaveID       uint8         `mapstructure:"slave_id"`
	BaseAddress   uint16        `mapstructure:"base_address"`
	RegisterCount uint16        `mapstructure:"register_count"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`

	Frequency FrequencyConfig `mapstructure:"frequency"`
}

// FrequencyConfig controls where the line-frequency field comes from.
// The meter's dedicated frequency register is rejected by some
// hardware revisions, so the default source is the fixed fallback.
type FrequencyConfig struct {
	Source   string  `mapstructure:"source"` // "fixed" or "register"
	Address  uint16  `mapstructure:"address"`
	Fallback float64 `mapstructure:"fallback"`
}

// HTTPConfig holds the web surface settings.
type HTTPConfig struct {
	Listen    string `mapstructure:"listen"`
	AccessKey string `mapstructure:"access_key"`
}

// Default returns the built-in configuration: 9600 8N1, slave 1, nine
// registers at 0x0048, 3 s poll interval, 1 s transaction timeout.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:   "/dev/ttyUSB0",
			BaudRate: 9600,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		},
		Meter: MeterConfig{
			SlaveID:       1,
			BaseAddress:   0x0048,
			RegisterCount: 9,
			PollInterval:  3 * time.Second,
			Timeout:       1 * time.Second,
			Frequency: FrequencyConfig{
				Source:   "fixed",
				Fallback: 50.0,
			},
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
	}
}

// Load reads the configuration file at path (or the defaults when path
// is empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("METERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("serial.device", d.Serial.Device)
	v.SetDefault("serial.baud_rate", d.Serial.BaudRate)
	v.SetDefault("serial.data_bits", d.Serial.DataBits)
	v.SetDefault("serial.stop_bits", d.Serial.StopBits)
	v.SetDefault("serial.parity", d.Serial.Parity)

	v.SetDefault("meter.slave_id", d.Meter.SlaveID)
	v.SetDefault("meter.base_address", d.Meter.BaseAddress)
	v.SetDefault("meter.register_count", d.Meter.RegisterCount)
	v.SetDefault("meter.poll_interval", d.Meter.PollInterval)
	v.SetDefault("meter.timeout", d.Meter.Timeout)
	v.SetDefault("meter.frequency.source", d.Meter.Frequency.Source)
	v.SetDefault("meter.frequency.address", d.Meter.Frequency.Address)
	v.SetDefault("meter.frequency.fallback", d.Meter.Frequency.Fallback)

	v.SetDefault("http.listen", d.HTTP.Listen)
	v.SetDefault("http.access_key", d.HTTP.AccessKey)
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("config: serial.device is required")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("config: serial.baud_rate must be > 0")
	}
	switch c.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("config: serial.parity must be N, E or O")
	}
	if c.Meter.SlaveID == 0 {
		return fmt.Errorf("config: meter.slave_id must be 1-247")
	}
	if c.Meter.RegisterCount == 0 {
		return fmt.Errorf("config: meter.register_count must be > 0")
	}
	if c.Meter.PollInterval <= 0 {
		return fmt.Errorf("config: meter.poll_interval must be > 0")
	}
	if c.Meter.Timeout <= 0 {
		return fmt.Errorf("config: meter.timeout must be > 0")
	}
	switch c.Meter.Frequency.Source {
	case "fixed", "register":
	default:
		return fmt.Errorf("config: meter.frequency.source must be fixed or register")
	}
	if c.HTTP.Listen == "" {
		return fmt.Errorf("config: http.listen is required")
	}
	if c.HTTP.AccessKey == "" {
		return fmt.Errorf("config: http.access_key is required")
	}
	return nil
}
