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

// Package transport provides the serial transport backing the RTU
// client: an RS-485 UART opened through goburrow/serial, with
// deadline-bounded reads layered over the port's short read timeout.
package transport

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// portReadTimeout is the per-call read timeout configured on the port.
// Deadlines are enforced by looping reads, so this only sets the
// granularity at which Drain and ReadFull give up waiting.
const portReadTimeout = 20 * time.Millisecond

// SerialConfig holds the serial link parameters.
type SerialConfig struct {
	Device   string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// DefaultSerialConfig returns the meter's link parameters: 9600 8N1.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:   device,
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	}
}

// Serial is a half-duplex serial transport.
type Serial struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the serial device.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Device == "" {
		return nil, errors.New("transport: device cannot be empty")
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  portReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}

	return &Serial{port: port}, nil
}

// Drain discards any bytes already buffered on the inbound side. It
// returns once a read comes back empty.
func (s *Serial) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 64)
	for {
		n, err := s.port.Read(buf)
		if errors.Is(err, serial.ErrTimeout) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("transport: drain: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// Write transmits p in full.
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		written += n
	}
	return nil
}

// ReadFull fills p, accumulating bytes as they arrive, or returns an
// error wrapping os.ErrDeadlineExceeded once the deadline passes.
func (s *Serial) ReadFull(p []byte, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filled := 0
	for filled < len(p) {
		if !time.Now().Before(deadline) {
			return fmt.Errorf("transport: read %d/%d bytes: %w", filled, len(p), os.ErrDeadlineExceeded)
		}
		n, err := s.port.Read(p[filled:])
		filled += n
		if err != nil && !errors.Is(err, serial.ErrTimeout) {
			return fmt.Errorf("transport: read: %w", err)
		}
	}
	return nil
}

// Close releases the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
