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

// Package rtu implements a Modbus RTU master for a half-duplex serial
// field bus. It covers the read-holding-registers transaction (FC03)
// used by single-phase energy meters: frame construction, CRC16
// validation and deadline-bounded response assembly.
package rtu

import (
	"time"
)

// SlaveID represents the Modbus slave address on a shared serial bus.
type SlaveID uint8

// FunctionCode represents a Modbus function code.
type FunctionCode uint8

// Supported function codes.
const (
	FuncReadHoldingRegisters FunctionCode = 0x03
)

// exceptionBit is set in the function code of an exception response.
const exceptionBit = 0x80

// Protocol constants.
const (
	// MaxADUSize is the maximum size of an RTU application data unit.
	MaxADUSize = 256

	// RequestADUSize is the fixed size of a read request ADU:
	// slave id, function code, address (2), quantity (2), CRC (2).
	RequestADUSize = 8

	// ResponseHeaderSize covers slave id, function code and byte count.
	ResponseHeaderSize = 3

	// CRCSize is the size of the trailing checksum.
	CRCSize = 2

	// MaxQuantityRegisters is the maximum number of registers per read.
	MaxQuantityRegisters = 125

	// DefaultTimeout bounds response assembly, measured from the end of
	// request transmission.
	DefaultTimeout = 1 * time.Second

	// DefaultSettleDelay is the pause after draining the inbound buffer
	// and before transmitting, letting the bus turn around.
	DefaultSettleDelay = 10 * time.Millisecond

	// DefaultTurnaroundDelay is the pause after transmission completes
	// and before the first read.
	DefaultTurnaroundDelay = 5 * time.Millisecond
)

// Transport is a half-duplex byte transport. Writes must complete
// physically before returning so the line is released for the slave's
// response; reads are bounded by an absolute deadline.
type Transport interface {
	// Drain discards any stale bytes buffered on the inbound side,
	// such as the tail of a late or malformed previous response.
	Drain() error

	// Write transmits p in full.
	Write(p []byte) error

	// ReadFull fills p or fails. When the deadline passes first it
	// returns an error wrapping os.ErrDeadlineExceeded.
	ReadFull(p []byte, deadline time.Time) error

	// Close releases the underlying port.
	Close() error
}

// String returns the string representation of a FunctionCode.
func (fc FunctionCode) String() string {
	switch fc {
	case FuncReadHoldingRegisters:
		return "ReadHoldingRegisters"
	default:
		return "Unknown"
	}
}
