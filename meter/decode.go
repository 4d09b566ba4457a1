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

package meter

import (
	"errors"
	"time"
)

// Block describes a contiguous holding-register window.
type Block struct {
	Base  uint16
	Count uint16
}

// DefaultBlock is the measurement window of the meter: nine registers
// starting at 0x0048.
var DefaultBlock = Block{Base: 0x0048, Count: RegisterCount}

// Register layout within the measurement block, as offsets from Base.
const (
	regVoltage     = 0 // volts * 100
	regCurrent     = 1 // amps * 100
	regPower       = 2 // watts, unsigned magnitude
	regFwdEnergyHi = 3 // forward kWh * 800, high word
	regFwdEnergyLo = 4 // forward kWh * 800, low word
	regPowerFactor = 5 // power factor * 1000
	regRevEnergyHi = 6 // reverse kWh * 800, high word
	regRevEnergyLo = 7 // reverse kWh * 800, low word
	regDirection   = 8 // nonzero high byte = reverse flow

	// RegisterCount is the number of registers the decoder requires.
	RegisterCount = 9
)

// Scale factors applied to the raw register values.
const (
	voltageScale     = 100.0
	currentScale     = 100.0
	energyScale      = 800.0
	powerFactorScale = 1000.0
	frequencyScale   = 100.0
)

// FrequencyRegister is the dedicated line-frequency register
// (Hz * 100). Some hardware revisions answer it with an illegal data
// address exception, so reading it is optional; see DefaultFrequency.
const FrequencyRegister uint16 = 0x0051

// DefaultFrequency is reported when the frequency register is not
// read, either by configuration or because the meter rejects it.
const DefaultFrequency = 50.0

// ErrInsufficientRegisters indicates fewer registers than the
// measurement block requires were supplied; no partial reading is
// produced.
var ErrInsufficientRegisters = errors.New("meter: insufficient registers")

// Decode maps the raw measurement block onto a Reading. The returned
// reading carries DefaultFrequency; callers that read the frequency
// register overwrite the field afterwards.
func Decode(regs []uint16) (Reading, error) {
	if len(regs) < RegisterCount {
		return Reading{}, ErrInsufficientRegisters
	}

	reverse := regs[regDirection]>>8 != 0
	power := float64(regs[regPower])
	if reverse {
		power = -power
	}

	return Reading{
		Voltage:       float64(regs[regVoltage]) / voltageScale,
		Current:       float64(regs[regCurrent]) / currentScale,
		Power:         power,
		ForwardEnergy: float64(uint32(regs[regFwdEnergyHi])<<16|uint32(regs[regFwdEnergyLo])) / energyScale,
		ReverseEnergy: float64(uint32(regs[regRevEnergyHi])<<16|uint32(regs[regRevEnergyLo])) / energyScale,
		PowerFactor:   float64(regs[regPowerFactor]) / powerFactorScale,
		Frequency:     DefaultFrequency,
		Reverse:       reverse,
		Valid:         true,
		At:            time.Now(),
	}, nil
}

// DecodeFrequency converts the raw frequency register to Hz.
func DecodeFrequency(raw uint16) float64 {
	return float64(raw) / frequencyScale
}
