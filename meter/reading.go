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

// Package meter maps the holding-register window of a single-phase
// energy meter onto typed readings in physical units.
package meter

import "time"

// Reading is one decoded snapshot of the meter.
type Reading struct {
	Voltage       float64 // volts
	Current       float64 // amps
	Power         float64 // watts, negative when flow is reversed
	ForwardEnergy float64 // cumulative kWh
	ReverseEnergy float64 // cumulative kWh
	PowerFactor   float64
	Frequency     float64 // Hz
	Reverse       bool    // true when energy is flowing back to the grid
	Valid         bool
	At            time.Time
}

// Direction returns the flow direction as a wire-format string.
func (r Reading) Direction() string {
	if r.Reverse {
		return "reverse"
	}
	return "forward"
}
