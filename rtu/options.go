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

package rtu

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

type clientOptions struct {
	slaveID         SlaveID
	timeout         time.Duration
	settleDelay     time.Duration
	turnaroundDelay time.Duration
	logger          *slog.Logger
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		slaveID:         1,
		timeout:         DefaultTimeout,
		settleDelay:     DefaultSettleDelay,
		turnaroundDelay: DefaultTurnaroundDelay,
		logger:          slog.Default(),
	}
}

// WithSlaveID sets the slave address for requests.
func WithSlaveID(id SlaveID) Option {
	return func(o *clientOptions) {
		o.slaveID = id
	}
}

// WithTimeout sets the response deadline, measured from the end of
// request transmission.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithSettleDelay sets the pause between draining the inbound buffer
// and transmitting.
func WithSettleDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		o.settleDelay = d
	}
}

// WithTurnaroundDelay sets the pause between the end of transmission
// and the first read.
func WithTurnaroundDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		o.turnaroundDelay = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}
