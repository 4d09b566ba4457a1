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

// Package poller drives the fixed-interval poll cycle: one FC03
// transaction plus decode per tick, committed to the store.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeo-scada/meterwatch/internal/store"
	"github.com/edgeo-scada/meterwatch/meter"
	"github.com/edgeo-scada/meterwatch/rtu"
)

// Client abstracts the Modbus operations the poller needs.
type Client interface {
	ReadHoldingRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error)
}

// FrequencySource says where the line-frequency field comes from.
type FrequencySource string

const (
	// FrequencyFixed reports the configured fallback on every cycle.
	FrequencyFixed FrequencySource = "fixed"

	// FrequencyRegister reads the dedicated frequency register each
	// cycle, falling back when the meter rejects it.
	FrequencyRegister FrequencySource = "register"
)

// Config is the runtime configuration of the poll cycle.
type Config struct {
	Block    meter.Block
	Interval time.Duration

	FrequencySource   FrequencySource
	FrequencyAddress  uint16
	FrequencyFallback float64
}

// Poller runs the poll cycle. Polls never overlap: the transaction is
// synchronous and the next tick is not serviced until it returns.
type Poller struct {
	cfg    Config
	client Client
	store  *store.Store
	logger *slog.Logger
}

// New creates a poller with immutable config.
func New(cfg Config, client Client, st *store.Store, logger *slog.Logger) (*Poller, error) {
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if st == nil {
		return nil, errors.New("poller: store required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Block.Count == 0 {
		cfg.Block = meter.DefaultBlock
	}
	if cfg.FrequencySource == "" {
		cfg.FrequencySource = FrequencyFixed
	}
	if cfg.FrequencyFallback == 0 {
		cfg.FrequencyFallback = meter.DefaultFrequency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, client: client, store: st, logger: logger}, nil
}

// Run polls at the configured interval until ctx is cancelled. The
// first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("poller started",
		slog.Duration("interval", p.cfg.Interval),
		slog.String("base", fmt.Sprintf("0x%04X", p.cfg.Block.Base)),
		slog.Uint64("count", uint64(p.cfg.Block.Count)))

	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs exactly one poll cycle: transaction, decode,
// commit. Any failure marks the cycle failed; there is no in-cycle
// retry.
func (p *Poller) PollOnce(ctx context.Context) error {
	regs, err := p.client.ReadHoldingRegisters(ctx, p.cfg.Block.Base, p.cfg.Block.Count)
	if err != nil {
		p.store.Fail()
		p.logger.Warn("poll failed", slog.String("error", err.Error()))
		return err
	}

	reading, err := meter.Decode(regs)
	if err != nil {
		p.store.Fail()
		p.logger.Warn("decode failed", slog.String("error", err.Error()))
		return err
	}

	reading.Frequency = p.frequency(ctx)

	p.store.Commit(reading)

	p.logger.Debug("poll complete",
		slog.Float64("voltage", reading.Voltage),
		slog.Float64("current", reading.Current),
		slog.Float64("power", reading.Power),
		slog.String("direction", reading.Direction()))

	return nil
}

// frequency resolves the line frequency for this cycle. A rejected or
// failed register read falls back rather than failing the cycle.
func (p *Poller) frequency(ctx context.Context) float64 {
	if p.cfg.FrequencySource != FrequencyRegister {
		return p.cfg.FrequencyFallback
	}

	addr := p.cfg.FrequencyAddress
	if addr == 0 {
		addr = meter.FrequencyRegister
	}

	regs, err := p.client.ReadHoldingRegisters(ctx, addr, 1)
	if err != nil || len(regs) < 1 {
		if rtu.IsIllegalDataAddress(err) {
			p.logger.Debug("frequency register unsupported, using fallback")
		} else if err != nil {
			p.logger.Debug("frequency read failed, using fallback",
				slog.String("error", err.Error()))
		}
		return p.cfg.FrequencyFallback
	}
	return meter.DecodeFrequency(regs[0])
}
