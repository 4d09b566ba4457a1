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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Client is a Modbus RTU master bound to a single slave on a
// half-duplex serial bus. One transaction is in flight at a time; a
// failed transaction is not retried, the next poll cycle is the retry
// mechanism.
type Client struct {
	transport Transport
	opts      *clientOptions

	mu      sync.Mutex
	closed  bool
	metrics *Metrics
	logger  *slog.Logger
}

// NewClient creates a new RTU client over the given transport.
func NewClient(transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("rtu: transport cannot be nil")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Client{
		transport: transport,
		opts:      options,
		metrics:   NewMetrics(),
		logger:    options.logger,
	}, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.transport.Close()
}

// Metrics returns the client metrics.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// SlaveID returns the configured slave address.
func (c *Client) SlaveID() SlaveID {
	return c.opts.slaveID
}

// ReadHoldingRegisters performs one FC03 transaction and returns qty
// registers starting at addr. The serial line is held for at most the
// configured timeout past the end of transmission.
func (c *Client) ReadHoldingRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error) {
	adu, err := BuildReadHoldingRegistersADU(c.opts.slaveID, addr, qty)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	c.metrics.RequestsTotal.Add(1)

	regs, err := c.transact(ctx, adu, qty)
	if err != nil {
		c.metrics.RequestsErrors.Add(1)
		switch {
		case IsTimeout(err):
			c.metrics.Timeouts.Add(1)
		case errors.Is(err, ErrInvalidCRC):
			c.metrics.CRCErrors.Add(1)
		default:
			var modbusErr *ModbusError
			if errors.As(err, &modbusErr) {
				c.metrics.Exceptions.Add(1)
			}
		}
		return nil, err
	}

	duration := time.Since(start)
	c.metrics.RequestsSuccess.Add(1)
	c.metrics.Latency.Observe(duration)

	c.logger.Debug("transaction complete",
		slog.Uint64("addr", uint64(addr)),
		slog.Int("registers", len(regs)),
		slog.Duration("duration", duration))

	return regs, nil
}

func (c *Client) transact(ctx context.Context, adu []byte, qty uint16) ([]uint16, error) {
	// A previous malformed or late response may have left bytes on the
	// line; they would desynchronise this transaction's header read.
	if err := c.transport.Drain(); err != nil {
		return nil, fmt.Errorf("rtu: drain: %w", err)
	}
	if err := sleepCtx(ctx, c.opts.settleDelay); err != nil {
		return nil, err
	}

	c.logger.Debug("send", slog.String("frame", fmt.Sprintf("% x", adu)))
	if err := c.transport.Write(adu); err != nil {
		return nil, fmt.Errorf("rtu: write: %w", err)
	}

	// The timeout window opens when transmission ends, not when the
	// transaction started.
	deadline := time.Now().Add(c.opts.timeout)

	if err := sleepCtx(ctx, c.opts.turnaroundDelay); err != nil {
		return nil, err
	}

	resp := make([]byte, MaxADUSize)
	if err := c.transport.ReadFull(resp[:ResponseHeaderSize], deadline); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrHeaderTimeout
		}
		return nil, fmt.Errorf("rtu: read header: %w", err)
	}

	hdr, err := ParseResponseHeader(resp[:ResponseHeaderSize])
	if err != nil {
		return nil, err
	}
	if hdr.SlaveID != c.opts.slaveID {
		return nil, fmt.Errorf("%w: slave id mismatch (expected %d, got %d)",
			ErrInvalidResponse, c.opts.slaveID, hdr.SlaveID)
	}

	// Exception frames carry the code in the third header byte. Fail
	// fast; the unread CRC bytes are drained before the next request.
	if hdr.IsException() {
		return nil, hdr.Exception()
	}

	total := hdr.ResponseLength()
	if total > len(resp) {
		return nil, fmt.Errorf("%w: announced %d bytes", ErrResponseTooLarge, hdr.ByteCount())
	}

	if err := c.transport.ReadFull(resp[ResponseHeaderSize:total], deadline); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrBodyTimeout
		}
		return nil, fmt.Errorf("rtu: read body: %w", err)
	}

	c.logger.Debug("recv", slog.String("frame", fmt.Sprintf("% x", resp[:total])))

	return ParseRegistersADU(resp[:total], qty)
}

// sleepCtx pauses for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
