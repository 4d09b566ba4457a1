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

package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgeo-scada/meterwatch/internal/store"
	"github.com/edgeo-scada/meterwatch/meter"
	"github.com/edgeo-scada/meterwatch/rtu"
)

// fakeClient answers block reads with canned registers and single-reg
// reads from a separate map, so the frequency path can be scripted
// independently.
type fakeClient struct {
	blockRegs []uint16
	blockErr  error

	single    map[uint16][]uint16
	singleErr error

	calls int
}

func (f *fakeClient) ReadHoldingRegisters(_ context.Context, addr, qty uint16) ([]uint16, error) {
	f.calls++
	if qty == 1 {
		if f.singleErr != nil {
			return nil, f.singleErr
		}
		if regs, ok := f.single[addr]; ok {
			return regs, nil
		}
		return nil, rtu.NewModbusError(rtu.FuncReadHoldingRegisters, rtu.ExceptionIllegalDataAddress)
	}
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return f.blockRegs, nil
}

var testBlock = []uint16{24000, 1000, 1500, 0, 40000, 950, 0, 20000, 0}

func newTestPoller(t *testing.T, cfg Config, client Client, st *store.Store) *Poller {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	p, err := New(cfg, client, st, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestPollOnce_Success(t *testing.T) {
	st := store.New()
	fc := &fakeClient{blockRegs: testBlock}
	p := newTestPoller(t, Config{}, fc, st)

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	snap := st.Snapshot()
	if !snap.Reading.Valid {
		t.Error("Reading must be valid")
	}
	if snap.Reading.Voltage != 240.0 {
		t.Errorf("Voltage: expected 240.0, got %v", snap.Reading.Voltage)
	}
	if snap.Reading.Frequency != meter.DefaultFrequency {
		t.Errorf("Frequency: expected fallback %v, got %v", meter.DefaultFrequency, snap.Reading.Frequency)
	}
	if snap.Reads != 1 || snap.Errors != 0 {
		t.Errorf("Counters: expected 1/0, got %d/%d", snap.Reads, snap.Errors)
	}
	if fc.calls != 1 {
		t.Errorf("Fixed frequency source must not issue a second read, got %d calls", fc.calls)
	}
}

func TestPollOnce_TransactionFailure(t *testing.T) {
	st := store.New()
	fc := &fakeClient{blockRegs: testBlock}
	p := newTestPoller(t, Config{}, fc, st)

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	fc.blockErr = rtu.ErrHeaderTimeout
	if err := p.PollOnce(context.Background()); !errors.Is(err, rtu.ErrHeaderTimeout) {
		t.Fatalf("Expected ErrHeaderTimeout, got %v", err)
	}

	snap := st.Snapshot()
	if snap.Reading.Valid {
		t.Error("Reading must be invalid after a failed poll")
	}
	// Last good numerics survive a failed cycle.
	if snap.Reading.Voltage != 240.0 {
		t.Errorf("Stale voltage lost: got %v", snap.Reading.Voltage)
	}
	if snap.Reads != 1 || snap.Errors != 1 {
		t.Errorf("Counters: expected 1/1, got %d/%d", snap.Reads, snap.Errors)
	}
}

func TestPollOnce_DecodeFailure(t *testing.T) {
	st := store.New()
	fc := &fakeClient{blockRegs: []uint16{24000, 1000}} // short block
	p := newTestPoller(t, Config{}, fc, st)

	if err := p.PollOnce(context.Background()); !errors.Is(err, meter.ErrInsufficientRegisters) {
		t.Fatalf("Expected ErrInsufficientRegisters, got %v", err)
	}

	snap := st.Snapshot()
	if snap.Errors != 1 {
		t.Errorf("Errors: expected 1, got %d", snap.Errors)
	}
}

func TestPollOnce_FrequencyRegister(t *testing.T) {
	st := store.New()
	fc := &fakeClient{
		blockRegs: testBlock,
		single:    map[uint16][]uint16{meter.FrequencyRegister: {5003}},
	}
	p := newTestPoller(t, Config{FrequencySource: FrequencyRegister}, fc, st)

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	snap := st.Snapshot()
	if snap.Reading.Frequency != 50.03 {
		t.Errorf("Frequency: expected 50.03, got %v", snap.Reading.Frequency)
	}
}

func TestPollOnce_FrequencyRegisterRejected(t *testing.T) {
	// The meter answers the frequency register with an illegal data
	// address exception; the cycle still commits with the fallback.
	st := store.New()
	fc := &fakeClient{blockRegs: testBlock, single: map[uint16][]uint16{}}
	p := newTestPoller(t, Config{
		FrequencySource:   FrequencyRegister,
		FrequencyFallback: 60.0,
	}, fc, st)

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	snap := st.Snapshot()
	if !snap.Reading.Valid {
		t.Error("Reading must stay valid when only the frequency read fails")
	}
	if snap.Reading.Frequency != 60.0 {
		t.Errorf("Frequency: expected fallback 60.0, got %v", snap.Reading.Frequency)
	}
}

func TestNew_Validation(t *testing.T) {
	st := store.New()
	fc := &fakeClient{}

	if _, err := New(Config{Interval: time.Second}, nil, st, nil); err == nil {
		t.Error("Expected error for nil client")
	}
	if _, err := New(Config{Interval: time.Second}, fc, nil, nil); err == nil {
		t.Error("Expected error for nil store")
	}
	if _, err := New(Config{}, fc, st, nil); err == nil {
		t.Error("Expected error for zero interval")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := store.New()
	fc := &fakeClient{blockRegs: testBlock}
	p := newTestPoller(t, Config{Interval: 10 * time.Millisecond}, fc, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if snap := st.Snapshot(); snap.Reads < 2 {
		t.Errorf("Expected at least 2 polls, got %d", snap.Reads)
	}
}
