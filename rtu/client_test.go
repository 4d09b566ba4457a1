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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// fakeTransport serves a scripted response. Bytes beyond the script
// never arrive: ReadFull reports a deadline error instead, which
// models a silent or slow slave.
type fakeTransport struct {
	response []byte
	pos      int

	drains  int
	written [][]byte
}

func (f *fakeTransport) Drain() error {
	f.drains++
	f.pos = 0
	return nil
}

func (f *fakeTransport) Write(p []byte) error {
	buf := make([]byte, len(p))
	copy(buf, p)
	f.written = append(f.written, buf)
	return nil
}

func (f *fakeTransport) ReadFull(p []byte, deadline time.Time) error {
	avail := len(f.response) - f.pos
	if avail < len(p) {
		n := copy(p, f.response[f.pos:])
		f.pos += n
		return fmt.Errorf("fake: read %d/%d bytes: %w", n, len(p), os.ErrDeadlineExceeded)
	}
	copy(p, f.response[f.pos:f.pos+len(p)])
	f.pos += len(p)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func newTestClient(t *testing.T, ft *fakeTransport) *Client {
	t.Helper()
	c, err := NewClient(ft,
		WithSlaveID(1),
		WithTimeout(50*time.Millisecond),
		WithSettleDelay(0),
		WithTurnaroundDelay(0),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

// Full frame for registers 0x1388, 0x0001 from slave 1.
func goodResponse() []byte {
	return AppendCRC([]byte{0x01, 0x03, 0x04, 0x13, 0x88, 0x00, 0x01})
}

func TestClient_ReadHoldingRegisters(t *testing.T) {
	ft := &fakeTransport{response: goodResponse()}
	c := newTestClient(t, ft)

	regs, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 2)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}

	if len(regs) != 2 || regs[0] != 0x1388 || regs[1] != 0x0001 {
		t.Errorf("Unexpected registers: %v", regs)
	}

	// The request must have been drained, then written byte-exact.
	if ft.drains != 1 {
		t.Errorf("Drains: expected 1, got %d", ft.drains)
	}
	if len(ft.written) != 1 {
		t.Fatalf("Writes: expected 1, got %d", len(ft.written))
	}
	expected := []byte{0x01, 0x03, 0x00, 0x48, 0x00, 0x02}
	if !VerifyCRC(ft.written[0]) {
		t.Errorf("Request CRC does not self-validate: % x", ft.written[0])
	}
	if !bytes.Equal(ft.written[0][:6], expected) {
		t.Errorf("Request: expected % x, got % x", expected, ft.written[0][:6])
	}

	if c.Metrics().RequestsSuccess.Value() != 1 {
		t.Errorf("RequestsSuccess: expected 1, got %d", c.Metrics().RequestsSuccess.Value())
	}
}

func TestClient_HeaderTimeout(t *testing.T) {
	ft := &fakeTransport{response: nil} // silent slave
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 9)
	if !errors.Is(err, ErrHeaderTimeout) {
		t.Fatalf("Expected ErrHeaderTimeout, got %v", err)
	}
	if c.Metrics().Timeouts.Value() != 1 {
		t.Errorf("Timeouts: expected 1, got %d", c.Metrics().Timeouts.Value())
	}
}

func TestClient_BodyTimeout(t *testing.T) {
	// Header announces 18 data bytes but only 4 arrive.
	ft := &fakeTransport{response: []byte{0x01, 0x03, 0x12, 0x5D, 0xC0, 0x03, 0xE8}}
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 9)
	if !errors.Is(err, ErrBodyTimeout) {
		t.Fatalf("Expected ErrBodyTimeout, got %v", err)
	}
	if c.Metrics().Timeouts.Value() != 1 {
		t.Errorf("Timeouts: expected 1, got %d", c.Metrics().Timeouts.Value())
	}
}

func TestClient_ProtocolException(t *testing.T) {
	// Exception: illegal data address. The client fails fast on the
	// header; the CRC tail stays on the line for the next drain.
	ft := &fakeTransport{response: []byte{0x01, 0x83, 0x02, 0xC0, 0xF1}}
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 9)
	if !IsIllegalDataAddress(err) {
		t.Fatalf("Expected illegal data address exception, got %v", err)
	}
	if c.Metrics().Exceptions.Value() != 1 {
		t.Errorf("Exceptions: expected 1, got %d", c.Metrics().Exceptions.Value())
	}
}

func TestClient_ResponseTooLarge(t *testing.T) {
	// Announced byte count would need a 257-byte frame. The transport
	// must not be read past the header.
	ft := &fakeTransport{response: []byte{0x01, 0x03, 0xFC}}
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 9)
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("Expected ErrResponseTooLarge, got %v", err)
	}
}

func TestClient_CRCMismatch(t *testing.T) {
	resp := goodResponse()
	resp[len(resp)-1] ^= 0x01
	ft := &fakeTransport{response: resp}
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 2)
	if !errors.Is(err, ErrInvalidCRC) {
		t.Fatalf("Expected ErrInvalidCRC, got %v", err)
	}
	if c.Metrics().CRCErrors.Value() != 1 {
		t.Errorf("CRCErrors: expected 1, got %d", c.Metrics().CRCErrors.Value())
	}
}

func TestClient_SlaveIDMismatch(t *testing.T) {
	resp := AppendCRC([]byte{0x02, 0x03, 0x04, 0x13, 0x88, 0x00, 0x01})
	ft := &fakeTransport{response: resp}
	c := newTestClient(t, ft)

	_, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 2)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("Expected ErrInvalidResponse, got %v", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	ft := &fakeTransport{response: goodResponse()}
	c := newTestClient(t, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.ReadHoldingRegisters(ctx, 0x0048, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestClient_Closed(t *testing.T) {
	ft := &fakeTransport{response: goodResponse()}
	c := newTestClient(t, ft)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := c.ReadHoldingRegisters(context.Background(), 0x0048, 2); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}
