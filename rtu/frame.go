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
	"encoding/binary"
	"fmt"
)

// BuildReadHoldingRegistersADU builds the 8-byte FC03 request frame:
// slave id, function code, start address (big-endian), register count
// (big-endian), CRC (low byte then high byte).
func BuildReadHoldingRegistersADU(slave SlaveID, addr, qty uint16) ([]byte, error) {
	if qty < 1 || qty > MaxQuantityRegisters {
		return nil, fmt.Errorf("%w: quantity must be 1-%d", ErrInvalidQuantity, MaxQuantityRegisters)
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return nil, fmt.Errorf("%w: address range exceeds 65535", ErrInvalidAddress)
	}
	adu := make([]byte, RequestADUSize-CRCSize, RequestADUSize)
	adu[0] = byte(slave)
	adu[1] = byte(FuncReadHoldingRegisters)
	binary.BigEndian.PutUint16(adu[2:4], addr)
	binary.BigEndian.PutUint16(adu[4:6], qty)
	return AppendCRC(adu), nil
}

// ResponseHeader is the first three bytes of a normal response: slave
// id, function code and announced data byte count. For an exception
// response the third byte is the exception code instead.
type ResponseHeader struct {
	SlaveID  SlaveID
	Function FunctionCode
	Third    uint8
}

// ParseResponseHeader decodes the 3-byte response header.
func ParseResponseHeader(hdr []byte) (ResponseHeader, error) {
	if len(hdr) < ResponseHeaderSize {
		return ResponseHeader{}, fmt.Errorf("%w: header too short", ErrInvalidResponse)
	}
	return ResponseHeader{
		SlaveID:  SlaveID(hdr[0]),
		Function: FunctionCode(hdr[1]),
		Third:    hdr[2],
	}, nil
}

// IsException reports whether the response announces a slave-reported
// protocol exception.
func (h ResponseHeader) IsException() bool {
	return uint8(h.Function)&exceptionBit != 0
}

// Exception returns the exception carried by the header. Only
// meaningful when IsException is true.
func (h ResponseHeader) Exception() *ModbusError {
	return NewModbusError(FunctionCode(uint8(h.Function)&^uint8(exceptionBit)), ExceptionCode(h.Third))
}

// ByteCount returns the announced data length of a normal response.
func (h ResponseHeader) ByteCount() int {
	return int(h.Third)
}

// ResponseLength returns the total frame length implied by the header:
// header, data, CRC.
func (h ResponseHeader) ResponseLength() int {
	return ResponseHeaderSize + h.ByteCount() + CRCSize
}

// ParseRegistersADU validates a complete FC03 response frame and
// decodes its register payload. Each register is formed high byte then
// low byte, in request order; at most qty registers are returned.
func ParseRegistersADU(adu []byte, qty uint16) ([]uint16, error) {
	if len(adu) < ResponseHeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: frame too short", ErrInvalidResponse)
	}
	if !VerifyCRC(adu) {
		return nil, fmt.Errorf("%w: frame % x", ErrInvalidCRC, adu)
	}

	byteCount := int(adu[2])
	if byteCount%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrInvalidResponse, byteCount)
	}
	if len(adu) != ResponseHeaderSize+byteCount+CRCSize {
		return nil, fmt.Errorf("%w: length %d does not match byte count %d",
			ErrInvalidResponse, len(adu), byteCount)
	}

	n := byteCount / 2
	if n > int(qty) {
		n = int(qty)
	}
	regs := make([]uint16, n)
	for i := 0; i < n; i++ {
		regs[i] = binary.BigEndian.Uint16(adu[ResponseHeaderSize+i*2:])
	}
	return regs, nil
}
