// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"bytes"
	"math"
)

// Buffer accumulates the little-endian wire format used throughout the
// CMSIS-DAP command set and the AP-MEM/SROM parameter blocks. Command
// builders use the Write* methods to assemble a payload in order; the
// transfer decode paths use the Read* methods to drain a response in
// the same order, one field at a time.
type Buffer struct {
	bytes.Buffer
}

func NewBuffer(initSize int) *Buffer {
	b := &Buffer{}
	b.Grow(initSize)
	return b
}

func (buf *Buffer) WriteUint32LE(value uint32) {
	buf.WriteByte(byte(value))
	buf.WriteByte(byte(value >> 8))
	buf.WriteByte(byte(value >> 16))
	buf.WriteByte(byte(value >> 24))
}

func (buf *Buffer) WriteUint16LE(value uint16) {
	buf.WriteByte(byte(value))
	buf.WriteByte(byte(value >> 8))
}

// ReadUint32LE drains the next 4 bytes and decodes them little-endian.
func (buf *Buffer) ReadUint32LE() uint32 {
	return convertToUint32(buf.Next(4))
}

// ReadUint16LE drains the next 2 bytes and decodes them little-endian.
func (buf *Buffer) ReadUint16LE() uint16 {
	return convertToUint16(buf.Next(2))
}

func convertToUint16(b []byte) uint16 {
	if len(b) > 1 {
		return uint16(b[0]) | (uint16(b[1]) << 8)
	}
	logger.Errorf("could not read little-endian uint16 from given buffer")
	return math.MaxUint16
}

func convertToUint32(b []byte) uint32 {
	if len(b) > 3 {
		return uint32(b[0]) | (uint32(b[1]) << 8) | (uint32(b[2]) << 16) | (uint32(b[3]) << 24)
	}
	logger.Errorf("could not read little-endian uint32 from given buffer")
	return math.MaxUint32
}

func le_to_h_u32(buffer []byte) uint32 {
	return uint32(buffer[0]) | uint32(buffer[1])<<8 | uint32(buffer[2])<<16 | uint32(buffer[3])<<24
}

func le_to_h_u16(buffer []byte) uint16 {
	return uint16(buffer[0]) | uint16(buffer[1])<<8
}

func uint32ToLittleEndian(buffer []byte, value uint32) {
	buffer[0] = byte(value)
	buffer[1] = byte(value >> 8)
	buffer[2] = byte(value >> 16)
	buffer[3] = byte(value >> 24)
}

func uint16ToLittleEndian(buffer []byte, value uint16) {
	buffer[0] = byte(value)
	buffer[1] = byte(value >> 8)
}
