// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"errors"
	"fmt"
	"io"
)

// Errors
var (
	ErrLoadOverflow = errors.New("image does not fit in memory")
)

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) byte

	// LoadBytes loads multiple bytes from the address and stores them into
	// the buffer 'b'.
	LoadBytes(addr uint16, b []byte)

	// LoadAddress loads a little-endian 16-bit value from the requested
	// address and returns it.
	LoadAddress(addr uint16) uint16

	// StoreByte stores a byte to the requested address.
	StoreByte(addr uint16, v byte)

	// StoreBytes stores multiple bytes to the requested address.
	StoreBytes(addr uint16, b []byte)

	// StoreAddress stores a 16-bit value to the requested address in
	// little-endian order.
	StoreAddress(addr uint16, v uint16)
}

// FlatMemory represents a flat address space of up to 64K bytes with an
// optional write-protected ROM range.
//
// Reads past the end of the space return 0 and writes past the end are
// ignored. Multi-byte accesses that start inside the space wrap to address
// 0 at the top.
type FlatMemory struct {
	b        []byte
	rom      bool
	romStart uint16
	romEnd   uint16
}

// NewFlatMemory creates a new memory space of 'size' bytes. A size of 0
// or a size larger than 64K creates a full 64K space.
func NewFlatMemory(size int) *FlatMemory {
	if size <= 0 || size > 0x10000 {
		size = 0x10000
	}
	return &FlatMemory{b: make([]byte, size)}
}

// Size returns the number of addressable bytes.
func (m *FlatMemory) Size() int {
	return len(m.b)
}

// SetROM write-protects the address range [start, end].
func (m *FlatMemory) SetROM(start, end uint16) {
	if end < start {
		start, end = end, start
	}
	m.rom, m.romStart, m.romEnd = true, start, end
}

// ClearROM removes write protection.
func (m *FlatMemory) ClearROM() {
	m.rom = false
}

// ROM returns the write-protected range, if any.
func (m *FlatMemory) ROM() (start, end uint16, ok bool) {
	return m.romStart, m.romEnd, m.rom
}

func (m *FlatMemory) inROM(addr uint16) bool {
	return m.rom && addr >= m.romStart && addr <= m.romEnd
}

// Return the address 'n' bytes past 'addr', wrapping at the top of the
// space.
func (m *FlatMemory) offset(addr uint16, n int) uint16 {
	a := int(addr) + n
	if int(addr) < len(m.b) {
		a %= len(m.b)
	}
	return uint16(a)
}

// LoadByte loads a single byte from the address and returns it.
func (m *FlatMemory) LoadByte(addr uint16) byte {
	if int(addr) >= len(m.b) {
		return 0
	}
	return m.b[addr]
}

// LoadBytes loads multiple bytes from the address and returns them.
func (m *FlatMemory) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = m.LoadByte(m.offset(addr, i))
	}
}

// LoadAddress loads a little-endian 16-bit value from the requested
// address and returns it. This is the byte order used by the CPU.
func (m *FlatMemory) LoadAddress(addr uint16) uint16 {
	return uint16(m.LoadByte(addr)) | uint16(m.LoadByte(m.offset(addr, 1)))<<8
}

// LoadWord loads the two bytes at the address and returns them with the
// first byte in the high half. It is the byte-swapped LoadAddress.
func (m *FlatMemory) LoadWord(addr uint16) uint16 {
	return uint16(m.LoadByte(addr))<<8 | uint16(m.LoadByte(m.offset(addr, 1)))
}

// LoadDWord loads the four bytes at the address with the first byte in
// the most significant position.
func (m *FlatMemory) LoadDWord(addr uint16) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(m.LoadByte(m.offset(addr, i)))
	}
	return v
}

// LoadLEDWord loads the four bytes at the address in little-endian order.
func (m *FlatMemory) LoadLEDWord(addr uint16) uint32 {
	var v uint32
	for i := 3; i >= 0; i-- {
		v = v<<8 | uint32(m.LoadByte(m.offset(addr, i)))
	}
	return v
}

// StoreByte stores a byte at the requested address. Stores into ROM or
// past the end of the space are ignored.
func (m *FlatMemory) StoreByte(addr uint16, v byte) {
	if int(addr) >= len(m.b) || m.inROM(addr) {
		return
	}
	m.b[addr] = v
}

// StoreBytes stores multiple bytes to the requested address.
func (m *FlatMemory) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		m.StoreByte(m.offset(addr, i), v)
	}
}

// StoreAddress stores a 16-bit value to the requested address in
// little-endian order.
func (m *FlatMemory) StoreAddress(addr uint16, v uint16) {
	m.StoreByte(addr, byte(v))
	m.StoreByte(m.offset(addr, 1), byte(v>>8))
}

// StoreWord stores a 16-bit value with the high byte first, so that
// LoadWord returns it unchanged.
func (m *FlatMemory) StoreWord(addr uint16, v uint16) {
	m.StoreByte(addr, byte(v>>8))
	m.StoreByte(m.offset(addr, 1), byte(v))
}

// Load reads an image from 'r' and copies it into memory at 'origin'.
// The image is read completely before memory is modified, so a failed
// load leaves memory untouched. Load ignores ROM protection.
func (m *FlatMemory) Load(r io.Reader, origin uint16) error {
	image, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("load at $%04X: %w", origin, err)
	}
	if int(origin)+len(image) > len(m.b) {
		return fmt.Errorf("load %d bytes at $%04X: %w", len(image), origin, ErrLoadOverflow)
	}
	copy(m.b[origin:], image)
	return nil
}
