// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Bits assigned to the flag register
const (
	CarryBit          = 1 << 0
	SubtractBit       = 1 << 1
	ParityOverflowBit = 1 << 2
	XBit              = 1 << 3
	HalfCarryBit      = 1 << 4
	YBit              = 1 << 5
	ZeroBit           = 1 << 6
	SignBit           = 1 << 7
)

// Flags contains the state of the Z80 flag register. X and Y are the
// undocumented copies of bits 3 and 5 of an instruction's result.
type Flags struct {
	Sign           bool // S: bit 7 of the result
	Zero           bool // Z: result was zero
	Y              bool // undocumented bit 5
	HalfCarry      bool // H: carry or borrow across bit 3
	X              bool // undocumented bit 3
	ParityOverflow bool // P/V: parity or signed overflow
	Subtract       bool // N: last arithmetic operation was a subtraction
	Carry          bool // C: carry or borrow out of bit 7
}

// Byte packs the flags into the F register byte.
func (f Flags) Byte() byte {
	var b byte
	if f.Carry {
		b |= CarryBit
	}
	if f.Subtract {
		b |= SubtractBit
	}
	if f.ParityOverflow {
		b |= ParityOverflowBit
	}
	if f.X {
		b |= XBit
	}
	if f.HalfCarry {
		b |= HalfCarryBit
	}
	if f.Y {
		b |= YBit
	}
	if f.Zero {
		b |= ZeroBit
	}
	if f.Sign {
		b |= SignBit
	}
	return b
}

// SetByte unpacks an F register byte into the flags.
func (f *Flags) SetByte(b byte) {
	f.Carry = b&CarryBit != 0
	f.Subtract = b&SubtractBit != 0
	f.ParityOverflow = b&ParityOverflowBit != 0
	f.X = b&XBit != 0
	f.HalfCarry = b&HalfCarryBit != 0
	f.Y = b&YBit != 0
	f.Zero = b&ZeroBit != 0
	f.Sign = b&SignBit != 0
}

// Copy the undocumented X and Y flags from bits 3 and 5 of 'v'.
func (f *Flags) setXY(v byte) {
	f.X = v&XBit != 0
	f.Y = v&YBit != 0
}

// Update the sign, zero and undocumented flags from the result 'v'.
func (f *Flags) setSZXY(v byte) {
	f.Sign = v&0x80 != 0
	f.Zero = v == 0
	f.setXY(v)
}

// Update S, Z, X, Y and parity from the result 'v'.
func (f *Flags) setSZP(v byte) {
	f.setSZXY(v)
	f.ParityOverflow = parity[v]
}
