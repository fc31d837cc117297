// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// A Bank holds one of the two sets of Z80 general-purpose registers.
type Bank struct {
	A, B, C, D, E, H, L byte
	F                   Flags
}

// AF returns the accumulator and flags as a 16-bit value.
func (b *Bank) AF() uint16 { return uint16(b.A)<<8 | uint16(b.F.Byte()) }

// BC returns the BC register pair.
func (b *Bank) BC() uint16 { return uint16(b.B)<<8 | uint16(b.C) }

// DE returns the DE register pair.
func (b *Bank) DE() uint16 { return uint16(b.D)<<8 | uint16(b.E) }

// HL returns the HL register pair.
func (b *Bank) HL() uint16 { return uint16(b.H)<<8 | uint16(b.L) }

// Registers contains the state of all Z80 registers.
//
// The two banks are never copied. EX AF,AF' flips AFBank, which selects
// the bank supplying A and F, and EXX flips GPBank, which selects the bank
// supplying B, C, D, E, H and L.
type Registers struct {
	Banks  [2]Bank
	AFBank byte   // index of the bank holding the active A and F
	GPBank byte   // index of the bank holding the active BC, DE and HL
	IX     uint16 // index register X
	IY     uint16 // index register Y
	I      byte   // interrupt vector base
	R      byte   // memory refresh counter
	SP     uint16 // stack pointer
	PC     uint16 // program counter
}

func (r *Registers) af() *Bank { return &r.Banks[r.AFBank&1] }
func (r *Registers) gp() *Bank { return &r.Banks[r.GPBank&1] }

// Init initializes all registers to zero, selects bank 0 for all
// registers and sets SP to $FFFF.
func (r *Registers) Init() {
	*r = Registers{SP: 0xffff}
}

// Main returns a copy of the active register set.
func (r *Registers) Main() Bank {
	af, gp := r.af(), r.gp()
	return Bank{A: af.A, F: af.F, B: gp.B, C: gp.C, D: gp.D, E: gp.E, H: gp.H, L: gp.L}
}

// Alt returns a copy of the inactive (primed) register set.
func (r *Registers) Alt() Bank {
	af, gp := &r.Banks[(r.AFBank+1)&1], &r.Banks[(r.GPBank+1)&1]
	return Bank{A: af.A, F: af.F, B: gp.B, C: gp.C, D: gp.D, E: gp.E, H: gp.H, L: gp.L}
}

// ExchangeAF switches between AF and AF'.
func (r *Registers) ExchangeAF() { r.AFBank ^= 1 }

// Exchange switches between BC, DE, HL and BC', DE', HL'.
func (r *Registers) Exchange() { r.GPBank ^= 1 }

// Flags returns the active flag register.
func (r *Registers) Flags() *Flags { return &r.af().F }

func (r *Registers) A() byte { return r.af().A }
func (r *Registers) B() byte { return r.gp().B }
func (r *Registers) C() byte { return r.gp().C }
func (r *Registers) D() byte { return r.gp().D }
func (r *Registers) E() byte { return r.gp().E }
func (r *Registers) H() byte { return r.gp().H }
func (r *Registers) L() byte { return r.gp().L }

func (r *Registers) SetA(v byte) { r.af().A = v }
func (r *Registers) SetB(v byte) { r.gp().B = v }
func (r *Registers) SetC(v byte) { r.gp().C = v }
func (r *Registers) SetD(v byte) { r.gp().D = v }
func (r *Registers) SetE(v byte) { r.gp().E = v }
func (r *Registers) SetH(v byte) { r.gp().H = v }
func (r *Registers) SetL(v byte) { r.gp().L = v }

// AF returns the active accumulator and flags as a register pair.
func (r *Registers) AF() uint16 {
	af := r.af()
	return uint16(af.A)<<8 | uint16(af.F.Byte())
}

func (r *Registers) BC() uint16 { return r.gp().BC() }
func (r *Registers) DE() uint16 { return r.gp().DE() }
func (r *Registers) HL() uint16 { return r.gp().HL() }

// SetAF splits 'v' into the accumulator and the flag register.
func (r *Registers) SetAF(v uint16) {
	af := r.af()
	af.A = byte(v >> 8)
	af.F.SetByte(byte(v))
}

func (r *Registers) SetBC(v uint16) { gp := r.gp(); gp.B, gp.C = byte(v>>8), byte(v) }
func (r *Registers) SetDE(v uint16) { gp := r.gp(); gp.D, gp.E = byte(v>>8), byte(v) }
func (r *Registers) SetHL(v uint16) { gp := r.gp(); gp.H, gp.L = byte(v>>8), byte(v) }

func (r *Registers) IXH() byte { return byte(r.IX >> 8) }
func (r *Registers) IXL() byte { return byte(r.IX) }
func (r *Registers) IYH() byte { return byte(r.IY >> 8) }
func (r *Registers) IYL() byte { return byte(r.IY) }

func (r *Registers) SetIXH(v byte) { r.IX = uint16(v)<<8 | r.IX&0x00ff }
func (r *Registers) SetIXL(v byte) { r.IX = r.IX&0xff00 | uint16(v) }
func (r *Registers) SetIYH(v byte) { r.IY = uint16(v)<<8 | r.IY&0x00ff }
func (r *Registers) SetIYL(v byte) { r.IY = r.IY&0xff00 | uint16(v) }

// Increment the low 7 bits of the refresh register, keeping bit 7.
func (r *Registers) refresh(n byte) {
	r.R = r.R&0x80 | (r.R+n)&0x7f
}
