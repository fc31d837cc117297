// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Add 'v' and an optional carry to the accumulator.
func (cpu *CPU) add8(v byte, carry bool) {
	f := cpu.Reg.Flags()
	a := cpu.Reg.A()
	c := boolToByte(carry)

	sum := uint16(a) + uint16(v) + uint16(c)
	r := byte(sum)

	f.setSZXY(r)
	f.HalfCarry = (a&0x0f)+(v&0x0f)+c > 0x0f
	f.ParityOverflow = (^(a ^ v))&(a^r)&0x80 != 0
	f.Subtract = false
	f.Carry = sum > 0xff
	cpu.Reg.SetA(r)
}

// Subtract 'v' and an optional borrow from the accumulator, updating the
// flags and returning the result without storing it.
func (cpu *CPU) sub8(v byte, carry bool) byte {
	f := cpu.Reg.Flags()
	a := cpu.Reg.A()
	c := int(boolToByte(carry))

	diff := int(a) - int(v) - c
	r := byte(diff)

	f.setSZXY(r)
	f.HalfCarry = int(a&0x0f)-int(v&0x0f)-c < 0
	f.ParityOverflow = (a^v)&(a^r)&0x80 != 0
	f.Subtract = true
	f.Carry = diff < 0
	return r
}

// Perform the 8-bit accumulator operation selected by 'op': ADD, ADC,
// SUB, SBC, AND, XOR, OR or CP.
func (cpu *CPU) arith(op byte, v byte) {
	f := cpu.Reg.Flags()
	a := cpu.Reg.A()

	switch op {
	case 0:
		cpu.add8(v, false)
	case 1:
		cpu.add8(v, f.Carry)
	case 2:
		cpu.Reg.SetA(cpu.sub8(v, false))
	case 3:
		cpu.Reg.SetA(cpu.sub8(v, f.Carry))
	case 4:
		cpu.logic(a&v, true)
	case 5:
		cpu.logic(a^v, false)
	case 6:
		cpu.logic(a|v, false)
	default:
		// Compare takes X and Y from the operand, not the result.
		cpu.sub8(v, false)
		f.setXY(v)
	}
}

// Store the result of a logical operation and update the flags.
func (cpu *CPU) logic(r byte, half bool) {
	f := cpu.Reg.Flags()
	f.setSZP(r)
	f.HalfCarry = half
	f.Subtract = false
	f.Carry = false
	cpu.Reg.SetA(r)
}

// Increment 'v', leaving the carry flag alone.
func (cpu *CPU) inc8(v byte) byte {
	f := cpu.Reg.Flags()
	r := v + 1
	f.setSZXY(r)
	f.HalfCarry = v&0x0f == 0x0f
	f.ParityOverflow = v == 0x7f
	f.Subtract = false
	return r
}

// Decrement 'v', leaving the carry flag alone.
func (cpu *CPU) dec8(v byte) byte {
	f := cpu.Reg.Flags()
	r := v - 1
	f.setSZXY(r)
	f.HalfCarry = v&0x0f == 0
	f.ParityOverflow = v == 0x80
	f.Subtract = true
	return r
}

// Add two 16-bit values the way ADD HL,rr does. Only H, N, C and the
// undocumented X and Y flags change.
func (cpu *CPU) add16(a, b uint16) uint16 {
	f := cpu.Reg.Flags()
	sum := uint32(a) + uint32(b)
	r := uint16(sum)
	f.setXY(byte(r >> 8))
	f.HalfCarry = (a&0x0fff)+(b&0x0fff) > 0x0fff
	f.Subtract = false
	f.Carry = sum > 0xffff
	return r
}

// Add two 16-bit values and the carry flag, updating every flag.
func (cpu *CPU) adc16(a, b uint16) uint16 {
	f := cpu.Reg.Flags()
	c := uint32(boolToByte(f.Carry))
	sum := uint32(a) + uint32(b) + c
	r := uint16(sum)

	f.setXY(byte(r >> 8))
	f.Sign = r&0x8000 != 0
	f.Zero = r == 0
	f.HalfCarry = uint32(a&0x0fff)+uint32(b&0x0fff)+c > 0x0fff
	f.ParityOverflow = (^(a ^ b))&(a^r)&0x8000 != 0
	f.Subtract = false
	f.Carry = sum > 0xffff
	return r
}

// Subtract a 16-bit value and the carry flag, updating every flag.
func (cpu *CPU) sbc16(a, b uint16) uint16 {
	f := cpu.Reg.Flags()
	c := int(boolToByte(f.Carry))
	diff := int(a) - int(b) - c
	r := uint16(diff)

	f.setXY(byte(r >> 8))
	f.Sign = r&0x8000 != 0
	f.Zero = r == 0
	f.HalfCarry = int(a&0x0fff)-int(b&0x0fff)-c < 0
	f.ParityOverflow = (a^b)&(a^r)&0x8000 != 0
	f.Subtract = true
	f.Carry = diff < 0
	return r
}

// Perform the CB-prefixed rotate or shift selected by 'op': RLC, RRC, RL,
// RR, SLA, SRA, SLL or SRL.
func (cpu *CPU) shift(op byte, v byte) byte {
	f := cpu.Reg.Flags()

	var r byte
	var carry bool
	switch op {
	case 0:
		r, carry = v<<1|v>>7, v&0x80 != 0
	case 1:
		r, carry = v>>1|v<<7, v&0x01 != 0
	case 2:
		r, carry = v<<1|boolToByte(f.Carry), v&0x80 != 0
	case 3:
		r, carry = v>>1|boolToByte(f.Carry)<<7, v&0x01 != 0
	case 4:
		r, carry = v<<1, v&0x80 != 0
	case 5:
		r, carry = v>>1|v&0x80, v&0x01 != 0
	case 6:
		r, carry = v<<1|1, v&0x80 != 0
	default:
		r, carry = v>>1, v&0x01 != 0
	}

	f.setSZP(r)
	f.HalfCarry = false
	f.Subtract = false
	f.Carry = carry
	return r
}

// Test bit 'b' of 'v'. X and Y are copied from 'xy'.
func (cpu *CPU) testBit(b byte, v byte, xy byte) {
	f := cpu.Reg.Flags()
	set := Bit(v, uint(b))
	f.Zero = !set
	f.ParityOverflow = !set
	f.Sign = b == 7 && set
	f.HalfCarry = true
	f.Subtract = false
	f.setXY(xy)
}

// Decimal-adjust the accumulator after a BCD add or subtract.
func (cpu *CPU) daa8() {
	f := cpu.Reg.Flags()
	a := cpu.Reg.A()

	var adjust byte
	carry := f.Carry
	if f.HalfCarry || a&0x0f > 9 {
		adjust |= 0x06
	}
	if carry || a > 0x99 {
		adjust |= 0x60
		carry = true
	}

	var r byte
	if f.Subtract {
		r = a - adjust
		f.HalfCarry = f.HalfCarry && a&0x0f < 6
	} else {
		r = a + adjust
		f.HalfCarry = a&0x0f > 9
	}

	f.setSZP(r)
	f.Carry = carry
	cpu.Reg.SetA(r)
}
