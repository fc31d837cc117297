// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Opcode fields
func fieldY(op byte) byte { return (op >> 3) & 7 }
func fieldZ(op byte) byte { return op & 7 }
func fieldP(op byte) byte { return (op >> 4) & 3 }

// No-operation
func (cpu *CPU) nop(inst *Instruction, operand []byte) {
}

// Exchange AF with AF'
func (cpu *CPU) exaf(inst *Instruction, operand []byte) {
	cpu.Reg.ExchangeAF()
}

// Exchange BC, DE and HL with their alternates
func (cpu *CPU) exx(inst *Instruction, operand []byte) {
	cpu.Reg.Exchange()
}

// Exchange DE and HL
func (cpu *CPU) exdehl(inst *Instruction, operand []byte) {
	de, hl := cpu.Reg.DE(), cpu.Reg.HL()
	cpu.Reg.SetDE(hl)
	cpu.Reg.SetHL(de)
}

// Exchange the top of the stack with HL, IX or IY
func (cpu *CPU) exsphl(inst *Instruction, operand []byte) {
	v := cpu.Mem.LoadAddress(cpu.Reg.SP)
	cpu.storeAddress(cpu.Reg.SP, cpu.getHL(inst))
	cpu.setHL(inst, v)
}

// Decrement B and jump if not zero
func (cpu *CPU) djnz(inst *Instruction, operand []byte) {
	b := cpu.Reg.B() - 1
	cpu.Reg.SetB(b)
	if b != 0 {
		cpu.Reg.PC = displace(cpu.Reg.PC, operand[0])
		cpu.taken = true
	}
}

// Jump relative, conditionally or unconditionally
func (cpu *CPU) jr(inst *Instruction, operand []byte) {
	if inst.Opcode == 0x18 || cpu.condition(fieldY(inst.Opcode)-4) {
		cpu.Reg.PC = displace(cpu.Reg.PC, operand[0])
		cpu.taken = true
	}
}

// Jump absolute, conditionally or unconditionally
func (cpu *CPU) jp(inst *Instruction, operand []byte) {
	if inst.Opcode == 0xc3 || cpu.condition(fieldY(inst.Opcode)) {
		cpu.Reg.PC = operandToAddress(operand)
	}
}

// Jump to the address in HL, IX or IY
func (cpu *CPU) jphl(inst *Instruction, operand []byte) {
	cpu.Reg.PC = cpu.getHL(inst)
}

// Call a subroutine, conditionally or unconditionally
func (cpu *CPU) call(inst *Instruction, operand []byte) {
	if inst.Opcode == 0xcd || cpu.condition(fieldY(inst.Opcode)) {
		cpu.push16(cpu.Reg.PC)
		cpu.Reg.PC = operandToAddress(operand)
		cpu.taken = true
	}
}

// Return from subroutine
func (cpu *CPU) ret(inst *Instruction, operand []byte) {
	cpu.Reg.PC = cpu.pop16()
}

// Return from subroutine if the condition holds
func (cpu *CPU) retcc(inst *Instruction, operand []byte) {
	if cpu.condition(fieldY(inst.Opcode)) {
		cpu.Reg.PC = cpu.pop16()
		cpu.taken = true
	}
}

// Restart: call one of the eight page-zero vectors
func (cpu *CPU) rst(inst *Instruction, operand []byte) {
	cpu.push16(cpu.Reg.PC)
	cpu.Reg.PC = uint16(inst.Opcode & 0x38)
}

// Load 16-bit immediate into a register pair
func (cpu *CPU) ldrpnn(inst *Instruction, operand []byte) {
	cpu.storeRP(inst, fieldP(inst.Opcode), operandToAddress(operand))
}

// Add a register pair to HL, IX or IY
func (cpu *CPU) addhl(inst *Instruction, operand []byte) {
	v := cpu.loadRP(inst, fieldP(inst.Opcode))
	cpu.setHL(inst, cpu.add16(cpu.getHL(inst), v))
}

// Add a register pair and carry to HL
func (cpu *CPU) adchl(inst *Instruction, operand []byte) {
	v := cpu.loadRP(inst, fieldP(inst.Opcode))
	cpu.Reg.SetHL(cpu.adc16(cpu.Reg.HL(), v))
}

// Subtract a register pair and carry from HL
func (cpu *CPU) sbchl(inst *Instruction, operand []byte) {
	v := cpu.loadRP(inst, fieldP(inst.Opcode))
	cpu.Reg.SetHL(cpu.sbc16(cpu.Reg.HL(), v))
}

// Store A at (BC) or (DE)
func (cpu *CPU) ldinda(inst *Instruction, operand []byte) {
	addr := cpu.Reg.BC()
	if inst.Opcode == 0x12 {
		addr = cpu.Reg.DE()
	}
	cpu.storeByte(cpu, addr, cpu.Reg.A())
}

// Load A from (BC) or (DE)
func (cpu *CPU) ldaind(inst *Instruction, operand []byte) {
	addr := cpu.Reg.BC()
	if inst.Opcode == 0x1a {
		addr = cpu.Reg.DE()
	}
	cpu.Reg.SetA(cpu.Mem.LoadByte(addr))
}

// Store HL, IX or IY at an absolute address
func (cpu *CPU) ldnnhl(inst *Instruction, operand []byte) {
	cpu.storeAddress(operandToAddress(operand), cpu.getHL(inst))
}

// Load HL, IX or IY from an absolute address
func (cpu *CPU) ldhlnn(inst *Instruction, operand []byte) {
	cpu.setHL(inst, cpu.Mem.LoadAddress(operandToAddress(operand)))
}

// Store A at an absolute address
func (cpu *CPU) ldnna(inst *Instruction, operand []byte) {
	cpu.storeByte(cpu, operandToAddress(operand), cpu.Reg.A())
}

// Load A from an absolute address
func (cpu *CPU) ldann(inst *Instruction, operand []byte) {
	cpu.Reg.SetA(cpu.Mem.LoadByte(operandToAddress(operand)))
}

// Store a register pair at an absolute address (ED form)
func (cpu *CPU) ldnnrp(inst *Instruction, operand []byte) {
	cpu.storeAddress(operandToAddress(operand), cpu.loadRP(inst, fieldP(inst.Opcode)))
}

// Load a register pair from an absolute address (ED form)
func (cpu *CPU) ldrpind(inst *Instruction, operand []byte) {
	cpu.storeRP(inst, fieldP(inst.Opcode), cpu.Mem.LoadAddress(operandToAddress(operand)))
}

// Load SP from HL, IX or IY
func (cpu *CPU) ldsphl(inst *Instruction, operand []byte) {
	cpu.Reg.SP = cpu.getHL(inst)
}

// Increment a register pair
func (cpu *CPU) incrp(inst *Instruction, operand []byte) {
	p := fieldP(inst.Opcode)
	cpu.storeRP(inst, p, cpu.loadRP(inst, p)+1)
}

// Decrement a register pair
func (cpu *CPU) decrp(inst *Instruction, operand []byte) {
	p := fieldP(inst.Opcode)
	cpu.storeRP(inst, p, cpu.loadRP(inst, p)-1)
}

// Increment an 8-bit register or memory operand
func (cpu *CPU) inc(inst *Instruction, operand []byte) {
	r := fieldY(inst.Opcode)
	cpu.store(inst, r, operand, cpu.inc8(cpu.load(inst, r, operand)))
}

// Decrement an 8-bit register or memory operand
func (cpu *CPU) dec(inst *Instruction, operand []byte) {
	r := fieldY(inst.Opcode)
	cpu.store(inst, r, operand, cpu.dec8(cpu.load(inst, r, operand)))
}

// Load an 8-bit immediate. The immediate is the last operand byte, after
// any index displacement.
func (cpu *CPU) ldrn(inst *Instruction, operand []byte) {
	cpu.store(inst, fieldY(inst.Opcode), operand, operand[len(operand)-1])
}

// Copy one 8-bit register or memory operand to another
func (cpu *CPU) ldrr(inst *Instruction, operand []byte) {
	v := cpu.load(inst, fieldZ(inst.Opcode), operand)
	cpu.store(inst, fieldY(inst.Opcode), operand, v)
}

// 8-bit arithmetic and logic on the accumulator
func (cpu *CPU) alu(inst *Instruction, operand []byte) {
	var v byte
	if inst.Mode == IMM {
		v = operand[0]
	} else {
		v = cpu.load(inst, fieldZ(inst.Opcode), operand)
	}
	cpu.arith(fieldY(inst.Opcode), v)
}

// Rotate A left circular
func (cpu *CPU) rlca(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.rotateA(a<<1|a>>7, a&0x80 != 0)
}

// Rotate A right circular
func (cpu *CPU) rrca(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.rotateA(a>>1|a<<7, a&0x01 != 0)
}

// Rotate A left through carry
func (cpu *CPU) rla(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.rotateA(a<<1|boolToByte(cpu.Reg.Flags().Carry), a&0x80 != 0)
}

// Rotate A right through carry
func (cpu *CPU) rra(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.rotateA(a>>1|boolToByte(cpu.Reg.Flags().Carry)<<7, a&0x01 != 0)
}

// Store the result of an accumulator rotate. S, Z and P/V are untouched.
func (cpu *CPU) rotateA(r byte, carry bool) {
	f := cpu.Reg.Flags()
	f.setXY(r)
	f.HalfCarry = false
	f.Subtract = false
	f.Carry = carry
	cpu.Reg.SetA(r)
}

// Decimal adjust accumulator
func (cpu *CPU) daa(inst *Instruction, operand []byte) {
	cpu.daa8()
}

// Complement accumulator
func (cpu *CPU) cpl(inst *Instruction, operand []byte) {
	f := cpu.Reg.Flags()
	a := ^cpu.Reg.A()
	f.setXY(a)
	f.HalfCarry = true
	f.Subtract = true
	cpu.Reg.SetA(a)
}

// Set carry flag
func (cpu *CPU) scf(inst *Instruction, operand []byte) {
	f := cpu.Reg.Flags()
	f.setXY(cpu.Reg.A())
	f.HalfCarry = false
	f.Subtract = false
	f.Carry = true
}

// Complement carry flag
func (cpu *CPU) ccf(inst *Instruction, operand []byte) {
	f := cpu.Reg.Flags()
	f.setXY(cpu.Reg.A())
	f.HalfCarry = f.Carry
	f.Subtract = false
	f.Carry = !f.Carry
}

// Negate accumulator
func (cpu *CPU) neg(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.Reg.SetA(0)
	cpu.Reg.SetA(cpu.sub8(a, false))
}

// Halt until an interrupt arrives
func (cpu *CPU) halt(inst *Instruction, operand []byte) {
	cpu.Halted = true
}

// Push a register pair
func (cpu *CPU) push(inst *Instruction, operand []byte) {
	p := fieldP(inst.Opcode)
	if p == 3 {
		cpu.push16(cpu.Reg.AF())
	} else {
		cpu.push16(cpu.loadRP(inst, p))
	}
}

// Pop a register pair
func (cpu *CPU) pop(inst *Instruction, operand []byte) {
	p := fieldP(inst.Opcode)
	v := cpu.pop16()
	if p == 3 {
		cpu.Reg.SetAF(v)
	} else {
		cpu.storeRP(inst, p, v)
	}
}

// Write A to the port addressed by A and an immediate
func (cpu *CPU) outna(inst *Instruction, operand []byte) {
	a := cpu.Reg.A()
	cpu.out(uint16(a)<<8|uint16(operand[0]), a)
}

// Read A from the port addressed by A and an immediate. No flags change.
func (cpu *CPU) inan(inst *Instruction, operand []byte) {
	port := uint16(cpu.Reg.A())<<8 | uint16(operand[0])
	cpu.Reg.SetA(cpu.in(port))
}

// Read a register from the port addressed by BC
func (cpu *CPU) inrc(inst *Instruction, operand []byte) {
	v := cpu.in(cpu.Reg.BC())

	f := cpu.Reg.Flags()
	f.setSZP(v)
	f.HalfCarry = false
	f.Subtract = false

	if r := fieldY(inst.Opcode); r != 6 {
		cpu.store(inst, r, operand, v)
	}
}

// Write a register (or zero) to the port addressed by BC
func (cpu *CPU) outcr(inst *Instruction, operand []byte) {
	var v byte
	if r := fieldY(inst.Opcode); r != 6 {
		v = cpu.load(inst, r, operand)
	}
	cpu.out(cpu.Reg.BC(), v)
}

// Disable interrupts
func (cpu *CPU) di(inst *Instruction, operand []byte) {
	cpu.IFF1, cpu.IFF2 = false, false
}

// Enable interrupts
func (cpu *CPU) ei(inst *Instruction, operand []byte) {
	cpu.IFF1, cpu.IFF2 = true, true
}

// Select the interrupt mode
func (cpu *CPU) im(inst *Instruction, operand []byte) {
	cpu.IM = [8]byte{0, 0, 1, 2, 0, 0, 1, 2}[fieldY(inst.Opcode)]
}

// Return from interrupt (RETI and RETN)
func (cpu *CPU) retn(inst *Instruction, operand []byte) {
	cpu.IFF1 = cpu.IFF2
	cpu.Reg.PC = cpu.pop16()
}

// Load I from A
func (cpu *CPU) ldia(inst *Instruction, operand []byte) {
	cpu.Reg.I = cpu.Reg.A()
}

// Load R from A
func (cpu *CPU) ldra(inst *Instruction, operand []byte) {
	cpu.Reg.R = cpu.Reg.A()
}

// Load A from I
func (cpu *CPU) ldai(inst *Instruction, operand []byte) {
	cpu.loadSpecial(cpu.Reg.I)
}

// Load A from R
func (cpu *CPU) ldar(inst *Instruction, operand []byte) {
	cpu.loadSpecial(cpu.Reg.R)
}

// Load A from I or R. P/V reflects IFF2.
func (cpu *CPU) loadSpecial(v byte) {
	f := cpu.Reg.Flags()
	f.setSZXY(v)
	f.HalfCarry = false
	f.ParityOverflow = cpu.IFF2
	f.Subtract = false
	cpu.Reg.SetA(v)
}

// Rotate a BCD digit right between A and (HL)
func (cpu *CPU) rrd(inst *Instruction, operand []byte) {
	addr := cpu.Reg.HL()
	m, a := cpu.Mem.LoadByte(addr), cpu.Reg.A()
	cpu.storeByte(cpu, addr, a<<4|m>>4)
	cpu.digitResult(a&0xf0 | m&0x0f)
}

// Rotate a BCD digit left between A and (HL)
func (cpu *CPU) rld(inst *Instruction, operand []byte) {
	addr := cpu.Reg.HL()
	m, a := cpu.Mem.LoadByte(addr), cpu.Reg.A()
	cpu.storeByte(cpu, addr, m<<4|a&0x0f)
	cpu.digitResult(a&0xf0 | m>>4)
}

func (cpu *CPU) digitResult(a byte) {
	f := cpu.Reg.Flags()
	f.setSZP(a)
	f.HalfCarry = false
	f.Subtract = false
	cpu.Reg.SetA(a)
}

// CB-prefixed rotate or shift. The indexed forms also copy the result to
// a register unless the register field selects (HL).
func (cpu *CPU) rot(inst *Instruction, operand []byte) {
	r := fieldZ(inst.Opcode)
	if inst.index != useHL {
		v := cpu.shift(fieldY(inst.Opcode), cpu.load(inst, 6, operand))
		cpu.store(inst, 6, operand, v)
		if r != 6 {
			cpu.store(inst, r, operand, v)
		}
		return
	}
	cpu.store(inst, r, operand, cpu.shift(fieldY(inst.Opcode), cpu.load(inst, r, operand)))
}

// Test a bit. Register forms copy X and Y from the tested value; memory
// forms copy them from the high byte of the effective address.
func (cpu *CPU) bit(inst *Instruction, operand []byte) {
	r := fieldZ(inst.Opcode)
	if inst.index != useHL || r == 6 {
		addr := cpu.memAddr(inst, operand)
		cpu.testBit(fieldY(inst.Opcode), cpu.Mem.LoadByte(addr), byte(addr>>8))
		return
	}
	v := cpu.load(inst, r, operand)
	cpu.testBit(fieldY(inst.Opcode), v, v)
}

// Reset a bit
func (cpu *CPU) res(inst *Instruction, operand []byte) {
	cpu.modifyBit(inst, operand, false)
}

// Set a bit
func (cpu *CPU) set(inst *Instruction, operand []byte) {
	cpu.modifyBit(inst, operand, true)
}

func (cpu *CPU) modifyBit(inst *Instruction, operand []byte, on bool) {
	r, b := fieldZ(inst.Opcode), uint(fieldY(inst.Opcode))
	if inst.index != useHL {
		v := SetBit(cpu.load(inst, 6, operand), b, on)
		cpu.store(inst, 6, operand, v)
		if r != 6 {
			cpu.store(inst, r, operand, v)
		}
		return
	}
	cpu.store(inst, r, operand, SetBit(cpu.load(inst, r, operand), b, on))
}

// Block operation direction and repeat bits, taken from the opcode.
func blockStep(op byte) (delta uint16, repeat bool) {
	delta = 1
	if op&0x08 != 0 {
		delta = 0xffff
	}
	return delta, op&0x10 != 0
}

// Hold the PC on a repeating block instruction so that it executes again.
func (cpu *CPU) rearm() {
	cpu.Reg.PC = cpu.LastPC
	cpu.taken = true
}

// LDI, LDD, LDIR, LDDR
func (cpu *CPU) ldblock(inst *Instruction, operand []byte) {
	delta, repeat := blockStep(inst.Opcode)

	hl, de := cpu.Reg.HL(), cpu.Reg.DE()
	v := cpu.Mem.LoadByte(hl)
	cpu.storeByte(cpu, de, v)
	cpu.Reg.SetHL(hl + delta)
	cpu.Reg.SetDE(de + delta)
	bc := cpu.Reg.BC() - 1
	cpu.Reg.SetBC(bc)

	f := cpu.Reg.Flags()
	n := cpu.Reg.A() + v
	f.X = n&0x08 != 0
	f.Y = n&0x02 != 0
	f.HalfCarry = false
	f.ParityOverflow = bc != 0
	f.Subtract = false

	if repeat && bc != 0 {
		cpu.rearm()
	}
}

// CPI, CPD, CPIR, CPDR
func (cpu *CPU) cpblock(inst *Instruction, operand []byte) {
	delta, repeat := blockStep(inst.Opcode)

	f := cpu.Reg.Flags()
	carry := f.Carry

	hl := cpu.Reg.HL()
	v := cpu.Mem.LoadByte(hl)
	r := cpu.sub8(v, false)
	cpu.Reg.SetHL(hl + delta)
	bc := cpu.Reg.BC() - 1
	cpu.Reg.SetBC(bc)

	n := r - boolToByte(f.HalfCarry)
	f.X = n&0x08 != 0
	f.Y = n&0x02 != 0
	f.ParityOverflow = bc != 0
	f.Carry = carry

	if repeat && bc != 0 && !f.Zero {
		cpu.rearm()
	}
}

// INI, IND, INIR, INDR
func (cpu *CPU) inblock(inst *Instruction, operand []byte) {
	delta, repeat := blockStep(inst.Opcode)

	v := cpu.in(cpu.Reg.BC())
	hl := cpu.Reg.HL()
	cpu.storeByte(cpu, hl, v)
	cpu.Reg.SetHL(hl + delta)
	b := cpu.Reg.B() - 1
	cpu.Reg.SetB(b)

	c := cpu.Reg.C() + byte(delta)
	cpu.blockIOFlags(v, uint16(v)+uint16(c), b)

	if repeat && b != 0 {
		cpu.rearm()
	}
}

// OUTI, OUTD, OTIR, OTDR
func (cpu *CPU) outblock(inst *Instruction, operand []byte) {
	delta, repeat := blockStep(inst.Opcode)

	hl := cpu.Reg.HL()
	v := cpu.Mem.LoadByte(hl)
	b := cpu.Reg.B() - 1
	cpu.Reg.SetB(b)
	cpu.out(cpu.Reg.BC(), v)
	cpu.Reg.SetHL(hl + delta)

	cpu.blockIOFlags(v, uint16(v)+uint16(cpu.Reg.L()), b)

	if repeat && b != 0 {
		cpu.rearm()
	}
}

// Update the flags after a block I/O transfer of 'v', where 'k' is the
// transferred value plus the adjusted C (input) or L (output) register.
func (cpu *CPU) blockIOFlags(v byte, k uint16, b byte) {
	f := cpu.Reg.Flags()
	f.setSZXY(b)
	f.Subtract = v&0x80 != 0
	f.HalfCarry = k > 0xff
	f.Carry = k > 0xff
	f.ParityOverflow = parity[byte(k)&0x07^b]
}
