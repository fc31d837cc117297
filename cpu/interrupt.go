// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// Interrupt vectors
const (
	vectorIM1 = 0x0038
	vectorNMI = 0x0066
)

// Interrupt delivers a maskable interrupt request. The meaning of 'data'
// depends on the interrupt mode: in mode 0 it is an opcode to execute, in
// mode 2 it is the low byte of the vector table address, and in mode 1 it
// is ignored. It returns the number of T-states taken to accept the
// interrupt, or 0 if interrupts are disabled.
func (cpu *CPU) Interrupt(data byte) int {
	if !cpu.IFF1 {
		return 0
	}

	cpu.Halted = false
	cpu.IFF1, cpu.IFF2 = false, false
	cpu.Reg.refresh(1)

	var cycles int
	switch cpu.IM {
	case 0:
		cycles = cpu.interruptMode0(data)
	case 1:
		cpu.push16(cpu.Reg.PC)
		cpu.Reg.PC = vectorIM1
		cycles = 13
	default:
		cpu.push16(cpu.Reg.PC)
		cpu.Reg.PC = cpu.Mem.LoadAddress(uint16(cpu.Reg.I)<<8 | uint16(data))
		cycles = 19
	}

	cpu.Cycles += uint64(cycles)
	return cycles
}

// Execute the single-byte opcode placed on the data bus by an interrupting
// device. Multi-byte opcodes are not supported and are replaced by RST 38h.
func (cpu *CPU) interruptMode0(data byte) int {
	inst := cpu.InstSet.Lookup(PrefixNone, data)
	if inst.Length != 1 || !inst.Implemented() {
		inst = cpu.InstSet.Lookup(PrefixNone, 0xff)
	}

	cpu.LastPC = cpu.Reg.PC
	cpu.taken = false
	inst.fn(cpu, inst, nil)

	cycles := int(inst.Cycles) + 2
	if cpu.taken {
		cycles += int(inst.XCycles)
	}
	return cycles
}

// NMI delivers a non-maskable interrupt and returns the number of T-states
// taken to accept it.
func (cpu *CPU) NMI() int {
	cpu.Halted = false
	cpu.IFF2 = cpu.IFF1
	cpu.IFF1 = false
	cpu.Reg.refresh(1)

	cpu.push16(cpu.Reg.PC)
	cpu.Reg.PC = vectorNMI

	cpu.Cycles += 11
	return 11
}
