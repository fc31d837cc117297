// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements a cycle-counting Z80 CPU instruction set and
// emulator.
package cpu

// TrapHandler is an interface implemented by types that wish to be notified
// when the program counter reaches a trap address. The handler runs in
// place of the instruction at that address.
type TrapHandler interface {
	OnTrap(cpu *CPU)
}

// UnimplementedHandler is an interface implemented by types that wish to
// be notified when the CPU steps over an opcode it does not execute.
type UnimplementedHandler interface {
	OnUnimplemented(cpu *CPU, inst *Instruction)
}

// CPU represents a single Z80 CPU. It exclusively owns its registers and
// the memory bound to it.
type CPU struct {
	Reg       Registers       // CPU registers
	Mem       Memory          // assigned memory
	IO        IO              // I/O port device
	Cycles    uint64          // total executed T-states
	LastPC    uint16          // address of the last executed instruction
	Halted    bool            // a HALT instruction is waiting for an interrupt
	IFF1      bool            // maskable interrupts are enabled
	IFF2      bool            // saved copy of IFF1
	IM        byte            // interrupt mode: 0, 1 or 2
	InstSet   *InstructionSet // Instruction set used by the CPU
	taken     bool
	debugger  *Debugger
	traps     map[uint16]TrapHandler
	unimpl    UnimplementedHandler
	storeByte func(cpu *CPU, addr uint16, v byte)
}

// NewCPU creates an emulated Z80 CPU bound to the specified memory. Its
// I/O port device is a PortLatch.
func NewCPU(m Memory) *CPU {
	cpu := &CPU{
		Mem:       m,
		IO:        NewPortLatch(),
		InstSet:   GetInstructionSet(),
		traps:     make(map[uint16]TrapHandler),
		storeByte: (*CPU).storeByteNormal,
	}

	cpu.Reg.Init()
	return cpu
}

// Reset returns the CPU to its power-on state. Memory is left untouched.
func (cpu *CPU) Reset() {
	cpu.Reg.Init()
	cpu.Cycles = 0
	cpu.LastPC = 0
	cpu.Halted = false
	cpu.IFF1, cpu.IFF2 = false, false
	cpu.IM = 0
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.Reg.PC = addr
}

// GetInstruction returns the instruction decoded at the requested address.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	return cpu.InstSet.Decode(cpu.Mem, addr)
}

// NextAddr returns the address of the next instruction following the
// instruction at addr.
func (cpu *CPU) NextAddr(addr uint16) uint16 {
	inst := cpu.InstSet.Decode(cpu.Mem, addr)
	if !inst.Implemented() {
		return addr + 1
	}
	return addr + uint16(inst.Length)
}

// Step the cpu by one instruction and return the number of T-states it
// took.
func (cpu *CPU) Step() int {
	// A trap handler runs in place of the instruction at its address.
	if h, ok := cpu.traps[cpu.Reg.PC]; ok {
		cpu.LastPC = cpu.Reg.PC
		h.OnTrap(cpu)
		return 0
	}

	// A halted CPU executes NOPs without advancing the PC.
	if cpu.Halted {
		cpu.Reg.refresh(1)
		cpu.Cycles += 4
		return 4
	}

	inst := cpu.InstSet.Decode(cpu.Mem, cpu.Reg.PC)

	// Opcodes without an implementation consume a single byte and no time.
	if !inst.Implemented() {
		cpu.LastPC = cpu.Reg.PC
		cpu.Reg.PC++
		if cpu.unimpl != nil {
			cpu.unimpl.OnUnimplemented(cpu, inst)
		}
		return 0
	}

	// Fetch the operand (if any) and advance the PC
	var buf [4]byte
	operand := buf[inst.opLen:inst.Length]
	cpu.Mem.LoadBytes(cpu.Reg.PC+uint16(inst.opLen), operand)
	cpu.LastPC = cpu.Reg.PC
	cpu.Reg.PC += uint16(inst.Length)
	cpu.Reg.refresh(inst.fetches)

	// Execute the instruction
	cpu.taken = false
	inst.fn(cpu, inst, operand)

	cycles := int(inst.Cycles)
	if cpu.taken {
		cycles += int(inst.XCycles)
	}
	cpu.Cycles += uint64(cycles)

	// Update the debugger so it handle breakpoints.
	if cpu.debugger != nil {
		cpu.debugger.onUpdatePC(cpu, cpu.Reg.PC)
	}
	return cycles
}

// AttachTrap attaches a handler that is called instead of executing the
// instruction at 'addr'.
func (cpu *CPU) AttachTrap(addr uint16, handler TrapHandler) {
	cpu.traps[addr] = handler
}

// DetachTrap removes the trap handler at 'addr'.
func (cpu *CPU) DetachTrap(addr uint16) {
	delete(cpu.traps, addr)
}

// AttachUnimplementedHandler attaches a handler that is called whenever
// the CPU steps over an opcode it does not implement.
func (cpu *CPU) AttachUnimplementedHandler(handler UnimplementedHandler) {
	cpu.unimpl = handler
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction, stores a byte
// to memory or writes to an I/O port.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
	cpu.storeByte = (*CPU).storeByteDebugger
}

// DetachDebugger detaches the currently debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
	cpu.storeByte = (*CPU).storeByteNormal
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteNormal(addr uint16, v byte) {
	cpu.Mem.StoreByte(addr, v)
}

// Store the byte value 'v' add the address 'addr'.
func (cpu *CPU) storeByteDebugger(addr uint16, v byte) {
	cpu.debugger.onDataStore(cpu, addr, v)
	cpu.Mem.StoreByte(addr, v)
}

// Store a 16-bit value little-endian at 'addr'.
func (cpu *CPU) storeAddress(addr, v uint16) {
	cpu.storeByte(cpu, addr, byte(v))
	cpu.storeByte(cpu, addr+1, byte(v>>8))
}

// Read a byte from an I/O port.
func (cpu *CPU) in(port uint16) byte {
	if cpu.IO == nil {
		return 0xff
	}
	return cpu.IO.In(port)
}

// Write a byte to an I/O port.
func (cpu *CPU) out(port uint16, v byte) {
	if cpu.debugger != nil {
		cpu.debugger.onPortOut(cpu, port, v)
	}
	if cpu.IO != nil {
		cpu.IO.Out(port, v)
	}
}

// Push the 16-bit value 'v' onto the stack.
func (cpu *CPU) push16(v uint16) {
	cpu.Reg.SP--
	cpu.storeByte(cpu, cpu.Reg.SP, byte(v>>8))
	cpu.Reg.SP--
	cpu.storeByte(cpu, cpu.Reg.SP, byte(v))
}

// Pop a 16-bit value off the stack.
func (cpu *CPU) pop16() uint16 {
	lo := cpu.Mem.LoadByte(cpu.Reg.SP)
	cpu.Reg.SP++
	hi := cpu.Mem.LoadByte(cpu.Reg.SP)
	cpu.Reg.SP++
	return uint16(hi)<<8 | uint16(lo)
}

// Return the 16-bit register standing in for HL.
func (cpu *CPU) getHL(inst *Instruction) uint16 {
	switch inst.index {
	case useIX:
		return cpu.Reg.IX
	case useIY:
		return cpu.Reg.IY
	default:
		return cpu.Reg.HL()
	}
}

// Update the 16-bit register standing in for HL.
func (cpu *CPU) setHL(inst *Instruction, v uint16) {
	switch inst.index {
	case useIX:
		cpu.Reg.IX = v
	case useIY:
		cpu.Reg.IY = v
	default:
		cpu.Reg.SetHL(v)
	}
}

// Return the effective address of (HL), (IX+d) or (IY+d).
func (cpu *CPU) memAddr(inst *Instruction, operand []byte) uint16 {
	if inst.index == useHL {
		return cpu.Reg.HL()
	}
	return displace(cpu.getHL(inst), operand[0])
}

// Offset an address by a signed 8-bit displacement.
func displace(addr uint16, d byte) uint16 {
	return addr + uint16(int8(d))
}

// Load the 8-bit register or memory operand selected by 'r', using the
// Z80 encoding B, C, D, E, H, L, (HL), A.
func (cpu *CPU) load(inst *Instruction, r byte, operand []byte) byte {
	gp := cpu.Reg.gp()
	switch r {
	case 0:
		return gp.B
	case 1:
		return gp.C
	case 2:
		return gp.D
	case 3:
		return gp.E
	case 4:
		if inst.subst {
			return byte(cpu.getHL(inst) >> 8)
		}
		return gp.H
	case 5:
		if inst.subst {
			return byte(cpu.getHL(inst))
		}
		return gp.L
	case 6:
		return cpu.Mem.LoadByte(cpu.memAddr(inst, operand))
	default:
		return cpu.Reg.af().A
	}
}

// Store an 8-bit register or memory operand selected by 'r'.
func (cpu *CPU) store(inst *Instruction, r byte, operand []byte, v byte) {
	gp := cpu.Reg.gp()
	switch r {
	case 0:
		gp.B = v
	case 1:
		gp.C = v
	case 2:
		gp.D = v
	case 3:
		gp.E = v
	case 4:
		if inst.subst {
			cpu.setHL(inst, uint16(v)<<8|cpu.getHL(inst)&0x00ff)
		} else {
			gp.H = v
		}
	case 5:
		if inst.subst {
			cpu.setHL(inst, cpu.getHL(inst)&0xff00|uint16(v))
		} else {
			gp.L = v
		}
	case 6:
		cpu.storeByte(cpu, cpu.memAddr(inst, operand), v)
	default:
		cpu.Reg.af().A = v
	}
}

// Load the register pair selected by 'p': BC, DE, HL or SP.
func (cpu *CPU) loadRP(inst *Instruction, p byte) uint16 {
	switch p {
	case 0:
		return cpu.Reg.BC()
	case 1:
		return cpu.Reg.DE()
	case 2:
		return cpu.getHL(inst)
	default:
		return cpu.Reg.SP
	}
}

// Store the register pair selected by 'p': BC, DE, HL or SP.
func (cpu *CPU) storeRP(inst *Instruction, p byte, v uint16) {
	switch p {
	case 0:
		cpu.Reg.SetBC(v)
	case 1:
		cpu.Reg.SetDE(v)
	case 2:
		cpu.setHL(inst, v)
	default:
		cpu.Reg.SP = v
	}
}

// Evaluate the branch condition selected by 'cc'.
func (cpu *CPU) condition(cc byte) bool {
	f := cpu.Reg.Flags()
	switch cc {
	case 0:
		return !f.Zero
	case 1:
		return f.Zero
	case 2:
		return !f.Carry
	case 3:
		return f.Carry
	case 4:
		return !f.ParityOverflow
	case 5:
		return f.ParityOverflow
	case 6:
		return !f.Sign
	default:
		return f.Sign
	}
}

// Convert a little-endian instruction operand into a 16-bit value.
func operandToAddress(operand []byte) uint16 {
	return uint16(operand[0]) | uint16(operand[1])<<8
}
