// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"strings"
)

// Prefix identifies the opcode table an instruction is decoded from.
type Prefix byte

// All opcode tables
const (
	PrefixNone Prefix = iota // unprefixed
	PrefixCB                 // CB xx
	PrefixED                 // ED xx
	PrefixDD                 // DD xx
	PrefixFD                 // FD xx
	PrefixDDCB               // DD CB d xx
	PrefixFDCB               // FD CB d xx

	numPrefixes
)

var prefixNames = [numPrefixes]string{"", "CB", "ED", "DD", "FD", "DDCB", "FDCB"}

func (p Prefix) String() string {
	return prefixNames[p]
}

// Mode describes a memory addressing mode.
type Mode byte

// All possible memory addressing modes
const (
	IMP Mode = iota // Implied
	REG             // Register
	IND             // Register indirect: (HL), (BC), (DE), (SP)
	IDX             // Indexed: (IX+d), (IY+d)
	IMM             // Immediate 8-bit
	IMX             // Immediate 16-bit
	EXT             // Extended: (nn)
	REL             // Relative
	PRT             // I/O port
)

// Which register plays the part of HL in an instruction.
type indexReg byte

const (
	useHL indexReg = iota
	useIX
	useIY
)

type instfunc func(c *CPU, inst *Instruction, operand []byte)

// An Instruction describes a Z80 instruction: its decoding, its operand
// layout and its timing. Operands is a template in which lowercase tokens
// stand for instruction stream bytes: n (8-bit immediate), nn (16-bit
// immediate), d (index displacement) and e (relative jump offset).
type Instruction struct {
	Name     string   // mnemonic, e.g. "LD"
	Operands string   // operand template, e.g. "B,(IX+d)"
	Mode     Mode     // addressing mode
	Prefix   Prefix   // opcode table
	Opcode   byte     // opcode within the table
	Length   byte     // length of prefix, opcode and operands in bytes
	Cycles   byte     // T-states to execute the instruction
	XCycles  byte     // additional T-states when a branch is taken or a block repeat re-arms
	opLen    byte     // bytes preceding the operand (prefix and opcode)
	fetches  byte     // opcode fetches, each of which advances R
	index    indexReg // HL, IX or IY
	subst    bool     // H and L refer to the halves of IX or IY
	fn       instfunc // emulator implementation of the instruction
}

// Implemented returns false for opcodes the emulator does not execute.
func (inst *Instruction) Implemented() bool {
	return inst.fn != nil
}

// String returns the instruction's mnemonic with its operand template.
func (inst *Instruction) String() string {
	if inst.Operands == "" {
		return inst.Name
	}
	return inst.Name + " " + inst.Operands
}

// An InstructionSet holds the decode tables for every opcode prefix.
type InstructionSet struct {
	tables   [numPrefixes][256]Instruction
	variants map[string][]*Instruction
}

// Lookup retrieves the instruction for an opcode within a prefix table.
func (s *InstructionSet) Lookup(prefix Prefix, opcode byte) *Instruction {
	return &s.tables[prefix][opcode]
}

// Decode returns the instruction encoded at 'addr' without modifying any
// CPU or memory state.
func (s *InstructionSet) Decode(m Memory, addr uint16) *Instruction {
	op := m.LoadByte(addr)
	switch op {
	case 0xcb:
		return &s.tables[PrefixCB][m.LoadByte(addr+1)]
	case 0xed:
		return &s.tables[PrefixED][m.LoadByte(addr+1)]
	case 0xdd, 0xfd:
		p, pcb := PrefixDD, PrefixDDCB
		if op == 0xfd {
			p, pcb = PrefixFD, PrefixFDCB
		}
		next := m.LoadByte(addr + 1)
		if next == 0xcb {
			return &s.tables[pcb][m.LoadByte(addr+3)]
		}
		return &s.tables[p][next]
	}
	return &s.tables[PrefixNone][op]
}

// GetInstructions returns all CPU instructions whose name matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

// Unimplemented returns every table entry the emulator does not execute.
func (s *InstructionSet) Unimplemented() []*Instruction {
	var list []*Instruction
	for p := range s.tables {
		for i := range s.tables[p] {
			if inst := &s.tables[p][i]; !inst.Implemented() && inst.Name == unusedName {
				list = append(list, inst)
			}
		}
	}
	return list
}

// Opcode data for a single table entry
type opcodeData struct {
	name     string
	operands string
	mode     Mode
	length   byte
	cycles   byte
	xcycles  byte
	fn       instfunc
	subst    bool
}

const (
	unusedName = "???"
	prefixName = "PREFIX"
)

var (
	r8Names = [3][8]string{
		{"B", "C", "D", "E", "H", "L", "(HL)", "A"},
		{"B", "C", "D", "E", "IXH", "IXL", "(IX+d)", "A"},
		{"B", "C", "D", "E", "IYH", "IYL", "(IY+d)", "A"},
	}
	hlNames   = [3]string{"HL", "IX", "IY"}
	condNames = [8]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}
	aluNames  = [8]string{"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP"}
	rotNames  = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL"}
	blkNames  = [4][4]string{
		{"LDI", "CPI", "INI", "OUTI"},
		{"LDD", "CPD", "IND", "OUTD"},
		{"LDIR", "CPIR", "INIR", "OTIR"},
		{"LDDR", "CPDR", "INDR", "OTDR"},
	}
)

func rpName(p byte, ix indexReg) string {
	return [4]string{"BC", "DE", hlNames[ix], "SP"}[p]
}

func rp2Name(p byte, ix indexReg) string {
	return [4]string{"BC", "DE", hlNames[ix], "AF"}[p]
}

// Produce the table entry for an unprefixed opcode, or for the same
// opcode following a DD or FD prefix when 'ix' is useIX or useIY. The
// second return value is false if the index prefix has no effect on the
// opcode.
func baseOpcode(op byte, ix indexReg) (d opcodeData, indexed bool) {
	x, y, z := op>>6, (op>>3)&7, op&7
	p, q := y>>1, y&1
	hl := hlNames[ix]
	r := r8Names[ix]

	switch x {
	case 0:
		switch z {
		case 0:
			switch y {
			case 0:
				return opcodeData{"NOP", "", IMP, 1, 4, 0, (*CPU).nop, false}, false
			case 1:
				return opcodeData{"EX", "AF,AF'", IMP, 1, 4, 0, (*CPU).exaf, false}, false
			case 2:
				return opcodeData{"DJNZ", "e", REL, 2, 8, 5, (*CPU).djnz, false}, false
			case 3:
				return opcodeData{"JR", "e", REL, 2, 12, 0, (*CPU).jr, false}, false
			default:
				return opcodeData{"JR", condNames[y-4] + ",e", REL, 2, 7, 5, (*CPU).jr, false}, false
			}
		case 1:
			if q == 0 {
				return opcodeData{"LD", rpName(p, ix) + ",nn", IMX, 3, 10, 0, (*CPU).ldrpnn, false}, p == 2
			}
			return opcodeData{"ADD", hl + "," + rpName(p, ix), REG, 1, 11, 0, (*CPU).addhl, false}, true
		case 2:
			switch y {
			case 0:
				return opcodeData{"LD", "(BC),A", IND, 1, 7, 0, (*CPU).ldinda, false}, false
			case 1:
				return opcodeData{"LD", "A,(BC)", IND, 1, 7, 0, (*CPU).ldaind, false}, false
			case 2:
				return opcodeData{"LD", "(DE),A", IND, 1, 7, 0, (*CPU).ldinda, false}, false
			case 3:
				return opcodeData{"LD", "A,(DE)", IND, 1, 7, 0, (*CPU).ldaind, false}, false
			case 4:
				return opcodeData{"LD", "(nn)," + hl, EXT, 3, 16, 0, (*CPU).ldnnhl, false}, true
			case 5:
				return opcodeData{"LD", hl + ",(nn)", EXT, 3, 16, 0, (*CPU).ldhlnn, false}, true
			case 6:
				return opcodeData{"LD", "(nn),A", EXT, 3, 13, 0, (*CPU).ldnna, false}, false
			default:
				return opcodeData{"LD", "A,(nn)", EXT, 3, 13, 0, (*CPU).ldann, false}, false
			}
		case 3:
			if q == 0 {
				return opcodeData{"INC", rpName(p, ix), REG, 1, 6, 0, (*CPU).incrp, false}, p == 2
			}
			return opcodeData{"DEC", rpName(p, ix), REG, 1, 6, 0, (*CPU).decrp, false}, p == 2
		case 4, 5:
			name, fn := "INC", (*CPU).inc
			if z == 5 {
				name, fn = "DEC", (*CPU).dec
			}
			if y == 6 {
				return opcodeData{name, r[6], memMode(ix), 1, 11, 0, fn, false}, true
			}
			return opcodeData{name, r[y], REG, 1, 4, 0, fn, true}, y == 4 || y == 5
		case 6:
			if y == 6 {
				return opcodeData{"LD", r[6] + ",n", memMode(ix), 2, 10, 0, (*CPU).ldrn, false}, true
			}
			return opcodeData{"LD", r[y] + ",n", IMM, 2, 7, 0, (*CPU).ldrn, true}, y == 4 || y == 5
		default:
			names := [8]string{"RLCA", "RRCA", "RLA", "RRA", "DAA", "CPL", "SCF", "CCF"}
			fns := [8]instfunc{(*CPU).rlca, (*CPU).rrca, (*CPU).rla, (*CPU).rra,
				(*CPU).daa, (*CPU).cpl, (*CPU).scf, (*CPU).ccf}
			return opcodeData{names[y], "", IMP, 1, 4, 0, fns[y], false}, false
		}

	case 1:
		switch {
		case op == 0x76:
			return opcodeData{"HALT", "", IMP, 1, 4, 0, (*CPU).halt, false}, false
		case y == 6:
			return opcodeData{"LD", r[6] + "," + r8Names[0][z], memMode(ix), 1, 7, 0, (*CPU).ldrr, false}, true
		case z == 6:
			return opcodeData{"LD", r8Names[0][y] + "," + r[6], memMode(ix), 1, 7, 0, (*CPU).ldrr, false}, true
		default:
			return opcodeData{"LD", r[y] + "," + r[z], REG, 1, 4, 0, (*CPU).ldrr, true},
				y == 4 || y == 5 || z == 4 || z == 5
		}

	case 2:
		operands := r[z]
		if y < 2 || y == 3 {
			operands = "A," + operands
		}
		if z == 6 {
			return opcodeData{aluNames[y], operands, memMode(ix), 1, 7, 0, (*CPU).alu, false}, true
		}
		return opcodeData{aluNames[y], operands, REG, 1, 4, 0, (*CPU).alu, true}, z == 4 || z == 5

	default:
		switch z {
		case 0:
			return opcodeData{"RET", condNames[y], IMP, 1, 5, 6, (*CPU).retcc, false}, false
		case 1:
			if q == 0 {
				return opcodeData{"POP", rp2Name(p, ix), REG, 1, 10, 0, (*CPU).pop, false}, p == 2
			}
			switch p {
			case 0:
				return opcodeData{"RET", "", IMP, 1, 10, 0, (*CPU).ret, false}, false
			case 1:
				return opcodeData{"EXX", "", IMP, 1, 4, 0, (*CPU).exx, false}, false
			case 2:
				return opcodeData{"JP", "(" + hl + ")", REG, 1, 4, 0, (*CPU).jphl, false}, true
			default:
				return opcodeData{"LD", "SP," + hl, REG, 1, 6, 0, (*CPU).ldsphl, false}, true
			}
		case 2:
			return opcodeData{"JP", condNames[y] + ",nn", IMX, 3, 10, 0, (*CPU).jp, false}, false
		case 3:
			switch y {
			case 0:
				return opcodeData{"JP", "nn", IMX, 3, 10, 0, (*CPU).jp, false}, false
			case 1:
				return opcodeData{prefixName, "CB", IMP, 0, 0, 0, nil, false}, false
			case 2:
				return opcodeData{"OUT", "(n),A", PRT, 2, 11, 0, (*CPU).outna, false}, false
			case 3:
				return opcodeData{"IN", "A,(n)", PRT, 2, 11, 0, (*CPU).inan, false}, false
			case 4:
				return opcodeData{"EX", "(SP)," + hl, IND, 1, 19, 0, (*CPU).exsphl, false}, true
			case 5:
				return opcodeData{"EX", "DE,HL", REG, 1, 4, 0, (*CPU).exdehl, false}, false
			case 6:
				return opcodeData{"DI", "", IMP, 1, 4, 0, (*CPU).di, false}, false
			default:
				return opcodeData{"EI", "", IMP, 1, 4, 0, (*CPU).ei, false}, false
			}
		case 4:
			return opcodeData{"CALL", condNames[y] + ",nn", IMX, 3, 10, 7, (*CPU).call, false}, false
		case 5:
			if q == 0 {
				return opcodeData{"PUSH", rp2Name(p, ix), REG, 1, 11, 0, (*CPU).push, false}, p == 2
			}
			if p == 0 {
				return opcodeData{"CALL", "nn", IMX, 3, 17, 0, (*CPU).call, false}, false
			}
			return opcodeData{prefixName, [4]string{"", "DD", "ED", "FD"}[p], IMP, 0, 0, 0, nil, false}, false
		case 6:
			operands := "n"
			if y < 2 || y == 3 {
				operands = "A,n"
			}
			return opcodeData{aluNames[y], operands, IMM, 2, 7, 0, (*CPU).alu, false}, false
		default:
			return opcodeData{"RST", fmt.Sprintf("$%02X", y*8), IMP, 1, 11, 0, (*CPU).rst, false}, false
		}
	}
}

func memMode(ix indexReg) Mode {
	if ix == useHL {
		return IND
	}
	return IDX
}

// Produce the table entry for a CB-prefixed opcode. With an index
// register the entry describes the four-byte DD CB d xx form, whose
// operand is always (IX+d) or (IY+d). Those forms with a register
// operand also copy the result into the register.
func cbOpcode(op byte, ix indexReg) opcodeData {
	x, y, z := op>>6, (op>>3)&7, op&7

	if ix != useHL {
		operands := r8Names[ix][6]
		if x != 1 && z != 6 {
			operands += "," + r8Names[0][z]
		}
		switch x {
		case 0:
			return opcodeData{rotNames[y], operands, IDX, 4, 23, 0, (*CPU).rot, false}
		case 1:
			return opcodeData{"BIT", fmt.Sprintf("%d,%s", y, operands), IDX, 4, 20, 0, (*CPU).bit, false}
		case 2:
			return opcodeData{"RES", fmt.Sprintf("%d,%s", y, operands), IDX, 4, 23, 0, (*CPU).res, false}
		default:
			return opcodeData{"SET", fmt.Sprintf("%d,%s", y, operands), IDX, 4, 23, 0, (*CPU).set, false}
		}
	}

	mode, cycles := REG, byte(8)
	if z == 6 {
		mode, cycles = IND, 15
	}
	operand := r8Names[0][z]
	switch x {
	case 0:
		return opcodeData{rotNames[y], operand, mode, 2, cycles, 0, (*CPU).rot, false}
	case 1:
		if z == 6 {
			cycles = 12
		}
		return opcodeData{"BIT", fmt.Sprintf("%d,%s", y, operand), mode, 2, cycles, 0, (*CPU).bit, false}
	case 2:
		return opcodeData{"RES", fmt.Sprintf("%d,%s", y, operand), mode, 2, cycles, 0, (*CPU).res, false}
	default:
		return opcodeData{"SET", fmt.Sprintf("%d,%s", y, operand), mode, 2, cycles, 0, (*CPU).set, false}
	}
}

// Produce the table entry for an ED-prefixed opcode. The second return
// value is false for opcodes with no defined behavior.
func edOpcode(op byte) (opcodeData, bool) {
	x, y, z := op>>6, (op>>3)&7, op&7
	p, q := y>>1, y&1

	switch {
	case x == 1:
		switch z {
		case 0:
			if y == 6 {
				return opcodeData{"IN", "(C)", PRT, 2, 12, 0, (*CPU).inrc, false}, true
			}
			return opcodeData{"IN", r8Names[0][y] + ",(C)", PRT, 2, 12, 0, (*CPU).inrc, false}, true
		case 1:
			if y == 6 {
				return opcodeData{"OUT", "(C),0", PRT, 2, 12, 0, (*CPU).outcr, false}, true
			}
			return opcodeData{"OUT", "(C)," + r8Names[0][y], PRT, 2, 12, 0, (*CPU).outcr, false}, true
		case 2:
			if q == 0 {
				return opcodeData{"SBC", "HL," + rpName(p, useHL), REG, 2, 15, 0, (*CPU).sbchl, false}, true
			}
			return opcodeData{"ADC", "HL," + rpName(p, useHL), REG, 2, 15, 0, (*CPU).adchl, false}, true
		case 3:
			if q == 0 {
				return opcodeData{"LD", "(nn)," + rpName(p, useHL), EXT, 4, 20, 0, (*CPU).ldnnrp, false}, true
			}
			return opcodeData{"LD", rpName(p, useHL) + ",(nn)", EXT, 4, 20, 0, (*CPU).ldrpind, false}, true
		case 4:
			return opcodeData{"NEG", "", IMP, 2, 8, 0, (*CPU).neg, false}, true
		case 5:
			if y == 1 {
				return opcodeData{"RETI", "", IMP, 2, 14, 0, (*CPU).retn, false}, true
			}
			return opcodeData{"RETN", "", IMP, 2, 14, 0, (*CPU).retn, false}, true
		case 6:
			mode := [8]string{"0", "0", "1", "2", "0", "0", "1", "2"}[y]
			return opcodeData{"IM", mode, IMP, 2, 8, 0, (*CPU).im, false}, true
		default:
			switch y {
			case 0:
				return opcodeData{"LD", "I,A", REG, 2, 9, 0, (*CPU).ldia, false}, true
			case 1:
				return opcodeData{"LD", "R,A", REG, 2, 9, 0, (*CPU).ldra, false}, true
			case 2:
				return opcodeData{"LD", "A,I", REG, 2, 9, 0, (*CPU).ldai, false}, true
			case 3:
				return opcodeData{"LD", "A,R", REG, 2, 9, 0, (*CPU).ldar, false}, true
			case 4:
				return opcodeData{"RRD", "", IND, 2, 18, 0, (*CPU).rrd, false}, true
			case 5:
				return opcodeData{"RLD", "", IND, 2, 18, 0, (*CPU).rld, false}, true
			}
		}

	case x == 2 && y >= 4 && z <= 3:
		fns := [4]instfunc{(*CPU).ldblock, (*CPU).cpblock, (*CPU).inblock, (*CPU).outblock}
		return opcodeData{blkNames[y-4][z], "", IND, 2, 16, 5, fns[z], false}, true
	}

	return opcodeData{}, false
}

// Create the instruction set.
func newInstructionSet() *InstructionSet {
	set := &InstructionSet{variants: make(map[string][]*Instruction)}

	put := func(p Prefix, op byte, d opcodeData, ix indexReg, opLen, fetches byte) {
		inst := &set.tables[p][op]
		*inst = Instruction{
			Name:     d.name,
			Operands: d.operands,
			Mode:     d.mode,
			Prefix:   p,
			Opcode:   op,
			Length:   d.length,
			Cycles:   d.cycles,
			XCycles:  d.xcycles,
			opLen:    opLen,
			fetches:  fetches,
			index:    ix,
			subst:    d.subst && ix != useHL,
			fn:       d.fn,
		}
		if d.fn != nil {
			set.variants[d.name] = append(set.variants[d.name], inst)
		}
	}

	for i := 0; i < 256; i++ {
		op := byte(i)

		d, _ := baseOpcode(op, useHL)
		put(PrefixNone, op, d, useHL, 1, 1)

		put(PrefixCB, op, cbOpcode(op, useHL), useHL, 2, 2)

		if d, ok := edOpcode(op); ok {
			put(PrefixED, op, d, useHL, 2, 2)
		} else {
			d = opcodeData{unusedName, "", IMP, 1, 0, 0, nil, false}
			put(PrefixED, op, d, useHL, 1, 0)
		}

		for _, t := range []struct {
			p, pcb Prefix
			ix     indexReg
		}{{PrefixDD, PrefixDDCB, useIX}, {PrefixFD, PrefixFDCB, useIY}} {
			put(t.pcb, op, cbOpcode(op, t.ix), t.ix, 2, 2)

			switch op {
			case 0xcb:
				d := opcodeData{prefixName, t.pcb.String(), IMP, 0, 0, 0, nil, false}
				put(t.p, op, d, t.ix, 2, 2)
				continue
			case 0xdd, 0xed, 0xfd:
				// A prefix followed by another prefix is ignored.
				d := opcodeData{"NOP", "", IMP, 1, 4, 0, (*CPU).nop, false}
				put(t.p, op, d, useHL, 1, 1)
				continue
			}

			d, indexed := baseOpcode(op, t.ix)
			switch {
			case !indexed:
				// The prefix has no effect other than its own fetch.
				d, _ = baseOpcode(op, useHL)
				d.length++
				d.cycles += 4
				put(t.p, op, d, useHL, 2, 2)
			case d.mode == IDX:
				d.length += 2
				if op == 0x36 {
					d.cycles += 9
				} else {
					d.cycles += 12
				}
				put(t.p, op, d, t.ix, 2, 2)
			default:
				d.length++
				d.cycles += 4
				put(t.p, op, d, t.ix, 2, 2)
			}
		}
	}

	for p := range set.tables {
		for i := range set.tables[p] {
			if set.tables[p][i].Name == "" {
				panic("missing instruction")
			}
		}
	}
	return set
}

var instructionSet *InstructionSet

func init() {
	instructionSet = newInstructionSet()
}

// GetInstructionSet returns the Z80 instruction set.
func GetInstructionSet() *InstructionSet {
	return instructionSet
}
