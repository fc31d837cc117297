// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a Z80 instruction set
// disassembler.
package disasm

import (
	"fmt"
	"strings"

	"github.com/beevik/goz80/cpu"
)

var hex = "0123456789ABCDEF"

func hexByte(b byte) string {
	return string([]byte{hex[b>>4], hex[b&0xf]})
}

func hexWord(w uint16) string {
	return hexByte(byte(w>>8)) + hexByte(byte(w))
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	inst := cpu.GetInstructionSet().Decode(m, addr)
	next = addr + uint16(inst.Length)
	if inst.Operands == "" {
		return inst.Name, next
	}

	// Operand bytes follow the prefix and opcode, except that the opcode of
	// an indexed bit instruction follows its displacement.
	pos := addr + 1
	if inst.Prefix != cpu.PrefixNone {
		pos++
	}
	take := func() byte {
		v := m.LoadByte(pos)
		pos++
		return v
	}

	var b strings.Builder
	ops := inst.Operands
	for i := 0; i < len(ops); i++ {
		switch c := ops[i]; {
		case c == '+' && i+1 < len(ops) && ops[i+1] == 'd':
			d := take()
			if d&0x80 != 0 {
				b.WriteString("-$" + hexByte(-d))
			} else {
				b.WriteString("+$" + hexByte(d))
			}
			i++
		case c == 'n' && i+1 < len(ops) && ops[i+1] == 'n':
			lo := take()
			hi := take()
			b.WriteString("$" + hexWord(uint16(hi)<<8|uint16(lo)))
			i++
		case c == 'n':
			b.WriteString("$" + hexByte(take()))
		case c == 'e':
			target := next + uint16(int8(take()))
			b.WriteString("$" + hexWord(target))
		default:
			b.WriteByte(c)
		}
	}

	return inst.Name + " " + b.String(), next
}

// GetRegisterString returns a string describing the contents of the Z80
// registers.
func GetRegisterString(r *cpu.Registers) string {
	return fmt.Sprintf("AF=%04X BC=%04X DE=%04X HL=%04X IX=%04X IY=%04X SP=%04X F=%s",
		r.AF(), r.BC(), r.DE(), r.HL(), r.IX, r.IY, r.SP, GetFlagString(*r.Flags()))
}

// GetFlagString returns a string describing the CPU flags. Each set flag
// appears as its letter and each clear flag as a dash.
func GetFlagString(f cpu.Flags) string {
	const letters = "SZYHXPNC"
	b := []byte(letters)
	v := f.Byte()
	for i := range b {
		if v&(0x80>>i) == 0 {
			b[i] = '-'
		}
	}
	return string(b)
}
