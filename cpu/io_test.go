package cpu_test

import (
	"testing"

	"github.com/beevik/goz80/cpu"
)

func TestPortLatch(t *testing.T) {
	l := cpu.NewPortLatch()

	if v := l.In(0x10); v != 0xff {
		t.Errorf("unstaged input incorrect. exp: $FF, got: $%02X", v)
	}

	l.Stage(0x10, 0x42)
	if v, ok := l.Staged(0x10); !ok || v != 0x42 {
		t.Error("staged value missing")
	}
	if v := l.In(0xab10); v != 0x42 {
		t.Errorf("staged input incorrect. exp: $42, got: $%02X", v)
	}
	if v := l.In(0x10); v != 0xff {
		t.Errorf("input not consumed. exp: $FF, got: $%02X", v)
	}

	if _, ok := l.Output(0x20); ok {
		t.Error("output present before any write")
	}
	l.Out(0x0120, 0x11)
	l.Out(0x0220, 0x22)
	if v, ok := l.Output(0x20); !ok || v != 0x22 {
		t.Errorf("output incorrect. exp: $22, got: $%02X", v)
	}
	if v, ok := l.Drain(0x20); !ok || v != 0x22 {
		t.Errorf("drained output incorrect. exp: $22, got: $%02X", v)
	}
	if _, ok := l.Output(0x20); ok {
		t.Error("output present after drain")
	}
}

func TestPortInstructions(t *testing.T) {
	code := `
	3E 41		; LD A,$41
	D3 10		; OUT ($10),A
	DB 20		; IN A,($20)
	01 20 00	; LD BC,$0020
	ED 50		; IN D,(C)
	0E 30		; LD C,$30
	ED 59		; OUT (C),E`

	c := loadCPU(t, strip(code))
	latch := c.IO.(*cpu.PortLatch)
	latch.Stage(0x20, 0x99)

	stepCPU(c, 2)
	if v, _ := latch.Output(0x10); v != 0x41 {
		t.Errorf("OUT value incorrect. exp: $41, got: $%02X", v)
	}

	// IN A,(n) leaves the flags alone.
	stepCPU(c, 1)
	expectACC(t, c, 0x99)
	expectFlags(t, c, "sz-h-pnc")

	latch.Stage(0x20, 0x80)
	stepCPU(c, 2)
	if c.Reg.D() != 0x80 {
		t.Errorf("D incorrect. exp: $80, got: $%02X", c.Reg.D())
	}
	expectFlags(t, c, "Sz-h-pn.")

	c.Reg.SetE(0x5e)
	stepCPU(c, 2)
	if v, _ := latch.Output(0x30); v != 0x5e {
		t.Errorf("OUT (C) value incorrect. exp: $5E, got: $%02X", v)
	}
}

func TestBlockInput(t *testing.T) {
	code := `
	21 00 30	; LD HL,$3000
	01 20 02	; LD BC,$0220
	ED B2		; INIR`

	c := loadCPU(t, strip(code))
	latch := c.IO.(*cpu.PortLatch)
	latch.Stage(0x20, 0x12)
	stepCPU(c, 2)

	if got := c.Step(); got != 21 {
		t.Errorf("INIR cycles incorrect. exp: 21, got: %d", got)
	}
	expectPC(t, c, 0x1006)
	if got := c.Step(); got != 16 {
		t.Errorf("INIR cycles incorrect. exp: 16, got: %d", got)
	}
	expectPC(t, c, 0x1008)

	expectMem(t, c, 0x3000, 0x12)
	expectMem(t, c, 0x3001, 0xff)
	expectReg16(t, "HL", c.Reg.HL(), 0x3002)
	if c.Reg.B() != 0 {
		t.Errorf("B incorrect. exp: 0, got: %d", c.Reg.B())
	}
	expectFlags(t, c, ".Z-.-.N.")
}

func TestBlockOutput(t *testing.T) {
	code := `
	21 00 30	; LD HL,$3000
	01 10 02	; LD BC,$0210
	ED BB		; OTDR`

	c := loadCPU(t, strip(code))
	c.Mem.StoreBytes(0x2fff, []byte{0x11, 0x22})
	stepCPU(c, 4)

	latch := c.IO.(*cpu.PortLatch)
	if v, _ := latch.Output(0x10); v != 0x11 {
		t.Errorf("OTDR output incorrect. exp: $11, got: $%02X", v)
	}
	expectReg16(t, "HL", c.Reg.HL(), 0x2ffe)
	expectPC(t, c, 0x1008)
	expectCycles(t, c, 10+10+21+16)
}
