package cpu_test

import (
	"testing"
	"testing/quick"

	"github.com/beevik/goz80/cpu"
)

func TestBits(t *testing.T) {
	if !cpu.Bit(0x80, 7) || cpu.Bit(0x80, 6) {
		t.Error("Bit incorrect")
	}
	if v := cpu.SetBit(0x00, 3, true); v != 0x08 {
		t.Errorf("SetBit incorrect. exp: $08, got: $%02X", v)
	}
	if v := cpu.SetBit(0xff, 0, false); v != 0xfe {
		t.Errorf("SetBit incorrect. exp: $FE, got: $%02X", v)
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	f := func(b byte) bool {
		var flags cpu.Flags
		flags.SetByte(b)
		return flags.Byte() == b
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestRegisterPairs(t *testing.T) {
	var r cpu.Registers
	r.Init()

	r.SetBC(0x1234)
	r.SetDE(0x5678)
	r.SetHL(0x9abc)
	r.SetAF(0xdeff)

	if r.B() != 0x12 || r.C() != 0x34 || r.D() != 0x56 || r.E() != 0x78 || r.H() != 0x9a || r.L() != 0xbc {
		t.Error("register halves incorrect")
	}
	if r.A() != 0xde || r.Flags().Byte() != 0xff || r.AF() != 0xdeff {
		t.Errorf("AF incorrect. exp: $DEFF, got: $%04X", r.AF())
	}

	r.IX = 0x1122
	r.SetIXL(0x33)
	r.SetIYH(0x44)
	if r.IX != 0x1133 || r.IXH() != 0x11 || r.IY != 0x4400 || r.IYL() != 0x00 {
		t.Errorf("index halves incorrect. IX=$%04X IY=$%04X", r.IX, r.IY)
	}
}

func TestRegisterBanks(t *testing.T) {
	var r cpu.Registers
	r.Init()
	r.SetA(1)
	r.SetHL(0x1111)

	r.ExchangeAF()
	r.SetA(2)
	if r.HL() != 0x1111 {
		t.Error("EX AF,AF' swapped HL")
	}

	r.Exchange()
	r.SetHL(0x2222)
	if r.A() != 2 {
		t.Error("EXX swapped A")
	}

	r.ExchangeAF()
	r.Exchange()
	main, alt := r.Main(), r.Alt()
	if main.A != 1 || main.HL() != 0x1111 {
		t.Errorf("main bank incorrect. A=$%02X HL=$%04X", main.A, main.HL())
	}
	if alt.A != 2 || alt.HL() != 0x2222 {
		t.Errorf("alternate bank incorrect. A=$%02X HL=$%04X", alt.A, alt.HL())
	}
}

// ADD A,b followed by SUB b restores A, leaves N set and borrows exactly
// when the addition carried.
func TestAddSubRoundTrip(t *testing.T) {
	f := func(a, b byte) bool {
		c := loadCPU(t, "3E"+hex2(a)+"C6"+hex2(b)+"D6"+hex2(b))
		stepCPU(c, 2)
		carried := c.Reg.Flags().Carry
		stepCPU(c, 1)
		flags := c.Reg.Flags()
		return c.Reg.A() == a && flags.Subtract && flags.Carry == carried
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestIncPreservesCarryQuick(t *testing.T) {
	f := func(v byte, carry bool) bool {
		scf := "B7" // OR A
		if carry {
			scf = "37" // SCF
		}
		c := runCPU(t, scf+"06"+hex2(v)+"04", 3) // LD B,v; INC B
		flags := c.Reg.Flags()
		return c.Reg.B() == v+1 && flags.Carry == carry &&
			flags.Zero == (v == 0xff) && flags.HalfCarry == (v&0x0f == 0x0f)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func hex2(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0f]})
}
