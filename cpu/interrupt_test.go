package cpu_test

import (
	"testing"
)

func TestInterruptMode2(t *testing.T) {
	code := `
	3E 02		; LD A,$02
	ED 47		; LD I,A
	ED 5E		; IM 2
	FB		; EI
	00		; NOP`

	cpu := loadCPU(t, strip(code))
	cpu.Mem.StoreAddress(0x0202, 0x3456)
	stepCPU(cpu, 4)
	expectPC(t, cpu, 0x1007)

	if got := cpu.Interrupt(0x02); got != 19 {
		t.Errorf("IM2 cycles incorrect. exp: 19, got: %d", got)
	}
	expectPC(t, cpu, 0x3456)
	expectSP(t, cpu, 0xfffd)
	expectMem(t, cpu, 0xfffd, 0x07)
	expectMem(t, cpu, 0xfffe, 0x10)
	if cpu.IFF1 || cpu.IFF2 {
		t.Error("interrupts still enabled")
	}
}

func TestInterruptMode1(t *testing.T) {
	cpu := runCPU(t, "ED 56 FB 76", 3) // IM 1; EI; HALT
	if !cpu.Halted {
		t.Fatal("CPU not halted")
	}

	if got := cpu.Interrupt(0); got != 13 {
		t.Errorf("IM1 cycles incorrect. exp: 13, got: %d", got)
	}
	if cpu.Halted {
		t.Error("interrupt did not end HALT")
	}
	expectPC(t, cpu, 0x0038)
	expectMem(t, cpu, 0xfffd, 0x04)
	expectMem(t, cpu, 0xfffe, 0x10)
}

func TestInterruptMode0(t *testing.T) {
	cpu := runCPU(t, "FB", 1) // EI
	if got := cpu.Interrupt(0xd7); got != 13 { // RST $10
		t.Errorf("IM0 cycles incorrect. exp: 13, got: %d", got)
	}
	expectPC(t, cpu, 0x0010)
	expectMem(t, cpu, 0xfffd, 0x01)

	// Multi-byte opcodes on the data bus fall back to RST $38.
	cpu = runCPU(t, "FB", 1)
	cpu.Interrupt(0xcd)
	expectPC(t, cpu, 0x0038)
}

func TestInterruptDisabled(t *testing.T) {
	cpu := runCPU(t, "F3 00", 2) // DI; NOP
	before := cpu.Reg
	if got := cpu.Interrupt(0xff); got != 0 {
		t.Errorf("ignored interrupt cycles incorrect. exp: 0, got: %d", got)
	}
	if cpu.Reg != before {
		t.Error("ignored interrupt changed registers")
	}
	expectPC(t, cpu, 0x1002)
}

func TestNMI(t *testing.T) {
	code := `
	FB		; EI
	76		; HALT`

	cpu := runCPU(t, strip(code), 2)
	cpu.Mem.StoreBytes(0x0066, []byte{0xed, 0x45}) // RETN

	if got := cpu.NMI(); got != 11 {
		t.Errorf("NMI cycles incorrect. exp: 11, got: %d", got)
	}
	expectPC(t, cpu, 0x0066)
	if cpu.Halted || cpu.IFF1 || !cpu.IFF2 {
		t.Errorf("NMI state incorrect. halted=%v IFF1=%v IFF2=%v", cpu.Halted, cpu.IFF1, cpu.IFF2)
	}

	// Maskable interrupts are blocked during the NMI handler.
	if cpu.Interrupt(0xff) != 0 {
		t.Error("maskable interrupt accepted in NMI handler")
	}

	stepCPU(cpu, 1)
	expectPC(t, cpu, 0x1002)
	if !cpu.IFF1 {
		t.Error("RETN did not restore IFF1")
	}
}

func TestInterruptModes(t *testing.T) {
	for _, test := range []struct {
		code string
		mode byte
	}{
		{"ED 46", 0},
		{"ED 56", 1},
		{"ED 5E", 2},
		{"ED 76", 1},
		{"ED 7E", 2},
	} {
		cpu := runCPU(t, "ED 5E "+test.code, 2)
		if cpu.IM != test.mode {
			t.Errorf("%s mode incorrect. exp: %d, got: %d", test.code, test.mode, cpu.IM)
		}
	}
}

func TestEnableDisable(t *testing.T) {
	code := `
	FB		; EI
	F3		; DI
	FB		; EI`

	cpu := loadCPU(t, strip(code))
	stepCPU(cpu, 1)
	if !cpu.IFF1 || !cpu.IFF2 {
		t.Error("EI did not enable interrupts")
	}
	stepCPU(cpu, 1)
	if cpu.IFF1 || cpu.IFF2 {
		t.Error("DI did not disable interrupts")
	}

	// EI takes effect immediately.
	stepCPU(cpu, 1)
	if cpu.Interrupt(0xff) == 0 {
		t.Error("interrupt not accepted after EI")
	}
}
