package cpm_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/beevik/goz80/cpm"
	"github.com/beevik/goz80/cpu"
)

// Programs used by several tests, loaded at $0100.
var (
	helloProgram = program(0x30,
		0x11, 0x09, 0x01, // LD DE,$0109
		0x0e, 0x09, // LD C,9
		0xcd, 0x05, 0x00, // CALL 5
		0xc9, // RET
		'H', 'e', 'l', 'l', 'o', '$')

	echoProgram = program(0x10,
		0x0e, 0x01, // LD C,1
		0xcd, 0x05, 0x00, // CALL 5
		0x5f,       // LD E,A
		0x0e, 0x02, // LD C,2
		0xcd, 0x05, 0x00, // CALL 5
		0xc9) // RET

	badCallProgram = program(0x10,
		0x0e, 0x63, // LD C,99
		0xcd, 0x05, 0x00) // CALL 5
)

func program(size int, code ...byte) []byte {
	b := make([]byte, size)
	copy(b, code)
	return b
}

func run(t *testing.T, image []byte, input string, opts ...cpm.Option) (*cpm.Machine, string, error) {
	t.Helper()

	var out bytes.Buffer
	opts = append([]cpm.Option{cpm.WithConsole(strings.NewReader(input), &out)}, opts...)
	m := cpm.New(opts...)
	if err := m.Load(bytes.NewReader(image), nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	err := m.Run(context.Background())
	return m, out.String(), err
}

func TestHelloWorld(t *testing.T) {
	m, out, err := run(t, helloProgram, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "Hello" {
		t.Errorf("output incorrect. exp: %q, got: %q", "Hello", out)
	}

	s := m.Stats()
	if s.Instructions != 4 || s.Syscalls != 1 || s.Cycles != 10+7+17+10 {
		t.Errorf("stats incorrect. got: %+v", s)
	}
}

func TestTerminate(t *testing.T) {
	image := program(0x10,
		0x0e, 0x00, // LD C,0
		0xcd, 0x05, 0x00, // CALL 5
		0x0e, 0x02, // LD C,2
		0x1e, 'X', // LD E,'X'
		0xcd, 0x05, 0x00) // CALL 5

	_, out, err := run(t, image, "")
	if err != nil {
		t.Errorf("P_TERMCPM returned error: %v", err)
	}
	if out != "" {
		t.Errorf("program continued after P_TERMCPM. output: %q", out)
	}
}

func TestWarmBoot(t *testing.T) {
	image := program(0x10, 0xc3, 0x00, 0x00) // JP 0
	m, _, err := run(t, image, "")
	if err != nil {
		t.Errorf("warm boot returned error: %v", err)
	}
	if m.CPU.Reg.PC != 0 {
		t.Errorf("PC incorrect. exp: $0000, got: $%04X", m.CPU.Reg.PC)
	}
}

func TestReadChar(t *testing.T) {
	_, out, err := run(t, echoProgram, "x")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "xx" {
		t.Errorf("output incorrect. exp: %q, got: %q", "xx", out)
	}

	// End of input reads as ^Z.
	_, out, _ = run(t, echoProgram, "")
	if out != "\x1a" {
		t.Errorf("EOF output incorrect. exp: %q, got: %q", "\x1a", out)
	}
}

func TestReadString(t *testing.T) {
	for _, test := range []struct {
		capacity byte
		input    string
		exp      string
	}{
		{16, "hello world\r\nnext", "hello world"},
		{5, "hello world\n", "hello"},
		{16, "", ""},
	} {
		image := program(0x30,
			0x3e, test.capacity, // LD A,capacity
			0x32, 0x20, 0x01, // LD ($0120),A
			0x11, 0x20, 0x01, // LD DE,$0120
			0x0e, 0x0a, // LD C,10
			0xcd, 0x05, 0x00, // CALL 5
			0xc9) // RET

		m, out, err := run(t, image, test.input)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		n := m.Mem.LoadByte(0x0121)
		got := make([]byte, n)
		m.Mem.LoadBytes(0x0122, got)
		if string(got) != test.exp {
			t.Errorf("line incorrect. exp: %q, got: %q", test.exp, got)
		}
		if !strings.HasPrefix(out, test.exp) || !strings.HasSuffix(out, "\r\n") {
			t.Errorf("echo incorrect. got: %q", out)
		}
	}
}

func TestVersion(t *testing.T) {
	image := program(0x10,
		0x0e, 0x0c, // LD C,12
		0xcd, 0x05, 0x00, // CALL 5
		0x32, 0x00, 0x02, // LD ($0200),A
		0x22, 0x02, 0x02, // LD ($0202),HL
		0xc9) // RET

	m, _, err := run(t, image, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v := m.Mem.LoadByte(0x0200); v != 0x22 {
		t.Errorf("A incorrect. exp: $22, got: $%02X", v)
	}
	if v := m.Mem.LoadAddress(0x0202); v != 0x0022 {
		t.Errorf("HL incorrect. exp: $0022, got: $%04X", v)
	}
}

func TestDriveAndUser(t *testing.T) {
	image := []byte{
		0x0e, 0x0e, 0x1e, 0x03, 0xcd, 0x05, 0x00, // DRV_SET 3
		0x0e, 0x19, 0xcd, 0x05, 0x00, // DRV_GET
		0x32, 0x00, 0x02, // LD ($0200),A
		0x0e, 0x20, 0x1e, 0x07, 0xcd, 0x05, 0x00, // F_USERNUM 7
		0x0e, 0x20, 0x1e, 0xff, 0xcd, 0x05, 0x00, // F_USERNUM get
		0x32, 0x01, 0x02, // LD ($0201),A
		0xc9, // RET
	}

	m, _, err := run(t, program(0x40, image...), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v := m.Mem.LoadByte(0x0200); v != 3 {
		t.Errorf("drive incorrect. exp: 3, got: %d", v)
	}
	if v := m.Mem.LoadByte(0x0201); v != 7 {
		t.Errorf("user incorrect. exp: 7, got: %d", v)
	}
}

func TestUnknownSyscall(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	m, _, err := run(t, badCallProgram, "", cpm.WithLogger(logger))
	if !errors.Is(err, cpm.ErrUnknownSyscall) {
		t.Fatalf("error incorrect. exp: %v, got: %v", cpm.ErrUnknownSyscall, err)
	}
	if m.CPU.Reg.PC != 0x0005 {
		t.Errorf("PC incorrect. exp: $0005, got: $%04X", m.CPU.Reg.PC)
	}
	if !strings.Contains(logs.String(), "syscall=99") {
		t.Errorf("unknown syscall not logged. logs: %s", logs.String())
	}
}

func TestUnimplementedOpcode(t *testing.T) {
	image := program(0x10, 0x00, 0xed, 0x00) // NOP; ED 00
	_, _, err := run(t, image, "")
	if !errors.Is(err, cpm.ErrUnimplemented) {
		t.Errorf("error incorrect. exp: %v, got: %v", cpm.ErrUnimplemented, err)
	}
}

func TestCycleLimit(t *testing.T) {
	image := program(0x10, 0x18, 0xfe) // JR $
	m, _, err := run(t, image, "", cpm.WithMaxCycles(1000))
	if !errors.Is(err, cpm.ErrCycleLimit) {
		t.Fatalf("error incorrect. exp: %v, got: %v", cpm.ErrCycleLimit, err)
	}
	if c := m.Stats().Cycles; c < 1000 || c >= 1012 {
		t.Errorf("cycles incorrect. got: %d", c)
	}
}

func TestContextCancel(t *testing.T) {
	m := cpm.New()
	if err := m.Load(bytes.NewReader(program(0x10, 0x18, 0xfe)), nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error incorrect. exp: %v, got: %v", context.Canceled, err)
	}
}

func TestLoad(t *testing.T) {
	m := cpm.New()
	if err := m.Load(bytes.NewReader(helloProgram), []string{"b:foo.txt", "bar"}); err != nil {
		t.Fatal(err)
	}

	expectBytes(t, m, 0x0000, []byte{0x76})
	expectBytes(t, m, 0x0005, []byte{0xc3, 0x00, 0xfe})
	expectBytes(t, m, 0x005c, append([]byte{2}, "FOO"+strings.Repeat(" ", 5)+"TXT"...))
	expectBytes(t, m, 0x006c, append([]byte{0}, "BAR"+strings.Repeat(" ", 8)...))
	expectBytes(t, m, 0x0080, append([]byte{14}, " B:FOO.TXT BAR"...))
	expectBytes(t, m, 0x0100, helloProgram[:4])

	if m.CPU.Reg.PC != 0x0100 || m.CPU.Reg.SP != 0xfdfe {
		t.Errorf("registers incorrect. PC=$%04X SP=$%04X", m.CPU.Reg.PC, m.CPU.Reg.SP)
	}
	if v := m.Mem.LoadAddress(m.CPU.Reg.SP); v != 0 {
		t.Errorf("return address incorrect. exp: $0000, got: $%04X", v)
	}

	err := m.Load(bytes.NewReader(make([]byte, 0xfe00)), nil)
	if !errors.Is(err, cpu.ErrLoadOverflow) {
		t.Errorf("error incorrect. exp: %v, got: %v", cpu.ErrLoadOverflow, err)
	}
}

func TestDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if _, _, err := run(t, helloProgram, "", cpm.WithLogger(logger)); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"name=C_WRITESTR", "syscall=9", "warm boot"} {
		if !strings.Contains(logs.String(), s) {
			t.Errorf("log missing %q. logs: %s", s, logs.String())
		}
	}
}

func TestRunBatch(t *testing.T) {
	jobs := []cpm.Job{
		{Name: "hello", Image: helloProgram},
		{Name: "echo", Image: echoProgram, Input: strings.NewReader("q")},
		{Name: "bad", Image: badCallProgram},
		{Name: "hello2", Image: helloProgram},
	}

	results, err := cpm.RunBatch(context.Background(), jobs, 2)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("result count incorrect. exp: %d, got: %d", len(jobs), len(results))
	}

	exp := []string{"Hello", "qq", "", "Hello"}
	for i, r := range results {
		if r.Name != jobs[i].Name {
			t.Errorf("result %d name incorrect. exp: %s, got: %s", i, jobs[i].Name, r.Name)
		}
		if string(r.Output) != exp[i] {
			t.Errorf("%s output incorrect. exp: %q, got: %q", r.Name, exp[i], r.Output)
		}
	}

	if !errors.Is(results[2].Err, cpm.ErrUnknownSyscall) {
		t.Errorf("bad job error incorrect. got: %v", results[2].Err)
	}
	for _, i := range []int{0, 1, 3} {
		if results[i].Err != nil {
			t.Errorf("%s failed: %v", results[i].Name, results[i].Err)
		}
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := cpm.RunBatch(ctx, []cpm.Job{{Name: "hello", Image: helloProgram}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error incorrect. exp: %v, got: %v", context.Canceled, err)
	}
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("result error incorrect. got: %v", results[0].Err)
	}
}

func expectBytes(t *testing.T, m *cpm.Machine, addr uint16, exp []byte) {
	t.Helper()
	got := make([]byte, len(exp))
	m.Mem.LoadBytes(addr, got)
	if !bytes.Equal(got, exp) {
		t.Errorf("memory at $%04X incorrect. exp: % X, got: % X", addr, exp, got)
	}
}
