// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpm runs CP/M-80 .COM programs on the Z80 emulator. The BDOS is
// emulated in Go: a trap at address 0x0005 dispatches the call selected by
// register C and then returns to the caller.
package cpm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/beevik/goz80/cpu"
)

// Errors
var (
	// ErrUnimplemented is returned when the program executes an opcode the
	// CPU does not implement.
	ErrUnimplemented = errors.New("unimplemented opcode")

	// ErrUnknownSyscall is returned when the program makes a BDOS call
	// with no handler.
	ErrUnknownSyscall = errors.New("unknown syscall")

	// ErrCycleLimit is returned when the program exhausts its cycle
	// budget.
	ErrCycleLimit = errors.New("cycle limit exceeded")

	// ErrWarmBoot is returned by a syscall handler to end the program
	// normally. Run reports it as a nil error.
	ErrWarmBoot = errors.New("warm boot")
)

// Memory layout of the emulated system
const (
	bootAddr  = 0x0000 // warm boot entry
	bdosEntry = 0x0005 // JP to the BDOS
	fcb1Addr  = 0x005c // default file control block 1
	fcb2Addr  = 0x006c // default file control block 2
	tailAddr  = 0x0080 // command tail and default DMA buffer
	tpaStart  = 0x0100 // program load address
	bdosBase  = 0xfe00 // BDOS page, also the top of the TPA
)

// How many steps to execute between checks of the context
const ctxCheckInterval = 4096

// A Syscall describes a single BDOS function.
type Syscall struct {
	// Desc is the conventional name of the call, e.g. "C_WRITE".
	Desc string

	// Handler emulates the call. A non-nil error stops the machine.
	Handler func(m *Machine) error
}

// Stats counts the work done by a machine.
type Stats struct {
	Instructions uint64 // instructions executed, excluding BDOS traps
	Cycles       uint64 // T-states elapsed
	Syscalls     uint64 // BDOS calls handled
}

// A Machine is a CP/M system built around a single Z80 CPU with 64K of
// memory. A Machine is not safe for concurrent use.
type Machine struct {
	CPU      *cpu.CPU
	Mem      *cpu.FlatMemory
	Syscalls map[uint8]Syscall
	Logger   *slog.Logger

	in        *bufio.Reader
	out       io.Writer
	maxCycles uint64
	drive     uint8
	user      uint8
	dma       uint16
	stats     Stats
	err       error
}

// An Option configures a Machine.
type Option func(m *Machine)

// WithLogger sets the logger that receives BDOS traces and failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.Logger = l
	}
}

// WithConsole sets the console input and output streams.
func WithConsole(r io.Reader, w io.Writer) Option {
	return func(m *Machine) {
		m.in = bufio.NewReader(r)
		m.out = w
	}
}

// WithMaxCycles limits the number of T-states a program may run. Zero
// means no limit.
func WithMaxCycles(n uint64) Option {
	return func(m *Machine) {
		m.maxCycles = n
	}
}

// New creates a CP/M machine. Without options, the console reads nothing
// and discards output, and logging is discarded.
func New(opts ...Option) *Machine {
	mem := cpu.NewFlatMemory(0x10000)
	m := &Machine{
		CPU:      cpu.NewCPU(mem),
		Mem:      mem,
		Syscalls: defaultSyscalls(),
		Logger:   slog.New(slog.DiscardHandler),
		in:       bufio.NewReader(strings.NewReader("")),
		out:      io.Discard,
		dma:      tailAddr,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.CPU.AttachTrap(bdosEntry, &bdosTrap{m})
	m.CPU.AttachUnimplementedHandler(&unimplTrap{m})
	return m
}

// Load reads a .COM image from 'r' into the transient program area and
// prepares the zero page for a run with the command-line arguments
// 'args'.
func (m *Machine) Load(r io.Reader, args []string) error {
	image, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	if len(image) > bdosBase-tpaStart {
		return fmt.Errorf("program of %d bytes: %w", len(image), cpu.ErrLoadOverflow)
	}

	m.Mem.ClearROM()
	m.Mem.StoreBytes(0, make([]byte, m.Mem.Size()))
	m.Mem.StoreBytes(tpaStart, image)

	// Zero page: a warm boot halts, and the BDOS jump publishes the top
	// of the TPA.
	m.Mem.StoreByte(bootAddr, 0x76)
	m.Mem.StoreBytes(bdosEntry, []byte{0xc3, byte(bdosBase), byte(bdosBase >> 8)})
	m.Mem.StoreByte(bdosBase, 0xc9)

	m.Mem.StoreBytes(fcb1Addr, makeFCB(arg(args, 0)))
	m.Mem.StoreBytes(fcb2Addr, makeFCB(arg(args, 1)))
	m.Mem.StoreBytes(tailAddr, commandTail(args))

	m.CPU.Reset()
	m.CPU.Reg.SP = bdosBase - 2
	m.Mem.StoreAddress(m.CPU.Reg.SP, bootAddr)
	m.CPU.SetPC(tpaStart)

	m.drive, m.user, m.dma = 0, 0, tailAddr
	m.stats = Stats{}
	m.err = nil

	m.Logger.Debug("program loaded",
		slog.Int("size", len(image)),
		slog.String("args", strings.Join(args, " ")))
	return nil
}

// Run executes the loaded program until it returns to CP/M, halts or
// fails. A program that ends by jumping to address 0, by calling
// P_TERMCPM or by halting returns nil.
func (m *Machine) Run(ctx context.Context) error {
	c := m.CPU
	for n := 0; ; n++ {
		if c.Reg.PC == bootAddr {
			m.Logger.Debug("warm boot", slog.String("from", hex16(c.LastPC)))
			return nil
		}
		if c.Halted {
			m.Logger.Debug("halted", slog.String("pc", hex16(c.LastPC)))
			return nil
		}
		if m.maxCycles > 0 && c.Cycles >= m.maxCycles {
			return fmt.Errorf("after %d cycles: %w", c.Cycles, ErrCycleLimit)
		}
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		pc := c.Reg.PC
		c.Step()
		if pc != bdosEntry {
			m.stats.Instructions++
		}

		if err := m.err; err != nil {
			m.err = nil
			if errors.Is(err, ErrWarmBoot) {
				return nil
			}
			return err
		}
	}
}

// Stats returns the machine's counters for the current program.
func (m *Machine) Stats() Stats {
	s := m.stats
	s.Cycles = m.CPU.Cycles
	return s
}

// The bdosTrap dispatches BDOS calls made through address 0x0005.
type bdosTrap struct {
	m *Machine
}

func (t *bdosTrap) OnTrap(c *cpu.CPU) {
	m := t.m
	n := c.Reg.C()
	caller := c.Mem.LoadAddress(c.Reg.SP)

	call, ok := m.Syscalls[n]
	if !ok {
		m.Logger.Error("unknown syscall",
			slog.Int("syscall", int(n)),
			slog.String("caller", hex16(caller)))
		m.err = fmt.Errorf("syscall %d from %s: %w", n, hex16(caller), ErrUnknownSyscall)
		return
	}

	m.stats.Syscalls++
	m.Logger.Debug("bdos",
		slog.String("name", call.Desc),
		slog.Int("syscall", int(n)),
		slog.String("caller", hex16(caller)))

	if err := call.Handler(m); err != nil {
		m.err = err
		return
	}

	// Return to the caller.
	c.Reg.PC = caller
	c.Reg.SP += 2
}

// The unimplTrap stops the machine on an opcode the CPU cannot execute.
type unimplTrap struct {
	m *Machine
}

func (t *unimplTrap) OnUnimplemented(c *cpu.CPU, inst *cpu.Instruction) {
	op := fmt.Sprintf("%s %02X", inst.Prefix, inst.Opcode)
	t.m.Logger.Error("unimplemented opcode",
		slog.String("opcode", strings.TrimSpace(op)),
		slog.String("pc", hex16(c.LastPC)))
	t.m.err = fmt.Errorf("opcode %s at %s: %w", strings.TrimSpace(op), hex16(c.LastPC), ErrUnimplemented)
}

func hex16(v uint16) string {
	return fmt.Sprintf("0x%04X", v)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// Build the 16-byte file control block for a command-line argument of
// the form [d:]name[.ext].
func makeFCB(s string) []byte {
	fcb := make([]byte, 16)
	for i := 1; i < 12; i++ {
		fcb[i] = ' '
	}

	s = strings.ToUpper(s)
	if len(s) >= 2 && s[1] == ':' && s[0] >= 'A' && s[0] <= 'P' {
		fcb[0] = s[0] - 'A' + 1
		s = s[2:]
	}

	name, ext, _ := strings.Cut(s, ".")
	copy(fcb[1:9], fcbField(name, 8))
	copy(fcb[9:12], fcbField(ext, 3))
	return fcb
}

func fcbField(s string, n int) []byte {
	if len(s) > n {
		s = s[:n]
	}
	return []byte(s)
}

// Build the length-prefixed command tail stored at 0x0080. CP/M keeps the
// space that separated the tail from the command name.
func commandTail(args []string) []byte {
	tail := ""
	if len(args) > 0 {
		tail = " " + strings.ToUpper(strings.Join(args, " "))
	}
	if len(tail) > 126 {
		tail = tail[:126]
	}
	b := make([]byte, 0, len(tail)+2)
	b = append(b, byte(len(tail)))
	b = append(b, tail...)
	return append(b, 0)
}
