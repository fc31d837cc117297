// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host allows you to create a "host" that emulates a computer system
// with a Z80 CPU, 64K of memory, a polled I/O port latch, a built-in
// debugger, and other useful tools.
//
// Within the host it is possible to load machine code into memory, debug
// and step through machine code, measure the number of CPU cycles elapsed,
// set address, data and port breakpoints, raise interrupts, dump the
// contents of memory, disassemble the contents of memory, manipulate CPU
// registers and memory, and evaluate arbitrary expressions.
package host

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/goz80/cpu"
	"github.com/beevik/goz80/disasm"
)

// ErrQuit is returned by RunCommands when the quit command is executed.
var ErrQuit = errors.New("quit")

type displayFlags uint8

const (
	displayRegisters displayFlags = 1 << iota
	displayCycles
	displayAnnotations

	displayAll = displayRegisters | displayCycles | displayAnnotations
)

type state int32

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateStepOverBreakpoint
	stateHalted
	stateInterrupted
)

// A selection is a command looked up in the command tree together with
// its arguments.
type selection struct {
	cmd  *cmd.Command
	args []string
}

// A Host represents a fully emulated Z80 system, 64K of memory, an I/O
// port latch, a built-in debugger, and other useful tools.
type Host struct {
	input       lineReader
	output      *bufio.Writer
	interactive bool
	editing     bool
	mem         *cpu.FlatMemory
	cpu         *cpu.CPU
	ports       *cpu.PortLatch
	debugger    *cpu.Debugger
	lastCmd     *selection
	state       atomic.Int32
	exprParser  *exprParser
	settings    *settings
	annotations map[uint16]string
}

// An Option configures a Host.
type Option func(h *Host)

// WithMemorySize sets the size of the host's memory in bytes. Addresses
// beyond the end of a smaller memory wrap around.
func WithMemorySize(size int) Option {
	return func(h *Host) {
		h.mem = cpu.NewFlatMemory(size)
	}
}

// New creates a new Z80 host environment.
func New(opts ...Option) *Host {
	h := &Host{
		output:      bufio.NewWriter(io.Discard),
		exprParser:  newExprParser(),
		settings:    newSettings(),
		annotations: make(map[uint16]string),
	}
	for _, opt := range opts {
		opt(h)
	}

	// Create the emulated CPU and memory.
	if h.mem == nil {
		h.mem = cpu.NewFlatMemory(0x10000)
	}
	h.cpu = cpu.NewCPU(h.mem)
	h.ports = cpu.NewPortLatch()
	h.cpu.IO = h.ports

	// Create a CPU debugger and attach it to the CPU.
	dh := newDebugHandler(h)
	h.debugger = cpu.NewDebugger(dh)
	h.cpu.AttachDebugger(h.debugger)
	h.cpu.AttachUnimplementedHandler(dh)

	return h
}

// LoadFile copies a raw binary file into memory at 'addr' and returns its
// length. Loading ignores read-only memory.
func (h *Host) LoadFile(filename string, addr uint16) (int, error) {
	image, err := os.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	if err := h.mem.Load(bytes.NewReader(image), addr); err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	return len(image), nil
}

// SetROM marks the inclusive address range as read-only.
func (h *Host) SetROM(start, end uint16) {
	h.mem.SetROM(start, end)
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the next command to be entered, and a reader
// attached to a terminal gets line editing, history and autocompletion.
// RunCommands returns ErrQuit if the session ended with the quit command.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) error {
	h.output = bufio.NewWriter(w)
	h.interactive = interactive
	h.input, h.editing = newLineReader(r, w, interactive)
	defer h.flush()

	if interactive {
		h.println()
		h.displayPC()
	}
	return h.processCommands()
}

func (h *Host) processCommands() error {
	for {
		h.prompt()

		line, err := h.input.readLine()
		if err != nil {
			return nil
		}

		var c selection
		if strings.TrimSpace(line) != "" {
			n, args, err := cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}

			switch n := n.(type) {
			case *cmd.Tree:
				n.DisplayHelp(h.output)
				h.flush()
				continue
			case *cmd.Command:
				c = selection{cmd: n, args: args}
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.cmd == nil {
			continue
		}
		h.lastCmd = &c

		handler := c.cmd.Data.(func(*Host, selection) error)
		if err := handler(h, c); err != nil {
			return err
		}
	}
}

// Break interrupts a running CPU. It may be called from another
// goroutine, typically a signal handler.
func (h *Host) Break() {
	h.state.CompareAndSwap(int32(stateRunning), int32(stateInterrupted))
}

func (h *Host) getState() state {
	return state(h.state.Load())
}

func (h *Host) setState(s state) {
	h.state.Store(int32(s))
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) prompt() {
	if h.interactive && !h.editing {
		h.print("* ")
		h.flush()
	}
}

func (h *Host) displayPC() {
	d, _ := h.disassemble(h.cpu.Reg.PC, displayAll)
	h.println(d)
}

func (h *Host) cmdAnnotate(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseExpr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	annotation := strings.Join(c.args[1:], " ")
	if annotation == "" {
		delete(h.annotations, addr)
		h.printf("Annotation removed at $%04X.\n", addr)
	} else {
		h.annotations[addr] = annotation
		h.printf("Annotation added at $%04X.\n", addr)
	}
	return nil
}

func (h *Host) cmdBreakpointList(c selection) error {
	h.println("Addr  Enabled")
	h.println("----- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("$%04X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}
	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointEnable(c selection) error {
	return h.enableBreakpoint(c, true)
}

func (h *Host) cmdBreakpointDisable(c selection) error {
	return h.enableBreakpoint(c, false)
}

func (h *Host) enableBreakpoint(c selection, enable bool) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}
	b.Disabled = !enable
	h.printf("Breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdDataBreakpointList(c selection) error {
	h.println("Addr  Enabled  Value")
	h.println("----- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("$%04X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			h.printf("$%04X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}

	if len(c.args) > 1 {
		value, err := h.parseExpr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		h.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, byte(value))
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%04X.\n", addr)
	}
	return nil
}

func (h *Host) cmdDataBreakpointRemove(c selection) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}
	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c selection) error {
	return h.enableDataBreakpoint(c, true)
}

func (h *Host) cmdDataBreakpointDisable(c selection) error {
	return h.enableDataBreakpoint(c, false)
}

func (h *Host) enableDataBreakpoint(c selection, enable bool) error {
	addr, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}
	b.Disabled = !enable
	h.printf("Data breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdPortBreakpointList(c selection) error {
	h.println("Port Enabled")
	h.println("---- -------")
	for _, b := range h.debugger.GetPortBreakpoints() {
		h.printf("$%02X  %v\n", b.Port, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdPortBreakpointAdd(c selection) error {
	port, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	h.debugger.AddPortBreakpoint(byte(port))
	h.printf("Port breakpoint added on port $%02X.\n", byte(port))
	return nil
}

func (h *Host) cmdPortBreakpointRemove(c selection) error {
	port, ok := h.addrArg(c)
	if !ok {
		return nil
	}
	for _, b := range h.debugger.GetPortBreakpoints() {
		if b.Port == byte(port) {
			h.debugger.RemovePortBreakpoint(byte(port))
			h.printf("Port breakpoint on port $%02X removed.\n", byte(port))
			return nil
		}
	}
	h.printf("No port breakpoint was set on port $%02X.\n", byte(port))
	return nil
}

func (h *Host) cmdDisassemble(c selection) error {
	if len(c.args) == 0 {
		c.args = []string{"$"}
	}

	addr, ok := h.continuationAddr(c.args[0], h.settings.NextDisasmAddr)
	if !ok {
		return nil
	}

	lines := h.settings.DisasmLines
	if len(c.args) > 1 {
		l, err := h.parseExpr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr, displayAnnotations)
		h.println(d)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdEvaluate(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	expr := strings.Join(c.args, " ")
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("$%04X (%d)\n", uint16(v), v)
	return nil
}

func (h *Host) cmdExecute(c selection) error {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return nil
	}

	file, err := os.Open(c.args[0])
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(c.args[0]), err)
		return nil
	}
	defer file.Close()

	// Run the script's commands, then resume reading from the original
	// input.
	input, interactive, editing, lastCmd := h.input, h.interactive, h.editing, h.lastCmd
	h.input, h.editing = newLineReader(file, nil, false)
	h.interactive = false
	err = h.processCommands()
	h.input, h.interactive, h.editing, h.lastCmd = input, interactive, editing, lastCmd
	return err
}

func (h *Host) cmdHelp(c selection) error {
	if err := cmds.GetHelp(h.output, c.args); err != nil {
		h.printf("%v\n", err)
	}
	h.flush()
	return nil
}

func (h *Host) cmdInterrupt(c selection) error {
	data := uint16(0xff)
	if len(c.args) > 0 {
		var err error
		if data, err = h.parseExpr(c.args[0]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	cycles := h.cpu.Interrupt(byte(data))
	if cycles == 0 {
		h.println("Interrupt ignored: interrupts are disabled.")
		return nil
	}
	h.printf("Interrupt accepted in mode %d (%d cycles).\n", h.cpu.IM, cycles)
	h.displayPC()
	return nil
}

func (h *Host) cmdNMI(c selection) error {
	cycles := h.cpu.NMI()
	h.printf("NMI accepted (%d cycles).\n", cycles)
	h.displayPC()
	return nil
}

func (h *Host) cmdLoad(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	filename := c.args[0]
	addr, err := h.parseExpr(c.args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	n, err := h.LoadFile(filename, addr)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	h.printf("Loaded '%s' to $%04X..$%04X\n", filepath.Base(filename), addr, int(addr)+n-1)
	h.cpu.SetPC(addr)
	return nil
}

func (h *Host) cmdMemoryDump(c selection) error {
	if len(c.args) == 0 {
		c.args = []string{"$"}
	}

	addr, ok := h.continuationAddr(c.args[0], h.settings.NextMemDumpAddr)
	if !ok {
		return nil
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.args) >= 2 {
		var err error
		bytes, err = h.parseExpr(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	addr, err := h.parseExpr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.args)-1)
	for _, s := range c.args[1:] {
		v, err := h.parseExpr(s)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		b = append(b, byte(v))
	}

	h.mem.StoreBytes(addr, b)
	h.printf("Stored %d byte(s) at $%04X.\n", len(b), addr)
	return nil
}

func (h *Host) cmdMemoryCopy(c selection) error {
	if len(c.args) < 3 {
		h.displayUsage(c.cmd)
		return nil
	}

	var a [3]uint16
	for i := range a {
		v, err := h.parseExpr(c.args[i])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		a[i] = v
	}

	dst, src0, src1 := a[0], a[1], a[2]
	if src1 < src0 {
		h.println("Source range is empty.")
		return nil
	}

	b := make([]byte, int(src1)-int(src0)+1)
	h.mem.LoadBytes(src0, b)
	h.mem.StoreBytes(dst, b)
	h.printf("Copied $%04X..$%04X to $%04X.\n", src0, src1, dst)
	return nil
}

func (h *Host) cmdPortStage(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	port, err := h.parseExpr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	v, err := h.parseExpr(c.args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.ports.Stage(byte(port), byte(v))
	h.printf("Staged $%02X on port $%02X.\n", byte(v), byte(port))
	return nil
}

func (h *Host) cmdPortList(c selection) error {
	h.println("Port In  Out")
	h.println("---- --- ---")
	for p := 0; p < 256; p++ {
		in, staged := h.ports.Staged(byte(p))
		out, wrote := h.ports.Output(byte(p))
		if !staged && !wrote {
			continue
		}
		h.printf("$%02X  %s %s\n", p, portValue(in, staged), portValue(out, wrote))
	}
	return nil
}

func portValue(v byte, ok bool) string {
	if !ok {
		return "-- "
	}
	return fmt.Sprintf("$%02X", v)
}

func (h *Host) cmdQuit(c selection) error {
	return ErrQuit
}

func (h *Host) cmdRegister(c selection) error {
	switch len(c.args) {
	case 0:
		h.displayPC()
	case 1:
		h.displayUsage(c.cmd)
	default:
		name := strings.ToLower(c.args[0])
		v, err := h.parseExpr(strings.Join(c.args[1:], " "))
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		switch h.setRegister(name, v) {
		case 1:
			h.printf("Register %s set to $%02X.\n", strings.ToUpper(name), byte(v))
		case 2:
			h.printf("Register %s set to $%04X.\n", strings.ToUpper(name), v)
		default:
			h.printf("Unknown register '%s'.\n", name)
		}
	}
	return nil
}

func (h *Host) cmdReset(c selection) error {
	h.cpu.Reset()
	h.println("CPU reset.")
	h.displayPC()
	return nil
}

func (h *Host) cmdROMSet(c selection) error {
	if len(c.args) < 2 {
		h.displayUsage(c.cmd)
		return nil
	}

	start, err := h.parseExpr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	end, err := h.parseExpr(c.args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	if end < start {
		h.println("ROM range is empty.")
		return nil
	}

	h.SetROM(start, end)
	h.printf("Memory $%04X..$%04X is read-only.\n", start, end)
	return nil
}

func (h *Host) cmdROMClear(c selection) error {
	h.mem.ClearROM()
	h.println("All memory is writable.")
	return nil
}

func (h *Host) cmdRun(c selection) error {
	if len(c.args) > 0 {
		pc, err := h.parseExpr(c.args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(pc)
	}

	h.printf("Running from $%04X. Press ctrl-C to break.\n", h.cpu.Reg.PC)

	start := h.cpu.Cycles
	limit := h.settings.MaxRunCycles

	h.setState(stateRunning)
	for h.getState() == stateRunning {
		h.step()
		if limit > 0 && h.cpu.Cycles-start >= limit && h.getState() == stateRunning {
			h.printf("Stopped after %d cycles.\n", h.cpu.Cycles-start)
			h.displayPC()
			break
		}
	}
	h.finishRun()
	return nil
}

func (h *Host) cmdSet(c selection) error {
	switch len(c.args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()
	case 1:
		h.displayUsage(c.cmd)
	default:
		key, value := strings.ToLower(c.args[0]), strings.Join(c.args[1:], " ")

		var name string
		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			name, err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			if v, err = stringToBool(value); err == nil {
				name, err = h.settings.Set(key, v)
			}
		default:
			var v int64
			if v, err = h.exprParser.Parse(value, h); err == nil {
				name, err = h.settings.Set(key, v)
			}
		}

		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.printf("Setting %s updated.\n", name)
		h.onSettingsUpdate()
	}
	return nil
}

func (h *Host) cmdStepIn(c selection) error {
	return h.stepCount(c, h.step)
}

func (h *Host) cmdStepOver(c selection) error {
	return h.stepCount(c, h.stepOver)
}

// Run the step function the number of times requested by the command,
// showing at most MaxStepLines of the trace.
func (h *Host) stepCount(c selection, step func()) error {
	count := 1
	if len(c.args) > 0 {
		n, err := h.parseExpr(c.args[0])
		if err == nil {
			count = int(n)
		}
	}

	h.setState(stateRunning)
	for i := count - 1; i >= 0 && h.getState() == stateRunning; i-- {
		step()
		switch {
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines && h.getState() == stateRunning:
			h.displayPC()
		}
	}
	h.finishRun()
	return nil
}

func (h *Host) cmdStepOut(c selection) error {
	sp := h.cpu.Reg.SP

	h.setState(stateRunning)
	for h.getState() == stateRunning {
		inst := h.cpu.GetInstruction(h.cpu.Reg.PC)
		h.step()
		if isReturn(inst) && h.cpu.Reg.SP > sp {
			h.displayPC()
			break
		}
	}
	h.finishRun()
	return nil
}

func isReturn(inst *cpu.Instruction) bool {
	switch inst.Name {
	case "RET", "RETI", "RETN":
		return true
	}
	return false
}

// Return to command processing after running or stepping the CPU.
func (h *Host) finishRun() {
	if h.getState() == stateInterrupted {
		h.println()
		h.displayPC()
	}
	h.setState(stateProcessingCommands)
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
}

func (h *Host) step() {
	h.cpu.Step()

	// Nothing in the monitor raises interrupts while the CPU runs, so a
	// halted CPU stops it.
	if h.cpu.Halted && h.getState() == stateRunning {
		h.setState(stateHalted)
		h.printf("CPU halted at $%04X.\n", h.cpu.LastPC)
		h.displayPC()
	}
}

func (h *Host) stepOver() {
	cpu := h.cpu

	// CALL and RST instructions need to be handled specially.
	inst := cpu.GetInstruction(cpu.Reg.PC)
	if inst.Name != "CALL" && inst.Name != "RST" {
		h.step()
		return
	}

	// Place a step-over breakpoint on the instruction following the call.
	// Either modify an already existing breakpoint on that instruction, or
	// create a temporary one.
	next := cpu.Reg.PC + uint16(inst.Length)
	tmpBreakpointCreated := false
	b := h.debugger.GetBreakpoint(next)
	if b == nil {
		b = h.debugger.AddBreakpoint(next)
		tmpBreakpointCreated = true
	}
	b.StepOver = true

	// Run until interrupted.
	for h.getState() == stateRunning {
		h.step()
	}
	b.StepOver = false

	// If we were interrupted by the temporary step-over breakpoint,
	// then continue as normal.
	h.state.CompareAndSwap(int32(stateStepOverBreakpoint), int32(stateRunning))

	// Remove the temporarily created breakpoint.
	if tmpBreakpointCreated {
		h.debugger.RemoveBreakpoint(next)
	}
}

func (h *Host) onSettingsUpdate() {
	h.exprParser.hexMode = h.settings.HexMode
}

func (h *Host) parseExpr(expr string) (uint16, error) {
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// Parse the command's first argument as an address, showing usage if it is
// missing.
func (h *Host) addrArg(c selection) (uint16, bool) {
	if len(c.args) < 1 {
		h.displayUsage(c.cmd)
		return 0, false
	}
	addr, err := h.parseExpr(c.args[0])
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

// Interpret an address argument where "$" continues from 'next' and "."
// is the current PC.
func (h *Host) continuationAddr(arg string, next uint16) (uint16, bool) {
	switch arg {
	case "$":
		if next == 0 {
			next = h.cpu.Reg.PC
		}
		return next, true
	case ".":
		return h.cpu.Reg.PC, true
	}

	addr, err := h.parseExpr(arg)
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

func (h *Host) disassemble(addr uint16, flags displayFlags) (str string, next uint16) {
	line, next := disasm.Disassemble(h.mem, addr)

	if h.settings.CompactMode {
		str = fmt.Sprintf("%04X-   %-18s", addr, line)
	} else {
		b := make([]byte, next-addr)
		h.mem.LoadBytes(addr, b)
		str = fmt.Sprintf("%04X-   %-11s    %-18s", addr, codeString(b), line)
	}

	if (flags & displayRegisters) != 0 {
		str += " " + disasm.GetRegisterString(&h.cpu.Reg)
	}
	if (flags & displayCycles) != 0 {
		str += fmt.Sprintf(" C=%d", h.cpu.Cycles)
	}
	if (flags & displayAnnotations) != 0 {
		if anno, ok := h.annotations[addr]; ok {
			str += " ; " + anno
		}
	}

	return str, next
}

func (h *Host) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := uint32(addr0), 6, 32; a <= uint32(addr1); a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.mem.LoadByte(uint16(a))
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(strings.TrimRight(string(buf), " "))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := (uint32(addr1) + 8) & 0xffff8
	if stop > 0x10000 {
		stop = 0x10000
	}

	a := start
	for r := start; r < stop; r += 8 {
		addrToBuf(uint16(a), buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= uint32(addr0) && a <= uint32(addr1) {
				m := h.mem.LoadByte(uint16(a))
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(strings.TrimRight(string(buf), " "))
	}
}

func (h *Host) displayUsage(c *cmd.Command) {
	if c.Usage == "" {
		h.println("<no help text>")
		return
	}
	c.DisplayUsage(h.output)
	h.flush()
}

// Set a register by name and return its width in bytes, or 0 if there is
// no such register.
func (h *Host) setRegister(name string, v uint16) int {
	r := &h.cpu.Reg
	switch name {
	case "a":
		r.SetA(byte(v))
	case "b":
		r.SetB(byte(v))
	case "c":
		r.SetC(byte(v))
	case "d":
		r.SetD(byte(v))
	case "e":
		r.SetE(byte(v))
	case "h":
		r.SetH(byte(v))
	case "l":
		r.SetL(byte(v))
	case "f":
		r.Flags().SetByte(byte(v))
	case "i":
		r.I = byte(v)
	case "r":
		r.R = byte(v)
	case "ixh":
		r.SetIXH(byte(v))
	case "ixl":
		r.SetIXL(byte(v))
	case "iyh":
		r.SetIYH(byte(v))
	case "iyl":
		r.SetIYL(byte(v))
	case "af":
		r.SetAF(v)
		return 2
	case "bc":
		r.SetBC(v)
		return 2
	case "de":
		r.SetDE(v)
		return 2
	case "hl":
		r.SetHL(v)
		return 2
	case "af'":
		r.ExchangeAF()
		r.SetAF(v)
		r.ExchangeAF()
		return 2
	case "bc'", "de'", "hl'":
		r.Exchange()
		h.setRegister(name[:2], v)
		r.Exchange()
		return 2
	case "ix":
		r.IX = v
		return 2
	case "iy":
		r.IY = v
		return 2
	case "sp":
		r.SP = v
		return 2
	case "pc", ".":
		r.PC = v
		return 2
	default:
		return 0
	}
	return 1
}

func (h *Host) resolveIdentifier(s string) (int64, error) {
	r := &h.cpu.Reg
	s = strings.ToLower(s)
	switch s {
	case "a":
		return int64(r.A()), nil
	case "b":
		return int64(r.B()), nil
	case "c":
		return int64(r.C()), nil
	case "d":
		return int64(r.D()), nil
	case "e":
		return int64(r.E()), nil
	case "h":
		return int64(r.H()), nil
	case "l":
		return int64(r.L()), nil
	case "f":
		return int64(r.Flags().Byte()), nil
	case "i":
		return int64(r.I), nil
	case "r":
		return int64(r.R), nil
	case "ixh":
		return int64(r.IXH()), nil
	case "ixl":
		return int64(r.IXL()), nil
	case "iyh":
		return int64(r.IYH()), nil
	case "iyl":
		return int64(r.IYL()), nil
	case "af":
		return int64(r.AF()), nil
	case "bc":
		return int64(r.BC()), nil
	case "de":
		return int64(r.DE()), nil
	case "hl":
		return int64(r.HL()), nil
	case "af'":
		alt := r.Alt()
		return int64(alt.AF()), nil
	case "bc'":
		alt := r.Alt()
		return int64(alt.BC()), nil
	case "de'":
		alt := r.Alt()
		return int64(alt.DE()), nil
	case "hl'":
		alt := r.Alt()
		return int64(alt.HL()), nil
	case "ix":
		return int64(r.IX), nil
	case "iy":
		return int64(r.IY), nil
	case "sp":
		return int64(r.SP), nil
	case ".", "pc":
		return int64(r.PC), nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func (h *Host) onBreakpoint(cpu *cpu.CPU, b *cpu.Breakpoint) {
	if b.StepOver {
		h.setState(stateStepOverBreakpoint)
		return
	}
	h.setState(stateBreakpoint)
	h.printf("Breakpoint hit at $%04X.\n", b.Address)
	h.displayPC()
}

func (h *Host) onDataBreakpoint(cpu *cpu.CPU, b *cpu.DataBreakpoint) {
	h.printf("Data breakpoint hit on address $%04X.\n", b.Address)
	h.stopAfterStore(cpu)
}

func (h *Host) onPortBreakpoint(cpu *cpu.CPU, b *cpu.PortBreakpoint, v byte) {
	h.printf("Port breakpoint hit on port $%02X with value $%02X.\n", b.Port, v)
	h.stopAfterStore(cpu)
}

// Data and port breakpoints fire while the storing instruction executes,
// so the instruction is displayed along with the new PC.
func (h *Host) stopAfterStore(cpu *cpu.CPU) {
	h.setState(stateBreakpoint)
	if cpu.LastPC != cpu.Reg.PC {
		d, _ := h.disassemble(cpu.LastPC, displayAnnotations)
		h.println(d)
	}
}

func (h *Host) onUnimplemented(cpu *cpu.CPU, inst *cpu.Instruction) {
	op := strings.TrimSpace(fmt.Sprintf("%s %02X", inst.Prefix, inst.Opcode))
	h.printf("Unimplemented opcode %s at $%04X.\n", op, cpu.LastPC)
	h.setState(stateBreakpoint)
}

func enabledString(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}
