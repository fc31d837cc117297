// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpm

import (
	"errors"
	"io"
	"log/slog"
)

// BDOS version reported by S_BDOSVER: CP/M 2.2
const bdosVersion = 0x22

// Console end-of-file character
const ctrlZ = 0x1a

func defaultSyscalls() map[uint8]Syscall {
	return map[uint8]Syscall{
		0:  {"P_TERMCPM", sysTerminate},
		1:  {"C_READ", sysReadChar},
		2:  {"C_WRITE", sysWriteChar},
		6:  {"C_RAWIO", sysRawIO},
		9:  {"C_WRITESTR", sysWriteString},
		10: {"C_READSTR", sysReadString},
		11: {"C_STAT", sysConsoleStatus},
		12: {"S_BDOSVER", sysVersion},
		13: {"DRV_ALLRESET", sysDriveReset},
		14: {"DRV_SET", sysDriveSet},
		25: {"DRV_GET", sysDriveGet},
		26: {"F_DMAOFF", sysSetDMA},
		32: {"F_USERNUM", sysUserNumber},
	}
}

// Return an 8-bit result in A and L, with B and H cleared.
func (m *Machine) ret8(v byte) {
	r := &m.CPU.Reg
	r.SetA(v)
	r.SetHL(uint16(v))
	r.SetB(0)
}

// Return a 16-bit result in HL and BA.
func (m *Machine) ret16(v uint16) {
	r := &m.CPU.Reg
	r.SetHL(v)
	r.SetA(byte(v))
	r.SetB(byte(v >> 8))
}

func (m *Machine) readByte() (byte, bool, error) {
	c, err := m.in.ReadByte()
	switch {
	case errors.Is(err, io.EOF):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return c, true, nil
}

func (m *Machine) write(b ...byte) error {
	_, err := m.out.Write(b)
	return err
}

func sysTerminate(m *Machine) error {
	return ErrWarmBoot
}

// C_READ waits for a console character, echoes it and returns it. At the
// end of input it returns ^Z.
func sysReadChar(m *Machine) error {
	c, ok, err := m.readByte()
	if err != nil {
		return err
	}
	if !ok {
		m.ret8(ctrlZ)
		return nil
	}
	if c == '\n' {
		c = '\r'
	}
	m.ret8(c)
	return m.write(c)
}

func sysWriteChar(m *Machine) error {
	return m.write(m.CPU.Reg.E())
}

// C_RAWIO reads without echo when E is 0xFF, 0xFE or 0xFD, and writes E
// otherwise.
func sysRawIO(m *Machine) error {
	switch e := m.CPU.Reg.E(); e {
	case 0xff, 0xfd:
		c, ok, err := m.readByte()
		if err != nil {
			return err
		}
		if !ok && e == 0xfd {
			c = ctrlZ
		}
		m.ret8(c)
	case 0xfe:
		return sysConsoleStatus(m)
	default:
		return m.write(e)
	}
	return nil
}

// C_WRITESTR writes the '$'-terminated string at DE.
func sysWriteString(m *Machine) error {
	addr := m.CPU.Reg.DE()
	var buf []byte
	for i := 0; i < 0x10000; i++ {
		c := m.Mem.LoadByte(addr)
		if c == '$' {
			break
		}
		buf = append(buf, c)
		addr++
	}
	return m.write(buf...)
}

// C_READSTR reads a line into the buffer at DE. The first byte of the
// buffer holds its capacity, and the second receives the number of
// characters read. A DE of zero selects the DMA buffer.
func sysReadString(m *Machine) error {
	addr := m.CPU.Reg.DE()
	if addr == 0 {
		addr = m.dma
	}
	capacity := int(m.Mem.LoadByte(addr))

	var line []byte
	for {
		c, ok, err := m.readByte()
		if err != nil {
			return err
		}
		if c == '\r' {
			if next, err := m.in.Peek(1); err == nil && next[0] == '\n' {
				m.in.ReadByte()
			}
		}
		if !ok || c == '\n' || c == '\r' {
			break
		}
		if len(line) < capacity {
			line = append(line, c)
		}
	}

	m.Mem.StoreByte(addr+1, byte(len(line)))
	m.Mem.StoreBytes(addr+2, line)
	m.Logger.Debug("read line", slog.Int("length", len(line)))
	return m.write(append(line, '\r', '\n')...)
}

// C_STAT returns 0xFF when console input is waiting.
func sysConsoleStatus(m *Machine) error {
	if m.in.Buffered() > 0 {
		m.ret8(0xff)
	} else {
		m.ret8(0)
	}
	return nil
}

func sysVersion(m *Machine) error {
	m.ret16(bdosVersion)
	return nil
}

func sysDriveReset(m *Machine) error {
	m.drive = 0
	m.dma = tailAddr
	m.ret8(0)
	return nil
}

func sysDriveSet(m *Machine) error {
	m.drive = m.CPU.Reg.E() & 0x0f
	m.ret8(0)
	return nil
}

func sysDriveGet(m *Machine) error {
	m.ret8(m.drive)
	return nil
}

func sysSetDMA(m *Machine) error {
	m.dma = m.CPU.Reg.DE()
	return nil
}

// F_USERNUM returns the user number when E is 0xFF and sets it
// otherwise.
func sysUserNumber(m *Machine) error {
	e := m.CPU.Reg.E()
	if e == 0xff {
		m.ret8(m.user)
		return nil
	}
	m.user = e & 0x0f
	return nil
}
