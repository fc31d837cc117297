// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// IO is the interface the CPU uses to reach its I/O ports. The full 16-bit
// port address appears on the bus, though most devices decode only the low
// byte.
type IO interface {
	In(port uint16) byte
	Out(port uint16, v byte)
}

// PortLatch is a minimal polled I/O device. Each port has one pending
// input slot, filled by the host and consumed by the next IN, and one
// output slot holding the last value written by an OUT. Ports are keyed by
// the low byte of the port address.
type PortLatch struct {
	input  [256]byte
	output [256]byte
	staged [256]bool
	wrote  [256]bool
}

// NewPortLatch creates a port latch with no pending input or output.
func NewPortLatch() *PortLatch {
	return &PortLatch{}
}

// Stage queues the value returned by the next IN from 'port'.
func (l *PortLatch) Stage(port byte, v byte) {
	l.input[port] = v
	l.staged[port] = true
}

// Staged returns the value waiting to be read from 'port', if any.
func (l *PortLatch) Staged(port byte) (v byte, ok bool) {
	return l.input[port], l.staged[port]
}

// Output returns the last value written to 'port' by an OUT.
func (l *PortLatch) Output(port byte) (v byte, ok bool) {
	return l.output[port], l.wrote[port]
}

// Drain returns the last value written to 'port' and clears it.
func (l *PortLatch) Drain(port byte) (v byte, ok bool) {
	v, ok = l.output[port], l.wrote[port]
	l.output[port], l.wrote[port] = 0, false
	return v, ok
}

// In consumes the staged value for the port. A port with nothing staged
// reads as 0xFF, the value of a floating data bus.
func (l *PortLatch) In(port uint16) byte {
	p := byte(port)
	if !l.staged[p] {
		return 0xff
	}
	l.staged[p] = false
	return l.input[p]
}

// Out latches a value written to the port.
func (l *PortLatch) Out(port uint16, v byte) {
	p := byte(port)
	l.output[p] = v
	l.wrote[p] = true
}
