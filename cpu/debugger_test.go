package cpu_test

import (
	"testing"

	"github.com/beevik/goz80/cpu"
)

type breakRecorder struct {
	pcs   []uint16
	data  []uint16
	ports []byte
}

func (r *breakRecorder) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	r.pcs = append(r.pcs, b.Address)
}

func (r *breakRecorder) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	r.data = append(r.data, b.Address)
}

func (r *breakRecorder) OnPortBreakpoint(c *cpu.CPU, b *cpu.PortBreakpoint, v byte) {
	r.ports = append(r.ports, v)
}

func TestBreakpoints(t *testing.T) {
	code := `
	3E 01		; LD A,1
	32 00 20	; LD ($2000),A
	3C		; INC A
	32 00 20	; LD ($2000),A
	32 01 20	; LD ($2001),A
	D3 07		; OUT ($07),A`

	c := loadCPU(t, strip(code))
	rec := &breakRecorder{}
	d := cpu.NewDebugger(rec)
	c.AttachDebugger(d)

	d.AddBreakpoint(0x1005)
	d.AddBreakpoint(0x1002)
	d.AddBreakpoint(0x1009).Disabled = true
	d.AddConditionalDataBreakpoint(0x2000, 0x02)
	d.AddDataBreakpoint(0x2001)
	d.AddPortBreakpoint(0x07)

	stepCPU(c, 6)

	if len(rec.pcs) != 2 || rec.pcs[0] != 0x1002 || rec.pcs[1] != 0x1005 {
		t.Errorf("breakpoints incorrect. got: %v", rec.pcs)
	}
	if len(rec.data) != 2 || rec.data[0] != 0x2000 || rec.data[1] != 0x2001 {
		t.Errorf("data breakpoints incorrect. got: %v", rec.data)
	}
	if len(rec.ports) != 1 || rec.ports[0] != 0x02 {
		t.Errorf("port breakpoints incorrect. got: %v", rec.ports)
	}

	bps := d.GetBreakpoints()
	if len(bps) != 3 || bps[0].Address != 0x1002 || bps[2].Address != 0x1009 {
		t.Error("breakpoints not sorted by address")
	}
	if b := d.GetDataBreakpoint(0x2000); b == nil || !b.Conditional || b.Value != 0x02 {
		t.Error("conditional data breakpoint incorrect")
	}

	d.RemoveBreakpoint(0x1002)
	d.RemoveDataBreakpoint(0x2000)
	d.RemovePortBreakpoint(0x07)
	if d.GetBreakpoint(0x1002) != nil || len(d.GetDataBreakpoints()) != 1 || len(d.GetPortBreakpoints()) != 0 {
		t.Error("remove failed")
	}

	c.DetachDebugger()
	c.SetPC(0x1002)
	stepCPU(c, 1)
	if len(rec.pcs) != 2 || len(rec.data) != 2 {
		t.Error("detached debugger still notified")
	}
}
