//go:build linux

package tracer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
)

const Supported = true

type Tracer struct {
	counters *ebpf.Map
	progs    []*ebpf.Program
	links    []link.Link
}

// Attach loads the counter programs and attaches them to the OpenCL loader
// at libPath. Only calls made by pid are counted; pid 0 counts every process.
func Attach(libPath string, pid int) (*Tracer, error) {
	ex, err := link.OpenExecutable(libPath)
	if err != nil {
		return nil, fmt.Errorf("opening executable: %w", err)
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("failed to remove memlock: %w", err)
	}

	counters, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "cl_counts",
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: numSlots,
	})
	if err != nil {
		return nil, fmt.Errorf("create counter map: %w", err)
	}
	t := &Tracer{counters: counters}

	for _, p := range []struct {
		symbol string
		slot   uint32
	}{
		{createSymbol, slotCreated},
		{releaseSymbol, slotReleased},
	} {
		prog, err := counterProgram(counters, p.slot)
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("load %s counter: %w", p.symbol, err)
		}
		t.progs = append(t.progs, prog)

		l, err := ex.Uprobe(p.symbol, prog, &link.UprobeOptions{PID: pid})
		if err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("attach %s: %w", p.symbol, err)
		}
		t.links = append(t.links, l)
	}
	slog.Debug("tracer attached", "lib", libPath, "pid", pid)
	return t, nil
}

// counterProgram increments counters[slot] on every hit.
func counterProgram(counters *ebpf.Map, slot uint32) (*ebpf.Program, error) {
	return ebpf.NewProgram(&ebpf.ProgramSpec{
		Name: "cl_count",
		Type: ebpf.Kprobe,
		Instructions: asm.Instructions{
			asm.StoreImm(asm.RFP, -4, int64(slot), asm.Word),
			asm.Mov.Reg(asm.R2, asm.RFP),
			asm.Add.Imm(asm.R2, -4),
			asm.LoadMapPtr(asm.R1, counters.FD()),
			asm.FnMapLookupElem.Call(),
			asm.JEq.Imm(asm.R0, 0, "exit"),
			asm.Mov.Imm(asm.R1, 1),
			asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
			asm.Mov.Imm(asm.R0, 0).WithSymbol("exit"),
			asm.Return(),
		},
		License: "GPL",
	})
}

func (t *Tracer) Counts() (Counts, error) {
	var c Counts
	if err := t.counters.Lookup(slotCreated, &c.Created); err != nil {
		return Counts{}, fmt.Errorf("read %s count: %w", createSymbol, err)
	}
	if err := t.counters.Lookup(slotReleased, &c.Released); err != nil {
		return Counts{}, fmt.Errorf("read %s count: %w", releaseSymbol, err)
	}
	return c, nil
}

func (t *Tracer) Close() error {
	var errs []error
	for _, l := range t.links {
		errs = append(errs, l.Close())
	}
	for _, p := range t.progs {
		errs = append(errs, p.Close())
	}
	if t.counters != nil {
		errs = append(errs, t.counters.Close())
	}
	t.links, t.progs, t.counters = nil, nil, nil
	return errors.Join(errs...)
}
