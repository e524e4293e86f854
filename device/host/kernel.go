package host

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vuvietnguyenit/dag-bench/device"
)

// Invocation is one prepared launch of a Go kernel. Run is called once per
// work-item, possibly from several goroutines; Finish runs after the last
// work-item returned.
type Invocation interface {
	Run(gid int)
	Finish() error
}

// KernelFunc prepares an invocation from the bound arguments.
type KernelFunc func(args []any) (Invocation, error)

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]KernelFunc)
)

func RegisterKernel(entry string, fn KernelFunc) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[entry] = fn
}

func lookupKernel(entry string) (KernelFunc, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	fn, ok := kernels[entry]
	return fn, ok
}

func (d *Device) Compile(source, entry string) (device.Kernel, error) {
	decl := regexp.MustCompile(`__kernel\s+void\s+` + regexp.QuoteMeta(entry) + `\s*\(`)
	if !decl.MatchString(source) {
		return nil, &device.CompileError{
			Entry: entry,
			Log:   fmt.Sprintf("error: no kernel named '%s' in source", entry),
		}
	}
	fn, ok := lookupKernel(entry)
	if !ok {
		return nil, &device.CompileError{
			Entry: entry,
			Log:   fmt.Sprintf("error: kernel '%s' has no host implementation", entry),
		}
	}
	return &Kernel{dev: d, entry: entry, fn: fn}, nil
}

type Kernel struct {
	dev   *Device
	entry string
	fn    KernelFunc
	args  []any
}

func (k *Kernel) SetArg(index int, v any) error {
	if index < 0 {
		return &device.Error{Op: "SetArg", Code: codeInvalidArg, Err: device.ErrInvalid}
	}
	switch a := v.(type) {
	case uint32, uint64:
	case device.Buffer:
		if _, err := k.dev.buffer(a, "SetArg"); err != nil {
			return err
		}
	default:
		return &device.Error{Op: "SetArg", Code: codeInvalidArg, Err: fmt.Errorf("%w: unsupported type %T", device.ErrInvalid, v)}
	}
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = v
	return nil
}

func (k *Kernel) Launch(global, local int) (device.Profile, error) {
	if global <= 0 || local <= 0 || global%local != 0 {
		return device.Profile{}, &device.Error{Op: "Launch", Code: codeInvalidWork, Err: device.ErrInvalid}
	}
	for i, a := range k.args {
		if a == nil {
			return device.Profile{}, &device.Error{Op: "Launch", Code: codeInvalidArg, Err: fmt.Errorf("%w: argument %d not set", device.ErrInvalid, i)}
		}
	}
	args := make([]any, len(k.args))
	copy(args, k.args)

	inv, err := k.fn(args)
	if err != nil {
		return device.Profile{}, &device.Error{Op: "Launch", Code: codeInvalidArg, Err: err}
	}

	start := k.dev.cfg.Clock()
	var g errgroup.Group
	g.SetLimit(k.dev.cfg.Workers)
	for group := 0; group < global/local; group++ {
		base := group * local
		g.Go(func() error {
			for l := 0; l < local; l++ {
				inv.Run(base + l)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("host kernel work-group failed", "entry", k.entry, "err", err)
	}
	if err := inv.Finish(); err != nil {
		return device.Profile{}, &device.Error{Op: "Launch", Code: codeInvalid, Err: err}
	}
	end := k.dev.cfg.Clock()

	return device.Profile{Start: start, End: end}, nil
}

func (k *Kernel) Release() error {
	k.args = nil
	return nil
}
