// Package sweep drives the DAG size sweep: for each logical size it rebuilds
// the chunk set, runs the kernel once and derives hashrate and bandwidth from
// the device timestamps.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vuvietnguyenit/dag-bench/chunk"
	"github.com/vuvietnguyenit/dag-bench/device"
	"github.com/vuvietnguyenit/dag-bench/kernel"
)

// Run is the result of one sweep iteration.
type Run struct {
	Size      chunk.Size
	SizeMB    uint64
	Chunks    int
	Target    uint32
	ElapsedMS float64
	Hashrate  float64 // MH/s
	Bandwidth float64 // GB/s
}

type Sink interface {
	Record(Run) error
}

type Rand interface {
	Uint32() uint32
}

type Reason int

const (
	Completed Reason = iota
	Exhausted
	Interrupted
)

func (r Reason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Exhausted:
		return "out of memory"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

type Report struct {
	Runs      []Run
	Reason    Reason
	StoppedAt chunk.Size // size that could not be run, zero when completed
	Cause     error
}

// IsExhausted reports whether err ends the sweep gracefully: the device ran
// out of memory or refused a transfer.
func IsExhausted(err error) bool {
	return errors.Is(err, device.ErrOutOfMemory) || errors.Is(err, device.ErrTransfer)
}

type Params struct {
	Config Config
	Device device.Device
	Kernel device.Kernel
	Host   []byte
	Rand   Rand
	Sink   Sink
	Out    io.Writer
}

type Driver struct {
	cfg     Config
	dev     device.Device
	kernel  device.Kernel
	mgr     *chunk.Manager
	host    []byte
	rng     Rand
	sink    Sink
	out     io.Writer
	results device.Buffer
}

// New validates p and allocates the results-count buffer shared by every
// iteration.
func New(p Params) (*Driver, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep config: %w", err)
	}
	if p.Device == nil || p.Kernel == nil || p.Rand == nil {
		return nil, errors.New("sweep needs a device, a kernel and a random generator")
	}
	if sizes := Sizes(p.Config); len(sizes) > 0 {
		if need := sizes[len(sizes)-1]; chunk.Size(len(p.Host)) < need {
			return nil, fmt.Errorf("host buffer holds %s, sweep needs %s", chunk.Size(len(p.Host)).HumanSize(), need.HumanSize())
		}
	}
	mgr, err := chunk.NewManager(p.Device, p.Config.ChunkCapacity)
	if err != nil {
		return nil, err
	}

	results, err := p.Device.Alloc(4, device.ReadWrite)
	if err != nil {
		return nil, fmt.Errorf("allocate results buffer: %w", err)
	}
	if err := p.Device.Write(results, 0, make([]byte, 4)); err != nil {
		_ = results.Release()
		return nil, fmt.Errorf("clear results buffer: %w", err)
	}

	out := p.Out
	if out == nil {
		out = io.Discard
	}
	return &Driver{
		cfg:     p.Config,
		dev:     p.Device,
		kernel:  p.Kernel,
		mgr:     mgr,
		host:    p.Host,
		rng:     p.Rand,
		sink:    p.Sink,
		out:     out,
		results: results,
	}, nil
}

func (d *Driver) Manager() *chunk.Manager { return d.mgr }

// Run sweeps every size of the configured progression in order. Running out
// of device memory or being cancelled ends the sweep with the results so far;
// any other device failure is returned as an error.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	var report Report
	for _, size := range Sizes(d.cfg) {
		if err := ctx.Err(); err != nil {
			report.Reason = Interrupted
			report.StoppedAt = size
			report.Cause = err
			return report, nil
		}

		run, err := d.step(size)
		if err != nil {
			if IsExhausted(err) {
				slog.Debug("sweep exhausted", "size", size.HumanSize(), "err", err)
				report.Reason = Exhausted
				report.StoppedAt = size
				report.Cause = err
				return report, nil
			}
			return report, fmt.Errorf("sweep at %s: %w", size.HumanSize(), err)
		}
		report.Runs = append(report.Runs, run)
	}
	report.Reason = Completed
	return report, nil
}

// profilingUnavailable is the code reported when a launch yields no usable
// device time, after CL_PROFILING_INFO_NOT_AVAILABLE.
const profilingUnavailable = -7

// step runs one size. The run is recorded only once its chunk set has been
// released, so the sink never holds a row the report lacks.
func (d *Driver) step(size chunk.Size) (Run, error) {
	set, err := d.mgr.Build(size, d.host)
	if err != nil {
		return Run{}, err
	}
	run, err := d.launch(size, set)
	if rerr := d.mgr.Release(set); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return Run{}, err
	}

	fmt.Fprintf(d.out, "DAG size: %5d MB  chunks: %2d  time: %9.3f ms  hashrate: %8.1f MH/s  bandwidth: %8.1f GB/s\n",
		run.SizeMB, run.Chunks, run.ElapsedMS, run.Hashrate, run.Bandwidth)
	if d.sink != nil {
		if err := d.sink.Record(run); err != nil {
			return Run{}, fmt.Errorf("record result: %w", err)
		}
	}
	return run, nil
}

func (d *Driver) launch(size chunk.Size, set *chunk.Set) (Run, error) {
	target := d.rng.Uint32()
	args := []any{target, d.results, kernel.Pages(uint64(size)), set.First()}
	for i, a := range args {
		if err := d.kernel.SetArg(i, a); err != nil {
			return Run{}, fmt.Errorf("bind argument %d: %w", i, err)
		}
	}

	total := d.cfg.TotalThreads()
	prof, err := d.kernel.Launch(total, d.cfg.BlockSize)
	if err != nil {
		return Run{}, fmt.Errorf("launch kernel: %w", err)
	}
	ms := prof.Milliseconds()
	if ms <= 0 {
		return Run{}, &device.Error{
			Op:   "Launch",
			Code: profilingUnavailable,
			Err:  fmt.Errorf("%w: profile start %d end %d gives no elapsed time", device.ErrInvalid, prof.Start, prof.End),
		}
	}

	return Run{
		Size:      size,
		SizeMB:    size.MB(),
		Chunks:    set.Len(),
		Target:    target,
		ElapsedMS: ms,
		Hashrate:  Hashrate(total, ms),
		Bandwidth: Bandwidth(total, ms),
	}, nil
}

// Close releases the results-count buffer.
func (d *Driver) Close() error {
	if d.results == nil {
		return nil
	}
	err := d.results.Release()
	d.results = nil
	return err
}
