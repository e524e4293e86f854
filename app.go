package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vuvietnguyenit/dag-bench/chunk"
	"github.com/vuvietnguyenit/dag-bench/device"
	"github.com/vuvietnguyenit/dag-bench/device/host"
	"github.com/vuvietnguyenit/dag-bench/hostbuf"
	"github.com/vuvietnguyenit/dag-bench/kernel"
	"github.com/vuvietnguyenit/dag-bench/result"
	"github.com/vuvietnguyenit/dag-bench/sweep"
	"github.com/vuvietnguyenit/dag-bench/tracer"
)

func backend() (device.Backend, error) {
	b, err := device.Lookup(FlagBackend)
	if err != nil {
		return nil, err
	}
	if hb, ok := b.(*host.Backend); ok {
		hb.Configure(host.Config{
			Capacity: uint64(megabytes(FlagHostCapacityMB)),
			MaxAlloc: uint64(megabytes(FlagHostMaxAllocMB)),
		})
	}
	return b, nil
}

// sweepConfig turns the size flags into a sweep configuration bounded by
// the device memory.
func sweepConfig(info device.Info) sweep.Config {
	cfg := sweep.DefaultConfig()
	cfg.ChunkCapacity = megabytes(FlagChunkMB)
	cfg.GridSize = FlagGridSize
	cfg.BlockSize = FlagBlockSize
	if FlagSingleMB != 0 {
		s := megabytes(FlagSingleMB)
		cfg.Start, cfg.Step, cfg.Max = s, s, s
		return cfg
	}
	cfg.Start = megabytes(FlagStartMB)
	cfg.Step = megabytes(FlagStepMB)
	cfg.Max = chunk.Size(sweep.Bound(uint64(megabytes(FlagMaxMB)), info.GlobalMem))
	return cfg
}

func appRun(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	stopper := make(chan os.Signal, 1)
	signal.Notify(stopper, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopper)

	var wg WG
	defer wg.Wait()
	defer cancel()
	wg.Go(func() {
		select {
		case sig := <-stopper:
			slog.Warn("signal received, finishing current size", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	})

	b, err := backend()
	if err != nil {
		return err
	}
	dev, err := device.Select(b, FlagPlatform, FlagDevice)
	if err != nil {
		return fmt.Errorf("select device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("close device", "err", err)
		}
	}()
	info := dev.Info()
	fmt.Fprintf(out, "Using device %d on platform %d: %s (%s, %s global, %s max alloc)\n",
		FlagDevice, FlagPlatform, info.Name, info.Platform,
		chunk.Size(info.GlobalMem).HumanSize(), chunk.Size(info.MaxAlloc).HumanSize())

	cfg := sweepConfig(info)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if bound := chunk.Size(sweep.Bound(0, info.GlobalMem)); FlagSingleMB != 0 && cfg.Start > bound {
		return fmt.Errorf("--single %s exceeds device memory %s", cfg.Start.HumanSize(), bound.HumanSize())
	}
	sizes := sweep.Sizes(cfg)
	if len(sizes) == 0 {
		fmt.Fprintf(out, "Nothing to run: start %s is not below the bound %s\n", cfg.Start.HumanSize(), cfg.Max.HumanSize())
		return nil
	}

	src, err := kernel.Source(FlagKernel)
	if err != nil {
		return err
	}
	k, err := dev.Compile(kernel.Patch(src, cfg.BlockSize, uint64(cfg.ChunkCapacity)), kernel.Entry)
	if err != nil {
		return fmt.Errorf("compile kernel: %w", err)
	}
	defer func() {
		if err := k.Release(); err != nil {
			slog.Warn("release kernel", "err", err)
		}
	}()

	var trace *tracer.Tracer
	if FlagTraceAllocs {
		trace, err = tracer.Attach(FlagLibOpenCLPath, os.Getpid())
		if err != nil {
			return fmt.Errorf("attach allocation tracer: %w", err)
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("detach allocation tracer", "err", err)
			}
		}()
	}

	seed := FlagSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := hostbuf.NewRand(seed)
	hostBytes := generate(rng, uint64(sizes[len(sizes)-1]), out)

	collector := &result.Collector{}
	sink := sweep.Sink(collector)
	if FlagOutput != "" {
		tsv, err := result.CreateTSV(FlagOutput)
		if err != nil {
			return err
		}
		defer func() {
			if err := tsv.Close(); err != nil {
				slog.Error("close results file", "path", FlagOutput, "err", err)
			}
		}()
		sink = result.Multi(collector, tsv)
	}

	driver, err := sweep.New(sweep.Params{
		Config: cfg,
		Device: dev,
		Kernel: k,
		Host:   hostBytes,
		Rand:   rng,
		Sink:   sink,
		Out:    out,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sweeping %d sizes from %s to %s in %s chunks\n",
		len(sizes), sizes[0].HumanSize(), sizes[len(sizes)-1].HumanSize(), cfg.ChunkCapacity.HumanSize())

	report, runErr := driver.Run(ctx)
	if err := driver.Close(); err != nil {
		slog.Warn("release results buffer", "err", err)
	}
	printReport(out, report)
	if trace != nil {
		printTrace(out, trace, driver.Manager().Ledger())
	}
	return runErr
}

// generate fills the host DAG, with a progress bar unless disabled.
func generate(rng hostbuf.Source, size uint64, out io.Writer) []byte {
	if free, ok := hostbuf.Available(); ok && size > free {
		slog.Warn("DAG exceeds free host memory", "dag", chunk.Size(size).HumanSize(), "free", chunk.Size(free).HumanSize())
	}
	fmt.Fprintf(out, "Generating pseudo-DAG of %s\n", chunk.Size(size).HumanSize())
	if FlagNoProgress {
		return hostbuf.Generate(rng, size, nil)
	}
	bar := progressbar.NewOptions64(int64(size),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("generating DAG"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
	buf := hostbuf.Generate(rng, size, bar)
	if err := bar.Finish(); err != nil {
		slog.Warn("finish progress bar", "err", err)
	}
	return buf
}

func listDevices(out io.Writer) error {
	b, err := backend()
	if err != nil {
		return err
	}
	platforms, err := b.Platforms()
	if err != nil {
		return err
	}
	return printPlatforms(out, platforms)
}
