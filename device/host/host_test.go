package host

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuvietnguyenit/dag-bench/device"
)

func TestAllocLimits(t *testing.T) {
	d := New(Config{Capacity: 1000, MaxAlloc: 600})
	defer d.Close()

	a, err := d.Alloc(600, device.ReadOnly)
	require.NoError(t, err)

	_, err = d.Alloc(601, device.ReadOnly)
	require.True(t, device.IsOutOfMemory(err), "per-allocation limit: %v", err)

	_, err = d.Alloc(401, device.ReadOnly)
	require.True(t, device.IsOutOfMemory(err), "capacity: %v", err)

	b, err := d.Alloc(400, device.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), d.Used())
	require.NotEqual(t, a.Handle(), b.Handle())

	require.NoError(t, a.Release())
	require.Equal(t, uint64(400), d.Used())
	require.ErrorIs(t, a.Release(), device.ErrInvalid)
	require.NoError(t, b.Release())
	require.Zero(t, d.Used())

	_, err = d.Alloc(0, device.ReadOnly)
	require.ErrorIs(t, err, device.ErrInvalid)
}

func TestDefaultClockMonotonic(t *testing.T) {
	clock := Config{}.withDefaults().Clock
	prev := clock()
	for i := 0; i < 1000; i++ {
		now := clock()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestWriteRead(t *testing.T) {
	d := New(Config{Capacity: 64})
	defer d.Close()

	b, err := d.Alloc(16, device.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, d.Write(b, 4, []byte{1, 2, 3, 4}))

	got := make([]byte, 8)
	require.NoError(t, d.Read(b, 0, got))
	require.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, got)

	require.ErrorIs(t, d.Write(b, 14, []byte{1, 2, 3}), device.ErrInvalid)
	require.ErrorIs(t, d.Read(b, 10, got), device.ErrInvalid)

	other := New(Config{Capacity: 64})
	require.ErrorIs(t, other.Write(b, 0, []byte{1}), device.ErrInvalid)

	require.NoError(t, b.Release())
	require.ErrorIs(t, d.Write(b, 0, []byte{1}), device.ErrInvalid)
}

func TestBackend(t *testing.T) {
	b := NewBackend(Config{Capacity: 2048, Name: "sim"})
	platforms, err := b.Platforms()
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	require.Len(t, platforms[0].Devices, 1)
	info := platforms[0].Devices[0]
	require.Equal(t, "sim", info.Name)
	require.Equal(t, uint64(2048), info.GlobalMem)
	require.Equal(t, uint64(2048), info.MaxAlloc)

	_, err = b.Open(0, 1)
	require.ErrorIs(t, err, device.ErrNotFound)

	b.Configure(Config{Capacity: 4096, MaxAlloc: 1024})
	d, err := b.Open(0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1024), d.Info().MaxAlloc)
	require.NoError(t, d.Close())

	_, err = d.Alloc(8, device.ReadOnly)
	require.ErrorIs(t, err, device.ErrInvalid)
}

type countInv struct {
	seen     atomic.Int64
	finished bool
	out      []byte
}

func (c *countInv) Run(int) { c.seen.Add(1) }

func (c *countInv) Finish() error {
	c.finished = true
	c.out[0] = byte(c.seen.Load())
	return nil
}

func TestKernelLaunch(t *testing.T) {
	inv := &countInv{}
	RegisterKernel("countItems", func(args []any) (Invocation, error) {
		out, err := Bytes(args[1].(device.Buffer))
		if err != nil {
			return nil, err
		}
		inv.out = out
		return inv, nil
	})

	var now uint64
	d := New(Config{Capacity: 64, Workers: 3, Clock: func() uint64 {
		now += 1_500_000
		return now
	}})
	defer d.Close()

	_, err := d.Compile("__kernel void other(uint a) {}", "countItems")
	var ce *device.CompileError
	require.True(t, errors.As(err, &ce))
	require.ErrorIs(t, err, device.ErrCompile)

	_, err = d.Compile("__kernel void missingImpl(uint a) {}", "missingImpl")
	require.ErrorIs(t, err, device.ErrCompile)

	k, err := d.Compile("__kernel  void countItems (uint a, __global uint *b) {}", "countItems")
	require.NoError(t, err)

	buf, err := d.Alloc(4, device.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, k.SetArg(1, buf))
	_, err = k.Launch(64, 16)
	require.ErrorIs(t, err, device.ErrInvalid, "argument 0 unset")

	require.NoError(t, k.SetArg(0, uint32(7)))
	require.ErrorIs(t, k.SetArg(2, "text"), device.ErrInvalid)

	_, err = k.Launch(60, 16)
	require.ErrorIs(t, err, device.ErrInvalid, "global not a multiple of local")

	prof, err := k.Launch(64, 16)
	require.NoError(t, err)
	require.True(t, inv.finished)
	require.Equal(t, int64(64), inv.seen.Load())
	require.InDelta(t, 1.5, prof.Milliseconds(), 1e-12)

	got := make([]byte, 4)
	require.NoError(t, d.Read(buf, 0, got))
	require.Equal(t, byte(64), got[0])
	require.NoError(t, k.Release())
}
