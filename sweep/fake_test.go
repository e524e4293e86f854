package sweep

import (
	"sync"

	"github.com/vuvietnguyenit/dag-bench/device"
)

// fakeDevice accounts for allocations without backing them with memory so
// sweeps can run at real megabyte sizes.
type fakeDevice struct {
	mu        sync.Mutex
	capacity  uint64
	failWrite uint64 // chunk size whose upload fails, 0 for none
	failFree  uint64 // buffer size whose release fails, 0 for none
	used      uint64
	peak      uint64
	next      uintptr
	live      map[uintptr]uint64
	allocs    int
	releases  int

	kernel *fakeKernel
}

func newFakeDevice(capacity uint64) *fakeDevice {
	d := &fakeDevice{capacity: capacity, next: 0x1000, live: make(map[uintptr]uint64)}
	d.kernel = &fakeKernel{elapsed: 10_000_000}
	return d
}

func (d *fakeDevice) Info() device.Info {
	return device.Info{Name: "fake", GlobalMem: d.capacity, MaxAlloc: d.capacity}
}

func (d *fakeDevice) Alloc(size uint64, _ device.MemFlags) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used+size > d.capacity {
		return nil, &device.Error{Op: "Alloc", Code: -4, Err: device.ErrOutOfMemory}
	}
	b := &fakeBuffer{dev: d, handle: d.next, size: size}
	d.next += 0x1000
	d.used += size
	d.peak = max(d.peak, d.used)
	d.live[b.handle] = size
	d.allocs++
	return b, nil
}

func (d *fakeDevice) Write(b device.Buffer, _ uint64, src []byte) error {
	if d.failWrite != 0 && uint64(len(src)) == d.failWrite {
		return &device.Error{Op: "Write", Code: -5, Err: device.ErrTransfer}
	}
	return nil
}

func (d *fakeDevice) Read(device.Buffer, uint64, []byte) error { return nil }

func (d *fakeDevice) Compile(string, string) (device.Kernel, error) { return d.kernel, nil }

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) liveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

type fakeBuffer struct {
	dev    *fakeDevice
	handle uintptr
	size   uint64
}

func (b *fakeBuffer) Handle() uintptr { return b.handle }
func (b *fakeBuffer) Size() uint64    { return b.size }

func (b *fakeBuffer) Release() error {
	d := b.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFree != 0 && b.size == d.failFree {
		return &device.Error{Op: "Release", Code: -5, Err: device.ErrInvalid}
	}
	if _, ok := d.live[b.handle]; !ok {
		return &device.Error{Op: "Release", Code: -38, Err: device.ErrInvalid}
	}
	delete(d.live, b.handle)
	d.used -= b.size
	d.releases++
	return nil
}

type launch struct {
	args          []any
	global, local int
}

type fakeKernel struct {
	elapsed  uint64
	clock    uint64
	args     []any
	launches []launch
	err      error
}

func (k *fakeKernel) SetArg(index int, v any) error {
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = v
	return nil
}

func (k *fakeKernel) Launch(global, local int) (device.Profile, error) {
	if k.err != nil {
		return device.Profile{}, k.err
	}
	args := make([]any, len(k.args))
	copy(args, k.args)
	k.launches = append(k.launches, launch{args: args, global: global, local: local})
	start := k.clock
	k.clock += k.elapsed
	return device.Profile{Start: start, End: k.clock}, nil
}

func (k *fakeKernel) Release() error { return nil }

type seqRand struct{ n uint32 }

func (r *seqRand) Uint32() uint32 {
	r.n++
	return r.n * 1000
}

type sliceSink struct{ runs []Run }

func (s *sliceSink) Record(r Run) error {
	s.runs = append(s.runs, r)
	return nil
}
