// Package host implements a simulated accelerator in Go. Device memory is
// ordinary heap memory bounded by a configured capacity and a per-allocation
// limit, kernels are Go functions registered under their entry point name and
// run work-group by work-group across the host CPUs.
package host

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/vuvietnguyenit/dag-bench/device"
)

const (
	DefaultCapacity = 4096 << 20
	DefaultMaxAlloc = 1024 << 20
)

type Config struct {
	Capacity uint64 // total device memory in bytes
	MaxAlloc uint64 // largest single allocation in bytes
	Name     string
	Workers  int // concurrent work-groups, GOMAXPROCS when zero
	// Clock returns the device timestamp in nanoseconds.
	Clock func() uint64
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MaxAlloc == 0 || c.MaxAlloc > c.Capacity {
		c.MaxAlloc = c.Capacity
	}
	if c.Name == "" {
		c.Name = cpuid.CPU.BrandName
		if c.Name == "" {
			c.Name = runtime.GOARCH
		}
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Clock == nil {
		// monotonic, so a wall clock step cannot reorder timestamps
		base := time.Now()
		c.Clock = func() uint64 { return uint64(time.Since(base)) }
	}
	return c
}

func init() {
	device.Register("host", NewBackend(Config{}))
}

// Backend exposes one platform with one simulated device.
type Backend struct {
	mu  sync.Mutex
	cfg Config
}

func NewBackend(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Configure replaces the configuration used by later Open calls.
func (b *Backend) Configure(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

func (b *Backend) config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.withDefaults()
}

func (b *Backend) Platforms() ([]device.Platform, error) {
	return []device.Platform{{
		Index:   0,
		Name:    "Go host simulator",
		Devices: []device.Info{info(b.config())},
	}}, nil
}

func (b *Backend) Open(platform, dev int) (device.Device, error) {
	if platform != 0 || dev != 0 {
		return nil, fmt.Errorf("host platform %d device %d: %w", platform, dev, device.ErrNotFound)
	}
	return New(b.config()), nil
}

func info(cfg Config) device.Info {
	return device.Info{
		Name:         cfg.Name,
		Platform:     "Go host simulator",
		Vendor:       cpuid.CPU.VendorString,
		GlobalMem:    cfg.Capacity,
		MaxAlloc:     cfg.MaxAlloc,
		ComputeUnits: cfg.Workers,
	}
}

type Device struct {
	mu     sync.Mutex
	cfg    Config
	used   uint64
	next   uintptr
	live   map[uintptr]*Buffer
	closed bool
}

func New(cfg Config) *Device {
	return &Device{
		cfg:  cfg.withDefaults(),
		next: 0x1000,
		live: make(map[uintptr]*Buffer),
	}
}

func (d *Device) Info() device.Info { return info(d.cfg) }

// Used reports the bytes currently allocated.
func (d *Device) Used() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

func (d *Device) Alloc(size uint64, flags device.MemFlags) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &device.Error{Op: "Alloc", Code: codeInvalid, Err: device.ErrInvalid}
	}
	if size == 0 {
		return nil, &device.Error{Op: "Alloc", Code: codeInvalidSize, Err: device.ErrInvalid}
	}
	if size > d.cfg.MaxAlloc || d.used+size > d.cfg.Capacity {
		slog.Debug("host alloc refused", "size", size, "used", d.used, "capacity", d.cfg.Capacity)
		return nil, &device.Error{Op: "Alloc", Code: codeAllocFailure, Err: device.ErrOutOfMemory}
	}

	b := &Buffer{
		dev:    d,
		handle: d.next,
		flags:  flags,
		data:   make([]byte, size),
	}
	// keep handles page aligned like a real allocator
	d.next += uintptr((size + 0xfff) &^ 0xfff)
	d.used += size
	d.live[b.handle] = b
	return b, nil
}

func (d *Device) release(b *Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.live[b.handle]; !ok {
		return &device.Error{Op: "Release", Code: codeInvalidMem, Err: device.ErrInvalid}
	}
	delete(d.live, b.handle)
	d.used -= uint64(len(b.data))
	b.data = nil
	return nil
}

func (d *Device) buffer(b device.Buffer, op string) (*Buffer, error) {
	hb, ok := b.(*Buffer)
	if !ok || hb.dev != d {
		return nil, &device.Error{Op: op, Code: codeInvalidMem, Err: device.ErrInvalid}
	}
	d.mu.Lock()
	_, live := d.live[hb.handle]
	d.mu.Unlock()
	if !live {
		return nil, &device.Error{Op: op, Code: codeInvalidMem, Err: device.ErrInvalid}
	}
	return hb, nil
}

func (d *Device) Write(b device.Buffer, offset uint64, src []byte) error {
	hb, err := d.buffer(b, "Write")
	if err != nil {
		return err
	}
	if offset+uint64(len(src)) > uint64(len(hb.data)) {
		return &device.Error{Op: "Write", Code: codeInvalidValue, Err: device.ErrInvalid}
	}
	copy(hb.data[offset:], src)
	return nil
}

func (d *Device) Read(b device.Buffer, offset uint64, dst []byte) error {
	hb, err := d.buffer(b, "Read")
	if err != nil {
		return err
	}
	if offset+uint64(len(dst)) > uint64(len(hb.data)) {
		return &device.Error{Op: "Read", Code: codeInvalidValue, Err: device.ErrInvalid}
	}
	copy(dst, hb.data[offset:])
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.live); n > 0 {
		slog.Warn("closing host device with live buffers", "count", n, "bytes", d.used)
	}
	d.closed = true
	d.live = make(map[uintptr]*Buffer)
	d.used = 0
	return nil
}

type Buffer struct {
	dev    *Device
	handle uintptr
	flags  device.MemFlags
	data   []byte
}

func (b *Buffer) Handle() uintptr { return b.handle }
func (b *Buffer) Size() uint64    { return uint64(len(b.data)) }
func (b *Buffer) Release() error  { return b.dev.release(b) }

// Bytes exposes the storage behind a host buffer to Go kernels.
func Bytes(b device.Buffer) ([]byte, error) {
	hb, ok := b.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T is not a host buffer: %w", b, device.ErrInvalid)
	}
	return hb.data, nil
}

// error codes reported in device.Error, numbered after the OpenCL ones
const (
	codeAllocFailure = -4
	codeInvalidValue = -30
	codeInvalidMem   = -38
	codeInvalidArg   = -51
	codeInvalidSize  = -61
	codeInvalidWork  = -54
	codeInvalid      = -34
)
