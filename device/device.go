// Package device abstracts the compute accelerator the benchmark runs on.
// A backend enumerates platforms and opens one device; the device hands out
// buffers, copies bytes across the host boundary and runs compiled kernels
// synchronously with device-side timestamps.
package device

import (
	"fmt"
	"time"
)

type MemFlags int

const (
	ReadOnly MemFlags = iota
	ReadWrite
)

func (f MemFlags) String() string {
	switch f {
	case ReadOnly:
		return "READ_ONLY"
	case ReadWrite:
		return "READ_WRITE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(f))
	}
}

type Info struct {
	Name         string
	Platform     string
	Vendor       string
	GlobalMem    uint64 // total addressable memory in bytes
	MaxAlloc     uint64 // largest single allocation in bytes
	ComputeUnits int
}

type Platform struct {
	Index   int
	Name    string
	Devices []Info
}

// Buffer is one device-resident allocation.
type Buffer interface {
	Handle() uintptr
	Size() uint64
	Release() error
}

// Profile holds the device-reported start and end of one kernel invocation,
// in nanoseconds.
type Profile struct {
	Start uint64
	End   uint64
}

func (p Profile) Elapsed() time.Duration {
	if p.End < p.Start {
		return 0
	}
	return time.Duration(p.End - p.Start)
}

// Milliseconds is the elapsed device time as the raw nanosecond delta / 1e6.
func (p Profile) Milliseconds() float64 {
	if p.End < p.Start {
		return 0
	}
	return float64(p.End-p.Start) / 1e6
}

type Kernel interface {
	// SetArg binds argument index to a uint32, uint64 or Buffer value.
	SetArg(index int, v any) error
	// Launch runs the kernel over global work-items in groups of local and
	// blocks until the device reports completion.
	Launch(global, local int) (Profile, error)
	Release() error
}

type Device interface {
	Info() Info
	Alloc(size uint64, flags MemFlags) (Buffer, error)
	// Write and Read are blocking transfers of len(p) bytes at offset.
	Write(b Buffer, offset uint64, src []byte) error
	Read(b Buffer, offset uint64, dst []byte) error
	Compile(source, entry string) (Kernel, error)
	Close() error
}

type Backend interface {
	Platforms() ([]Platform, error)
	Open(platform, device int) (Device, error)
}
