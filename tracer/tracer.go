// Package tracer counts device buffer creations and releases made through
// the OpenCL loader, independently of the harness' own bookkeeping. It
// attaches uprobes to clCreateBuffer and clReleaseMemObject.
package tracer

import "fmt"

const (
	createSymbol  = "clCreateBuffer"
	releaseSymbol = "clReleaseMemObject"
)

const (
	slotCreated uint32 = iota
	slotReleased
	numSlots
)

// Counts are the number of calls observed since Attach.
type Counts struct {
	Created  uint64
	Released uint64
}

// Live is the number of buffers created and not yet released.
func (c Counts) Live() int64 { return int64(c.Created) - int64(c.Released) }

func (c Counts) String() string {
	return fmt.Sprintf("%s=%d %s=%d live=%d", createSymbol, c.Created, releaseSymbol, c.Released, c.Live())
}
