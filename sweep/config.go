package sweep

import (
	"errors"
	"fmt"
	"math"

	"github.com/vuvietnguyenit/dag-bench/chunk"
	"github.com/vuvietnguyenit/dag-bench/kernel"
)

// Config describes one sweep. All sizes are in bytes.
type Config struct {
	Start         chunk.Size
	Step          chunk.Size
	Max           chunk.Size
	ChunkCapacity chunk.Size
	GridSize      int
	BlockSize     int
}

func DefaultConfig() Config {
	return Config{
		Start:         128 * chunk.Megabyte,
		Step:          128 * chunk.Megabyte,
		ChunkCapacity: 256 * chunk.Megabyte,
		GridSize:      kernel.GridSize,
		BlockSize:     kernel.BlockSize,
	}
}

func (c Config) TotalThreads() int { return c.GridSize * c.BlockSize }

func (c Config) Validate() error {
	var errs []error
	if c.Start == 0 {
		errs = append(errs, errors.New("start size must be positive"))
	}
	if c.Step == 0 {
		errs = append(errs, errors.New("step size must be positive"))
	}
	if c.Max == 0 {
		errs = append(errs, errors.New("maximum size must be positive"))
	}
	if c.ChunkCapacity < kernel.PageBytes {
		errs = append(errs, fmt.Errorf("chunk capacity must hold at least one %d-byte page", kernel.PageBytes))
	}
	if c.Start > 0 && c.Start < kernel.PageBytes {
		errs = append(errs, fmt.Errorf("start size must hold at least one %d-byte page", kernel.PageBytes))
	}
	if c.GridSize <= 0 || c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("grid size %d and block size %d must be positive", c.GridSize, c.BlockSize))
	}
	return errors.Join(errs...)
}

// Bound is the upper end of the sweep: the requested maximum, or the device
// capacity when nothing was requested or the request exceeds it. Capacity
// beyond the 32-bit range is clamped to that range's ceiling.
func Bound(requested, capacity uint64) uint64 {
	if capacity > math.MaxUint32 {
		capacity = math.MaxUint32
	}
	if requested == 0 || requested > capacity {
		return capacity
	}
	return requested
}

// Sizes lists the logical sizes the sweep visits: Start, Start+Step, ...
// while strictly below Max. Start == Max == Step runs the single size Start.
func Sizes(c Config) []chunk.Size {
	if c.Step == 0 {
		return nil
	}
	if c.Start == c.Max && c.Start == c.Step {
		return []chunk.Size{c.Start}
	}
	var sizes []chunk.Size
	for s := c.Start; s < c.Max; s += c.Step {
		sizes = append(sizes, s)
	}
	return sizes
}

// Hashrate in MH/s for totalThreads hashes over ms milliseconds.
func Hashrate(totalThreads int, ms float64) float64 {
	return float64(totalThreads) / (1000 * ms)
}

// Bandwidth in GB/s: each hash is ThreadsPerHash threads doing Accesses reads
// of AccessBytes bytes.
func Bandwidth(totalThreads int, ms float64) float64 {
	return (1000 / ms) * kernel.AccessBytes * float64(totalThreads) * kernel.ThreadsPerHash * kernel.Accesses / float64(1<<30)
}
