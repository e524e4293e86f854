// Package chunk materialises a logical DAG buffer on a device as an ordered
// set of fixed-capacity allocations.
package chunk

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vuvietnguyenit/dag-bench/device"
)

// ErrSetLive is returned when a new chunk set is requested while the
// previous one has not been released.
var ErrSetLive = errors.New("previous chunk set still allocated")

type Chunk struct {
	Index  int
	Offset Size
	Size   Size
	Buf    device.Buffer
}

// Set is the ordered collection of chunks backing one logical buffer.
type Set struct {
	chunks   []Chunk
	total    Size
	released bool
}

func (s *Set) Chunks() []Chunk { return s.chunks }
func (s *Set) Len() int        { return len(s.chunks) }

// Total is the sum of the allocated chunk sizes.
func (s *Set) Total() Size { return s.total }

func (s *Set) First() device.Buffer {
	if len(s.chunks) == 0 {
		return nil
	}
	return s.chunks[0].Buf
}

type Manager struct {
	dev      device.Device
	capacity Size
	ledger   *Ledger
}

func NewManager(dev device.Device, capacity Size) (*Manager, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("chunk capacity must be positive: %w", device.ErrInvalid)
	}
	return &Manager{dev: dev, capacity: capacity, ledger: NewLedger()}, nil
}

func (m *Manager) Capacity() Size  { return m.capacity }
func (m *Manager) Ledger() *Ledger { return m.ledger }

func (m *Manager) Partition(total Size) []Size {
	return Partition(total, m.capacity)
}

// Allocate creates one read-only device buffer per entry of sizes, in order.
// On failure it stops at the first refused allocation and returns the chunks
// allocated so far together with the error; the caller must Release them.
func (m *Manager) Allocate(sizes []Size) (*Set, error) {
	if n, bytes := m.ledger.Live(); n > 0 {
		return nil, fmt.Errorf("%w: %d chunks, %s", ErrSetLive, n, bytes.HumanSize())
	}
	set := &Set{chunks: make([]Chunk, 0, len(sizes))}
	var offset Size
	for i, sz := range sizes {
		buf, err := m.dev.Alloc(uint64(sz), device.ReadOnly)
		if err != nil {
			return set, fmt.Errorf("allocate chunk %d (%s): %w", i, sz.HumanSize(), err)
		}
		m.ledger.Alloc(Dptr(buf.Handle()), sz)
		set.chunks = append(set.chunks, Chunk{Index: i, Offset: offset, Size: sz, Buf: buf})
		set.total += sz
		offset += sz
		slog.Debug("chunk allocated", "index", i, "size", sz.HumanSize(), "handle", fmt.Sprintf("0x%x", buf.Handle()))
	}
	return set, nil
}

// Upload copies host[offset, offset+size) into each chunk in index order.
// The first failed transfer aborts the rest.
func (m *Manager) Upload(set *Set, host []byte) error {
	if Size(len(host)) < set.total {
		return fmt.Errorf("host buffer holds %s, chunk set needs %s: %w",
			Size(len(host)).HumanSize(), set.total.HumanSize(), device.ErrInvalid)
	}
	for _, c := range set.chunks {
		if err := m.dev.Write(c.Buf, 0, host[c.Offset:c.Offset+c.Size]); err != nil {
			return fmt.Errorf("upload chunk %d (%s at offset %d): %w", c.Index, c.Size.HumanSize(), c.Offset, err)
		}
	}
	return nil
}

// Release frees every chunk in the set. It is safe on a partially allocated
// set and a no-op on one already released.
func (m *Manager) Release(set *Set) error {
	if set == nil || set.released {
		return nil
	}
	set.released = true
	var errs []error
	for _, c := range set.chunks {
		ptr := Dptr(c.Buf.Handle())
		if err := c.Buf.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release chunk %d: %w", c.Index, err))
			continue
		}
		m.ledger.Free(ptr)
	}
	return errors.Join(errs...)
}

// Build partitions total, allocates and uploads the chunk set. Whatever was
// allocated is released again when any step fails.
func (m *Manager) Build(total Size, host []byte) (*Set, error) {
	set, err := m.Allocate(m.Partition(total))
	if err != nil {
		if rerr := m.Release(set); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	if err := m.Upload(set, host); err != nil {
		if rerr := m.Release(set); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return set, nil
}
