package chunk

import (
	"fmt"
	"log/slog"
	"sync"
)

type Dptr uintptr

// Ledger tracks the device allocations the manager currently holds.
type Ledger struct {
	mu    sync.Mutex
	data  map[Dptr]Size
	total Size
	peak  Size
}

func NewLedger() *Ledger {
	return &Ledger{data: make(map[Dptr]Size)}
}

func (l *Ledger) Alloc(ptr Dptr, size Size) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if old, exists := l.data[ptr]; exists {
		slog.Warn(fmt.Sprintf("ledger already has ptr 0x%x (old size: %d, new size: %d)", uintptr(ptr), old, size))
		l.total -= old
	}
	l.data[ptr] = size
	l.total += size
	if l.total > l.peak {
		l.peak = l.total
	}
}

func (l *Ledger) Free(ptr Dptr) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size, exists := l.data[ptr]
	if !exists {
		slog.Warn(fmt.Sprintf("ledger has no record for ptr 0x%x", uintptr(ptr)))
		return
	}
	delete(l.data, ptr)
	l.total -= size
}

// Live returns the number of allocations and bytes still held.
func (l *Ledger) Live() (int, Size) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data), l.total
}

// Peak is the largest number of bytes held at once.
func (l *Ledger) Peak() Size {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}
