package device

import (
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes a backend available by name. It panics on duplicates, the
// same way database/sql drivers do.
func Register(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if b == nil {
		panic("device: Register backend is nil")
	}
	if _, dup := backends[name]; dup {
		panic("device: Register called twice for backend " + name)
	}
	backends[name] = b
}

func Lookup(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, backendNames())
	}
	return b, nil
}

func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backendNames()
}

func backendNames() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Select opens device index dev on platform index plat of b, reporting an
// ErrNotFound configuration error when either index is out of range.
func Select(b Backend, plat, dev int) (Device, error) {
	platforms, err := b.Platforms()
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no platforms found: %w", ErrNotFound)
	}
	if plat < 0 || plat >= len(platforms) {
		return nil, fmt.Errorf("platform %d of %d: %w", plat, len(platforms), ErrNotFound)
	}
	if n := len(platforms[plat].Devices); dev < 0 || dev >= n {
		return nil, fmt.Errorf("device %d of %d on platform %d: %w", dev, n, plat, ErrNotFound)
	}
	return b.Open(plat, dev)
}
