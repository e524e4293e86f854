package main

import (
	"sync"

	"github.com/vuvietnguyenit/dag-bench/chunk"
)

// WG runs the CLI's background goroutines (signal watcher).
type WG struct {
	sync.WaitGroup
}

func (wg *WG) Go(f func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		f()
	}()
}

// megabytes converts a size flag to bytes.
func megabytes(n uint64) chunk.Size { return chunk.Size(n) * chunk.Megabyte }
