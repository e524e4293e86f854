package result

import (
	"errors"
	"sync"

	"github.com/vuvietnguyenit/dag-bench/sweep"
)

// Collector keeps every recorded run in memory.
type Collector struct {
	mu   sync.Mutex
	runs []sweep.Run
}

func (c *Collector) Record(r sweep.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, r)
	return nil
}

// Runs returns a copy of the recorded runs in recording order.
func (c *Collector) Runs() []sweep.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sweep.Run, len(c.runs))
	copy(out, c.runs)
	return out
}

type multi []sweep.Sink

// Multi fans each run out to every sink. Every sink sees the run even when
// an earlier one fails.
func Multi(sinks ...sweep.Sink) sweep.Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Record(r sweep.Run) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
