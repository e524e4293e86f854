// Package hostsim registers the Go rendition of dagsim.cl with the host
// backend. Import it for its side effect wherever the host backend runs the
// DAG kernel.
package hostsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vuvietnguyenit/dag-bench/device"
	"github.com/vuvietnguyenit/dag-bench/device/host"
	"github.com/vuvietnguyenit/dag-bench/kernel"
)

const fnvPrime = 0x01000193

func fnv(x, y uint32) uint32 { return x*fnvPrime ^ y }

func init() {
	host.RegisterKernel(kernel.Entry, HostDagSim)
}

// HostDagSim is the Go rendition of dagsim.cl for the host backend. Arguments
// follow the OpenCL signature: target, num_results, dag_pages, dag.
func HostDagSim(args []any) (host.Invocation, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("dagSim takes 4 arguments, got %d", len(args))
	}
	target, ok := args[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("dagSim target: want uint32, got %T", args[0])
	}
	resBuf, ok := args[1].(device.Buffer)
	if !ok {
		return nil, fmt.Errorf("dagSim num_results: want buffer, got %T", args[1])
	}
	dagPages, ok := args[2].(uint32)
	if !ok {
		return nil, fmt.Errorf("dagSim dag_pages: want uint32, got %T", args[2])
	}
	dagBuf, ok := args[3].(device.Buffer)
	if !ok {
		return nil, fmt.Errorf("dagSim dag: want buffer, got %T", args[3])
	}

	results, err := host.Bytes(resBuf)
	if err != nil {
		return nil, err
	}
	if len(results) < 4 {
		return nil, errors.New("dagSim num_results buffer smaller than 4 bytes")
	}
	dag, err := host.Bytes(dagBuf)
	if err != nil {
		return nil, err
	}

	pages := min(dagPages, uint32(len(dag)/kernel.PageBytes))
	if pages == 0 {
		return nil, errors.New("dagSim bound DAG holds no full page")
	}
	return &dagSimRun{target: target, pages: pages, dag: dag, results: results}, nil
}

type dagSimRun struct {
	target  uint32
	pages   uint32
	dag     []byte
	results []byte
	found   atomic.Uint32
}

func (r *dagSimRun) Run(gid int) {
	g := uint32(gid)
	lane := g & (kernel.ThreadsPerHash - 1)
	mix := [4]uint32{g, g ^ r.target, g * fnvPrime, r.target}

	for a := uint32(0); a < kernel.Accesses; a++ {
		p := fnv(g^a, mix[0]) % r.pages
		off := (p*kernel.ThreadsPerHash + lane) * kernel.AccessBytes
		for i := range mix {
			mix[i] = fnv(mix[i], binary.LittleEndian.Uint32(r.dag[off+uint32(i)*4:]))
		}
	}

	h := fnv(fnv(mix[0], mix[1]), fnv(mix[2], mix[3]))
	if h < r.target {
		r.found.Add(1)
	}
}

func (r *dagSimRun) Finish() error {
	n := binary.LittleEndian.Uint32(r.results) + r.found.Load()
	binary.LittleEndian.PutUint32(r.results, n)
	return nil
}
