// Package hostbuf produces the host-resident pseudo-DAG that every sweep
// iteration uploads from.
package hostbuf

import (
	"encoding/binary"
	"io"

	"golang.org/x/exp/rand"
)

// progressStride is how many bytes are filled between progress updates.
const progressStride = 1 << 20

// Source is the part of a random generator the fill needs.
type Source interface {
	Uint32() uint32
}

// Generate returns size bytes of little-endian random 32-bit words drawn from
// rng. When progress is non-nil it is written to as the fill advances, which
// lets an io.Writer progress bar track it.
func Generate(rng Source, size uint64, progress io.Writer) []byte {
	buf := make([]byte, size)
	Fill(rng, buf, progress)
	return buf
}

func Fill(rng Source, buf []byte, progress io.Writer) {
	var reported int
	words := len(buf) / 4
	for i := 0; i < words; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], rng.Uint32())
		if progress != nil && (i+1)*4-reported >= progressStride {
			_, _ = progress.Write(buf[reported : (i+1)*4])
			reported = (i + 1) * 4
		}
	}
	if tail := len(buf) % 4; tail > 0 {
		var last [4]byte
		binary.LittleEndian.PutUint32(last[:], rng.Uint32())
		copy(buf[words*4:], last[:tail])
	}
	if progress != nil && reported < len(buf) {
		_, _ = progress.Write(buf[reported:])
	}
}

// NewRand returns the seedable generator the harness threads through the
// fill and every iteration's target draw.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
