// Package kernel holds the DAG access kernel: its launch shape and the
// OpenCL source with the macros the harness injects. The Go rendition for
// the host backend lives in kernel/hostsim.
package kernel

import (
	_ "embed"
	"fmt"
	"os"
)

const (
	Entry = "dagSim"

	GridSize       = 8192
	BlockSize      = 256
	ThreadsPerHash = 8
	Accesses       = 64
	AccessBytes    = 16  // one uint4 read
	PageBytes      = 128 // ThreadsPerHash * AccessBytes
)

//go:embed dagsim.cl
var embedded string

// Source returns the kernel text at path, or the built-in source when path
// is empty.
func Source(path string) (string, error) {
	if path == "" {
		return embedded, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read kernel source: %w", err)
	}
	return string(b), nil
}

// AddDefinition prepends "#define name valueu" to src.
func AddDefinition(src, name string, value uint32) string {
	return fmt.Sprintf("#define %s %du\n", name, value) + src
}

// Patch injects the launch-shape macros for a sweep whose chunks hold
// chunkBytes bytes.
func Patch(src string, groupSize int, chunkBytes uint64) string {
	src = AddDefinition(src, "CHUNK_PAGES", uint32(chunkBytes/PageBytes))
	src = AddDefinition(src, "ACCESSES", Accesses)
	src = AddDefinition(src, "GROUP_SIZE", uint32(groupSize))
	return src
}

// Pages is the page count a DAG of size bytes spans.
func Pages(size uint64) uint32 {
	return uint32(size / PageBytes)
}
