package tracer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountsLive(t *testing.T) {
	c := Counts{Created: 5, Released: 3}
	require.Equal(t, int64(2), c.Live())
	require.Equal(t, "clCreateBuffer=5 clReleaseMemObject=3 live=2", c.String())
	require.Equal(t, int64(-1), Counts{Released: 1}.Live())
}

func TestAttachMissingLibrary(t *testing.T) {
	_, err := Attach(filepath.Join(t.TempDir(), "libOpenCL.so.1"), 0)
	require.Error(t, err)
}
