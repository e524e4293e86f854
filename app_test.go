package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// small host sweep: 1, 2 and 3 MB in 2 MB chunks
var smallSweep = []string{
	"--backend", "host",
	"--start", "1", "--step", "1", "--max-size", "4", "--chunk-size", "2",
	"--grid-size", "64", "--block-size", "32",
	"--no-progress", "--seed", "1",
}

func readTSV(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestRunCompletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	out, err := execute(t, append(smallSweep, "--host-capacity", "8", "-o", path)...)
	require.NoError(t, err)
	require.Contains(t, out, "Generating pseudo-DAG of 3.00 MB")
	require.Contains(t, out, "Sweeping 3 sizes")
	require.NotContains(t, out, "out of memory")
	require.Contains(t, out, "3 runs")

	lines := readTSV(t, path)
	require.Len(t, lines, 4)
	require.Equal(t, "DAG size (MB)\tBandwidth (GB/s)\tHashrate (MH/s)", lines[0])
	for i, size := range []string{"1", "2", "3"} {
		require.True(t, strings.HasPrefix(lines[i+1], size+"\t"), lines[i+1])
	}
}

func TestRunStopsOutOfMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	out, err := execute(t, append(smallSweep, "--host-capacity", "8", "--host-max-alloc", "1", "-o", path)...)
	require.NoError(t, err)
	require.Contains(t, out, "out of memory, stopping")

	lines := readTSV(t, path)
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "1\t"), lines[1])
}

func TestRunSingleSize(t *testing.T) {
	out, err := execute(t, "--backend", "host", "--single", "1", "--chunk-size", "2",
		"--grid-size", "64", "--block-size", "32", "--no-progress", "--seed", "3")
	require.NoError(t, err)
	require.Contains(t, out, "Sweeping 1 sizes")
	require.Contains(t, out, "1 runs")
}

func TestRunSingleSizeAboveDeviceMemory(t *testing.T) {
	out, err := execute(t, "--backend", "host", "--host-capacity", "8", "--single", "16",
		"--chunk-size", "2", "--grid-size", "64", "--block-size", "32", "--no-progress")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--single 16.00 MB exceeds device memory 8.00 MB")
	require.NotContains(t, out, "Generating pseudo-DAG")
}

func TestPositionalArguments(t *testing.T) {
	cmd := RootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--max-size", "64"}))
	require.NoError(t, validateFlags(cmd, []string{"32", "512", "1", "2"}))
	require.Equal(t, uint64(32), FlagChunkMB)
	// the explicit flag wins
	require.Equal(t, uint64(64), FlagMaxMB)
	require.Equal(t, 1, FlagDevice)
	require.Equal(t, 2, FlagPlatform)

	cmd = RootCmd()
	require.Error(t, validateFlags(cmd, []string{"lots"}))
}

func TestValidateFlags(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"single with start", []string{"--single", "128", "--start", "256"}, "--start cannot be combined with --single"},
		{"zero step", []string{"--step", "0"}, "--step must be positive"},
		{"zero chunk", []string{"--chunk-size", "0"}, "--chunk-size must be positive"},
		{"trace without opencl", []string{"--trace-allocs"}, "--trace-allocs needs --backend opencl"},
		{"bad log level", []string{"--log-verbose", "LOUD"}, "invalid log level"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := execute(t, c.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), c.want)
		})
	}
}

func TestUnknownDevice(t *testing.T) {
	_, err := execute(t, "--backend", "host", "--device", "3", "--no-progress")
	require.Error(t, err)
	require.Contains(t, err.Error(), "select device")
}

func TestDevicesCommand(t *testing.T) {
	out, err := execute(t, "devices", "--backend", "host", "--host-capacity", "512")
	require.NoError(t, err)
	require.Contains(t, out, "Go host simulator")
	require.Contains(t, out, "512.00 MB")
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"DEBUG", "info", "Warn", "ERROR"} {
		_, err := parseLevel(s)
		require.NoError(t, err, s)
	}
	_, err := parseLevel("TRACE")
	require.Error(t, err)
}
