package result

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuvietnguyenit/dag-bench/sweep"
)

var runs = []sweep.Run{
	{SizeMB: 128, Chunks: 1, ElapsedMS: 10, Hashrate: 209.7152, Bandwidth: 1600},
	{SizeMB: 256, Chunks: 1, ElapsedMS: 12.5, Hashrate: 167.77216, Bandwidth: 1280},
	{SizeMB: 384, Chunks: 2, ElapsedMS: 20, Hashrate: 104.8576, Bandwidth: 800},
}

func TestTSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewTSVWriter(&buf)
	require.NoError(t, err)
	require.Equal(t, "DAG size (MB)\tBandwidth (GB/s)\tHashrate (MH/s)\n", buf.String())

	require.NoError(t, w.Record(runs[0]))
	// rows reach the writer before Close
	require.Equal(t, "DAG size (MB)\tBandwidth (GB/s)\tHashrate (MH/s)\n128\t1600.00\t209.72\n", buf.String())

	require.NoError(t, w.Record(runs[1]))
	require.NoError(t, w.Close())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "256\t1280.00\t167.77", lines[2])
}

func TestCreateTSVHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.tsv")
	w, err := CreateTSV(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "DAG size (MB)\tBandwidth (GB/s)\tHashrate (MH/s)\n", string(b))
}

func TestCreateTSVBadPath(t *testing.T) {
	_, err := CreateTSV(filepath.Join(t.TempDir(), "missing", "results.tsv"))
	require.Error(t, err)
}

type failSink struct{ err error }

func (f failSink) Record(sweep.Run) error { return f.err }

func TestMulti(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	boom := errors.New("boom")
	sink := Multi(a, nil, failSink{boom}, b)

	err := sink.Record(runs[0])
	require.ErrorIs(t, err, boom)
	require.Equal(t, runs[:1], a.Runs())
	require.Equal(t, runs[:1], b.Runs())

	require.NoError(t, Multi(a).Record(runs[1]))
	require.Equal(t, runs[:2], a.Runs())
}

func TestSummarize(t *testing.T) {
	s := Summarize(runs)
	require.Equal(t, 3, s.Count)
	require.Equal(t, 1600.0, s.PeakBandwidth)
	require.Equal(t, uint64(128), s.PeakSizeMB)
	require.InDelta(t, (1600.0+1280+800)/3, s.MeanBandwidth, 1e-9)
	require.InDelta(t, 209.7152, s.PeakHashrate, 1e-9)
	require.InDelta(t, (209.7152+167.77216+104.8576)/3, s.MeanHashrate, 1e-9)
	require.Contains(t, s.String(), "peak 1600.0 GB/s at 128 MB")

	require.Equal(t, Summary{}, Summarize(nil))
	require.Equal(t, "no runs recorded", Summary{}.String())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, runs))
	out := buf.String()
	require.Contains(t, out, "BANDWIDTH")
	require.Contains(t, out, "384")
	require.Contains(t, out, "1600.0")
}
