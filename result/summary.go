package result

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/vuvietnguyenit/dag-bench/sweep"
)

type Summary struct {
	Count         int
	PeakBandwidth float64
	MeanBandwidth float64
	PeakHashrate  float64
	MeanHashrate  float64
	PeakSizeMB    uint64 // size at which bandwidth peaked
}

func Summarize(runs []sweep.Run) Summary {
	if len(runs) == 0 {
		return Summary{}
	}
	bw := make([]float64, len(runs))
	hr := make([]float64, len(runs))
	for i, r := range runs {
		bw[i] = r.Bandwidth
		hr[i] = r.Hashrate
	}
	peak := floats.MaxIdx(bw)
	return Summary{
		Count:         len(runs),
		PeakBandwidth: bw[peak],
		MeanBandwidth: stat.Mean(bw, nil),
		PeakHashrate:  floats.Max(hr),
		MeanHashrate:  stat.Mean(hr, nil),
		PeakSizeMB:    runs[peak].SizeMB,
	}
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "no runs recorded"
	}
	return fmt.Sprintf("%d runs, peak %.1f GB/s at %d MB (mean %.1f GB/s), peak %.1f MH/s (mean %.1f MH/s)",
		s.Count, s.PeakBandwidth, s.PeakSizeMB, s.MeanBandwidth, s.PeakHashrate, s.MeanHashrate)
}

// PrintTable renders runs as a table, one row per size.
func PrintTable(w io.Writer, runs []sweep.Run) error {
	table := tablewriter.NewTable(w, tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
		Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
	})))
	table.Header([]string{"SIZE (MB)", "CHUNKS", "TIME (MS)", "HASHRATE (MH/S)", "BANDWIDTH (GB/S)"})
	for _, r := range runs {
		if err := table.Append([]string{
			strconv.FormatUint(r.SizeMB, 10),
			strconv.Itoa(r.Chunks),
			strconv.FormatFloat(r.ElapsedMS, 'f', 3, 64),
			strconv.FormatFloat(r.Hashrate, 'f', 1, 64),
			strconv.FormatFloat(r.Bandwidth, 'f', 1, 64),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
