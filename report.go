package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/vuvietnguyenit/dag-bench/chunk"
	"github.com/vuvietnguyenit/dag-bench/device"
	"github.com/vuvietnguyenit/dag-bench/result"
	"github.com/vuvietnguyenit/dag-bench/sweep"
	"github.com/vuvietnguyenit/dag-bench/tracer"
)

var (
	stopColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func printReport(w io.Writer, r sweep.Report) {
	switch r.Reason {
	case sweep.Exhausted:
		stopColor.Fprintln(w, "out of memory, stopping")
		fmt.Fprintf(w, "  %s could not be built: %v\n", r.StoppedAt.HumanSize(), r.Cause)
	case sweep.Interrupted:
		warnColor.Fprintf(w, "interrupted before %s\n", r.StoppedAt.HumanSize())
	}
	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "no sizes completed")
		return
	}
	if err := result.PrintTable(w, r.Runs); err != nil {
		fmt.Fprintf(w, "render results: %v\n", err)
	}
	fmt.Fprintln(w, result.Summarize(r.Runs))
}

// printTrace compares the driver-level buffer counts seen by the uprobes
// with the chunk ledger.
func printTrace(w io.Writer, t *tracer.Tracer, l *chunk.Ledger) {
	c, err := t.Counts()
	if err != nil {
		fmt.Fprintf(w, "read allocation trace: %v\n", err)
		return
	}
	live, bytes := l.Live()
	fmt.Fprintf(w, "allocation trace: %s; ledger: %d live (%s), peak %s\n",
		c, live, bytes.HumanSize(), l.Peak().HumanSize())
}

func printPlatforms(w io.Writer, platforms []device.Platform) error {
	if len(platforms) == 0 {
		fmt.Fprintln(w, "no platforms found")
		return nil
	}
	table := tablewriter.NewTable(w, tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
		Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
	})))
	table.Header([]string{"PLATFORM", "DEVICE", "NAME", "VENDOR", "GLOBAL MEM", "MAX ALLOC", "UNITS"})
	for _, p := range platforms {
		for i, d := range p.Devices {
			if err := table.Append([]string{
				strconv.Itoa(p.Index) + ": " + p.Name,
				strconv.Itoa(i),
				d.Name,
				d.Vendor,
				chunk.Size(d.GlobalMem).HumanSize(),
				chunk.Size(d.MaxAlloc).HumanSize(),
				strconv.Itoa(d.ComputeUnits),
			}); err != nil {
				return err
			}
		}
	}
	return table.Render()
}
