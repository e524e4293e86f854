// Package result records sweep runs: a tab-separated results file written
// as runs complete, in-memory collection and a run summary.
package result

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vuvietnguyenit/dag-bench/sweep"
)

var Header = []string{"DAG size (MB)", "Bandwidth (GB/s)", "Hashrate (MH/s)"}

// TSVWriter writes one line per run and flushes it immediately, so a sweep
// that dies mid-way leaves every completed row on disk.
type TSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

func NewTSVWriter(w io.Writer) (*TSVWriter, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	t := &TSVWriter{w: cw}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	if err := t.write(Header); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTSV truncates path and writes the header.
func CreateTSV(path string) (*TSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	t, err := NewTSVWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

func (t *TSVWriter) Record(r sweep.Run) error {
	return t.write([]string{
		strconv.FormatUint(r.SizeMB, 10),
		strconv.FormatFloat(r.Bandwidth, 'f', 2, 64),
		strconv.FormatFloat(r.Hashrate, 'f', 2, 64),
	})
}

func (t *TSVWriter) write(rec []string) error {
	if err := t.w.Write(rec); err != nil {
		return fmt.Errorf("write results row: %w", err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("flush results row: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the underlying writer when it is
// closable.
func (t *TSVWriter) Close() error {
	t.w.Flush()
	err := t.w.Error()
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
		t.closer = nil
	}
	return err
}
