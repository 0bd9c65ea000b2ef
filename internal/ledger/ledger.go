// Package ledger writes the per-step telemetry ledger: an append-only
// tabular log for observability and reproducible diffing. Replay never
// consumes it.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Header is the fixed ledger column set, one row appended per recorded step.
var Header = []string{
	"episode_id",
	"episode_step",
	"step",
	"action",
	"reward",
	"terminated",
	"truncated",
	"done",
	"episode_return",
	"obs_hash",
	"wall_ms",
}

// StepRecord is one telemetry row. Numeric fields are formatted with fixed
// decimal precision so ledgers diff cleanly across runs.
type StepRecord struct {
	EpisodeID     int
	EpisodeStep   int
	Step          int
	Action        int
	Reward        float64
	Terminated    bool
	Truncated     bool
	Done          bool
	EpisodeReturn float64
	ObsHash       string
	WallMS        float64
}

// Writer appends step records as CSV rows.
type Writer struct {
	csv *csv.Writer
}

// NewWriter writes the header row and returns an append-only ledger writer.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("write ledger header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// Append writes one step row.
func (w *Writer) Append(rec StepRecord) error {
	row := []string{
		strconv.Itoa(rec.EpisodeID),
		strconv.Itoa(rec.EpisodeStep),
		strconv.Itoa(rec.Step),
		strconv.Itoa(rec.Action),
		fmt.Sprintf("%.6f", rec.Reward),
		boolField(rec.Terminated),
		boolField(rec.Truncated),
		boolField(rec.Done),
		fmt.Sprintf("%.6f", rec.EpisodeReturn),
		rec.ObsHash,
		fmt.Sprintf("%.3f", rec.WallMS),
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("append ledger row step=%d: %w", rec.Step, err)
	}
	return nil
}

// Flush pushes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
