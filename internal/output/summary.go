// Package output renders the final run summary for the console.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

const bannerRule = "================================================"

// Formatter renders a RunSummary. Colors are disabled when NoColor is set
// (the CLI sets it for non-TTY output).
type Formatter struct {
	w io.Writer

	ok  *color.Color
	bad *color.Color
	em  *color.Color
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer, noColor bool) *Formatter {
	f := &Formatter{
		w:   w,
		ok:  color.New(color.FgGreen),
		bad: color.New(color.FgRed, color.Bold),
		em:  color.New(color.Bold),
	}
	if noColor {
		f.ok.DisableColor()
		f.bad.DisableColor()
		f.em.DisableColor()
	}
	return f
}

// PrintSummary writes the completion banner.
func (f *Formatter) PrintSummary(s *collector.RunSummary, horizons []collector.Horizon) {
	fmt.Fprintln(f.w, bannerRule)
	fmt.Fprintln(f.w, f.em.Sprint("Completed collection of statistics for all tables"))
	fmt.Fprintln(f.w)

	fmt.Fprintln(f.w, "Collection Summary:")
	fmt.Fprintf(f.w, "  - Regions: %s\n", strings.Join(s.Regions, ", "))
	fmt.Fprintf(f.w, "  - Tables processed: %d\n", s.Tables)
	for _, h := range horizons {
		fmt.Fprintf(f.w, "  - %s horizon: %d slices per table\n", h.Label, h.SliceCount)
	}
	fmt.Fprintf(f.w, "  - Total AWS API calls made: %d (barriers fired: %d)\n", s.TotalCalls, s.Barriers)

	if s.JobsFailed > 0 {
		fmt.Fprintf(f.w, "  - Jobs: %s succeeded, %s\n",
			f.ok.Sprintf("%d", s.JobsSucceeded),
			f.bad.Sprintf("%d failed", s.JobsFailed))
	} else {
		fmt.Fprintf(f.w, "  - Jobs: %s\n", f.ok.Sprintf("%d succeeded", s.JobsSucceeded))
	}
	if s.SlicesSkipped > 0 {
		fmt.Fprintf(f.w, "  - Slices skipped (before table creation): %d\n", s.SlicesSkipped)
	}
	fmt.Fprintf(f.w, "  - Consolidated reports written: %d\n", s.ReportsWritten)

	if s.CallLatency.Count > 0 {
		fmt.Fprintf(f.w, "  - API call latency: p50 %s, p95 %s, p99 %s, max %s\n",
			roundDuration(s.CallLatency.P50),
			roundDuration(s.CallLatency.P95),
			roundDuration(s.CallLatency.P99),
			roundDuration(s.CallLatency.Max))
	}
	fmt.Fprintf(f.w, "  - Elapsed: %s\n", roundDuration(s.Elapsed))
	fmt.Fprintln(f.w, bannerRule)
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	}
	return d
}
