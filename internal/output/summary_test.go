package output

import (
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

func TestPrintSummary(t *testing.T) {
	summary := &collector.RunSummary{
		Regions:        []string{"us-east-1", "eu-west-1"},
		Tables:         3,
		TotalCalls:     378,
		Barriers:       4,
		JobsSucceeded:  375,
		JobsFailed:     3,
		SlicesSkipped:  2,
		ReportsWritten: 82,
		Elapsed:        91 * time.Second,
		CallLatency: collector.CallStatsSnapshot{
			Count: 378,
			P50:   120 * time.Millisecond,
			P95:   300 * time.Millisecond,
			P99:   450 * time.Millisecond,
			Max:   time.Second,
		},
	}

	var buf strings.Builder
	NewFormatter(&buf, true).PrintSummary(summary, collector.DefaultHorizons())
	out := buf.String()

	for _, want := range []string{
		"Completed collection of statistics for all tables",
		"us-east-1, eu-west-1",
		"Tables processed: 3",
		"3hr horizon: 9 slices per table",
		"7day horizon: 7 slices per table",
		"Total AWS API calls made: 378 (barriers fired: 4)",
		"375 succeeded",
		"3 failed",
		"Slices skipped (before table creation): 2",
		"Consolidated reports written: 82",
		"p50 120ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}

	if strings.Contains(out, "\033[") {
		t.Error("no-color summary contains ANSI escapes")
	}
}

func TestPrintSummary_NoFailuresNoSkips(t *testing.T) {
	summary := &collector.RunSummary{
		Regions:       []string{"us-east-1"},
		Tables:        1,
		JobsSucceeded: 126,
	}

	var buf strings.Builder
	NewFormatter(&buf, true).PrintSummary(summary, nil)
	out := buf.String()

	if strings.Contains(out, "failed") {
		t.Error("clean run mentions failures")
	}
	if strings.Contains(out, "skipped") {
		t.Error("clean run mentions skipped slices")
	}
}
