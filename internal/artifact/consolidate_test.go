package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

func writeSliceArtifacts(t *testing.T, store *Store, region, table string, op collector.OperationKind, metric collector.MetricKind, count int) []collector.CollectionJob {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var jobs []collector.CollectionJob
	// Written most-recent-first, mirroring dispatch order.
	for i := 0; i < count; i++ {
		end := now.Add(-time.Duration(i) * 20 * time.Minute)
		job := collector.CollectionJob{
			Region:    region,
			Table:     table,
			Operation: op,
			Metric:    metric,
			Slice:     collector.TimeSlice{Start: end.Add(-20 * time.Minute), End: end, Resolution: 1},
		}
		raw := fmt.Sprintf(`{"Label":"%sLatency","Datapoints":[{"Timestamp":"%s","SampleCount":%d}]}`,
			op, end.Format(time.RFC3339), i+1)
		if _, err := store.Write(job, []byte(raw)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func horizon3hr(t *testing.T) collector.Horizon {
	t.Helper()
	h, err := collector.HorizonByLabel("3hr")
	if err != nil {
		t.Fatalf("HorizonByLabel() error = %v", err)
	}
	return h
}

func TestConsolidate_OrdersOldestSliceFirst(t *testing.T) {
	store := NewStore(t.TempDir())
	cons := NewConsolidator(store, zap.NewNop())
	jobs := writeSliceArtifacts(t, store, "us-east-1", "orders", collector.OpQuery, collector.MetricSampleCount, 4)

	path, err := cons.Consolidate("us-east-1", "orders", collector.OpQuery, collector.MetricSampleCount, horizon3hr(t))
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	wantPath := filepath.Join(store.TableDir("us-east-1", "orders"), "orders_Query_sample_count-3hr.log")
	if path != wantPath {
		t.Errorf("Consolidate() path = %q, want %q", path, wantPath)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	text := string(content)

	// Marker lines must appear in ascending slice-start order, the reverse
	// of the write order.
	var lastIdx int
	for i := len(jobs) - 1; i >= 0; i-- {
		name := FileName(jobs[i].Operation, jobs[i].Metric, jobs[i].Slice.Start, jobs[i].Slice.End)
		idx := strings.Index(text, "--- "+name+" ---")
		if idx < 0 {
			t.Fatalf("report missing marker for %s", name)
		}
		if idx < lastIdx {
			t.Errorf("marker for %s out of order", name)
		}
		lastIdx = idx
	}

	for _, want := range []string{
		"TABLE: orders",
		"OPERATION: Query",
		"METRIC: Sample Count",
		"PERIOD: 3 hours (20-minute intervals)",
		"GENERATED: ",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report header missing %q", want)
		}
	}
}

func TestConsolidate_IsIdempotentModuloTimestamp(t *testing.T) {
	store := NewStore(t.TempDir())
	cons := NewConsolidator(store, zap.NewNop())
	writeSliceArtifacts(t, store, "us-east-1", "orders", collector.OpScan, collector.MetricP99Latency, 9)

	stamp := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	cons.SetClock(func() time.Time { return stamp })

	path, err := cons.Consolidate("us-east-1", "orders", collector.OpScan, collector.MetricP99Latency, horizon3hr(t))
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}

	cons.SetClock(func() time.Time { return stamp.Add(time.Hour) })
	if _, err := cons.Consolidate("us-east-1", "orders", collector.OpScan, collector.MetricP99Latency, horizon3hr(t)); err != nil {
		t.Fatalf("re-Consolidate() error = %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading regenerated report: %v", err)
	}

	if got, want := stripGenerated(string(first)), stripGenerated(string(second)); got != want {
		t.Error("regenerated report differs beyond the GENERATED line")
	}
}

func stripGenerated(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		if strings.HasPrefix(line, "GENERATED: ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func TestConsolidate_MissingTupleProducesNoReport(t *testing.T) {
	store := NewStore(t.TempDir())
	cons := NewConsolidator(store, zap.NewNop())

	path, err := cons.Consolidate("us-east-1", "orders", collector.OpGetItem, collector.MetricSampleCount, horizon3hr(t))
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	if path != "" {
		t.Errorf("Consolidate() path = %q, want empty for uncollected tuple", path)
	}
}

func TestConsolidate_IgnoresForeignFiles(t *testing.T) {
	store := NewStore(t.TempDir())
	cons := NewConsolidator(store, zap.NewNop())
	writeSliceArtifacts(t, store, "us-east-1", "orders", collector.OpGetItem, collector.MetricSampleCount, 2)

	dir := store.TupleDir("us-east-1", "orders", collector.OpGetItem, collector.MetricSampleCount)
	if err := os.WriteFile(filepath.Join(dir, "scratch.log"), []byte("not an artifact"), 0o644); err != nil {
		t.Fatalf("writing foreign file: %v", err)
	}

	path, err := cons.Consolidate("us-east-1", "orders", collector.OpGetItem, collector.MetricSampleCount, horizon3hr(t))
	if err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if strings.Contains(string(content), "scratch.log") {
		t.Error("report includes a foreign file")
	}
}
