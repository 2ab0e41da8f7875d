package collector

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// CallStats aggregates per-call latency into an HDR histogram.
//
// Range: 1 microsecond to 1 hour, 3 significant figures. Safe for
// concurrent use; recordings take a mutex, counters are cheap.
type CallStats struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewCallStats creates an empty call-latency tracker.
func NewCallStats() *CallStats {
	return &CallStats{
		hist: hdrhistogram.New(1, 3600000000, 3),
	}
}

// Record adds one call's wall-clock duration.
func (s *CallStats) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	s.mu.Lock()
	// Out-of-range durations are clamped by RecordValue's error path; a
	// dropped sample is not worth failing a job over.
	_ = s.hist.RecordValue(us)
	s.mu.Unlock()
}

// CallStatsSnapshot is a point-in-time view of the call-latency histogram.
type CallStatsSnapshot struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Snapshot returns the current percentile view.
func (s *CallStats) Snapshot() CallStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CallStatsSnapshot{
		Count: s.hist.TotalCount(),
		P50:   time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(s.hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(s.hist.Max()) * time.Microsecond,
	}
}

// RunSummary is the final account of one collection run.
type RunSummary struct {
	Regions        []string
	Tables         int
	TotalCalls     int64
	Barriers       int64
	JobsSucceeded  int
	JobsFailed     int
	SlicesSkipped  int
	ReportsWritten int
	Elapsed        time.Duration
	CallLatency    CallStatsSnapshot
}
