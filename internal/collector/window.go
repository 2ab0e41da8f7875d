package collector

import (
	"fmt"
	"time"
)

// MaxDatapointsPerCall is the CloudWatch GetMetricStatistics ceiling on
// (end-start)/period for a single call.
const MaxDatapointsPerCall = 1440

// periodLadder lists the CloudWatch periods a slice may be coarsened to,
// in seconds, finest first.
var periodLadder = []int32{1, 60, 300, 3600, 21600, 86400}

// WindowPlanner converts a reporting horizon into an ordered sequence of
// non-overlapping time slices, each carrying its own resolution.
//
// Slices are generated by stepping backward from "now", so the sequence is
// ordered most-recent-first. Exactly SliceCount slices are produced; the
// final slice's start is clamped to the horizon boundary.
type WindowPlanner struct {
	// MaxDatapoints caps (width/resolution) per slice. Zero means
	// MaxDatapointsPerCall.
	MaxDatapoints int
}

// NewWindowPlanner creates a planner with the CloudWatch data-point ceiling.
func NewWindowPlanner() *WindowPlanner {
	return &WindowPlanner{MaxDatapoints: MaxDatapointsPerCall}
}

// Plan decomposes [now-horizon, now] into sliceCount contiguous slices.
//
// The increment is ceil(horizon/sliceCount). Slice i (0-indexed, most recent
// first) covers [now-(i+1)*increment, now-i*increment], with the last start
// clamped to now-horizon. Each slice carries the resolution for the horizon
// length, coarsened up the period ladder if its point count would exceed the
// ceiling.
//
// Every returned slice is non-empty: a horizon too short to yield sliceCount
// whole-second slices is rejected rather than padded with degenerate slices.
func (p *WindowPlanner) Plan(now time.Time, horizon time.Duration, sliceCount int) ([]TimeSlice, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %v", horizon)
	}
	if sliceCount <= 0 {
		return nil, fmt.Errorf("slice count must be positive, got %d", sliceCount)
	}

	horizonSecs := int64(horizon / time.Second)
	if horizonSecs == 0 {
		return nil, fmt.Errorf("horizon must be at least one second, got %v", horizon)
	}
	incSecs := (horizonSecs + int64(sliceCount) - 1) / int64(sliceCount)
	// The clamp may shorten the last slice, never empty it. If the first
	// sliceCount-1 increments already cover the horizon, the remainder
	// would collapse to zero-width slices.
	if int64(sliceCount-1)*incSecs >= horizonSecs {
		return nil, fmt.Errorf("horizon %v cannot be split into %d non-empty slices", horizon, sliceCount)
	}
	increment := time.Duration(incSecs) * time.Second

	resolution, err := p.resolutionFor(horizon, increment)
	if err != nil {
		return nil, err
	}

	earliest := now.Add(-horizon)
	slices := make([]TimeSlice, 0, sliceCount)
	for i := 0; i < sliceCount; i++ {
		end := now.Add(-time.Duration(i) * increment)
		start := now.Add(-time.Duration(i+1) * increment)
		if start.Before(earliest) {
			start = earliest
		}
		slices = append(slices, TimeSlice{Start: start, End: end, Resolution: resolution})
	}
	return slices, nil
}

// PlanHorizon plans the slices for a canonical horizon.
func (p *WindowPlanner) PlanHorizon(now time.Time, h Horizon) ([]TimeSlice, error) {
	return p.Plan(now, h.Length, h.SliceCount)
}

// resolutionFor picks the base resolution for a horizon length, then climbs
// the period ladder until the widest slice stays under the data-point
// ceiling.
func (p *WindowPlanner) resolutionFor(horizon, increment time.Duration) (int32, error) {
	ceiling := p.MaxDatapoints
	if ceiling <= 0 {
		ceiling = MaxDatapointsPerCall
	}

	var base int32
	switch {
	case horizon <= 3*time.Hour:
		base = 1
	case horizon <= 15*24*time.Hour:
		base = 60
	default:
		base = 300
	}

	widthSecs := int64(increment / time.Second)
	for _, period := range periodLadder {
		if period < base {
			continue
		}
		points := (widthSecs + int64(period) - 1) / int64(period)
		if points <= int64(ceiling) {
			return period, nil
		}
	}
	return 0, fmt.Errorf("slice width %v exceeds %d data points at every supported period", increment, ceiling)
}
