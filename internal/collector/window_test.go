package collector

import (
	"testing"
	"time"
)

func TestPlan_CanonicalHorizons(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	tests := []struct {
		name       string
		horizon    time.Duration
		slices     int
		wantWidth  time.Duration
		wantPeriod int32
	}{
		{"3 hours in 9 slices", 3 * time.Hour, 9, 20 * time.Minute, 1},
		{"7 days in 7 slices", 7 * 24 * time.Hour, 7, 24 * time.Hour, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices, err := p.Plan(now, tt.horizon, tt.slices)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if len(slices) != tt.slices {
				t.Fatalf("len(slices) = %d, want %d", len(slices), tt.slices)
			}
			for i, s := range slices {
				if s.Width() != tt.wantWidth {
					t.Errorf("slice %d width = %v, want %v", i, s.Width(), tt.wantWidth)
				}
				if s.Resolution != tt.wantPeriod {
					t.Errorf("slice %d resolution = %d, want %d", i, s.Resolution, tt.wantPeriod)
				}
			}
		})
	}
}

func TestPlan_SlicesAreContiguousMostRecentFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	slices, err := p.Plan(now, 3*time.Hour, 9)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if !slices[0].End.Equal(now) {
		t.Errorf("first slice end = %v, want %v", slices[0].End, now)
	}
	for i := 1; i < len(slices); i++ {
		if !slices[i].End.Equal(slices[i-1].Start) {
			t.Errorf("slice %d end = %v, want previous start %v", i, slices[i].End, slices[i-1].Start)
		}
		if !slices[i].Start.Before(slices[i].End) {
			t.Errorf("slice %d start %v not before end %v", i, slices[i].Start, slices[i].End)
		}
	}

	earliest := now.Add(-3 * time.Hour)
	last := slices[len(slices)-1]
	if last.Start.Before(earliest) {
		t.Errorf("earliest slice start = %v, precedes horizon boundary %v", last.Start, earliest)
	}
}

func TestPlan_ClampsFinalSlice(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	// 100 minutes in 9 slices: increment rounds up to 12 minutes, so the
	// ninth slice would reach past the horizon without the clamp.
	slices, err := p.Plan(now, 100*time.Minute, 9)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(slices) != 9 {
		t.Fatalf("len(slices) = %d, want 9", len(slices))
	}

	earliest := now.Add(-100 * time.Minute)
	last := slices[len(slices)-1]
	if !last.Start.Equal(earliest) {
		t.Errorf("final slice start = %v, want clamped to %v", last.Start, earliest)
	}
	if last.Width() >= slices[0].Width() {
		t.Errorf("final slice width %v not reduced by clamp (full width %v)", last.Width(), slices[0].Width())
	}
}

func TestPlan_ResolutionLookup(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	tests := []struct {
		name    string
		horizon time.Duration
		slices  int
		want    int32
	}{
		{"short horizon gets 1s", 2 * time.Hour, 9, 1},
		{"mid horizon gets 60s", 10 * 24 * time.Hour, 10, 60},
		{"long horizon gets 300s", 30 * 24 * time.Hour, 30, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices, err := p.Plan(now, tt.horizon, tt.slices)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if slices[0].Resolution != tt.want {
				t.Errorf("resolution = %d, want %d", slices[0].Resolution, tt.want)
			}
		})
	}
}

func TestPlan_AutoCoarsensOverCeiling(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	// 3-hour horizon in a single slice: 10800 points at 1s, over the 1440
	// ceiling, so the planner must climb to 60s (180 points).
	slices, err := p.Plan(now, 3*time.Hour, 1)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if slices[0].Resolution != 60 {
		t.Errorf("resolution = %d, want coarsened to 60", slices[0].Resolution)
	}
}

func TestPlan_RejectsImpossibleWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	// One slice of 10 years exceeds 1440 points even at the coarsest
	// supported period.
	if _, err := p.Plan(now, 10*365*24*time.Hour, 1); err == nil {
		t.Error("Plan() accepted a window over the data-point ceiling at every period")
	}
}

func TestPlan_InvalidInputs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	if _, err := p.Plan(now, 0, 9); err == nil {
		t.Error("Plan() accepted a zero horizon")
	}
	if _, err := p.Plan(now, time.Hour, 0); err == nil {
		t.Error("Plan() accepted a zero slice count")
	}
	if _, err := p.Plan(now, 500*time.Millisecond, 1); err == nil {
		t.Error("Plan() accepted a sub-second horizon")
	}
}

func TestPlan_RejectsHorizonTooShortForSliceCount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	// 10 seconds in 9 slices: the 2-second increment covers the horizon
	// after five slices, so the rest would be empty or inverted.
	if _, err := p.Plan(now, 10*time.Second, 9); err == nil {
		t.Error("Plan() accepted a horizon too short for its slice count")
	}

	// 9 seconds in 9 slices divides exactly and must still work.
	slices, err := p.Plan(now, 9*time.Second, 9)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	for i, s := range slices {
		if !s.Start.Before(s.End) {
			t.Errorf("slice %d start %v not before end %v", i, s.Start, s.End)
		}
	}
}

func TestPlan_SliceInvariantsHoldForAllAcceptedInputs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewWindowPlanner()

	// Every (horizon, sliceCount) pair either errors or yields exactly
	// sliceCount non-empty contiguous slices spanning the full horizon.
	for secs := 1; secs <= 30; secs++ {
		horizon := time.Duration(secs) * time.Second
		for count := 1; count <= 8; count++ {
			slices, err := p.Plan(now, horizon, count)
			if err != nil {
				continue
			}
			if len(slices) != count {
				t.Fatalf("Plan(%v, %d): %d slices, want %d", horizon, count, len(slices), count)
			}
			if !slices[0].End.Equal(now) {
				t.Errorf("Plan(%v, %d): first end = %v, want %v", horizon, count, slices[0].End, now)
			}
			for i, s := range slices {
				if !s.Start.Before(s.End) {
					t.Errorf("Plan(%v, %d): slice %d start %v not before end %v", horizon, count, i, s.Start, s.End)
				}
				if i > 0 && !s.End.Equal(slices[i-1].Start) {
					t.Errorf("Plan(%v, %d): slice %d end %v != previous start %v", horizon, count, i, s.End, slices[i-1].Start)
				}
			}
			earliest := now.Add(-horizon)
			if !slices[len(slices)-1].Start.Equal(earliest) {
				t.Errorf("Plan(%v, %d): earliest start = %v, want %v", horizon, count, slices[len(slices)-1].Start, earliest)
			}
		}
	}
}
