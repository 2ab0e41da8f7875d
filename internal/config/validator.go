package config

import (
	"fmt"
	"strings"
)

// knownHorizons are the labels the planner understands.
var knownHorizons = map[string]bool{
	"3hr":  true,
	"7day": true,
}

// Validate checks the options and returns every problem found, not just the
// first.
func Validate(o *Options) []error {
	var errs []error

	if o.WaitThreshold <= 0 {
		errs = append(errs, fmt.Errorf("waitThreshold must be positive, got %d", o.WaitThreshold))
	}
	if o.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("maxParallel must be positive, got %d", o.MaxParallel))
	}

	if len(o.Horizons) == 0 {
		errs = append(errs, fmt.Errorf("at least one horizon is required"))
	}
	for _, label := range o.Horizons {
		if !knownHorizons[label] {
			errs = append(errs, fmt.Errorf("unknown horizon %q (valid: 3hr, 7day)", label))
		}
	}

	for _, table := range o.Tables {
		if strings.TrimSpace(table) == "" {
			errs = append(errs, fmt.Errorf("table filter contains an empty name"))
		}
	}
	for _, region := range o.Regions {
		if strings.TrimSpace(region) == "" {
			errs = append(errs, fmt.Errorf("region list contains an empty name"))
		}
	}

	if o.Profile != "" && o.UseInstanceProfile {
		errs = append(errs, fmt.Errorf("profile and instanceProfile are mutually exclusive"))
	}

	return errs
}
