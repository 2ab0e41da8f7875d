// Package config defines the collection run options, their YAML file form,
// and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options is the configuration contract of one collection run. File values
// load first; CLI flags override them.
type Options struct {
	// Regions to probe. Empty means the ambient credential chain's
	// default region.
	Regions []string `yaml:"regions,omitempty"`

	// Tables filters collection to the named tables. Empty means every
	// table found.
	Tables []string `yaml:"tables,omitempty"`

	// Profile is the shared AWS profile name.
	Profile string `yaml:"profile,omitempty"`

	// UseInstanceProfile authenticates with EC2 instance metadata.
	UseInstanceProfile bool `yaml:"instanceProfile,omitempty"`

	// WaitThreshold is the call count that fires the drain barrier.
	WaitThreshold int64 `yaml:"waitThreshold,omitempty"`

	// MaxParallel bounds concurrent CloudWatch calls.
	MaxParallel int `yaml:"maxParallel,omitempty"`

	// OutputDir is the run root. Empty means a timestamped directory in
	// the working directory.
	OutputDir string `yaml:"outputDir,omitempty"`

	// Horizons selects which canonical horizons to sweep, by label.
	// Empty means both.
	Horizons []string `yaml:"horizons,omitempty"`

	// Debug enables debug-level execution logging.
	Debug bool `yaml:"debug,omitempty"`
}

// Default returns the options used when neither file nor flags set a value.
func Default() Options {
	return Options{
		WaitThreshold: 1000,
		MaxParallel:   8,
		Horizons:      []string{"3hr", "7day"},
	}
}

// Load reads options from a YAML file, layered over the defaults.
func Load(path string) (*Options, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return &opts, nil
}

// RunRoot returns the run root directory for this invocation, timestamped
// when no output directory is configured.
func (o *Options) RunRoot(now time.Time) string {
	if o.OutputDir != "" {
		return o.OutputDir
	}
	return fmt.Sprintf("dynamo_metrics_logs_%s", now.Format("010206150405"))
}
