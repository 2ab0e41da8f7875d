// Package artifact owns the on-disk layout of raw metric results and the
// consolidated per-table reports built from them.
//
// The directory shape is part of the contract: downstream tooling discovers
// files for a (region, table, operation, metric) tuple from the path alone,
// with no external bookkeeping.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

// tsFormat is the sortable timestamp encoding used in artifact file names.
const tsFormat = "20060102150405"

// Store maps collection jobs to deterministic paths under a run root and
// persists raw results atomically.
//
// Layout:
//
//	<root>/<region>/<table>/<operation>/{sample_count|p99_latency}/<file>.log
//
// Two jobs with identical identifying fields map to the same path, which
// makes writes idempotent and runs resumable.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the run root directory.
func (s *Store) Root() string { return s.root }

// PathFor returns the artifact path for a job. Pure: no I/O, identical
// input yields identical output across calls and process restarts.
func (s *Store) PathFor(job collector.CollectionJob) string {
	return filepath.Join(
		s.root,
		job.Region,
		job.Table,
		string(job.Operation),
		job.Metric.DirName(),
		FileName(job.Operation, job.Metric, job.Slice.Start, job.Slice.End),
	)
}

// TableDir returns the directory holding a table's consolidated reports.
func (s *Store) TableDir(region, table string) string {
	return filepath.Join(s.root, region, table)
}

// TupleDir returns the directory holding one tuple's raw artifacts.
func (s *Store) TupleDir(region, table string, op collector.OperationKind, metric collector.MetricKind) string {
	return filepath.Join(s.root, region, table, string(op), metric.DirName())
}

// Write persists one job's raw result at its deterministic path. The write
// is all-or-nothing: content lands in a temp file in the target directory
// and is renamed into place, so a partial artifact is never visible.
func (s *Store) Write(job collector.CollectionJob, raw []byte) (string, error) {
	path := s.PathFor(job)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "creating artifact directory for %s", path)
	}
	if err := WriteAtomic(path, raw); err != nil {
		return "", err
	}
	return path, nil
}

// WriteAtomic writes content to path via a temp file and rename in the same
// directory.
func WriteAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing temp file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming temp file to %s", path)
	}
	return nil
}

// FileName returns the artifact file name for one job identity.
//
// Sample counts: <Op>_SampleCount_<start>to<end>.log
// P99 latency:   p99_<Op>_<start>to<end>.log
//
// Timestamps use a fixed sortable encoding so lexical order within a tuple
// directory matches slice order.
func FileName(op collector.OperationKind, metric collector.MetricKind, start, end time.Time) string {
	window := start.UTC().Format(tsFormat) + "to" + end.UTC().Format(tsFormat)
	if metric == collector.MetricSampleCount {
		return fmt.Sprintf("%s_SampleCount_%s.log", op, window)
	}
	return fmt.Sprintf("p99_%s_%s.log", op, window)
}

// Meta is the job identity recovered from an artifact file name.
type Meta struct {
	Operation collector.OperationKind
	Metric    collector.MetricKind
	Start     time.Time
	End       time.Time
}

// ParseName recovers the identity encoded in an artifact file name. The
// consolidator sorts on the decoded slice start rather than guessing at
// string order.
func ParseName(name string) (Meta, error) {
	base := strings.TrimSuffix(name, ".log")
	if base == name {
		return Meta{}, errors.Errorf("artifact name %q missing .log suffix", name)
	}

	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return Meta{}, errors.Errorf("artifact name %q has %d segments, want 3", name, len(parts))
	}

	var meta Meta
	var window string
	if parts[0] == "p99" {
		meta.Operation = collector.OperationKind(parts[1])
		meta.Metric = collector.MetricP99Latency
		window = parts[2]
	} else if parts[1] == "SampleCount" {
		meta.Operation = collector.OperationKind(parts[0])
		meta.Metric = collector.MetricSampleCount
		window = parts[2]
	} else {
		return Meta{}, errors.Errorf("artifact name %q has no recognized metric marker", name)
	}

	bounds := strings.SplitN(window, "to", 2)
	if len(bounds) != 2 {
		return Meta{}, errors.Errorf("artifact name %q has no window bounds", name)
	}
	start, err := time.ParseInLocation(tsFormat, bounds[0], time.UTC)
	if err != nil {
		return Meta{}, errors.Wrapf(err, "parsing start of %q", name)
	}
	end, err := time.ParseInLocation(tsFormat, bounds[1], time.UTC)
	if err != nil {
		return Meta{}, errors.Wrapf(err, "parsing end of %q", name)
	}
	meta.Start = start
	meta.End = end
	return meta, nil
}
