// Package collector implements the metrics-collection orchestration engine:
// horizon planning, throttled job dispatch against CloudWatch, artifact
// persistence, and per-table consolidation sequencing.
package collector

import (
	"context"
	"fmt"
	"time"
)

// OperationKind identifies a DynamoDB operation whose metrics are collected.
type OperationKind string

const (
	OpGetItem        OperationKind = "GetItem"
	OpQuery          OperationKind = "Query"
	OpScan           OperationKind = "Scan"
	OpPutItem        OperationKind = "PutItem"
	OpUpdateItem     OperationKind = "UpdateItem"
	OpDeleteItem     OperationKind = "DeleteItem"
	OpBatchWriteItem OperationKind = "BatchWriteItem"
)

// ReadOperations returns the read operations, in collection order.
func ReadOperations() []OperationKind {
	return []OperationKind{OpGetItem, OpQuery, OpScan}
}

// WriteOperations returns the write operations, in collection order.
func WriteOperations() []OperationKind {
	return []OperationKind{OpPutItem, OpUpdateItem, OpDeleteItem, OpBatchWriteItem}
}

// AllOperations returns every operation, reads first.
func AllOperations() []OperationKind {
	return append(ReadOperations(), WriteOperations()...)
}

// MetricKind identifies which statistic a job requests from CloudWatch.
type MetricKind string

const (
	// MetricSampleCount requests the SampleCount statistic (request counts).
	MetricSampleCount MetricKind = "SampleCount"
	// MetricP99Latency requests the p99 extended statistic.
	MetricP99Latency MetricKind = "P99Latency"
)

// AllMetricKinds returns every metric kind, in collection order.
func AllMetricKinds() []MetricKind {
	return []MetricKind{MetricSampleCount, MetricP99Latency}
}

// DirName returns the per-metric directory name used in the artifact layout.
func (m MetricKind) DirName() string {
	if m == MetricSampleCount {
		return "sample_count"
	}
	return "p99_latency"
}

// DisplayName returns the human-readable name used in consolidated headers.
func (m MetricKind) DisplayName() string {
	if m == MetricSampleCount {
		return "Sample Count"
	}
	return "P99 Latency"
}

// TimeSlice is one bounded sub-interval of a horizon, queried independently.
//
// Slices within one horizon are contiguous and non-overlapping, ordered
// most-recent-first, with the final slice's Start clamped to the horizon
// boundary.
type TimeSlice struct {
	Start time.Time
	End   time.Time

	// Resolution is the CloudWatch period, in seconds.
	Resolution int32
}

// Width returns the slice duration.
func (s TimeSlice) Width() time.Duration {
	return s.End.Sub(s.Start)
}

// Horizon is one reporting window: a total length divided into a fixed
// number of slices, labelled for the consolidated report file names.
type Horizon struct {
	Label       string
	Length      time.Duration
	SliceCount  int
	Description string
}

// DefaultHorizons returns the two canonical horizons: the last 3 hours in
// 20-minute slices and the last 7 days in 24-hour slices.
func DefaultHorizons() []Horizon {
	return []Horizon{
		{
			Label:       "3hr",
			Length:      3 * time.Hour,
			SliceCount:  9,
			Description: "3 hours (20-minute intervals)",
		},
		{
			Label:       "7day",
			Length:      7 * 24 * time.Hour,
			SliceCount:  7,
			Description: "7 days (24-hour intervals)",
		},
	}
}

// HorizonByLabel looks up a canonical horizon by its label.
func HorizonByLabel(label string) (Horizon, error) {
	for _, h := range DefaultHorizons() {
		if h.Label == label {
			return h, nil
		}
	}
	return Horizon{}, fmt.Errorf("unknown horizon %q", label)
}

// CollectionJob is the unit of work: one slice of one operation's metric for
// one table. Immutable once created, consumed exactly once by the executor.
type CollectionJob struct {
	Region    string
	Table     string
	Operation OperationKind
	Metric    MetricKind
	Slice     TimeSlice
}

// JobFailure records one failed job with enough identity to reproduce the
// call.
type JobFailure struct {
	Job CollectionJob
	Err error
}

// SweepResult summarizes one horizon sweep for one table.
type SweepResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Artifacts []string
	Failures  []JobFailure
}

// TableInfo carries the catalog facts a sweep needs about a table.
type TableInfo struct {
	Name         string
	CreationTime time.Time
}

// StatisticsRequest is a single metric-fetch call against the metric source.
type StatisticsRequest struct {
	Table     string
	Operation OperationKind
	Metric    MetricKind
	Start     time.Time
	End       time.Time
	Period    int32
}

// StatisticsResult is the outcome of one metric-fetch call. Raw is the
// response body exactly as it will be persisted; Datapoints is the number of
// points it contains (zero is a valid, non-error outcome).
type StatisticsResult struct {
	Label      string
	Datapoints int
	Raw        []byte
}

// MetricSource is the external, rate-limited metrics API. Implementations
// own their retry policy; the executor never retries.
type MetricSource interface {
	GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResult, error)
}

// TableCatalog discovers the sweep's table set and per-table creation times.
type TableCatalog interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (TableInfo, error)
}

// ArtifactWriter persists one job's raw result at a path fully determined by
// the job identity.
type ArtifactWriter interface {
	Write(job CollectionJob, raw []byte) (string, error)
	PathFor(job CollectionJob) string
}

// ReportBuilder merges all artifacts of one (table, operation, metric,
// horizon) tuple into a consolidated report. It returns the report path, or
// "" when the tuple has no artifacts.
type ReportBuilder interface {
	Consolidate(region, table string, op OperationKind, metric MetricKind, horizon Horizon) (string, error)
}
