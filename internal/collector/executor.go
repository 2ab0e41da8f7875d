package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobExecutor dispatches one horizon sweep's jobs through the Throttle and
// MetricSource and persists each raw result.
//
// Jobs are independent and commutative: dispatch order across operations
// and slices is unspecified, the executor only guarantees that RunSweep
// returns after the end-of-sweep barrier has fired. A failed call is
// recorded against its job and the sweep continues; the executor never
// retries.
type JobExecutor struct {
	source   MetricSource
	store    ArtifactWriter
	throttle *Throttle
	stats    *CallStats
	log      *zap.Logger
}

// NewJobExecutor wires an executor for one region's metric source.
func NewJobExecutor(source MetricSource, store ArtifactWriter, throttle *Throttle, stats *CallStats, log *zap.Logger) *JobExecutor {
	return &JobExecutor{
		source:   source,
		store:    store,
		throttle: throttle,
		stats:    stats,
		log:      log,
	}
}

// sweepState accumulates job outcomes across worker goroutines.
type sweepState struct {
	mu     sync.Mutex
	result SweepResult
}

func (s *sweepState) succeed(path string) {
	s.mu.Lock()
	s.result.Succeeded++
	s.result.Artifacts = append(s.result.Artifacts, path)
	s.mu.Unlock()
}

func (s *sweepState) fail(job CollectionJob, err error) {
	s.mu.Lock()
	s.result.Failed++
	s.result.Failures = append(s.result.Failures, JobFailure{Job: job, Err: err})
	s.mu.Unlock()
}

// RunSweep covers one horizon for one table: the cross-product of slices,
// operations, and metric kinds, gated by the throttle. Slices entirely
// before the table's creation time are skipped without dispatching a job.
//
// RunSweep blocks until every job has completed and the end-of-sweep
// barrier has fired. The returned error is non-nil only when the context is
// cancelled mid-sweep; per-job failures live in the result.
func (e *JobExecutor) RunSweep(ctx context.Context, region string, table TableInfo, horizon Horizon, slices []TimeSlice) (*SweepResult, error) {
	state := &sweepState{}
	var wg sync.WaitGroup

	for _, slice := range slices {
		if e.sliceBeforeCreation(slice, table) {
			state.result.Skipped++
			e.log.Debug("skipping slice before table creation",
				zap.String("table", table.Name),
				zap.Time("slice_end", slice.End),
				zap.Time("created", table.CreationTime))
			continue
		}

		for _, op := range AllOperations() {
			for _, metric := range AllMetricKinds() {
				job := CollectionJob{
					Region:    region,
					Table:     table.Name,
					Operation: op,
					Metric:    metric,
					Slice:     slice,
				}

				if err := e.throttle.Acquire(ctx); err != nil {
					wg.Wait()
					e.throttle.Drain()
					return &state.result, err
				}

				wg.Add(1)
				go e.dispatch(ctx, job, state, &wg)
			}
		}
	}

	wg.Wait()
	// Mandatory end-of-sweep barrier: consolidation must never observe an
	// artifact write still in flight.
	e.throttle.Drain()

	e.log.Info("sweep complete",
		zap.String("table", table.Name),
		zap.String("region", region),
		zap.String("horizon", horizon.Label),
		zap.Int("succeeded", state.result.Succeeded),
		zap.Int("failed", state.result.Failed),
		zap.Int("skipped_slices", state.result.Skipped))
	return &state.result, nil
}

// dispatch runs one job: call the source, persist the artifact, release the
// permit, record the call.
func (e *JobExecutor) dispatch(ctx context.Context, job CollectionJob, state *sweepState, wg *sync.WaitGroup) {
	defer wg.Done()
	defer e.throttle.RecordCall()
	defer e.throttle.Release()

	start := time.Now()
	res, err := e.source.GetStatistics(ctx, StatisticsRequest{
		Table:     job.Table,
		Operation: job.Operation,
		Metric:    job.Metric,
		Start:     job.Slice.Start,
		End:       job.Slice.End,
		Period:    job.Slice.Resolution,
	})
	e.stats.Record(time.Since(start))

	if err != nil {
		state.fail(job, err)
		e.log.Error("metric fetch failed",
			zap.String("table", job.Table),
			zap.String("region", job.Region),
			zap.String("operation", string(job.Operation)),
			zap.String("metric", string(job.Metric)),
			zap.Time("start", job.Slice.Start),
			zap.Time("end", job.Slice.End),
			zap.Error(err))
		return
	}

	path, err := e.store.Write(job, res.Raw)
	if err != nil {
		state.fail(job, err)
		e.log.Error("artifact write failed",
			zap.String("table", job.Table),
			zap.String("operation", string(job.Operation)),
			zap.String("metric", string(job.Metric)),
			zap.Error(err))
		return
	}

	state.succeed(path)
	e.log.Debug("artifact written",
		zap.String("path", path),
		zap.Int("datapoints", res.Datapoints))
}

// sliceBeforeCreation reports whether the slice ends at or before the
// table's creation time. A zero creation time disables the check.
func (e *JobExecutor) sliceBeforeCreation(slice TimeSlice, table TableInfo) bool {
	if table.CreationTime.IsZero() {
		return false
	}
	return !slice.End.After(table.CreationTime)
}
