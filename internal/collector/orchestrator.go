package collector

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// sweepPhase is the per-table, per-horizon collection state.
type sweepPhase int

const (
	phasePlanned sweepPhase = iota
	phaseSweeping
	phaseBarriered
	phaseConsolidated
)

func (p sweepPhase) String() string {
	switch p {
	case phasePlanned:
		return "planned"
	case phaseSweeping:
		return "sweeping"
	case phaseBarriered:
		return "barriered"
	case phaseConsolidated:
		return "consolidated"
	}
	return "unknown"
}

// ConfigurationError marks failures that prevent any sweep from starting:
// bad regions, missing credentials, an empty table set. It is the only
// error class that propagates to the process exit code.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is (or wraps) a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ClientFactory builds the region-bound collaborators. Each region gets its
// own metric source and catalog.
type ClientFactory func(ctx context.Context, region string) (MetricSource, TableCatalog, error)

// Orchestrator drives a full collection run: per region, discover tables;
// per table and horizon, plan slices, sweep, barrier, consolidate.
//
// Horizons for one table run sequentially: the short horizon reaches its
// consolidated state before the long horizon is planned. Tables run
// sequentially too; all intra-sweep parallelism lives in the executor.
type Orchestrator struct {
	factory     ClientFactory
	store       ArtifactWriter
	reports     ReportBuilder
	planner     *WindowPlanner
	throttle    *Throttle
	ledger      *CallLedger
	stats       *CallStats
	log         *zap.Logger
	horizons    []Horizon
	regions     []string
	tableFilter []string
	clock       func() time.Time
}

// OrchestratorConfig carries the run-level wiring for NewOrchestrator.
type OrchestratorConfig struct {
	Factory     ClientFactory
	Store       ArtifactWriter
	Reports     ReportBuilder
	Planner     *WindowPlanner
	Throttle    *Throttle
	Ledger      *CallLedger
	Stats       *CallStats
	Log         *zap.Logger
	Horizons    []Horizon
	Regions     []string
	TableFilter []string

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewOrchestrator wires an orchestrator. Horizons default to the canonical
// pair when empty.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	horizons := cfg.Horizons
	if len(horizons) == 0 {
		horizons = DefaultHorizons()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		factory:     cfg.Factory,
		store:       cfg.Store,
		reports:     cfg.Reports,
		planner:     cfg.Planner,
		throttle:    cfg.Throttle,
		ledger:      cfg.Ledger,
		stats:       cfg.Stats,
		log:         cfg.Log,
		horizons:    horizons,
		regions:     cfg.Regions,
		tableFilter: cfg.TableFilter,
		clock:       clock,
	}
}

// regionTable binds one table to its region's metric source.
type regionTable struct {
	region string
	info   TableInfo
	source MetricSource
}

// Run executes the full collection and returns the final summary.
//
// Only configuration-level failures return an error; individual job and
// consolidation failures are contained, logged, and counted in the summary.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	started := o.clock()

	tables, err := o.discoverTables(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, &ConfigurationError{Err: errors.New("no tables found to process")}
	}
	o.log.Info("tables discovered", zap.Int("count", len(tables)))

	summary := &RunSummary{Regions: o.regions, Tables: len(tables)}
	for _, rt := range tables {
		for _, horizon := range o.horizons {
			res, err := o.runHorizon(ctx, rt, horizon, summary)
			if err != nil {
				return nil, err
			}
			summary.JobsSucceeded += res.Succeeded
			summary.JobsFailed += res.Failed
			summary.SlicesSkipped += res.Skipped
		}
	}

	summary.TotalCalls = o.ledger.TotalCalls()
	summary.Barriers = o.ledger.Barriers()
	summary.Elapsed = o.clock().Sub(started)
	summary.CallLatency = o.stats.Snapshot()
	return summary, nil
}

// runHorizon walks one table through planned → sweeping → barriered →
// consolidated for one horizon.
func (o *Orchestrator) runHorizon(ctx context.Context, rt regionTable, horizon Horizon, summary *RunSummary) (*SweepResult, error) {
	phase := phasePlanned
	slices, err := o.planner.PlanHorizon(o.clock(), horizon)
	if err != nil {
		return nil, &ConfigurationError{Err: errors.Wrapf(err, "planning %s horizon", horizon.Label)}
	}
	o.log.Info("horizon planned",
		zap.String("table", rt.info.Name),
		zap.String("horizon", horizon.Label),
		zap.Int("slices", len(slices)),
		zap.String("phase", phase.String()))

	phase = phaseSweeping
	executor := NewJobExecutor(rt.source, o.store, o.throttle, o.stats, o.log)
	res, err := executor.RunSweep(ctx, rt.region, rt.info, horizon, slices)
	if err != nil {
		return nil, errors.Wrapf(err, "sweep aborted for table %s", rt.info.Name)
	}

	// RunSweep returns after the end-of-sweep drain, so every artifact for
	// this tuple set is on disk.
	phase = phaseBarriered
	o.log.Debug("sweep drained",
		zap.String("table", rt.info.Name),
		zap.String("horizon", horizon.Label),
		zap.String("phase", phase.String()))

	var consErrs *multierror.Error
	for _, op := range AllOperations() {
		for _, metric := range AllMetricKinds() {
			path, err := o.reports.Consolidate(rt.region, rt.info.Name, op, metric, horizon)
			if err != nil {
				consErrs = multierror.Append(consErrs, err)
				o.log.Error("consolidation failed",
					zap.String("table", rt.info.Name),
					zap.String("operation", string(op)),
					zap.String("metric", string(metric)),
					zap.String("horizon", horizon.Label),
					zap.Error(err))
				continue
			}
			if path != "" {
				summary.ReportsWritten++
			}
		}
	}
	if consErrs.ErrorOrNil() != nil {
		// Contained: other tuples' reports stand, the run continues.
		o.log.Warn("some reports were skipped",
			zap.String("table", rt.info.Name),
			zap.String("horizon", horizon.Label),
			zap.Int("failures", len(consErrs.Errors)))
	}

	phase = phaseConsolidated
	o.log.Info("horizon consolidated",
		zap.String("table", rt.info.Name),
		zap.String("horizon", horizon.Label),
		zap.String("phase", phase.String()))
	return res, nil
}

// discoverTables builds the run's table set: per region, list tables, apply
// the filter, and describe survivors for their creation times. Failures
// here are configuration errors; no sweep has started yet.
func (o *Orchestrator) discoverTables(ctx context.Context) ([]regionTable, error) {
	var tables []regionTable
	for _, region := range o.regions {
		source, catalog, err := o.factory(ctx, region)
		if err != nil {
			return nil, &ConfigurationError{Err: errors.Wrapf(err, "initializing region %s", region)}
		}

		names, err := catalog.ListTables(ctx)
		if err != nil {
			return nil, &ConfigurationError{Err: errors.Wrapf(err, "listing tables in %s", region)}
		}
		if len(names) == 0 {
			o.log.Info("no tables in region", zap.String("region", region))
			continue
		}

		for _, name := range names {
			if !o.tableSelected(name) {
				continue
			}
			info, err := catalog.Describe(ctx, name)
			if err != nil {
				return nil, &ConfigurationError{Err: errors.Wrapf(err, "describing table %s in %s", name, region)}
			}
			tables = append(tables, regionTable{region: region, info: info, source: source})
		}
	}
	return tables, nil
}

func (o *Orchestrator) tableSelected(name string) bool {
	if len(o.tableFilter) == 0 {
		return true
	}
	for _, want := range o.tableFilter {
		if want == name {
			return true
		}
	}
	return false
}
