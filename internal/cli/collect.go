package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/dynosweep/internal/artifact"
	"github.com/wesleyorama2/dynosweep/internal/awsx"
	"github.com/wesleyorama2/dynosweep/internal/collector"
	"github.com/wesleyorama2/dynosweep/internal/config"
	"github.com/wesleyorama2/dynosweep/internal/logging"
	"github.com/wesleyorama2/dynosweep/internal/output"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a metrics collection sweep",
	Long: `Collect sample counts and P99 latency for every DynamoDB operation,
across the configured regions and horizons. Raw per-slice artifacts and
consolidated per-table reports are written under the run root.`,
	RunE: runCollect,
}

func init() {
	flags := collectCmd.Flags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.StringSliceP("tables", "t", nil, "Comma-separated list of specific tables to process")
	flags.StringSliceP("regions", "r", nil, "Comma-separated list of regions to process")
	flags.StringP("profile", "p", "", "AWS profile to use")
	flags.BoolP("instance-profile", "I", false, "Use EC2 Instance Profile for authentication")
	flags.Int64P("wait-threshold", "w", 0, "Number of AWS calls before draining in-flight work")
	flags.Int("parallel", 0, "Maximum concurrent CloudWatch calls")
	flags.StringP("out", "o", "", "Run root directory (default: timestamped)")
	flags.StringSlice("horizons", nil, "Horizons to sweep: 3hr, 7day")
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("no-color", false, "Disable colored output")
}

// runCollect builds the run options, wires the orchestrator, and executes
// the collection. Only configuration failures return an error (non-zero
// exit); per-job failures are reported in the summary and exit 0.
func runCollect(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	if errs := config.Validate(opts); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		return errors.New("invalid configuration")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(opts.Regions) == 0 {
		region, err := awsx.DefaultRegion(ctx)
		if err != nil {
			return errors.Wrap(err, "no regions given and no default region")
		}
		opts.Regions = []string{region}
	}

	horizons := make([]collector.Horizon, 0, len(opts.Horizons))
	for _, label := range opts.Horizons {
		h, err := collector.HorizonByLabel(label)
		if err != nil {
			return err
		}
		horizons = append(horizons, h)
	}

	runRoot := opts.RunRoot(time.Now())
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return errors.Wrapf(err, "creating run root %s", runRoot)
	}

	log, closeLog, err := logging.NewRunLogger(runRoot, opts.Debug)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Info("starting DynamoDB metrics collection")

	ledger := collector.NewCallLedger()
	throttle := collector.NewThrottle(opts.MaxParallel, opts.WaitThreshold, ledger)
	stats := collector.NewCallStats()
	store := artifact.NewStore(runRoot)
	reports := artifact.NewConsolidator(store, log)

	factory := func(ctx context.Context, region string) (collector.MetricSource, collector.TableCatalog, error) {
		client, err := awsx.New(ctx, awsx.Options{
			Region:             region,
			Profile:            opts.Profile,
			UseInstanceProfile: opts.UseInstanceProfile,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}

	orch := collector.NewOrchestrator(collector.OrchestratorConfig{
		Factory:     factory,
		Store:       store,
		Reports:     reports,
		Planner:     collector.NewWindowPlanner(),
		Throttle:    throttle,
		Ledger:      ledger,
		Stats:       stats,
		Log:         log,
		Horizons:    horizons,
		Regions:     opts.Regions,
		TableFilter: opts.Tables,
	})

	summary, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("metrics collection completed for all tables")

	noColor, _ := cmd.Flags().GetBool("no-color")
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		noColor = true
	}
	output.NewFormatter(os.Stdout, noColor).PrintSummary(summary, horizons)
	return nil
}

// resolveOptions layers CLI flags over the config file (or defaults).
func resolveOptions(cmd *cobra.Command) (*config.Options, error) {
	flags := cmd.Flags()

	var opts *config.Options
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		opts = loaded
	} else {
		defaults := config.Default()
		opts = &defaults
	}

	if flags.Changed("tables") {
		opts.Tables, _ = flags.GetStringSlice("tables")
	}
	if flags.Changed("regions") {
		opts.Regions, _ = flags.GetStringSlice("regions")
	}
	if flags.Changed("profile") {
		opts.Profile, _ = flags.GetString("profile")
	}
	if flags.Changed("instance-profile") {
		opts.UseInstanceProfile, _ = flags.GetBool("instance-profile")
	}
	if flags.Changed("wait-threshold") {
		opts.WaitThreshold, _ = flags.GetInt64("wait-threshold")
	}
	if flags.Changed("parallel") {
		opts.MaxParallel, _ = flags.GetInt("parallel")
	}
	if flags.Changed("out") {
		opts.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("horizons") {
		opts.Horizons, _ = flags.GetStringSlice("horizons")
	}
	if flags.Changed("debug") {
		opts.Debug, _ = flags.GetBool("debug")
	}
	return opts, nil
}
