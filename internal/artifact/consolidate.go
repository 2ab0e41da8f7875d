package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wesleyorama2/dynosweep/internal/collector"
)

const headerRule = "================================================"

// Consolidator merges a tuple's raw artifacts into one report document.
//
// A report is a fixed header block followed by every artifact's content in
// ascending slice-start order, each behind a file-name marker line.
// Re-running consolidation over the same artifact set reproduces the same
// content byte for byte, apart from the GENERATED timestamp.
type Consolidator struct {
	store *Store
	log   *zap.Logger

	// clock overrides time.Now for the GENERATED header line, for tests.
	clock func() time.Time
}

// NewConsolidator creates a consolidator over the store's layout.
func NewConsolidator(store *Store, log *zap.Logger) *Consolidator {
	return &Consolidator{
		store: store,
		log:   log,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Consolidate builds the report for one (table, operation, metric, horizon)
// tuple. It returns the report path, or "" when the tuple has no artifacts
// (a swept tuple with zero activity still has artifacts; "" means the tuple
// was never collected).
//
// Safe to run while other tuples are still being written; the orchestrator
// guarantees this tuple's sweep has drained.
func (c *Consolidator) Consolidate(region, table string, op collector.OperationKind, metric collector.MetricKind, horizon collector.Horizon) (string, error) {
	dir := c.store.TupleDir(region, table, op, metric)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "listing artifacts in %s", dir)
	}

	type sourceFile struct {
		name  string
		start time.Time
	}
	var files []sourceFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		meta, err := ParseName(entry.Name())
		if err != nil {
			// Foreign file in the tuple directory; leave it out rather
			// than guess at its position.
			c.log.Warn("ignoring unrecognized artifact", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		files = append(files, sourceFile{name: entry.Name(), start: meta.Start})
	}
	if len(files) == 0 {
		return "", nil
	}

	// Oldest slice first. File names break ties deterministically.
	sort.Slice(files, func(i, j int) bool {
		if files[i].start.Equal(files[j].start) {
			return files[i].name < files[j].name
		}
		return files[i].start.Before(files[j].start)
	})

	var buf strings.Builder
	fmt.Fprintf(&buf, "%s\nTABLE: %s\nOPERATION: %s\nMETRIC: %s\nPERIOD: %s\nGENERATED: %s\n%s\n\n",
		headerRule, table, op, metric.DisplayName(), horizon.Description,
		c.clock().Format("2006-01-02 15:04:05"), headerRule)

	var datapoints int64
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return "", errors.Wrapf(err, "reading artifact %s", f.name)
		}
		datapoints += gjson.GetBytes(content, "Datapoints.#").Int()
		fmt.Fprintf(&buf, "--- %s ---\n", f.name)
		buf.Write(content)
		buf.WriteString("\n")
	}

	outName := fmt.Sprintf("%s_%s_%s-%s.log", table, op, metric.DirName(), horizon.Label)
	outPath := filepath.Join(c.store.TableDir(region, table), outName)
	if err := WriteAtomic(outPath, []byte(buf.String())); err != nil {
		return "", errors.Wrapf(err, "writing consolidated report %s", outName)
	}

	c.log.Info("report consolidated",
		zap.String("path", outPath),
		zap.Int("files", len(files)),
		zap.Int64("datapoints", datapoints))
	return outPath, nil
}

// SetClock overrides the GENERATED timestamp source.
func (c *Consolidator) SetClock(clock func() time.Time) {
	c.clock = clock
}
