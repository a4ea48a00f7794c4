// Command genmock writes a synthetic Purple Air data set for local runs and
// demos: four raw CSV exports per sensor plus a GeoJSON file of census tract
// rectangles. Readings follow a daily cycle with a spike during the default
// smoke window. With -report-out it also runs the real pipeline over the
// generated files and saves the resulting report as a JSON fixture.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data/purple_air \
//	  -tracts-out data/tracts.geojson \
//	  -rows 3 -cols 3 -sensors 4 \
//	  -report-out data/mock/expected_report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/adapter/cache"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesource"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/geo"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/mockdata"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"github.com/couchcryptid/purple-haze-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

const idProperty = "NAME10"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "output directory for raw CSV exports")
	tractsOut := flag.String("tracts-out", "", "output path for tract GeoJSON")
	reportOut := flag.String("report-out", "", "optional output path for the expected report JSON")
	seed := flag.Uint64("seed", 2020, "random seed")
	rows := flag.Int("rows", 2, "tract grid rows")
	cols := flag.Int("cols", 2, "tract grid columns")
	perTract := flag.Int("sensors", 3, "sensors per tract")
	hours := flag.Int("hours", 14*24, "hours of readings per sensor")
	startRaw := flag.String("start", "2020-09-01T00:00:00", "first reading timestamp")
	gzip := flag.Bool("gzip", false, "write .csv.gz exports")
	flag.Parse()

	if *dataDir == "" || *tractsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -data-dir, -tracts-out")
	}
	if *rows < 1 || *cols < 1 || *perTract < 1 || *hours < 1 {
		return fmt.Errorf("-rows, -cols, -sensors, and -hours must be positive")
	}
	start, err := domain.ParseTimestamp(*startRaw)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	sc := mockdata.NewScenario(*seed, *rows, *cols, *perTract, *hours, start)
	paths, err := sc.Write(*dataDir, *tractsOut, idProperty, mockdata.Options{Gzip: *gzip})
	if err != nil {
		return err
	}
	log.Printf("tracts: %d written to %s", len(sc.Tracts), *tractsOut)
	log.Printf("sensors: %d (%d exports) written to %s", len(sc.Sensors), len(paths), *dataDir)

	if *reportOut == "" {
		return nil
	}
	return writeExpectedReport(*dataDir, *tractsOut, *reportOut, start, *hours)
}

// writeExpectedReport runs the pipeline over the generated files with a fixed
// clock and default options and saves the report.
func writeExpectedReport(dataDir, tractsPath, out string, start time.Time, hours int) error {
	domain.SetClock(clockwork.NewFakeClockAt(start.Add(time.Duration(hours) * time.Hour)))
	defer domain.SetClock(nil)

	idx, err := geo.LoadTracts(tractsPath, idProperty)
	if err != nil {
		return err
	}
	agg, err := domain.NewTractAggregator(start, start.Add(time.Duration(hours)*time.Hour), domain.DefaultSmoke)
	if err != nil {
		return err
	}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(
		filesource.Dir{Path: dataDir, Pattern: "*.csv*"},
		cache.NewCachedLoader(cache.LoaderFunc(domain.LoadSeries), 1024, metrics),
		idx,
		agg,
		nil,
		pipeline.Options{Workers: 4, Threshold: 100, IncludeSmoke: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics,
	)
	report, err := p.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Printf("report: %d tracts written to %s", len(report.Tracts), out)
	return nil
}
