// Command validate checks a directory of raw Purple Air exports before a
// pipeline run. It verifies that every file name carries sensor identity, that
// every file parses, that the files group into complete four-stream sensors,
// and that each sensor yields an observation. With -tracts it also reports
// sensors that fall outside every census tract.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data/purple_air \
//	  -tracts data/tracts.geojson \
//	  -table
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesource"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/geo"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	dataDir    string
	pattern    string
	tracts     string
	idProperty string
	table      bool
	jsonOut    string
}

func main() {
	var o options
	flag.StringVar(&o.dataDir, "data-dir", "", "directory containing raw Purple Air CSV exports")
	flag.StringVar(&o.pattern, "pattern", "*.csv*", "glob selecting raw exports")
	flag.StringVar(&o.tracts, "tracts", "", "optional GeoJSON tract polygons")
	flag.StringVar(&o.idProperty, "id-property", "NAME10", "GeoJSON property naming a tract")
	flag.BoolVar(&o.table, "table", false, "print the identity table")
	flag.StringVar(&o.jsonOut, "json-out", "", "write the identity table as JSON to this path")
	flag.Parse()

	if o.dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(o); code != 0 {
		os.Exit(code)
	}
}

func run(o options) int {
	fmt.Println("=== Purple Air Export Validation ===")
	fmt.Println()

	files, err := filesource.Discover(o.dataDir, o.pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: discover exports: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no files match %q in %s\n", o.pattern, o.dataDir)
		return 1
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name()
	}
	rows, nameErrs := domain.IdentityTable(names)

	namePhase := &phase{name: "Phase 1: File names carry identity"}
	for _, err := range nameErrs {
		namePhase.errorf("%v", err)
	}

	loadPhase := &phase{name: "Phase 2: Exports parse"}
	series := loadSeries(files, loadPhase)

	groupPhase := &phase{name: "Phase 3: Exports form four-stream sensors"}
	sensors := buildSensors(series, groupPhase)

	observePhase := &phase{name: "Phase 4: Sensors yield observations"}
	invalidated := observeSensors(sensors, observePhase)

	phases := []*phase{namePhase, loadPhase, groupPhase, observePhase}
	if o.tracts != "" {
		phases = append(phases, locateSensors(o.tracts, o.idProperty, sensors))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-46s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d matched, %d identified, %d parsed; sensors: %d built, %d with AQI invalidated by zero readings\n",
		len(files), len(rows), len(series), len(sensors), invalidated)

	if o.table {
		fmt.Println()
		printTable(rows)
	}
	if o.jsonOut != "" {
		if err := writeJSON(o.jsonOut, rows); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: write identity table: %v\n", err)
			return 1
		}
		fmt.Printf("\nIdentity table written to %s\n", o.jsonOut)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadSeries parses every export whose name carries identity.
func loadSeries(files []filesource.File, p *phase) []*domain.Series {
	var out []*domain.Series
	for _, f := range files {
		s, err := domain.LoadSeries(f)
		if err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				continue // reported in phase 1
			}
			p.errorf("%v", err)
			continue
		}
		if s.Len() == 0 {
			p.errorf("%s: no data rows", f.Name())
		}
		out = append(out, s)
	}
	return out
}

type sensorKey struct {
	name string
	lat  float64
}

// buildSensors groups the exports the way the pipeline does but validates
// every group instead of stopping at the first bad one.
func buildSensors(series []*domain.Series, p *phase) []*domain.Sensor {
	var order []sensorKey
	groups := make(map[sensorKey][]*domain.Series)
	for _, s := range series {
		id := s.Identity()
		k := sensorKey{id.SensorName, id.Lat}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	var sensors []*domain.Sensor
	for _, k := range order {
		s, err := domain.NewSensor(groups[k])
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		sensors = append(sensors, s)
	}
	return sensors
}

// observeSensors assembles each sensor's observation and returns how many
// had their AQI record discarded.
func observeSensors(sensors []*domain.Sensor, p *phase) int {
	invalidated := 0
	for _, s := range sensors {
		o, err := s.Observe()
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if o.AQIInvalidated {
			invalidated++
		}
	}
	return invalidated
}

func locateSensors(path, idProperty string, sensors []*domain.Sensor) *phase {
	p := &phase{name: "Phase 5: Sensors fall inside a tract"}
	idx, err := geo.LoadTracts(path, idProperty)
	if err != nil {
		p.errorf("load tracts: %v", err)
		return p
	}
	for _, s := range sensors {
		if len(idx.Locate(s.Lat, s.Lon)) == 0 {
			p.errorf("sensor %q at (%g %g) is outside every tract", s.Name, s.Lat, s.Lon)
		}
	}
	return p
}

func printTable(rows []domain.IdentityRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tLAT\tLON\tSENSOR\tLOCATION\tCHANNEL\tKIND")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%g\t%g\t%s\t%s\t%s\t%s\n", r.File, r.Lat, r.Lon, r.SensorName, r.LocationClass, r.Channel, r.DatasetKind)
	}
	w.Flush() //nolint:errcheck // stdout
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
