// Package mockdata writes synthetic Purple Air exports and census tract
// polygons for local runs, demos, and tests.
package mockdata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/klauspost/pgzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Sensor describes one synthetic sensor. PM25 returns the channel A ATM PM2.5
// reading for hour i; channel B reads slightly higher.
type Sensor struct {
	Name     string
	Lat      float64
	Lon      float64
	Location domain.LocationClass
	Start    time.Time
	Hours    int
	PM25     func(i int) float64
}

// Tract is an axis-aligned census tract rectangle.
type Tract struct {
	ID     string
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Options controls file layout.
type Options struct {
	// Gzip writes .csv.gz files.
	Gzip bool
}

var primaryAHeader = []string{
	"created_at", "entry_id", "PM1.0_CF1_ug/m3", "PM2.5_CF1_ug/m3", "PM10.0_CF1_ug/m3",
	"UptimeMinutes", "RSSI_dbm", "Temperature_F", "Humidity_%", "PM2.5_ATM_ug/m3", "",
}

var primaryBHeader = []string{
	"created_at", "entry_id", "PM1.0_CF1_ug/m3", "PM2.5_CF1_ug/m3", "PM10.0_CF1_ug/m3",
	"UptimeMinutes", "ADC", "Pressure_hpa", "IAQ", "PM2.5_ATM_ug/m3", "",
}

var secondaryHeader = []string{
	"created_at", "entry_id", ">=0.3um/dl", ">=0.5um/dl", ">1.0um/dl", ">=2.5um/dl",
	">=5.0um/dl", ">=10.0um/dl", "PM1.0_ATM_ug/m3", "PM10_ATM_ug/m3", "",
}

// FileName returns the export name Purple Air uses for a sensor stream.
func FileName(s Sensor, ch domain.Channel, kind domain.DatasetKind) string {
	name := s.Name
	if ch == domain.ChannelB {
		name += " B"
	}
	if s.Location == domain.LocationInside || s.Location == domain.LocationOutside {
		name += " (" + string(s.Location) + ")"
	}
	end := s.Start.Add(time.Duration(s.Hours) * time.Hour)
	kindName := "Primary"
	if kind == domain.DatasetSecondary {
		kindName = "Secondary"
	}
	return fmt.Sprintf("%s (%s %s) %s Real Time %s %s.csv",
		name,
		strconv.FormatFloat(s.Lat, 'f', -1, 64),
		strconv.FormatFloat(s.Lon, 'f', -1, 64),
		kindName,
		s.Start.Format("01_02_2006"),
		end.Format("01_02_2006"),
	)
}

// WriteSensors writes four exports per sensor into dir and returns the paths.
func WriteSensors(dir string, sensors []Sensor, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, s := range sensors {
		for _, ch := range []domain.Channel{domain.ChannelA, domain.ChannelB} {
			for _, kind := range []domain.DatasetKind{domain.DatasetPrimary, domain.DatasetSecondary} {
				path := filepath.Join(dir, FileName(s, ch, kind))
				if opts.Gzip {
					path += ".gz"
				}
				if err := writeStream(path, s, ch, kind, opts.Gzip); err != nil {
					return nil, fmt.Errorf("write %s: %w", filepath.Base(path), err)
				}
				paths = append(paths, path)
			}
		}
	}
	return paths, nil
}

func writeStream(path string, s Sensor, ch domain.Channel, kind domain.DatasetKind, gzip bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	if gzip {
		gz := pgzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil {
				err = cerr
			}
		}()
		w = gz
	}

	cw := csv.NewWriter(w)
	header, row := streamLayout(ch, kind)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < s.Hours; i++ {
		if err := cw.Write(row(s, i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func streamLayout(ch domain.Channel, kind domain.DatasetKind) ([]string, func(Sensor, int) []string) {
	bias := 1.0
	if ch == domain.ChannelB {
		bias = 1.05
	}
	stamp := func(s Sensor, i int) string {
		return s.Start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05") + " UTC"
	}
	pm := func(s Sensor, i int) float64 { return s.PM25(i) * bias }

	if kind == domain.DatasetSecondary {
		return secondaryHeader, func(s Sensor, i int) []string {
			v := pm(s, i)
			return []string{
				stamp(s, i), strconv.Itoa(i + 1),
				num(v * 120), num(v * 35), num(v * 6), num(v * 0.8), num(v * 0.2), num(v * 0.05),
				num(v * 0.65), num(v * 1.2), "",
			}
		}
	}
	if ch == domain.ChannelB {
		return primaryBHeader, func(s Sensor, i int) []string {
			v := pm(s, i)
			return []string{
				stamp(s, i), strconv.Itoa(i + 1),
				num(v * 0.7), num(v * 1.1), num(v * 1.3),
				strconv.Itoa(60 * (i + 1)), "0.02", num(1013 - 2*math.Sin(float64(i)/24)), "", num(v), "",
			}
		}
	}
	return primaryAHeader, func(s Sensor, i int) []string {
		v := pm(s, i)
		return []string{
			stamp(s, i), strconv.Itoa(i + 1),
			num(v * 0.7), num(v * 1.1), num(v * 1.3),
			strconv.Itoa(60 * (i + 1)), "-65", num(60 + 10*math.Sin(float64(i)/24)), num(55), num(v), "",
		}
	}
}

func num(v float64) string { return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) }

// WriteTracts writes the tracts as a GeoJSON FeatureCollection whose features
// carry their id in idProperty.
func WriteTracts(path, idProperty string, tracts []Tract) error {
	fc := geojson.NewFeatureCollection()
	for _, t := range tracts {
		ring := orb.Ring{
			{t.MinLon, t.MinLat},
			{t.MaxLon, t.MinLat},
			{t.MaxLon, t.MaxLat},
			{t.MinLon, t.MaxLat},
			{t.MinLon, t.MinLat},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties[idProperty] = t.ID
		fc.Append(f)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Scenario is a generated data set.
type Scenario struct {
	Tracts  []Tract
	Sensors []Sensor
}

// NewScenario lays out a rows x cols grid of tracts over Seattle with
// sensorsPerTract sensors in each. Readings follow a daily cycle with a smoke
// spike inside domain.DefaultSmoke. The same seed gives the same scenario.
func NewScenario(seed uint64, rows, cols, sensorsPerTract, hours int, start time.Time) Scenario {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	const (
		originLat = 47.50
		originLon = -122.45
		step      = 0.05
	)

	var sc Scenario
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t := Tract{
				ID:     fmt.Sprintf("%d.%02d", 100+r, c+1),
				MinLat: originLat + float64(r)*step,
				MinLon: originLon + float64(c)*step,
				MaxLat: originLat + float64(r+1)*step,
				MaxLon: originLon + float64(c+1)*step,
			}
			sc.Tracts = append(sc.Tracts, t)

			for k := 0; k < sensorsPerTract; k++ {
				base := 3 + rng.Float64()*8
				loc := domain.LocationOutside
				if rng.IntN(4) == 0 {
					loc = domain.LocationInside
				}
				sc.Sensors = append(sc.Sensors, Sensor{
					Name:     fmt.Sprintf("Sensor %d-%d-%d", r, c, k),
					Lat:      round4(t.MinLat + step*(0.1+0.8*rng.Float64())),
					Lon:      round4(t.MinLon + step*(0.1+0.8*rng.Float64())),
					Location: loc,
					Start:    start,
					Hours:    hours,
					PM25:     diurnal(start, base),
				})
			}
		}
	}
	return sc
}

// Write writes the scenario's exports into dataDir and its tracts to
// tractsPath.
func (sc Scenario) Write(dataDir, tractsPath, idProperty string, opts Options) ([]string, error) {
	if err := WriteTracts(tractsPath, idProperty, sc.Tracts); err != nil {
		return nil, fmt.Errorf("write tracts: %w", err)
	}
	return WriteSensors(dataDir, sc.Sensors, opts)
}

func diurnal(start time.Time, base float64) func(int) float64 {
	return func(i int) float64 {
		ts := start.Add(time.Duration(i) * time.Hour)
		v := base * (1 + 0.4*math.Sin(2*math.Pi*float64(ts.Hour())/24))
		if domain.DefaultSmoke.Contains(ts) {
			v += 120
		}
		return v
	}
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
