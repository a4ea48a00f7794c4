// Package filesink writes pipeline reports to an output directory as CSV or
// Parquet tables: one for tract summaries and one for the file identity table.
package filesink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/guregu/null/v5"
	"github.com/parquet-go/parquet-go"
)

// Output formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

const (
	tractsTable = "tracts"
	filesTable  = "files"
)

// TractRow is the flat, columnar form of domain.TractAggregate. Null
// statistics are nil.
type TractRow struct {
	TractID      string   `parquet:"tract_id"`
	FileCount    int64    `parquet:"file_count"`
	SensorCount  int64    `parquet:"sensor_count"`
	OutdoorCount int64    `parquet:"outdoor_sensor_count"`
	MeanAQI      *float64 `parquet:"mean_aqi,optional"`
	Threshold    float64  `parquet:"threshold"`
	Exposure     *float64 `parquet:"exposure_minutes_per_day,optional"`
	IncludeSmoke bool     `parquet:"include_smoke"`
	Error        string   `parquet:"error"`
}

var tractHeader = []string{
	"tract_id", "file_count", "sensor_count", "outdoor_sensor_count",
	"mean_aqi", "threshold", "exposure_minutes_per_day", "include_smoke", "error",
}

var fileHeader = []string{"file", "lat", "lon", "sensor_name", "location_class", "channel", "dataset_kind"}

// NewTractRow flattens an aggregate.
func NewTractRow(a domain.TractAggregate) TractRow {
	return TractRow{
		TractID:      a.TractID,
		FileCount:    int64(a.FileCount),
		SensorCount:  int64(a.SensorCount),
		OutdoorCount: int64(a.OutdoorCount),
		MeanAQI:      a.MeanAQI.Ptr(),
		Threshold:    a.Threshold,
		Exposure:     a.Exposure.Ptr(),
		IncludeSmoke: a.IncludeSmoke,
		Error:        a.Error,
	}
}

// Aggregate restores the domain form of the row.
func (r TractRow) Aggregate() domain.TractAggregate {
	return domain.TractAggregate{
		TractID:      r.TractID,
		FileCount:    int(r.FileCount),
		SensorCount:  int(r.SensorCount),
		OutdoorCount: int(r.OutdoorCount),
		MeanAQI:      null.FloatFromPtr(r.MeanAQI),
		Threshold:    r.Threshold,
		Exposure:     null.FloatFromPtr(r.Exposure),
		IncludeSmoke: r.IncludeSmoke,
		Error:        r.Error,
	}
}

// Writer writes reports into dir. It implements pipeline.ReportLoader.
type Writer struct {
	dir    string
	format string
	logger *slog.Logger
}

// NewWriter creates a writer for format, which must be FormatCSV or
// FormatParquet.
func NewWriter(dir, format string, logger *slog.Logger) (*Writer, error) {
	if format != FormatCSV && format != FormatParquet {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &Writer{dir: dir, format: format, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return w.format }

// Path returns where table is written.
func (w *Writer) Path(table string) string {
	return filepath.Join(w.dir, table+"."+w.format)
}

// TractsPath returns the tract summary table's path.
func (w *Writer) TractsPath() string { return w.Path(tractsTable) }

// FilesPath returns the identity table's path.
func (w *Writer) FilesPath() string { return w.Path(filesTable) }

func (w *Writer) LoadReport(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rows := make([]TractRow, len(report.Tracts))
	for i, t := range report.Tracts {
		rows[i] = NewTractRow(t)
	}

	var err error
	switch w.format {
	case FormatParquet:
		err = w.writeParquet(rows, report.Files)
	default:
		err = w.writeCSV(rows, report.Files)
	}
	if err != nil {
		return err
	}
	w.logger.Info("report written", "format", w.format, "dir", w.dir, "tracts", len(rows), "files", len(report.Files))
	return nil
}

func (w *Writer) writeParquet(rows []TractRow, files []domain.IdentityRow) error {
	if err := parquet.WriteFile(w.TractsPath(), rows); err != nil {
		return fmt.Errorf("write tracts: %w", err)
	}
	if err := parquet.WriteFile(w.FilesPath(), files); err != nil {
		return fmt.Errorf("write files: %w", err)
	}
	return nil
}

func (w *Writer) writeCSV(rows []TractRow, files []domain.IdentityRow) error {
	tracts := make([][]string, 0, len(rows))
	for _, r := range rows {
		tracts = append(tracts, []string{
			r.TractID,
			strconv.FormatInt(r.FileCount, 10),
			strconv.FormatInt(r.SensorCount, 10),
			strconv.FormatInt(r.OutdoorCount, 10),
			formatOptional(r.MeanAQI),
			formatFloat(r.Threshold),
			formatOptional(r.Exposure),
			strconv.FormatBool(r.IncludeSmoke),
			r.Error,
		})
	}
	if err := writeCSVFile(w.TractsPath(), tractHeader, tracts); err != nil {
		return fmt.Errorf("write tracts: %w", err)
	}

	ids := make([][]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, []string{
			f.File,
			formatFloat(f.Lat),
			formatFloat(f.Lon),
			f.SensorName,
			f.LocationClass,
			f.Channel,
			f.DatasetKind,
		})
	}
	if err := writeCSVFile(w.FilesPath(), fileHeader, ids); err != nil {
		return fmt.Errorf("write files: %w", err)
	}
	return nil
}

func writeCSVFile(path string, header []string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// formatOptional renders null as an empty cell.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// readTracts reads a tract table written by LoadReport in Parquet format.
func readTracts(path string) ([]domain.TractAggregate, error) {
	rows, err := parquet.ReadFile[TractRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TractAggregate, len(rows))
	for i, r := range rows {
		out[i] = r.Aggregate()
	}
	return out, nil
}
