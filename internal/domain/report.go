package domain

import (
	"time"

	"github.com/guregu/null/v5"
)

// TractAggregate is the summary row for one census tract.
type TractAggregate struct {
	TractID      string     `json:"tract_id"`
	FileCount    int        `json:"file_count"`
	SensorCount  int        `json:"sensor_count"`
	OutdoorCount int        `json:"outdoor_sensor_count"`
	MeanAQI      null.Float `json:"mean_aqi"`
	Threshold    float64    `json:"threshold"`
	Exposure     null.Float `json:"exposure_minutes_per_day"`
	IncludeSmoke bool       `json:"include_smoke"`
	Error        string     `json:"error,omitempty"`

	// InvalidatedSensors counts outdoor sensors whose AQI record the
	// zero-reading rule discarded. It is not part of the published row.
	InvalidatedSensors int `json:"-"`
}

// Report is the result of one pipeline run.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Files       []IdentityRow    `json:"files"`
	Tracts      []TractAggregate `json:"tracts"`
}

// NewReport stamps the rows with the current time.
func NewReport(files []IdentityRow, tracts []TractAggregate) Report {
	return Report{
		GeneratedAt: clock.Now().UTC(),
		Files:       files,
		Tracts:      tracts,
	}
}

// Aggregate computes a tract's summary row from its sensors. Each outdoor
// sensor is observed once.
func (a *TractAggregator) Aggregate(tractID string, fileCount int, sensors []*Sensor, threshold float64, includeSmoke bool) (TractAggregate, error) {
	row := TractAggregate{
		TractID:      tractID,
		FileCount:    fileCount,
		SensorCount:  len(sensors),
		OutdoorCount: len(OutdoorSensors(sensors)),
		Threshold:    threshold,
		IncludeSmoke: includeSmoke,
	}
	if err := checkThreshold(threshold); err != nil {
		return row, err
	}
	obs, err := observeOutdoor(sensors)
	if err != nil {
		return row, err
	}
	for _, o := range obs {
		if o.AQIInvalidated {
			row.InvalidatedSensors++
		}
	}
	row.MeanAQI = a.meanAQI(obs, includeSmoke)
	row.Exposure = a.exposure(obs, threshold, includeSmoke)
	return row, nil
}
