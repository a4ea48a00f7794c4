package domain

import (
	"math"
	"time"
)

// ObservedField names a column of a sensor observation.
type ObservedField string

const (
	ObservedPM1   ObservedField = "pm1"
	ObservedPM25  ObservedField = "pm2_5"
	ObservedPM10  ObservedField = "pm10"
	ObservedPM1B  ObservedField = "pm1_b"
	ObservedPM25B ObservedField = "pm2_5_b"
	ObservedPM10B ObservedField = "pm10_b"
)

type fieldSource struct {
	Stream StreamKey
	Field  Field
}

// Particulate sourcing for indoor sensors (CF=1 correction).
// Channel B values come from the B primary export even though the secondary
// export is documented as their source; this mirrors the historical
// processing and is pending review.
var insideSources = map[ObservedField]fieldSource{
	ObservedPM1:   {StreamAPrimary, FieldPM1CF1},
	ObservedPM25:  {StreamAPrimary, FieldPM25CF1},
	ObservedPM10:  {StreamAPrimary, FieldPM10CF1},
	ObservedPM1B:  {StreamBPrimary, FieldPM1CF1},
	ObservedPM25B: {StreamBPrimary, FieldPM25CF1},
	ObservedPM10B: {StreamBPrimary, FieldPM10CF1},
}

// Particulate sourcing for outdoor and undefined sensors (CF=ATM correction).
// pm1 and pm10 come from the secondary exports while pm2.5 comes from the
// primary ones; this mirrors the historical processing and is pending review.
var outsideSources = map[ObservedField]fieldSource{
	ObservedPM1:   {StreamASecondary, FieldPM1ATM},
	ObservedPM25:  {StreamAPrimary, FieldPM25ATM},
	ObservedPM10:  {StreamASecondary, FieldPM10ATM},
	ObservedPM1B:  {StreamBSecondary, FieldPM1ATM},
	ObservedPM25B: {StreamBPrimary, FieldPM25ATM},
	ObservedPM10B: {StreamBSecondary, FieldPM10ATM},
}

// Supplemental fields do not depend on indoor/outdoor status.
var (
	tempSource     = fieldSource{StreamAPrimary, FieldTemp}
	rhSource       = fieldSource{StreamAPrimary, FieldRH}
	uptimeSource   = fieldSource{StreamAPrimary, FieldUptime}
	pressureSource = fieldSource{StreamBPrimary, FieldPressure}
)

// InvalidZeroFraction is the share of exact-zero AQI readings above which a
// sensor's whole AQI record is discarded.
const InvalidZeroFraction = 0.1

// Observation is a sensor's combined record on the channel A primary time axis.
// Missing samples are NaN.
type Observation struct {
	SensorName string
	Location   LocationClass
	Lat        float64
	Lon        float64

	Time             []time.Time
	Temperature      []float64
	RelativeHumidity []float64
	Pressure         []float64
	Uptime           []float64

	PM1   []float64
	PM25  []float64
	PM10  []float64
	PM1B  []float64
	PM25B []float64
	PM10B []float64

	// Particle counts by size, keyed by count field; only fields present in
	// the secondary exports appear.
	CountsA map[Field][]float64
	CountsB map[Field][]float64

	AQI []float64
	// AQIInvalidated is set when the zero-reading rule discarded the AQI record.
	AQIInvalidated bool
}

// Observe combines the four exports into one record and derives AQI from
// channel A PM2.5. The result is computed fresh on every call.
func (s *Sensor) Observe() (*Observation, error) {
	return s.observe(EPABreakpoints)
}

func (s *Sensor) observe(table Breakpoints) (*Observation, error) {
	base := s.streams[StreamAPrimary]
	times := base.Time()

	o := &Observation{
		SensorName: s.Name,
		Location:   s.Location,
		Lat:        s.Lat,
		Lon:        s.Lon,
		Time:       times,
		CountsA:    make(map[Field][]float64),
		CountsB:    make(map[Field][]float64),
	}

	sources := outsideSources
	if s.Location == LocationInside {
		sources = insideSources
	}
	targets := map[ObservedField]*[]float64{
		ObservedPM1:   &o.PM1,
		ObservedPM25:  &o.PM25,
		ObservedPM10:  &o.PM10,
		ObservedPM1B:  &o.PM1B,
		ObservedPM25B: &o.PM25B,
		ObservedPM10B: &o.PM10B,
	}
	for name, src := range sources {
		vals, ok := s.align(src, times)
		if !ok {
			return nil, &MissingFieldError{Sensor: s.Name, Stream: src.Stream, Field: src.Field}
		}
		*targets[name] = vals
	}

	o.Temperature = s.alignOrNaN(tempSource, times)
	o.RelativeHumidity = s.alignOrNaN(rhSource, times)
	o.Uptime = s.alignOrNaN(uptimeSource, times)
	o.Pressure = s.alignOrNaN(pressureSource, times)

	for _, f := range CountFields {
		if vals, ok := s.align(fieldSource{StreamASecondary, f}, times); ok {
			o.CountsA[f] = vals
		}
		if vals, ok := s.align(fieldSource{StreamBSecondary, f}, times); ok {
			o.CountsB[f] = vals
		}
	}

	aqi := make([]float64, len(o.PM25))
	for i, pm := range o.PM25 {
		v, err := table.AQI(pm)
		if err != nil {
			return nil, err
		}
		aqi[i] = v
	}
	o.AQI, o.AQIInvalidated = invalidateZeros(aqi)

	return o, nil
}

// invalidateZeros replaces the whole series with NaN when more than
// InvalidZeroFraction of its numeric values are exactly zero. A series with no
// numeric values is returned unchanged.
func invalidateZeros(aqi []float64) ([]float64, bool) {
	zeros, numeric := 0, 0
	for _, v := range aqi {
		if math.IsNaN(v) {
			continue
		}
		numeric++
		if v == 0 {
			zeros++
		}
	}
	if numeric == 0 || float64(zeros)/float64(numeric) <= InvalidZeroFraction {
		return aqi, false
	}
	out := make([]float64, len(aqi))
	for i := range out {
		out[i] = math.NaN()
	}
	return out, true
}

// align maps src's column onto times. Rows are matched by exact timestamp and
// the first occurrence wins; unmatched times are NaN.
func (s *Sensor) align(src fieldSource, times []time.Time) ([]float64, bool) {
	series := s.streams[src.Stream]
	vals, ok := series.fields[src.Field]
	if !ok {
		return nil, false
	}

	out := make([]float64, len(times))
	if src.Stream == StreamAPrimary {
		copy(out, vals)
		return out, true
	}

	index := make(map[time.Time]int, len(series.time))
	for i, t := range series.time {
		if _, seen := index[t]; !seen {
			index[t] = i
		}
	}
	for i, t := range times {
		if j, ok := index[t]; ok {
			out[i] = vals[j]
		} else {
			out[i] = math.NaN()
		}
	}
	return out, true
}

func (s *Sensor) alignOrNaN(src fieldSource, times []time.Time) []float64 {
	if vals, ok := s.align(src, times); ok {
		return vals
	}
	out := make([]float64, len(times))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
