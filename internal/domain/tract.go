package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v5"
)

// Window is a closed time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Study period and wildfire-smoke episode of the 2020 Seattle data set.
var (
	DefaultStudyStart = time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC)
	DefaultStudyEnd   = time.Date(2020, time.November, 2, 0, 0, 0, 0, time.UTC)
	DefaultSmoke      = Window{
		Start: time.Date(2020, time.September, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, time.September, 19, 23, 0, 0, 0, time.UTC),
	}
)

// TractAggregator computes tract-level AQI statistics from sensors.
type TractAggregator struct {
	grid  []time.Time
	smoke Window
}

// NewTractAggregator builds an aggregator with an hourly grid covering
// [start, end) and the given smoke window.
func NewTractAggregator(start, end time.Time, smoke Window) (*TractAggregator, error) {
	if !end.After(start) {
		return nil, errors.New("study end must be after study start")
	}
	if smoke.End.Before(smoke.Start) {
		return nil, errors.New("smoke window end must not precede its start")
	}
	var grid []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		grid = append(grid, t)
	}
	return &TractAggregator{grid: grid, smoke: smoke}, nil
}

// OutdoorSensors filters sensors to those classified outside.
func OutdoorSensors(sensors []*Sensor) []*Sensor {
	var out []*Sensor
	for _, s := range sensors {
		if s.Location == LocationOutside {
			out = append(out, s)
		}
	}
	return out
}

// observeOutdoor builds one observation per outdoor sensor.
func observeOutdoor(sensors []*Sensor) ([]*Observation, error) {
	outdoor := OutdoorSensors(sensors)
	obs := make([]*Observation, 0, len(outdoor))
	for _, s := range outdoor {
		o, err := s.Observe()
		if err != nil {
			return nil, fmt.Errorf("observe %s: %w", s.Name, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// MeanAQI returns the time mean of the hourly cross-sensor mean AQI of the
// outdoor sensors. Each sensor is interpolated onto the study grid first. The
// result is null when there are no outdoor sensors or no usable samples.
func (a *TractAggregator) MeanAQI(sensors []*Sensor, includeSmoke bool) (null.Float, error) {
	obs, err := observeOutdoor(sensors)
	if err != nil {
		return null.Float{}, err
	}
	return a.meanAQI(obs, includeSmoke), nil
}

func (a *TractAggregator) meanAQI(obs []*Observation, includeSmoke bool) null.Float {
	if len(obs) == 0 {
		return null.Float{}
	}

	sums := make([]float64, len(a.grid))
	counts := make([]int, len(a.grid))
	for _, o := range obs {
		hourly := Interpolate(o.Time, o.AQI, a.grid)
		for i, v := range hourly {
			if math.IsNaN(v) || (!includeSmoke && a.smoke.Contains(a.grid[i])) {
				continue
			}
			sums[i] += v
			counts[i]++
		}
	}

	total, hours := 0.0, 0
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		total += sums[i] / float64(counts[i])
		hours++
	}
	if hours == 0 {
		return null.Float{}
	}
	return null.FloatFrom(total / float64(hours))
}

// Exposure returns the minutes per day that outdoor AQI met or exceeded
// threshold, pooling hourly samples across all outdoor sensors on their native
// time axes. The result is null when there are no outdoor sensors or no
// numeric samples.
func (a *TractAggregator) Exposure(sensors []*Sensor, threshold float64, includeSmoke bool) (null.Float, error) {
	if err := checkThreshold(threshold); err != nil {
		return null.Float{}, err
	}
	obs, err := observeOutdoor(sensors)
	if err != nil {
		return null.Float{}, err
	}
	return a.exposure(obs, threshold, includeSmoke), nil
}

func (a *TractAggregator) exposure(obs []*Observation, threshold float64, includeSmoke bool) null.Float {
	numeric, exceed := 0, 0
	for _, o := range obs {
		for i, v := range o.AQI {
			if math.IsNaN(v) || (!includeSmoke && a.smoke.Contains(o.Time[i])) {
				continue
			}
			numeric++
			if v >= threshold {
				exceed++
			}
		}
	}

	days := float64(numeric) / 24
	if days == 0 {
		return null.Float{}
	}
	return null.FloatFrom(float64(exceed) * 60 / days)
}

// Interpolate linearly resamples (times, values) onto grid. Grid points outside
// the sampled span are NaN, an exact timestamp match takes that sample, and a
// NaN neighbor makes the interpolated point NaN. Samples need not be sorted;
// for duplicate timestamps the first sample is used.
func Interpolate(times []time.Time, values []float64, grid []time.Time) []float64 {
	type point struct {
		t time.Time
		v float64
	}
	seen := make(map[time.Time]bool, len(times))
	pts := make([]point, 0, len(times))
	for i, t := range times {
		if seen[t] {
			continue
		}
		seen[t] = true
		pts = append(pts, point{t, values[i]})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })

	out := make([]float64, len(grid))
	for i, g := range grid {
		out[i] = math.NaN()
		if len(pts) == 0 || g.Before(pts[0].t) || g.After(pts[len(pts)-1].t) {
			continue
		}
		// first sample at or after g
		j := sort.Search(len(pts), func(k int) bool { return !pts[k].t.Before(g) })
		if pts[j].t.Equal(g) {
			out[i] = pts[j].v
			continue
		}
		lo, hi := pts[j-1], pts[j]
		w := float64(g.Sub(lo.t)) / float64(hi.t.Sub(lo.t))
		out[i] = lo.v + (hi.v-lo.v)*w
	}
	return out
}
