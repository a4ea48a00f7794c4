package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

func hours(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = testStart.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// streamDef describes one fake export for sensor fixtures.
type streamDef struct {
	name    string
	lat     float64
	lon     float64
	loc     LocationClass
	channel Channel
	kind    DatasetKind
	times   []time.Time
	cols    map[Field][]float64
}

func newStream(t *testing.T, def streamDef) *Series {
	t.Helper()
	id := Identity{
		File:       def.name + "-" + string(def.channel) + "-" + def.kind.String() + ".csv",
		SensorName: def.name,
		Lat:        def.lat,
		Lon:        def.lon,
		Location:   def.loc,
		Channel:    def.channel,
		Kind:       def.kind,
	}
	s, err := NewSeries(id, def.times, def.cols)
	require.NoError(t, err)
	return s
}

// fullColumns returns every particulate and supplemental field. Values are
// offset per stream so tests can tell which export a field came from.
func fullColumns(n int, offset float64) map[Field][]float64 {
	return map[Field][]float64{
		FieldPM1CF1:   constant(n, 1+offset),
		FieldPM25CF1:  constant(n, 2+offset),
		FieldPM10CF1:  constant(n, 3+offset),
		FieldPM1ATM:   constant(n, 4+offset),
		FieldPM25ATM:  constant(n, 5+offset),
		FieldPM10ATM:  constant(n, 6+offset),
		FieldTemp:     constant(n, 60+offset),
		FieldRH:       constant(n, 40+offset),
		FieldUptime:   constant(n, 100+offset),
		FieldPressure: constant(n, 1000+offset),
		FieldNPM03:    constant(n, 300+offset),
	}
}

// Stream offsets used by fullColumns fixtures.
const (
	offAPrimary   = 0
	offASecondary = 10
	offBPrimary   = 20
	offBSecondary = 30
)

// fourStreams builds a complete, valid set of exports for one sensor.
func fourStreams(t *testing.T, name string, loc LocationClass, n int) []*Series {
	t.Helper()
	base := streamDef{name: name, lat: 47.6, lon: -122.3, loc: loc, times: hours(n)}
	mk := func(ch Channel, kind DatasetKind, off float64) *Series {
		def := base
		def.channel, def.kind = ch, kind
		def.cols = fullColumns(n, off)
		return newStream(t, def)
	}
	return []*Series{
		mk(ChannelA, DatasetPrimary, offAPrimary),
		mk(ChannelA, DatasetSecondary, offASecondary),
		mk(ChannelB, DatasetPrimary, offBPrimary),
		mk(ChannelB, DatasetSecondary, offBSecondary),
	}
}

// sensorWithPM25 builds an outdoor sensor whose channel A primary ATM PM2.5
// series is pm25.
func sensorWithPM25(t *testing.T, name string, loc LocationClass, times []time.Time, pm25 []float64) *Sensor {
	t.Helper()
	n := len(times)
	streams := make([]*Series, 0, 4)
	for _, k := range []StreamKey{StreamAPrimary, StreamASecondary, StreamBPrimary, StreamBSecondary} {
		cols := fullColumns(n, 0)
		if k == StreamAPrimary {
			cols[FieldPM25ATM] = pm25
			cols[FieldPM25CF1] = pm25
		}
		streams = append(streams, newStream(t, streamDef{
			name: name, lat: 47.6, lon: -122.3, loc: loc,
			channel: k.Channel, kind: k.Kind, times: times, cols: cols,
		}))
	}
	s, err := NewSensor(streams)
	require.NoError(t, err)
	return s
}
