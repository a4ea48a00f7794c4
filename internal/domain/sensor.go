package domain

import (
	"fmt"
	"time"
)

// StreamKey names one of a sensor's four exports.
type StreamKey struct {
	Channel Channel
	Kind    DatasetKind
}

func (k StreamKey) String() string { return fmt.Sprintf("%s/%s", k.Channel, k.Kind) }

// The four exports every sensor must have.
var (
	StreamAPrimary   = StreamKey{ChannelA, DatasetPrimary}
	StreamASecondary = StreamKey{ChannelA, DatasetSecondary}
	StreamBPrimary   = StreamKey{ChannelB, DatasetPrimary}
	StreamBSecondary = StreamKey{ChannelB, DatasetSecondary}
)

// Sensor is one physical Purple Air station assembled from its four exports.
type Sensor struct {
	Name     string
	Lat      float64
	Lon      float64
	Location LocationClass

	streams map[StreamKey]*Series
}

// NewSensor validates that streams describe one station and assembles it.
// Each violated invariant is reported as a *ValidationError whose Reason is one
// of the Err* sentinels in this package.
func NewSensor(streams []*Series) (*Sensor, error) {
	name := ""
	for _, s := range streams {
		if s != nil {
			name = s.id.SensorName
			break
		}
	}
	if len(streams) != 4 {
		return nil, &ValidationError{Sensor: name, Reason: ErrStreamCount, Detail: fmt.Sprintf("got %d", len(streams))}
	}
	for i, s := range streams {
		if s == nil {
			return nil, &ValidationError{Sensor: name, Reason: ErrStreamCount, Detail: fmt.Sprintf("nil stream at index %d", i)}
		}
	}

	first := streams[0].id
	fail := func(reason error, format string, args ...any) (*Sensor, error) {
		return nil, &ValidationError{Sensor: first.SensorName, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	for _, s := range streams[1:] {
		id := s.id
		if id.SensorName != first.SensorName || id.Lat != first.Lat || id.Lon != first.Lon {
			return fail(ErrIdentityMismatch, "%q (%v %v) vs %q (%v %v)",
				first.SensorName, first.Lat, first.Lon, id.SensorName, id.Lat, id.Lon)
		}
	}

	for _, s := range streams {
		if !s.id.Channel.Valid() {
			return fail(ErrInvalidChannel, "%s: %q", s.id.File, s.id.Channel)
		}
	}

	hasPrimary := false
	for _, s := range streams {
		if !s.id.Kind.Valid() {
			return fail(ErrInvalidDatasetKind, "%s: %s", s.id.File, s.id.Kind)
		}
		if s.id.Kind == DatasetPrimary {
			hasPrimary = true
		}
	}
	if !hasPrimary {
		return fail(ErrMissingPrimary, "")
	}

	byKey := make(map[StreamKey]*Series, 4)
	for _, s := range streams {
		k := s.id.Key()
		if _, dup := byKey[k]; dup {
			return fail(ErrDuplicateStream, "%s", k)
		}
		byKey[k] = s
	}

	inside, outside := false, false
	for _, s := range streams {
		switch s.id.Location {
		case LocationInside:
			inside = true
		case LocationOutside:
			outside = true
		}
	}
	if inside && outside {
		return fail(ErrConflictingLocation, "")
	}

	loc := LocationUndefined
	switch {
	case inside:
		loc = LocationInside
	case outside:
		loc = LocationOutside
	}

	return &Sensor{
		Name:     first.SensorName,
		Lat:      first.Lat,
		Lon:      first.Lon,
		Location: loc,
		streams:  byKey,
	}, nil
}

// Stream returns the export for k.
func (s *Sensor) Stream(k StreamKey) *Series { return s.streams[k] }

// StartTime returns the earliest timestamp across all four exports.
func (s *Sensor) StartTime() (time.Time, bool) {
	var start time.Time
	found := false
	for _, k := range []StreamKey{StreamAPrimary, StreamASecondary, StreamBPrimary, StreamBSecondary} {
		t, ok := s.streams[k].StartTime()
		if ok && (!found || t.Before(start)) {
			start, found = t, true
		}
	}
	return start, found
}

type groupKey struct {
	name string
	lat  float64
}

// GroupSensors groups exports by sensor name and latitude, in first-seen
// order, and builds a Sensor from each group. The first invalid group fails
// the whole call.
func GroupSensors(series []*Series) ([]*Sensor, error) {
	var order []groupKey
	groups := make(map[groupKey][]*Series)
	for _, s := range series {
		k := groupKey{name: s.id.SensorName, lat: s.id.Lat}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	sensors := make([]*Sensor, 0, len(order))
	for _, k := range order {
		sensor, err := NewSensor(groups[k])
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}
	return sensors, nil
}
