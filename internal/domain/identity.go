package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// LocationClass records whether a sensor sits indoors or outdoors.
type LocationClass string

const (
	LocationInside    LocationClass = "inside"
	LocationOutside   LocationClass = "outside"
	LocationUndefined LocationClass = "undefined"
)

// Channel is one of the two laser counters in a Purple Air unit.
type Channel string

const (
	ChannelA Channel = "A"
	ChannelB Channel = "B"
)

// Valid reports whether c is A or B.
func (c Channel) Valid() bool { return c == ChannelA || c == ChannelB }

// DatasetKind distinguishes the primary and secondary exports of a channel.
type DatasetKind int

const (
	DatasetUnknown DatasetKind = iota
	DatasetPrimary
	DatasetSecondary
)

func (k DatasetKind) String() string {
	switch k {
	case DatasetPrimary:
		return "primary"
	case DatasetSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Valid reports whether k is Primary or Secondary.
func (k DatasetKind) Valid() bool { return k == DatasetPrimary || k == DatasetSecondary }

// Identity is the sensor metadata encoded in a raw export's file name.
type Identity struct {
	File       string        `json:"file"`
	SensorName string        `json:"sensor_name"`
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	Location   LocationClass `json:"location_class"`
	Channel    Channel       `json:"channel"`
	Kind       DatasetKind   `json:"dataset_kind"`
}

// Key returns the (channel, dataset kind) pair this file supplies to a sensor.
func (id Identity) Key() StreamKey { return StreamKey{Channel: id.Channel, Kind: id.Kind} }

var (
	// coordRe matches the "(lat lon)" token, e.g. "(47.6062 -122.3321)".
	coordRe = regexp.MustCompile(`\((\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\)`)

	locationMarkers = []struct {
		marker string
		class  LocationClass
	}{
		{"(inside)", LocationInside},
		{"(outside)", LocationOutside},
		{"(undefined)", LocationUndefined},
	}
)

// ParseIdentity extracts sensor identity from a raw export file name such as
//
//	"Lakeside B (outside) (47.6 -122.3) Primary 60_minute_average 05_01_2020 11_02_2020.csv"
//
// Any directory prefix is ignored. The coordinate token is mandatory.
func ParseIdentity(name string) (Identity, error) {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	loc := coordRe.FindStringSubmatchIndex(base)
	if loc == nil {
		return Identity{}, &ParseError{Name: name, Reason: "missing coordinates"}
	}
	lat, err := strconv.ParseFloat(base[loc[2]:loc[3]], 64)
	if err != nil {
		return Identity{}, &ParseError{Name: name, Reason: "invalid latitude"}
	}
	lon, err := strconv.ParseFloat(base[loc[4]:loc[5]], 64)
	if err != nil {
		return Identity{}, &ParseError{Name: name, Reason: "invalid longitude"}
	}

	nameSegment := base[:loc[0]]
	typeSegment := base[loc[1]:]

	sensorName, class := splitLocation(nameSegment)
	sensorName, channel := splitChannel(sensorName)

	return Identity{
		File:       name,
		SensorName: strings.ToLower(sensorName),
		Lat:        lat,
		Lon:        lon,
		Location:   class,
		Channel:    channel,
		Kind:       parseDatasetKind(typeSegment),
	}, nil
}

// splitLocation finds a location marker in the name segment and returns the
// text before it. Without a marker the name is everything before the first
// parenthesis.
func splitLocation(segment string) (string, LocationClass) {
	lower := strings.ToLower(segment)
	for _, m := range locationMarkers {
		if i := strings.Index(lower, m.marker); i >= 0 {
			return strings.TrimSpace(segment[:i]), m.class
		}
	}
	if i := strings.Index(segment, "("); i >= 0 {
		return strings.TrimSpace(segment[:i]), LocationUndefined
	}
	return strings.TrimSpace(segment), LocationUndefined
}

// splitChannel strips a trailing " B" token. Channel A exports carry no marker.
func splitChannel(name string) (string, Channel) {
	if strings.HasSuffix(name, " B") || strings.HasSuffix(name, "\tB") {
		return strings.TrimSpace(name[:len(name)-1]), ChannelB
	}
	return name, ChannelA
}

func parseDatasetKind(segment string) DatasetKind {
	switch {
	case strings.Contains(segment, "Primary"):
		return DatasetPrimary
	case strings.Contains(segment, "Secondary"):
		return DatasetSecondary
	default:
		return DatasetUnknown
	}
}

// IdentityRow is one line of the per-file diagnostic table.
type IdentityRow struct {
	File          string  `json:"file" parquet:"file"`
	Lat           float64 `json:"lat" parquet:"lat"`
	Lon           float64 `json:"lon" parquet:"lon"`
	SensorName    string  `json:"sensor_name" parquet:"sensor_name"`
	LocationClass string  `json:"location_class" parquet:"location_class"`
	Channel       string  `json:"channel" parquet:"channel"`
	DatasetKind   string  `json:"dataset_kind" parquet:"dataset_kind"`
}

// Row flattens the identity for tabular output.
func (id Identity) Row() IdentityRow {
	return IdentityRow{
		File:          id.File,
		Lat:           id.Lat,
		Lon:           id.Lon,
		SensorName:    id.SensorName,
		LocationClass: string(id.Location),
		Channel:       string(id.Channel),
		DatasetKind:   id.Kind.String(),
	}
}

// IdentityTable parses every name and returns the rows that parsed together
// with one error per name that did not. Row order follows input order.
func IdentityTable(names []string) ([]IdentityRow, []error) {
	rows := make([]IdentityRow, 0, len(names))
	var errs []error
	for _, n := range names {
		id, err := ParseIdentity(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, id.Row())
	}
	return rows, errs
}
