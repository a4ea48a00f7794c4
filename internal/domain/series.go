package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileRef is a handle on one raw export: a name carrying the identity and a
// way to read its rows.
type FileRef interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Column is one canonical field's values with its unit.
type Column struct {
	Unit   string
	Values []float64
}

// Series is the canonical time series of one raw export. It is immutable
// once built; accessors return copies.
type Series struct {
	id     Identity
	time   []time.Time
	fields map[Field][]float64
}

// NewSeries builds a Series from already-canonical columns. Every column must
// have one value per timestamp.
func NewSeries(id Identity, times []time.Time, cols map[Field][]float64) (*Series, error) {
	s := &Series{
		id:     id,
		time:   append([]time.Time(nil), times...),
		fields: make(map[Field][]float64, len(cols)),
	}
	for f, vals := range cols {
		if _, known := fieldSpecs[f]; !known {
			continue
		}
		if len(vals) != len(times) {
			return nil, fmt.Errorf("field %s has %d values for %d timestamps", f, len(vals), len(times))
		}
		s.fields[f] = append([]float64(nil), vals...)
	}
	return s, nil
}

// Identity returns the metadata attached to the series.
func (s *Series) Identity() Identity { return s.id }

// Len returns the number of rows.
func (s *Series) Len() int { return len(s.time) }

// Time returns a copy of the timestamps in file order.
func (s *Series) Time() []time.Time { return append([]time.Time(nil), s.time...) }

// Field returns the named column. ok is false when the file did not carry it.
func (s *Series) Field(f Field) (Column, bool) {
	vals, ok := s.fields[f]
	if !ok {
		return Column{}, false
	}
	return Column{Unit: f.Unit(), Values: append([]float64(nil), vals...)}, true
}

// fieldNames lists the canonical fields present, sorted by name.
func (s *Series) fieldNames() []Field {
	out := make([]Field, 0, len(s.fields))
	for f := range s.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StartTime returns the earliest timestamp. ok is false for an empty series.
func (s *Series) StartTime() (time.Time, bool) {
	if len(s.time) == 0 {
		return time.Time{}, false
	}
	start := s.time[0]
	for _, t := range s.time[1:] {
		if t.Before(start) {
			start = t
		}
	}
	return start, true
}

// LoadSeries parses the identity from ref's name and reads its rows.
func LoadSeries(ref FileRef) (*Series, error) {
	id, err := ParseIdentity(ref.Name())
	if err != nil {
		return nil, err
	}
	rc, err := ref.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref.Name(), err)
	}
	defer rc.Close()

	return ReadSeries(rc, id)
}

// ReadSeries reads a raw Purple Air CSV. The first column is the time index;
// artifact and unrecognized columns are dropped and the rest are renamed to
// canonical fields.
func ReadSeries(r io.Reader, id Identity) (*Series, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DataFormatError{File: id.File, Err: errors.New("missing header row")}
		}
		return nil, &DataFormatError{File: id.File, Err: err}
	}
	if len(header) == 0 {
		return nil, &DataFormatError{File: id.File, Err: errors.New("empty header row")}
	}
	header = append([]string(nil), header...)

	// column index -> field, first occurrence of a canonical name wins
	cols := make(map[int]Field)
	seen := make(map[Field]bool)
	for i, h := range header[1:] {
		f, ok := canonicalField(h)
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		cols[i+1] = f
	}

	s := &Series{id: id, fields: make(map[Field][]float64, len(cols))}
	for _, f := range cols {
		s.fields[f] = nil
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataFormatError{File: id.File, Err: err}
		}
		line, _ := cr.FieldPos(0)

		ts, err := ParseTimestamp(rec[0])
		if err != nil {
			return nil, &DataFormatError{File: id.File, Line: line, Err: err}
		}
		s.time = append(s.time, ts)

		for i, f := range cols {
			v, err := parseValue(rec[i])
			if err != nil {
				return nil, &DataFormatError{File: id.File, Line: line, Err: fmt.Errorf("column %q: %w", header[i], err)}
			}
			s.fields[f] = append(s.fields[f], v)
		}
	}
	return s, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp reads an export timestamp. A trailing "UTC" marker is removed
// and the wall-clock value is kept as is; no zone conversion is applied.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "UTC"))
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func parseValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", raw)
	}
	return v, nil
}
