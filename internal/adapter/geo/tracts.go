// Package geo matches sensor coordinates to census tract polygons read from
// GeoJSON.
package geo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrNoTracts = errors.New("tract file contains no polygon features")

type tract struct {
	id    string
	shape orb.MultiPolygon
	bound orb.Bound
}

// TractIndex locates points in census tracts. Points on a shared boundary
// belong to every tract they touch.
type TractIndex struct {
	tracts []tract
}

// LoadTracts reads a GeoJSON FeatureCollection from path. idProperty names the
// feature property that identifies a tract, for example NAME10.
func LoadTracts(path, idProperty string) (*TractIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracts: %w", err)
	}
	defer f.Close()
	return ReadTracts(f, idProperty)
}

// ReadTracts decodes a GeoJSON FeatureCollection. Polygon and MultiPolygon
// features are kept; features sharing an id are merged.
func ReadTracts(r io.Reader, idProperty string) (*TractIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tracts: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode tracts: %w", err)
	}

	idx := &TractIndex{}
	byID := make(map[string]int)
	for i, feat := range fc.Features {
		var shape orb.MultiPolygon
		switch g := feat.Geometry.(type) {
		case orb.Polygon:
			shape = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			shape = g
		default:
			continue
		}

		id, err := propertyID(feat.Properties, idProperty)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if j, ok := byID[id]; ok {
			idx.tracts[j].shape = append(idx.tracts[j].shape, shape...)
			idx.tracts[j].bound = idx.tracts[j].bound.Union(shape.Bound())
			continue
		}
		byID[id] = len(idx.tracts)
		idx.tracts = append(idx.tracts, tract{id: id, shape: shape, bound: shape.Bound()})
	}
	if len(idx.tracts) == 0 {
		return nil, ErrNoTracts
	}
	return idx, nil
}

func propertyID(props geojson.Properties, key string) (string, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing %q property", key)
	}
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", fmt.Errorf("empty %q property", key)
		}
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%q property has unsupported type %T", key, v)
	}
}

// Tracts returns every tract id in file order.
func (x *TractIndex) Tracts() []string {
	ids := make([]string, len(x.tracts))
	for i, t := range x.tracts {
		ids[i] = t.id
	}
	return ids
}

// Locate returns the ids of the tracts containing the point, in file order.
func (x *TractIndex) Locate(lat, lon float64) []string {
	p := orb.Point{lon, lat}
	var ids []string
	for _, t := range x.tracts {
		if !t.bound.Contains(p) {
			continue
		}
		if planar.MultiPolygonContains(t.shape, p) {
			ids = append(ids, t.id)
		}
	}
	return ids
}
