// Package geojson provides GeoJSON geometry decoding and conversion to
// the geometry types used for rasterization.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decode converts an already-unmarshalled GeoJSON value (typically a
// map[string]any produced by encoding/json) into a Geometry.
func Decode(raw any) (*Geometry, error) {
	if g, ok := raw.(*Geometry); ok {
		return g, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode geometry: %w", err)
	}
	var g Geometry
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if g.Type == "" {
		return nil, fmt.Errorf("geometry has no type")
	}
	return &g, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// MultiPolygon returns the coordinates as a MultiPolygon [][][][lon, lat].
// Returns error if geometry is not a MultiPolygon.
func (g *Geometry) MultiPolygon() ([][][][]float64, error) {
	if g.Type != "MultiPolygon" {
		return nil, fmt.Errorf("geometry is not a MultiPolygon, got %s", g.Type)
	}
	var coords [][][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MultiPolygon coordinates: %w", err)
	}
	return coords, nil
}

// ToPolygonal converts a Polygon or MultiPolygon geometry to a geometry
// value suitable for clipping and point-in-polygon tests. Rings with fewer
// than 3 distinct points are dropped; unclosed rings are closed. Returns an
// error for other geometry types or if no usable ring remains.
func (g *Geometry) ToPolygonal() (geom.Polygonal, error) {
	switch g.Type {
	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		p := ringsToPolygon(coords)
		if len(p) == 0 {
			return nil, fmt.Errorf("polygon has no usable rings")
		}
		return p, nil
	case "MultiPolygon":
		coords, err := g.MultiPolygon()
		if err != nil {
			return nil, err
		}
		mp := geom.MultiPolygon{}
		for _, rings := range coords {
			if p := ringsToPolygon(rings); len(p) > 0 {
				mp = append(mp, p)
			}
		}
		if len(mp) == 0 {
			return nil, fmt.Errorf("multipolygon has no usable rings")
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

func ringsToPolygon(rings [][][]float64) geom.Polygon {
	p := geom.Polygon{}
	for _, ring := range rings {
		pts := make([]geom.Point, 0, len(ring)+1)
		for _, pair := range ring {
			if len(pair) < 2 {
				continue
			}
			pt := geom.Point{X: pair[0], Y: pair[1]}
			// Drop consecutive duplicates.
			if n := len(pts); n > 0 && pts[n-1].Equals(pt) {
				continue
			}
			pts = append(pts, pt)
		}
		// A closed ring needs at least 3 distinct vertices.
		if len(pts) >= 2 && pts[0].Equals(pts[len(pts)-1]) {
			pts = pts[:len(pts)-1]
		}
		if len(pts) < 3 {
			continue
		}
		pts = append(pts, pts[0])
		p = append(p, pts)
	}
	return p
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	return ComputeBBox(g)
}

// ComputeBBox computes the bounding box of a geometry.
// Returns [west, south, east, north].
func ComputeBBox(g *Geometry) ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)

	extend := func(point []float64) {
		if len(point) < 2 {
			return
		}
		minLon = math.Min(minLon, point[0])
		maxLon = math.Max(maxLon, point[0])
		minLat = math.Min(minLat, point[1])
		maxLat = math.Max(maxLat, point[1])
	}

	switch g.Type {
	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		for _, ring := range coords {
			for _, point := range ring {
				extend(point)
			}
		}

	case "MultiPolygon":
		coords, err := g.MultiPolygon()
		if err != nil {
			return nil, err
		}
		for _, polygon := range coords {
			for _, ring := range polygon {
				for _, point := range ring {
					extend(point)
				}
			}
		}

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}

	if math.IsInf(minLon, 1) {
		return nil, fmt.Errorf("geometry has no coordinates")
	}

	return []float64{minLon, minLat, maxLon, maxLat}, nil
}
