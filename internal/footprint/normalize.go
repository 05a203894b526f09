package footprint

import (
	"errors"
	"fmt"

	"github.com/ctessum/geom"

	"github.com/robert-malhotra/revisit-raster/pkg/geojson"
)

// ErrGeometry is returned for a footprint geometry that cannot be made
// usable for rasterization. It is always recovered locally by skipping the
// record and incrementing a counter.
var ErrGeometry = errors.New("unusable footprint geometry")

// decodePolygonal converts a decoded GeoJSON geometry value (as produced by
// encoding/json, i.e. map[string]any) into a polygonal geometry, applying
// ring repair: unclosed rings are closed, rings with fewer than three
// distinct vertices are dropped.
func decodePolygonal(raw any) (geom.Polygonal, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrGeometry)
	}
	g, err := geojson.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	p, err := g.ToPolygonal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	if p.Area() == 0 {
		return nil, fmt.Errorf("%w: zero-area geometry", ErrGeometry)
	}
	return p, nil
}

// splitAntimeridian decomposes a longitude-wrapping geometry into
// non-wrapping parts. A geometry whose longitude span exceeds 180 degrees is
// assumed to cross the antimeridian (scene footprints are far narrower than
// a hemisphere): its vertices are shifted into [0, 360), the shifted polygon
// is cut at longitude 180, and the eastern piece is shifted back. The
// returned parts are disjoint except along the cut line. Geometries that do
// not wrap are returned unchanged as a single part.
func splitAntimeridian(p geom.Polygonal) []geom.Polygonal {
	b := p.Bounds()
	if b.Max.X-b.Min.X <= 180 {
		return []geom.Polygonal{p}
	}

	shifted := shiftLons(p)
	sb := shifted.Bounds()

	west := shifted.Intersection(lonBand(sb.Min.X-1, 180, sb)).(geom.Polygon)
	east := shifted.Intersection(lonBand(180, sb.Max.X+1, sb)).(geom.Polygon)

	var parts []geom.Polygonal
	if len(west) > 0 && west.Area() > 0 {
		parts = append(parts, west)
	}
	if len(east) > 0 && east.Area() > 0 {
		parts = append(parts, unshiftLons(east))
	}
	if len(parts) == 0 {
		// Degenerate after cutting; keep the original so the caller's
		// clipping logic decides its fate.
		return []geom.Polygonal{p}
	}
	return parts
}

// shiftLons moves western-hemisphere vertices east by 360 degrees so a
// dateline-crossing polygon becomes contiguous in [0, 360).
func shiftLons(p geom.Polygonal) geom.Polygon {
	var out geom.Polygon
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			r := make([]geom.Point, len(ring))
			for i, pt := range ring {
				if pt.X < 0 {
					pt.X += 360
				}
				r[i] = pt
			}
			out = append(out, r)
		}
	}
	return out
}

// unshiftLons maps a polygon in [180, 360) back into [-180, 0).
func unshiftLons(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, ring := range p {
		r := make([]geom.Point, len(ring))
		for j, pt := range ring {
			if pt.X >= 180 {
				pt.X -= 360
			}
			r[j] = pt
		}
		out[i] = r
	}
	return out
}

// lonBand is a rectangle spanning [x0, x1] horizontally and the vertical
// extent of b, padded so clipping only cuts in longitude.
func lonBand(x0, x1 float64, b *geom.Bounds) geom.Polygon {
	y0, y1 := b.Min.Y-1, b.Max.Y+1
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
		{X: x0, Y: y0},
	}}
}

// clipToRegion intersects p with the region polygon unless p already lies
// entirely inside the region's bounding box. Returns nil if nothing of p
// remains inside the region.
func clipToRegion(p geom.Polygonal, region geom.Polygon, regionBounds *geom.Bounds) geom.Polygonal {
	pb := p.Bounds()
	if !regionBounds.Overlaps(pb) {
		return nil
	}
	if pb.Min.X >= regionBounds.Min.X && pb.Max.X <= regionBounds.Max.X &&
		pb.Min.Y >= regionBounds.Min.Y && pb.Max.Y <= regionBounds.Max.Y {
		return p
	}
	clipped := region.Intersection(p).(geom.Polygon)
	if len(clipped) == 0 || clipped.Area() == 0 {
		return nil
	}
	return clipped
}
