// Package footprint streams scene footprints from the catalog and normalizes
// their geometries for indexing and rasterization.
package footprint

import (
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Footprint is the ground coverage polygon of one satellite scene
// acquisition. A scene that crossed the antimeridian is represented by
// multiple Footprint parts with disjoint geometries sharing the same
// SourceID and AcquiredAt.
type Footprint struct {
	Geom       geom.Polygonal
	AcquiredAt time.Time
	SourceID   string

	bounds *geom.Bounds
}

// NewFootprint creates a footprint with its bounding box precomputed.
func NewFootprint(g geom.Polygonal, acquiredAt time.Time, sourceID string) *Footprint {
	return &Footprint{
		Geom:       g,
		AcquiredAt: acquiredAt,
		SourceID:   sourceID,
		bounds:     g.Bounds(),
	}
}

// Bounds returns the footprint's bounding box. It satisfies the spatial
// index's Spatial interface.
func (f *Footprint) Bounds() *geom.Bounds {
	if f.bounds == nil {
		f.bounds = f.Geom.Bounds()
	}
	return f.bounds
}

// Len delegates to the underlying geometry so *Footprint satisfies
// geom.Geom for insertion into the R-tree index.
func (f *Footprint) Len() int { return f.Geom.Len() }

// Points delegates to the underlying geometry (see Len).
func (f *Footprint) Points() func() geom.Point { return f.Geom.Points() }

// Similar delegates to the underlying geometry (see Len).
func (f *Footprint) Similar(g geom.Geom, tol float64) bool { return f.Geom.Similar(g, tol) }

// Transform delegates to the underlying geometry (see Len).
func (f *Footprint) Transform(t proj.Transformer) (geom.Geom, error) { return f.Geom.Transform(t) }
