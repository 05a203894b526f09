// Package spatial provides a bulk-loaded bounding box index over normalized
// footprints.
package spatial

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/robert-malhotra/revisit-raster/internal/footprint"
)

// Index is an R-tree over footprint bounding boxes. It is built once,
// single-threaded, and is safe for concurrent queries afterwards. Queries
// return a superset of the footprints intersecting the requested bounds:
// false positives are resolved by exact rasterization downstream, false
// negatives cannot occur.
type Index struct {
	tree *rtree.Rtree
	n    int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{tree: rtree.NewTree(25, 50)}
}

// Insert adds a footprint to the index. Must not be called concurrently
// with Query; the coordinator inserts the whole stream before any tile
// worker starts.
func (ix *Index) Insert(f *footprint.Footprint) {
	ix.tree.Insert(f)
	ix.n++
}

// Query returns all indexed footprints whose bounding box intersects b.
func (ix *Index) Query(b *geom.Bounds) []*footprint.Footprint {
	hits := ix.tree.SearchIntersect(b)
	out := make([]*footprint.Footprint, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*footprint.Footprint))
	}
	return out
}

// Len returns the number of indexed footprints.
func (ix *Index) Len() int { return ix.n }
