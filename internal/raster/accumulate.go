package raster

import (
	"sort"

	"github.com/ctessum/geom"

	"github.com/robert-malhotra/revisit-raster/internal/footprint"
	"github.com/robert-malhotra/revisit-raster/internal/grid"
	"github.com/robert-malhotra/revisit-raster/internal/spatial"
)

// AccumStats reports per-tile accumulation outcomes.
type AccumStats struct {
	Candidates int    // footprint parts returned by the index query
	Scenes     int    // distinct scenes that covered at least one pixel
	MaxCount   uint16 // largest count in the tile
}

// Accumulate rasterizes every footprint intersecting the tile onto a
// tile-local count grid. A pixel is covered by a scene when the pixel's
// center lies inside or on the boundary of the scene's polygon, regardless
// of ring winding. Counts are per distinct SourceID: the parts of a scene
// split at the antimeridian share a coverage mask, so a scene can never
// contribute more than one to any pixel. Zero-area candidates cover
// nothing. Fails only on count overflow.
func Accumulate(tile grid.Tile, index *spatial.Index, spec *grid.Spec) (*CountArray, AccumStats, error) {
	counts := NewCountArray(tile.Rows(), tile.Cols())
	stats := AccumStats{}

	candidates := index.Query(tile.GeoBounds(spec))
	stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return counts, stats, nil
	}

	// Group parts by scene. Iteration over scenes is sorted so that any
	// overflow failure is reported deterministically.
	byScene := make(map[string][]*footprint.Footprint)
	for _, f := range candidates {
		byScene[f.SourceID] = append(byScene[f.SourceID], f)
	}
	sceneIDs := make([]string, 0, len(byScene))
	for id := range byScene {
		sceneIDs = append(sceneIDs, id)
	}
	sort.Strings(sceneIDs)

	// covered marks pixels already counted for the current scene; touched
	// records which entries to reset between scenes.
	covered := make([]bool, tile.Rows()*tile.Cols())
	touched := make([]int, 0, 256)

	for _, id := range sceneIDs {
		touched = touched[:0]
		for _, part := range byScene[id] {
			markCoverage(part, tile, spec, covered, &touched)
		}
		if len(touched) == 0 {
			continue
		}
		stats.Scenes++
		for _, i := range touched {
			covered[i] = false
			if err := counts.inc(i); err != nil {
				return nil, stats, err
			}
		}
	}

	stats.MaxCount = counts.Max()
	return counts, stats, nil
}

// markCoverage sets covered[i]=true for every tile pixel whose center is
// inside or on the boundary of the part's geometry, restricted to the
// part's bounding box window within the tile.
func markCoverage(part *footprint.Footprint, tile grid.Tile, spec *grid.Spec, covered []bool, touched *[]int) {
	b := part.Bounds()

	row0 := max(spec.Row(b.Max.Y), tile.Row0)
	row1 := min(spec.Row(b.Min.Y)+1, tile.Row1)
	col0 := max(spec.Col(b.Min.X), tile.Col0)
	col1 := min(spec.Col(b.Max.X)+1, tile.Col1)
	if row0 >= row1 || col0 >= col1 {
		return
	}

	cols := tile.Cols()
	for row := row0; row < row1; row++ {
		base := (row - tile.Row0) * cols
		for col := col0; col < col1; col++ {
			x, y := spec.CellCenter(row, col)
			if (geom.Point{X: x, Y: y}).Within(part.Geom) == geom.Outside {
				continue
			}
			i := base + (col - tile.Col0)
			if !covered[i] {
				covered[i] = true
				*touched = append(*touched, i)
			}
		}
	}
}
