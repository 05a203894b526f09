package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Tile is a rectangular block of the output pixel grid processed as one unit
// of work. Pixel ranges are half-open: rows [Row0, Row1), columns [Col0, Col1).
type Tile struct {
	ID         int
	Row0, Col0 int
	Row1, Col1 int
}

// Rows returns the tile height in pixels.
func (t Tile) Rows() int { return t.Row1 - t.Row0 }

// Cols returns the tile width in pixels.
func (t Tile) Cols() int { return t.Col1 - t.Col0 }

// GeoBounds returns the tile's geographic extent on s.
func (t Tile) GeoBounds(s *Spec) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{
			X: s.XMin + float64(t.Col0)*s.Resolution,
			Y: s.YMax - float64(t.Row1)*s.Resolution,
		},
		Max: geom.Point{
			X: s.XMin + float64(t.Col1)*s.Resolution,
			Y: s.YMax - float64(t.Row0)*s.Resolution,
		},
	}
}

// Plan partitions the grid into tiles of at most maxTilePixels pixels each.
// The tile edge is floor(sqrt(maxTilePixels)), clipped to the grid
// dimensions; tiles are produced in row-major order and the rightmost and
// bottom tiles are clipped to the remaining pixels. The union of all tiles
// covers the grid exactly once, and identical inputs always yield the
// identical sequence.
func Plan(s *Spec, maxTilePixels int) ([]Tile, error) {
	if maxTilePixels < 1 {
		return nil, fmt.Errorf("%w: max tile pixels must be at least 1, got %d", ErrInvalidGrid, maxTilePixels)
	}
	edge := int(math.Floor(math.Sqrt(float64(maxTilePixels))))
	if edge > s.widthPx {
		edge = s.widthPx
	}
	if edge > s.heightPx {
		edge = s.heightPx
	}
	if edge < 1 {
		edge = 1
	}

	nRows := (s.heightPx + edge - 1) / edge
	nCols := (s.widthPx + edge - 1) / edge
	tiles := make([]Tile, 0, nRows*nCols)
	id := 0
	for r0 := 0; r0 < s.heightPx; r0 += edge {
		r1 := min(r0+edge, s.heightPx)
		for c0 := 0; c0 < s.widthPx; c0 += edge {
			c1 := min(c0+edge, s.widthPx)
			tiles = append(tiles, Tile{ID: id, Row0: r0, Col0: c0, Row1: r1, Col1: c1})
			id++
		}
	}
	return tiles, nil
}
