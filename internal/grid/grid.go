// Package grid defines the output raster's spatial extent and the tiling of
// its pixel grid into memory-bounded units of work.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// ErrInvalidGrid is returned when grid bounds, resolution, or tile sizing
// would produce a degenerate or oversized raster.
var ErrInvalidGrid = errors.New("invalid grid")

// DefaultMaxPixels caps the derived raster size at 16 gigapixels. The global
// grid at the default 0.00278 degree resolution is about 8.4 gigapixels;
// anything much larger is almost certainly a mistyped resolution.
const DefaultMaxPixels = int64(1) << 34

// Spec describes the target raster: geographic extent, cell resolution, and
// coordinate reference. Immutable once constructed.
type Spec struct {
	XMin, YMin float64
	XMax, YMax float64
	Resolution float64
	// EPSG is the coordinate reference code, 4326 unless configured otherwise.
	EPSG int

	widthPx, heightPx int
}

// NewSpec validates bounds and resolution and derives the pixel dimensions.
// Pixel dimensions are ceil(extent/resolution), so the grid may extend
// slightly past XMax/YMin when the extent is not an exact multiple of the
// resolution. Row 0 is the top row of the raster, at YMax.
func NewSpec(xMin, yMin, xMax, yMax, resolution float64) (*Spec, error) {
	return NewSpecMax(xMin, yMin, xMax, yMax, resolution, DefaultMaxPixels)
}

// NewSpecMax is NewSpec with an explicit cap on total pixel count.
func NewSpecMax(xMin, yMin, xMax, yMax, resolution float64, maxPixels int64) (*Spec, error) {
	if xMax <= xMin || yMax <= yMin {
		return nil, fmt.Errorf("%w: degenerate bounds (%g, %g, %g, %g)", ErrInvalidGrid, xMin, yMin, xMax, yMax)
	}
	if resolution <= 0 || math.IsNaN(resolution) || math.IsInf(resolution, 0) {
		return nil, fmt.Errorf("%w: resolution must be positive, got %g", ErrInvalidGrid, resolution)
	}
	w := int(math.Ceil((xMax - xMin) / resolution))
	h := int(math.Ceil((yMax - yMin) / resolution))
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: derived dimensions %dx%d", ErrInvalidGrid, w, h)
	}
	if int64(w)*int64(h) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels exceeds maximum of %d", ErrInvalidGrid, w, h, maxPixels)
	}
	return &Spec{
		XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax,
		Resolution: resolution,
		EPSG:       4326,
		widthPx:    w,
		heightPx:   h,
	}, nil
}

// Width returns the raster width in pixels.
func (s *Spec) Width() int { return s.widthPx }

// Height returns the raster height in pixels.
func (s *Spec) Height() int { return s.heightPx }

// Col returns the pixel column containing x. The result may be out of range
// for coordinates outside the grid.
func (s *Spec) Col(x float64) int {
	return int(math.Floor((x - s.XMin) / s.Resolution))
}

// Row returns the pixel row containing y, with row 0 at the top (YMax).
func (s *Spec) Row(y float64) int {
	return int(math.Floor((s.YMax - y) / s.Resolution))
}

// CellCenter returns the geographic center of pixel (row, col).
func (s *Spec) CellCenter(row, col int) (x, y float64) {
	x = s.XMin + (float64(col)+0.5)*s.Resolution
	y = s.YMax - (float64(row)+0.5)*s.Resolution
	return x, y
}

// Bounds returns the grid extent as a geometry bounding box.
func (s *Spec) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: s.XMin, Y: s.YMin},
		Max: geom.Point{X: s.XMax, Y: s.YMax},
	}
}

// Polygon returns the grid extent as a polygon, for clipping.
func (s *Spec) Polygon() geom.Polygon {
	return geom.Polygon{{
		{X: s.XMin, Y: s.YMin},
		{X: s.XMax, Y: s.YMin},
		{X: s.XMax, Y: s.YMax},
		{X: s.XMin, Y: s.YMax},
		{X: s.XMin, Y: s.YMin},
	}}
}
