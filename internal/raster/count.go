// Package raster turns indexed footprints into per-tile coverage counts and
// assembles completed tiles into the output raster.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// ErrCountOverflow is returned when a pixel's count would exceed the output
// sample type's range. Counts are never allowed to wrap.
var ErrCountOverflow = errors.New("pixel count overflow")

// maxCount is the largest representable count for the uint16 output samples.
const maxCount = math.MaxUint16

// CountArray is a tile-local grid of footprint counts, row-major with row 0
// at the tile's top edge. It is owned by the accumulator that produced it
// until handed to the mosaic, which writes and discards it.
type CountArray struct {
	Rows, Cols int
	data       []uint16
}

// NewCountArray allocates a zeroed rows x cols count grid.
func NewCountArray(rows, cols int) *CountArray {
	return &CountArray{Rows: rows, Cols: cols, data: make([]uint16, rows*cols)}
}

// At returns the count at (row, col).
func (c *CountArray) At(row, col int) uint16 {
	return c.data[row*c.Cols+col]
}

// inc adds one to the cell at index i, failing on overflow.
func (c *CountArray) inc(i int) error {
	if c.data[i] == maxCount {
		return fmt.Errorf("%w: cell %d already at %d", ErrCountOverflow, i, maxCount)
	}
	c.data[i]++
	return nil
}

// Data returns the backing row-major slice.
func (c *CountArray) Data() []uint16 { return c.data }

// Max returns the largest count in the array.
func (c *CountArray) Max() uint16 {
	var m uint16
	for _, v := range c.data {
		if v > m {
			m = v
		}
	}
	return m
}
