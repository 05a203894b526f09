package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Raster is a decoded single-band uint16 image with its georeferencing.
type Raster struct {
	Width      int
	Height     int
	Data       []uint16 // row-major, row 0 at top
	XMin       float64
	YMax       float64
	Resolution float64
}

// At returns the pixel at (row, col).
func (r *Raster) At(row, col int) uint16 {
	return r.Data[row*r.Width+col]
}

// Read decodes a raster written by this package. It understands exactly the
// layout Open produces (little-endian BigTIFF, one uncompressed uint16
// strip) and rejects anything else.
func Read(path string) (*Raster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading raster: %w", err)
	}
	le := binary.LittleEndian

	if len(raw) < headerSize || string(raw[0:2]) != "II" || le.Uint16(raw[2:4]) != bigtiffVersion {
		return nil, fmt.Errorf("%s: not a little-endian BigTIFF", path)
	}
	ifdOff := le.Uint64(raw[8:16])
	if ifdOff+8 > uint64(len(raw)) {
		return nil, fmt.Errorf("%s: directory offset out of range", path)
	}
	n := le.Uint64(raw[ifdOff : ifdOff+8])

	var (
		width, height          uint64
		compression            = uint64(1)
		stripOff, stripCount   uint64
		resolution, xMin, yMax float64
	)
	for i := uint64(0); i < n; i++ {
		e := raw[ifdOff+8+i*entrySize:]
		tag := le.Uint16(e[0:2])
		value := le.Uint64(e[12:20])
		switch tag {
		case tagImageWidth:
			width = value & 0xffffffff
		case tagImageLength:
			height = value & 0xffffffff
		case tagCompression:
			compression = value & 0xffff
		case tagStripOffsets:
			stripOff = value
		case tagStripByteCounts:
			stripCount = value
		case tagModelPixelScale:
			resolution = math.Float64frombits(le.Uint64(raw[value : value+8]))
		case tagModelTiepoint:
			xMin = math.Float64frombits(le.Uint64(raw[value+24 : value+32]))
			yMax = math.Float64frombits(le.Uint64(raw[value+32 : value+40]))
		}
	}

	if compression != 1 {
		return nil, fmt.Errorf("%s: unsupported compression %d", path, compression)
	}
	if width == 0 || height == 0 || stripCount != width*height*2 {
		return nil, fmt.Errorf("%s: inconsistent dimensions", path)
	}
	if stripOff+stripCount > uint64(len(raw)) {
		return nil, fmt.Errorf("%s: pixel data out of range", path)
	}

	data := make([]uint16, width*height)
	for i := range data {
		data[i] = le.Uint16(raw[stripOff+uint64(i)*2:])
	}
	return &Raster{
		Width:      int(width),
		Height:     int(height),
		Data:       data,
		XMin:       xMin,
		YMax:       yMax,
		Resolution: resolution,
	}, nil
}
