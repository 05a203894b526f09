// Package geotiff writes single-band uint16 georeferenced rasters.
//
// The file layout is BigTIFF (64-bit offsets) with a single uncompressed
// strip, so every pixel's file position is known as soon as the grid is:
// the header and directory are written up front and completed blocks can be
// placed at their final offsets in any order. This is what makes
// out-of-order tile assembly and resumed runs possible without rewriting
// the file. Compression and overview generation are deliberately out of
// scope.
package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/revisit-raster/internal/grid"
)

// TIFF tag and type constants, per the BigTIFF specification and the
// GeoTIFF extension.
const (
	tagImageWidth        = 256
	tagImageLength       = 257
	tagBitsPerSample     = 258
	tagCompression       = 259
	tagPhotometric       = 262
	tagStripOffsets      = 273
	tagSamplesPerPixel   = 277
	tagRowsPerStrip      = 278
	tagStripByteCounts   = 279
	tagPlanarConfig      = 284
	tagSampleFormat      = 339
	tagModelPixelScale   = 33550
	tagModelTiepoint     = 33922
	tagGeoKeyDirectory   = 34735
	tagGDALNoData        = 42113

	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
	typeLong8  = 16

	bigtiffVersion = 43
	headerSize     = 16
	entrySize      = 20
	entryCount     = 15

	// GeoKey IDs (GeoTIFF spec section 6.2).
	gkModelType      = 1024
	gkRasterType     = 1025
	gkGeographicType = 2048
)

// Writer persists pixel blocks into a BigTIFF file. It is not safe for
// concurrent use; the mosaic assembler serializes access.
type Writer struct {
	f          *os.File
	spec       *grid.Spec
	dataOffset int64
	rowBuf     []byte
}

// Open creates the output raster for the given grid, writing the TIFF
// header and directory immediately and sizing the file to its final length.
// If path already holds a raster of exactly the expected layout (a partial
// output from an interrupted run), it is reopened for resumed writing
// instead of being truncated.
func Open(path string, spec *grid.Spec) (*Writer, error) {
	header := buildHeader(spec)
	dataOffset := int64(len(header))
	totalSize := dataOffset + int64(spec.Width())*int64(spec.Height())*2

	if st, err := os.Stat(path); err == nil && st.Size() == totalSize {
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("reopening raster: %w", err)
		}
		existing := make([]byte, len(header))
		if _, err := f.ReadAt(existing, 0); err == nil && bytes.Equal(existing, header) {
			return &Writer{f: f, spec: spec, dataOffset: dataOffset}, nil
		}
		f.Close()
		// Same size but different layout; fall through and start over.
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating raster: %w", err)
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing raster header: %w", err)
	}
	// Unwritten pixel regions read as zero, which is also the nodata value.
	if err := f.Truncate(totalSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("sizing raster: %w", err)
	}
	return &Writer{f: f, spec: spec, dataOffset: dataOffset}, nil
}

// WriteBlock writes a rows x cols block with its top-left pixel at
// (row0, col0). The block must lie entirely within the grid.
func (w *Writer) WriteBlock(row0, col0, rows, cols int, data []uint16) error {
	width, height := w.spec.Width(), w.spec.Height()
	if row0 < 0 || col0 < 0 || row0+rows > height || col0+cols > width {
		return fmt.Errorf("block (%d,%d)+%dx%d outside %dx%d raster", row0, col0, rows, cols, width, height)
	}
	if len(data) != rows*cols {
		return fmt.Errorf("block data has %d samples, want %d", len(data), rows*cols)
	}

	if cap(w.rowBuf) < cols*2 {
		w.rowBuf = make([]byte, cols*2)
	}
	buf := w.rowBuf[:cols*2]

	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		for i, v := range row {
			binary.LittleEndian.PutUint16(buf[i*2:], v)
		}
		off := w.dataOffset + (int64(row0+r)*int64(width)+int64(col0))*2
		if _, err := w.f.WriteAt(buf, off); err != nil {
			return fmt.Errorf("writing block row %d: %w", row0+r, err)
		}
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing raster: %w", err)
	}
	return w.f.Close()
}

// buildHeader assembles the BigTIFF header, directory, and auxiliary
// arrays. The returned slice's length is the pixel data offset.
func buildHeader(spec *grid.Spec) []byte {
	width := uint64(spec.Width())
	height := uint64(spec.Height())

	ifdOffset := uint64(headerSize)
	ifdSize := uint64(8 + entryCount*entrySize + 8)
	scaleOff := ifdOffset + ifdSize
	tieOff := scaleOff + 3*8
	geoOff := tieOff + 6*8
	dataOff := geoOff + 16*2

	buf := &bytes.Buffer{}
	le := binary.LittleEndian

	// Header: byte order, BigTIFF version, offset size, first IFD offset.
	buf.WriteString("II")
	binary.Write(buf, le, uint16(bigtiffVersion))
	binary.Write(buf, le, uint16(8))
	binary.Write(buf, le, uint16(0))
	binary.Write(buf, le, ifdOffset)

	entry := func(tag, typ uint16, count, value uint64) {
		binary.Write(buf, le, tag)
		binary.Write(buf, le, typ)
		binary.Write(buf, le, count)
		binary.Write(buf, le, value)
	}

	binary.Write(buf, le, uint64(entryCount))
	entry(tagImageWidth, typeLong, 1, width)
	entry(tagImageLength, typeLong, 1, height)
	entry(tagBitsPerSample, typeShort, 1, 16)
	entry(tagCompression, typeShort, 1, 1) // uncompressed
	entry(tagPhotometric, typeShort, 1, 1) // BlackIsZero
	entry(tagStripOffsets, typeLong8, 1, dataOff)
	entry(tagSamplesPerPixel, typeShort, 1, 1)
	entry(tagRowsPerStrip, typeLong, 1, height)
	entry(tagStripByteCounts, typeLong8, 1, width*height*2)
	entry(tagPlanarConfig, typeShort, 1, 1)
	entry(tagSampleFormat, typeShort, 1, 1) // unsigned integer
	entry(tagModelPixelScale, typeDouble, 3, scaleOff)
	entry(tagModelTiepoint, typeDouble, 6, tieOff)
	entry(tagGeoKeyDirectory, typeShort, 16, geoOff)
	entry(tagGDALNoData, typeASCII, 2, uint64('0')) // "0\x00" inline
	binary.Write(buf, le, uint64(0))                // no next IFD

	// ModelPixelScale: [resX, resY, 0].
	binary.Write(buf, le, spec.Resolution)
	binary.Write(buf, le, spec.Resolution)
	binary.Write(buf, le, float64(0))

	// ModelTiepoint: pixel (0,0,0) maps to (XMin, YMax, 0).
	binary.Write(buf, le, float64(0))
	binary.Write(buf, le, float64(0))
	binary.Write(buf, le, float64(0))
	binary.Write(buf, le, spec.XMin)
	binary.Write(buf, le, spec.YMax)
	binary.Write(buf, le, float64(0))

	// GeoKey directory: geographic model, pixel-is-area, geographic CS code.
	for _, v := range []uint16{
		1, 1, 0, 3,
		gkModelType, 0, 1, 2,
		gkRasterType, 0, 1, 1,
		gkGeographicType, 0, 1, uint16(spec.EPSG),
	} {
		binary.Write(buf, le, v)
	}

	out := buf.Bytes()
	if uint64(len(out)) != dataOff {
		panic(fmt.Sprintf("geotiff header layout: wrote %d bytes, expected %d", len(out), dataOff))
	}
	return out
}
