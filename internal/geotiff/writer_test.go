package geotiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/revisit-raster/internal/grid"
)

func TestWriter_RoundTrip(t *testing.T) {
	s, err := grid.NewSpec(-10, 40, -6, 44, 1.0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.tif")

	w, err := Open(path, s)
	require.NoError(t, err)

	// Blocks land in arbitrary order.
	require.NoError(t, w.WriteBlock(2, 2, 2, 2, []uint16{5, 6, 7, 8}))
	require.NoError(t, w.WriteBlock(0, 0, 2, 2, []uint16{1, 2, 3, 4}))
	require.NoError(t, w.Close())

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, 4, r.Height)
	assert.Equal(t, uint16(1), r.At(0, 0))
	assert.Equal(t, uint16(4), r.At(1, 1))
	assert.Equal(t, uint16(5), r.At(2, 2))
	assert.Equal(t, uint16(8), r.At(3, 3))
	assert.Equal(t, uint16(0), r.At(0, 3), "untouched pixels read as nodata zero")

	assert.Equal(t, -10.0, r.XMin)
	assert.Equal(t, 44.0, r.YMax)
	assert.Equal(t, 1.0, r.Resolution)
}

func TestWriter_ResumeKeepsExistingPixels(t *testing.T) {
	s, err := grid.NewSpec(0, 0, 4, 4, 1.0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.tif")

	w1, err := Open(path, s)
	require.NoError(t, err)
	require.NoError(t, w1.WriteBlock(0, 0, 1, 4, []uint16{9, 9, 9, 9}))
	require.NoError(t, w1.Close())

	// A second open with the same grid must not truncate prior work.
	w2, err := Open(path, s)
	require.NoError(t, err)
	require.NoError(t, w2.WriteBlock(3, 0, 1, 4, []uint16{2, 2, 2, 2}))
	require.NoError(t, w2.Close())

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), r.At(0, 0))
	assert.Equal(t, uint16(2), r.At(3, 3))
}

func TestWriter_DifferentGridStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")

	s1, err := grid.NewSpec(0, 0, 4, 4, 1.0)
	require.NoError(t, err)
	w1, err := Open(path, s1)
	require.NoError(t, err)
	require.NoError(t, w1.WriteBlock(0, 0, 1, 1, []uint16{7}))
	require.NoError(t, w1.Close())

	// Same pixel count, different georeferencing.
	s2, err := grid.NewSpec(10, 10, 14, 14, 1.0)
	require.NoError(t, err)
	w2, err := Open(path, s2)
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	r, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, r.XMin)
	assert.Equal(t, uint16(0), r.At(0, 0), "stale pixels must not survive a grid change")
}

func TestWriter_RejectsOutOfBoundsBlock(t *testing.T) {
	s, err := grid.NewSpec(0, 0, 2, 2, 1.0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.tif")

	w, err := Open(path, s)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WriteBlock(1, 1, 2, 2, []uint16{1, 2, 3, 4}))
	assert.Error(t, w.WriteBlock(0, 0, 2, 2, []uint16{1, 2, 3}), "sample count mismatch")
}

func TestRead_RejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.tif")
	require.NoError(t, os.WriteFile(path, []byte("MM not a tiff"), 0o644))
	_, err := Read(path)
	assert.Error(t, err)
}
