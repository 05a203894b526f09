package raster

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/robert-malhotra/revisit-raster/internal/grid"
)

// ErrOutputWrite is returned when writing a tile to the output raster
// fails. Tiles written before the failure remain valid, so a resumed run can
// skip them.
var ErrOutputWrite = errors.New("output write failed")

// BlockWriter persists pixel blocks into the output raster. The resource
// behind it is not assumed to be concurrency safe; the mosaic serializes all
// calls.
type BlockWriter interface {
	WriteBlock(row0, col0, rows, cols int, data []uint16) error
	Close() error
}

// progressHeader identifies the grid a progress sidecar belongs to, so a
// stale sidecar from a different run cannot corrupt a resume.
type progressHeader struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	XMin       float64 `json:"x_min"`
	YMax       float64 `json:"y_max"`
}

// Mosaic assembles completed tile count arrays into the output raster.
// Tiles may arrive in any completion order; writes to the shared output are
// serialized by a single lock. Completed tile IDs are tracked in memory and
// appended to a sidecar file so an interrupted run can be resumed with
// already-written tiles skipped. Re-writing a completed tile is a no-op.
type Mosaic struct {
	mu      sync.Mutex
	w       BlockWriter
	written map[int]bool
	sidecar *os.File
	path    string
	logger  *slog.Logger
}

// NewMosaic wraps a block writer. progressPath names the sidecar file; if it
// already exists and matches the grid, the tile IDs it lists are treated as
// complete.
func NewMosaic(w BlockWriter, progressPath string, spec *grid.Spec, logger *slog.Logger) (*Mosaic, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mosaic{
		w:       w,
		written: make(map[int]bool),
		path:    progressPath,
		logger:  logger,
	}

	header := progressHeader{
		Width:      spec.Width(),
		Height:     spec.Height(),
		Resolution: spec.Resolution,
		XMin:       spec.XMin,
		YMax:       spec.YMax,
	}

	if err := m.loadSidecar(header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}
	return m, nil
}

// loadSidecar reads completed tile IDs from an existing sidecar, discarding
// it if its header does not match the current grid, then reopens the file
// for appending (writing a fresh header if needed).
func (m *Mosaic) loadSidecar(header progressHeader) error {
	data, err := os.ReadFile(m.path)
	fresh := true
	if err == nil {
		if ids, ok := parseSidecar(data, header); ok {
			for _, id := range ids {
				m.written[id] = true
			}
			fresh = false
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if fresh {
		f, err := os.Create(m.path)
		if err != nil {
			return err
		}
		enc, err := json.Marshal(header)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := fmt.Fprintf(f, "%s\n", enc); err != nil {
			f.Close()
			return err
		}
		m.sidecar = f
		return nil
	}

	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	m.sidecar = f
	if len(m.written) > 0 {
		m.logger.Info("resuming from progress sidecar",
			slog.String("path", m.path),
			slog.Int("completed_tiles", len(m.written)),
		)
	}
	return nil
}

func parseSidecar(data []byte, want progressHeader) ([]int, bool) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return nil, false
	}
	var got progressHeader
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil || got != want {
		return nil, false
	}
	var ids []int
	for sc.Scan() {
		id, err := strconv.Atoi(sc.Text())
		if err != nil {
			// A torn final line from a crashed run; everything before it
			// is still valid.
			break
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Completed reports whether the tile has already been written.
func (m *Mosaic) Completed(tileID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[tileID]
}

// Write places the tile's counts at its pixel bounds in the output raster.
// Safe for concurrent use; writes are serialized. Writing an
// already-completed tile does nothing.
func (m *Mosaic) Write(tile grid.Tile, counts *CountArray) error {
	if counts.Rows != tile.Rows() || counts.Cols != tile.Cols() {
		return fmt.Errorf("%w: tile %d expects %dx%d counts, got %dx%d",
			ErrOutputWrite, tile.ID, tile.Rows(), tile.Cols(), counts.Rows, counts.Cols)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.written[tile.ID] {
		return nil
	}
	if err := m.w.WriteBlock(tile.Row0, tile.Col0, counts.Rows, counts.Cols, counts.Data()); err != nil {
		return fmt.Errorf("%w: tile %d: %v", ErrOutputWrite, tile.ID, err)
	}
	if _, err := fmt.Fprintf(m.sidecar, "%d\n", tile.ID); err != nil {
		return fmt.Errorf("%w: recording tile %d: %v", ErrOutputWrite, tile.ID, err)
	}
	m.written[tile.ID] = true
	return nil
}

// Close finalizes the output raster. On full success the progress sidecar is
// removed; after a failure it is kept so the next run can resume.
func (m *Mosaic) Close(success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if err := m.w.Close(); err != nil {
		firstErr = fmt.Errorf("%w: closing output: %v", ErrOutputWrite, err)
	}
	if err := m.sidecar.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: closing sidecar: %v", ErrOutputWrite, err)
	}
	if success && firstErr == nil {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			firstErr = fmt.Errorf("%w: removing sidecar: %v", ErrOutputWrite, err)
		}
	}
	return firstErr
}
