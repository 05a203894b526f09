// Package revisit orchestrates the full footprint-to-raster pipeline: stream
// scene footprints from a catalog, index them, rasterize per-tile revisit
// counts in parallel, and assemble the tiles into one georeferenced raster.
package revisit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/revisit-raster/internal/catalog"
	"github.com/robert-malhotra/revisit-raster/internal/footprint"
	"github.com/robert-malhotra/revisit-raster/internal/geotiff"
	"github.com/robert-malhotra/revisit-raster/internal/grid"
	"github.com/robert-malhotra/revisit-raster/internal/raster"
	"github.com/robert-malhotra/revisit-raster/internal/spatial"
)

// Options parameterizes one raster build. Zero values fall back to the
// documented defaults.
type Options struct {
	// CatalogURL is the STAC API root (no trailing /search).
	CatalogURL string
	// Collections filters the catalog search; empty searches everything.
	Collections []string
	// ExportPath is where the output GeoTIFF is written. The progress
	// sidecar lives next to it at ExportPath + ".progress".
	ExportPath string

	// MinYear and MaxYear bound scene acquisition years, inclusive.
	MinYear int
	MaxYear int

	// Geographic bounds of the output grid; all zero means global coverage.
	XMin, YMin, XMax, YMax float64

	// Resolution is the pixel edge in degrees. Defaults to 0.00278
	// (roughly 300 m at the equator).
	Resolution float64

	// MaxTilePixels caps the pixel count of one work tile. Defaults to
	// 4194304 (a 2048x2048 tile).
	MaxTilePixels int

	// Workers bounds concurrent tile rasterization. Defaults to 4.
	Workers int

	// PageLimit is the catalog page size; MaxRecords caps total records
	// consumed (0 = unlimited).
	PageLimit  int
	MaxRecords int

	// Catalog client tuning.
	Timeout    time.Duration
	MaxRetries int

	Logger *slog.Logger
}

// Defaults for zero-valued Options fields.
const (
	DefaultResolution    = 0.00278
	DefaultMaxTilePixels = 4 * 1024 * 1024
	DefaultWorkers       = 4
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
)

// Summary reports what one build did.
type Summary struct {
	Grid         *grid.Spec
	Tiles        int
	TilesWritten int
	TilesSkipped int // completed by an earlier interrupted run
	Stream       footprint.Stats
	MaxCount     uint16
	Elapsed      time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Resolution == 0 {
		out.Resolution = DefaultResolution
	}
	if out.XMin == 0 && out.YMin == 0 && out.XMax == 0 && out.YMax == 0 {
		out.XMin, out.YMin, out.XMax, out.YMax = -180, -90, 180, 90
	}
	if out.MaxTilePixels <= 0 {
		out.MaxTilePixels = DefaultMaxTilePixels
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = DefaultMaxRetries
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// BuildRevisitRaster runs the pipeline end to end and returns a summary.
// The index build is a barrier: no tile is rasterized until every footprint
// is loaded. Tile failures cancel the remaining workers; tiles already
// written stay valid and a re-run with the same options resumes after them.
func BuildRevisitRaster(ctx context.Context, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	start := time.Now()

	if opts.ExportPath == "" {
		return nil, fmt.Errorf("%w: export path is required", grid.ErrInvalidGrid)
	}
	if opts.MinYear > opts.MaxYear {
		return nil, fmt.Errorf("%w: min year %d after max year %d", grid.ErrInvalidGrid, opts.MinYear, opts.MaxYear)
	}

	spec, err := grid.NewSpec(opts.XMin, opts.YMin, opts.XMax, opts.YMax, opts.Resolution)
	if err != nil {
		return nil, err
	}
	tiles, err := grid.Plan(spec, opts.MaxTilePixels)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "grid planned",
		slog.Int("width", spec.Width()),
		slog.Int("height", spec.Height()),
		slog.Float64("resolution", spec.Resolution),
		slog.Int("tiles", len(tiles)),
	)

	client := catalog.NewClient(opts.CatalogURL, opts.Timeout, opts.MaxRetries).WithLogger(logger)
	source := footprint.NewSource(client, footprint.SourceConfig{
		Collections: opts.Collections,
		PageLimit:   opts.PageLimit,
		MaxRecords:  opts.MaxRecords,
	}, logger)

	index := spatial.NewIndex()
	streamStats, err := source.Stream(ctx, opts.MinYear, opts.MaxYear, spec, func(f *footprint.Footprint) error {
		index.Insert(f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "spatial index built", slog.Int("footprints", index.Len()))

	writer, err := geotiff.Open(opts.ExportPath, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrOutputWrite, err)
	}
	mosaic, err := raster.NewMosaic(writer, opts.ExportPath+".progress", spec, logger)
	if err != nil {
		writer.Close()
		return nil, err
	}

	summary := &Summary{Grid: spec, Tiles: len(tiles), Stream: streamStats}
	var written, skipped, done atomic.Int64
	var maxCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, tile := range tiles {
		tile := tile
		if mosaic.Completed(tile.ID) {
			skipped.Add(1)
			done.Add(1)
			continue
		}
		g.Go(func() error {
			// Cancellation stops new tiles; in-flight tiles finish and
			// their writes remain valid.
			if err := gctx.Err(); err != nil {
				return err
			}
			counts, stats, err := raster.Accumulate(tile, index, spec)
			if err != nil {
				return fmt.Errorf("tile %d: %w", tile.ID, err)
			}
			if err := mosaic.Write(tile, counts); err != nil {
				return err
			}
			written.Add(1)
			for {
				cur := maxCount.Load()
				if int64(stats.MaxCount) <= cur || maxCount.CompareAndSwap(cur, int64(stats.MaxCount)) {
					break
				}
			}
			logger.DebugContext(gctx, "tile complete",
				slog.Int("tile", tile.ID),
				slog.Int64("done", done.Add(1)),
				slog.Int("total", len(tiles)),
				slog.Int("scenes", stats.Scenes),
			)
			return nil
		})
	}

	runErr := g.Wait()
	if closeErr := mosaic.Close(runErr == nil); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	summary.TilesWritten = int(written.Load())
	summary.TilesSkipped = int(skipped.Load())
	summary.MaxCount = uint16(maxCount.Load())
	summary.Elapsed = time.Since(start)

	if runErr != nil {
		logger.ErrorContext(ctx, "raster build failed",
			slog.String("error", runErr.Error()),
			slog.Int("tiles_written", summary.TilesWritten),
		)
		return summary, runErr
	}
	logger.InfoContext(ctx, "raster build complete",
		slog.String("path", opts.ExportPath),
		slog.Int("tiles_written", summary.TilesWritten),
		slog.Int("tiles_skipped", summary.TilesSkipped),
		slog.Int("max_count", int(summary.MaxCount)),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}
