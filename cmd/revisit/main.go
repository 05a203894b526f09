// Revisit raster builder entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/revisit-raster/internal/config"
	"github.com/robert-malhotra/revisit-raster/internal/revisit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	out           string
	resolution    float64
	minYear       int
	maxYear       int
	xMin          float64
	yMin          float64
	xMax          float64
	yMax          float64
	maxTilePixels int
	workers       int
	pageLimit     int
	maxRecords    int
	catalogURL    string
	collections   []string
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	var f flags
	cmd := &cobra.Command{
		Use:   "revisit",
		Short: "Build a satellite revisit frequency raster from a STAC catalog",
		Long: `revisit streams scene footprints from a STAC catalog and rasterizes
them into a GeoTIFF where each pixel counts the distinct scenes that
observed it in the requested years. An interrupted run can be re-invoked
with the same arguments and resumes after its completed tiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err := revisit.BuildRevisitRaster(ctx, revisit.Options{
				CatalogURL:    f.catalogURL,
				Collections:   f.collections,
				ExportPath:    f.out,
				MinYear:       f.minYear,
				MaxYear:       f.maxYear,
				XMin:          f.xMin,
				YMin:          f.yMin,
				XMax:          f.xMax,
				YMax:          f.yMax,
				Resolution:    f.resolution,
				MaxTilePixels: f.maxTilePixels,
				Workers:       f.workers,
				PageLimit:     f.pageLimit,
				MaxRecords:    f.maxRecords,
				Timeout:       cfg.Catalog.Timeout,
				MaxRetries:    cfg.Catalog.MaxRetries,
				Logger:        logger,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&f.out, "out", "revisit.tif", "output GeoTIFF path")
	cmd.Flags().Float64Var(&f.resolution, "resolution", revisit.DefaultResolution, "pixel size in degrees")
	cmd.Flags().IntVar(&f.minYear, "min-year", 2020, "first acquisition year, inclusive")
	cmd.Flags().IntVar(&f.maxYear, "max-year", 2024, "last acquisition year, inclusive")
	cmd.Flags().Float64Var(&f.xMin, "xmin", -180, "west bound in degrees")
	cmd.Flags().Float64Var(&f.yMin, "ymin", -90, "south bound in degrees")
	cmd.Flags().Float64Var(&f.xMax, "xmax", 180, "east bound in degrees")
	cmd.Flags().Float64Var(&f.yMax, "ymax", 90, "north bound in degrees")
	cmd.Flags().IntVar(&f.maxTilePixels, "max-tile-pixels", cfg.Raster.MaxTilePixels, "pixel budget per work tile")
	cmd.Flags().IntVar(&f.workers, "workers", cfg.Runtime.Workers, "concurrent tile workers")
	cmd.Flags().IntVar(&f.pageLimit, "page-limit", cfg.Catalog.PageLimit, "catalog page size")
	cmd.Flags().IntVar(&f.maxRecords, "limit", 0, "cap on catalog records consumed (0 = unlimited)")
	cmd.Flags().StringVar(&f.catalogURL, "catalog-url", cfg.Catalog.BaseURL, "STAC API root URL")
	cmd.Flags().StringSliceVar(&f.collections, "collections", cfg.Catalog.Collections, "catalog collection IDs")

	return cmd.ExecuteContext(context.Background())
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
