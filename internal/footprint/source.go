package footprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctessum/geom"

	"github.com/robert-malhotra/revisit-raster/internal/catalog"
	"github.com/robert-malhotra/revisit-raster/internal/grid"
)

// Stats counts per-record outcomes of one streaming pass. Skipped records
// are never silently dropped; their counts are surfaced to the caller.
type Stats struct {
	Records         int // catalog records seen
	Scenes          int // scenes that produced at least one footprint part
	Parts           int // footprint parts emitted (>= Scenes due to splitting)
	Split           int // scenes split at the antimeridian
	SkippedGeometry int // records with unrepairable or missing geometry
	SkippedDate     int // records with missing/unparseable datetime or out of year range
	SkippedOutside  int // records entirely outside the requested region
}

// SourceConfig configures a footprint source.
type SourceConfig struct {
	// Collections are the catalog collection IDs to search.
	Collections []string
	// PageLimit is the page size requested from the catalog.
	PageLimit int
	// MaxRecords caps the number of catalog records consumed; 0 means
	// unlimited. Intended for debugging runs.
	MaxRecords int
}

// Source streams normalized footprints from a scene catalog.
type Source struct {
	client *catalog.Client
	cfg    SourceConfig
	logger *slog.Logger
}

// NewSource creates a footprint source backed by the given catalog client.
func NewSource(client *catalog.Client, cfg SourceConfig, logger *slog.Logger) *Source {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 250
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, cfg: cfg, logger: logger}
}

// Stream pages the catalog for scenes acquired in [minYear, maxYear] that
// intersect the region, normalizes each record (geometry repair,
// antimeridian split, region clip), and calls emit once per footprint part.
// Per-record problems are counted and skipped; the stream aborts only on a
// catalog-level failure (wrapping catalog.ErrCatalogUnavailable) or when
// emit returns an error. Re-invoking Stream replays the same logical set;
// there is no mid-stream resume.
func (s *Source) Stream(ctx context.Context, minYear, maxYear int, region *grid.Spec, emit func(*Footprint) error) (Stats, error) {
	var stats Stats

	query := catalog.SearchQuery{
		Collections: s.cfg.Collections,
		BBox:        []float64{region.XMin, region.YMin, region.XMax, region.YMax},
		Datetime:    catalog.YearRangeDatetime(minYear, maxYear),
		Limit:       s.cfg.PageLimit,
	}
	regionPoly := region.Polygon()
	regionBounds := region.Bounds()

	token := ""
	for {
		page, err := s.client.FetchPage(ctx, query, token)
		if err != nil {
			return stats, err
		}

		for _, item := range page.Features {
			if s.cfg.MaxRecords > 0 && stats.Records >= s.cfg.MaxRecords {
				s.logStats(ctx, stats, "record cap reached")
				return stats, nil
			}
			stats.Records++
			if err := s.normalize(ctx, item, minYear, maxYear, regionPoly, regionBounds, &stats, emit); err != nil {
				return stats, err
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		token = page.NextToken()
		if token == "" {
			break
		}
	}

	s.logStats(ctx, stats, "catalog stream complete")
	return stats, nil
}

// normalize converts one catalog record into zero or more footprint parts
// and hands them to emit. Skips are counted in stats; only emit errors are
// returned.
func (s *Source) normalize(ctx context.Context, item *catalog.Item, minYear, maxYear int, regionPoly geom.Polygon, regionBounds *geom.Bounds, stats *Stats, emit func(*Footprint) error) error {
	when, err := acquiredAt(item)
	if err != nil {
		stats.SkippedDate++
		s.logger.DebugContext(ctx, "skipping record without usable datetime",
			slog.String("id", item.Id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if y := when.Year(); y < minYear || y > maxYear {
		stats.SkippedDate++
		return nil
	}

	poly, err := decodePolygonal(item.Geometry)
	if err != nil {
		stats.SkippedGeometry++
		s.logger.DebugContext(ctx, "skipping record with unusable geometry",
			slog.String("id", item.Id),
			slog.String("error", err.Error()),
		)
		return nil
	}

	parts := splitAntimeridian(poly)
	if len(parts) > 1 {
		stats.Split++
	}

	emitted := 0
	for _, part := range parts {
		clipped := clipToRegion(part, regionPoly, regionBounds)
		if clipped == nil {
			continue
		}
		if err := emit(NewFootprint(clipped, when, item.Id)); err != nil {
			return err
		}
		emitted++
	}
	if emitted == 0 {
		stats.SkippedOutside++
		return nil
	}
	stats.Scenes++
	stats.Parts += emitted
	return nil
}

func (s *Source) logStats(ctx context.Context, stats Stats, msg string) {
	s.logger.InfoContext(ctx, msg,
		slog.Int("records", stats.Records),
		slog.Int("scenes", stats.Scenes),
		slog.Int("parts", stats.Parts),
		slog.Int("split", stats.Split),
		slog.Int("skipped_geometry", stats.SkippedGeometry),
		slog.Int("skipped_date", stats.SkippedDate),
		slog.Int("skipped_outside", stats.SkippedOutside),
	)
}

// acquiredAt extracts the acquisition time from a STAC item's properties,
// preferring "datetime" and falling back to "start_datetime" for records
// that report a capture interval.
func acquiredAt(item *catalog.Item) (time.Time, error) {
	for _, key := range []string{"datetime", "start_datetime"} {
		raw, ok := item.Properties[key]
		if !ok || raw == nil {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad %s %q: %w", key, str, err)
		}
		return t, nil
	}
	return time.Time{}, errors.New("item has no datetime")
}
