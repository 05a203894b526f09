package revisit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/revisit-raster/internal/catalog"
	"github.com/robert-malhotra/revisit-raster/internal/geotiff"
	"github.com/robert-malhotra/revisit-raster/internal/grid"
)

type mockScene struct {
	id       string
	datetime string
	ring     [][]float64 // exterior ring, closed
}

func sceneFeature(s mockScene) map[string]any {
	return map[string]any{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           s.id,
		"collection":   "sentinel-2-l2a",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": []any{s.ring},
		},
		"properties": map[string]any{"datetime": s.datetime},
	}
}

func boxRing(x0, y0, x1, y1 float64) [][]float64 {
	return [][]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

// newCatalogServer serves the scenes over a paginated STAC-style search
// endpoint, one scene per page.
func newCatalogServer(t *testing.T, scenes []mockScene) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	var srv *httptest.Server
	r.Post("/search", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		page := 0
		if body.Token != "" {
			for i := range scenes {
				if scenes[i].id == body.Token {
					page = i
				}
			}
		}

		resp := map[string]any{
			"type":     "FeatureCollection",
			"features": []any{},
			"links":    []any{},
		}
		if page < len(scenes) {
			resp["features"] = []any{sceneFeature(scenes[page])}
		}
		if page+1 < len(scenes) {
			resp["links"] = []any{map[string]any{
				"rel":  "next",
				"href": srv.URL + "/search?token=" + scenes[page+1].id,
			}}
		}
		w.Header().Set("Content-Type", "application/geo+json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	srv = httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func baseOptions(catalogURL, out string) Options {
	return Options{
		CatalogURL:  catalogURL,
		Collections: []string{"sentinel-2-l2a"},
		ExportPath:  out,
		MinYear:     2023,
		MaxYear:     2023,
		XMin:        -1, YMin: -1, XMax: 1, YMax: 1,
		Resolution: 1.0,
		Workers:    2,
	}
}

func TestBuildRevisitRaster_EndToEnd(t *testing.T) {
	srv := newCatalogServer(t, []mockScene{
		{id: "whole", datetime: "2023-06-01T10:00:00Z", ring: boxRing(-1, -1, 1, 1)},
		{id: "quadrant", datetime: "2023-07-01T10:00:00Z", ring: boxRing(-1, -1, 0, 0)},
	})

	out := filepath.Join(t.TempDir(), "revisit.tif")
	summary, err := BuildRevisitRaster(context.Background(), baseOptions(srv.URL, out))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Stream.Scenes)
	assert.Equal(t, 1, summary.TilesWritten)
	assert.Equal(t, uint16(2), summary.MaxCount)

	r, err := geotiff.Read(out)
	require.NoError(t, err)
	require.Equal(t, 2, r.Width)
	require.Equal(t, 2, r.Height)
	// The quadrant scene adds one visit to the bottom-left pixel only.
	assert.Equal(t, uint16(1), r.At(0, 0))
	assert.Equal(t, uint16(1), r.At(0, 1))
	assert.Equal(t, uint16(2), r.At(1, 0))
	assert.Equal(t, uint16(1), r.At(1, 1))

	assert.Equal(t, -1.0, r.XMin)
	assert.Equal(t, 1.0, r.YMax)

	// The progress sidecar is gone after a clean run.
	_, err = os.Stat(out + ".progress")
	assert.True(t, os.IsNotExist(err))
}

func TestBuildRevisitRaster_Idempotent(t *testing.T) {
	srv := newCatalogServer(t, []mockScene{
		{id: "whole", datetime: "2023-06-01T10:00:00Z", ring: boxRing(-1, -1, 1, 1)},
	})

	dir := t.TempDir()
	outA := filepath.Join(dir, "a.tif")
	outB := filepath.Join(dir, "b.tif")

	_, err := BuildRevisitRaster(context.Background(), baseOptions(srv.URL, outA))
	require.NoError(t, err)
	_, err = BuildRevisitRaster(context.Background(), baseOptions(srv.URL, outB))
	require.NoError(t, err)

	a, err := os.ReadFile(outA)
	require.NoError(t, err)
	b, err := os.ReadFile(outB)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical inputs must produce byte-identical rasters")
}

func TestBuildRevisitRaster_TilingDoesNotChangeResult(t *testing.T) {
	scenes := []mockScene{
		{id: "s1", datetime: "2023-01-05T00:00:00Z", ring: boxRing(-1, -1, 1, 1)},
		{id: "s2", datetime: "2023-02-05T00:00:00Z", ring: boxRing(0, 0, 1, 1)},
		{id: "s3", datetime: "2023-03-05T00:00:00Z", ring: boxRing(-1, 0, 0.5, 1)},
	}
	srv := newCatalogServer(t, scenes)
	dir := t.TempDir()

	outWhole := filepath.Join(dir, "whole.tif")
	optsWhole := baseOptions(srv.URL, outWhole)
	_, err := BuildRevisitRaster(context.Background(), optsWhole)
	require.NoError(t, err)

	outTiled := filepath.Join(dir, "tiled.tif")
	optsTiled := baseOptions(srv.URL, outTiled)
	optsTiled.MaxTilePixels = 1
	summary, err := BuildRevisitRaster(context.Background(), optsTiled)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TilesWritten)

	whole, err := geotiff.Read(outWhole)
	require.NoError(t, err)
	tiled, err := geotiff.Read(outTiled)
	require.NoError(t, err)
	assert.Equal(t, whole.Data, tiled.Data)
}

func TestBuildRevisitRaster_YearFilter(t *testing.T) {
	srv := newCatalogServer(t, []mockScene{
		{id: "old", datetime: "2019-06-01T10:00:00Z", ring: boxRing(-1, -1, 1, 1)},
		{id: "wanted", datetime: "2023-06-01T10:00:00Z", ring: boxRing(-1, -1, 1, 1)},
	})

	out := filepath.Join(t.TempDir(), "revisit.tif")
	summary, err := BuildRevisitRaster(context.Background(), baseOptions(srv.URL, out))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stream.Scenes)
	assert.Equal(t, 1, summary.Stream.SkippedDate)

	r, err := geotiff.Read(out)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), r.At(0, 0))
}

func TestBuildRevisitRaster_InvalidYearsRejected(t *testing.T) {
	opts := baseOptions("http://invalid.example", filepath.Join(t.TempDir(), "x.tif"))
	opts.MinYear, opts.MaxYear = 2024, 2020
	_, err := BuildRevisitRaster(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, grid.ErrInvalidGrid)
}

func TestBuildRevisitRaster_CatalogDown(t *testing.T) {
	srv := newCatalogServer(t, nil)
	url := srv.URL
	srv.Close()

	opts := baseOptions(url, filepath.Join(t.TempDir(), "x.tif"))
	opts.MaxRetries = -1 // fail fast
	_, err := BuildRevisitRaster(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
}
