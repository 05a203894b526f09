package geojson

import (
	"encoding/json"
	"testing"

	"github.com/ctessum/geom"
)

func TestToPolygonal_Polygon(t *testing.T) {
	g := &Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[0,0],[2,0],[2,2],[0,2],[0,0]]]`),
	}
	p, err := g.ToPolygonal()
	if err != nil {
		t.Fatalf("ToPolygonal failed: %v", err)
	}
	if got := p.Area(); got != 4 {
		t.Errorf("Area = %v, want 4", got)
	}
	if in := (geom.Point{X: 1, Y: 1}).Within(p); in == geom.Outside {
		t.Error("expected (1,1) inside polygon")
	}
}

func TestToPolygonal_UnclosedRingIsClosed(t *testing.T) {
	g := &Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,1]]]`),
	}
	p, err := g.ToPolygonal()
	if err != nil {
		t.Fatalf("ToPolygonal failed: %v", err)
	}
	poly := p.Polygons()[0]
	ring := poly[0]
	if !ring[0].Equals(ring[len(ring)-1]) {
		t.Error("expected ring to be closed")
	}
}

func TestToPolygonal_DegenerateRingDropped(t *testing.T) {
	g := &Geometry{
		Type:        "MultiPolygon",
		Coordinates: json.RawMessage(`[[[[0,0],[1,1],[0,0]]],[[[0,0],[4,0],[4,4],[0,4],[0,0]]]]`),
	}
	p, err := g.ToPolygonal()
	if err != nil {
		t.Fatalf("ToPolygonal failed: %v", err)
	}
	if got := len(p.Polygons()); got != 1 {
		t.Errorf("expected 1 usable polygon, got %d", got)
	}
}

func TestToPolygonal_AllDegenerate(t *testing.T) {
	g := &Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[0,0],[0,0],[0,0]]]`),
	}
	if _, err := g.ToPolygonal(); err == nil {
		t.Error("expected error for fully degenerate polygon")
	}
}

func TestToPolygonal_UnsupportedType(t *testing.T) {
	g := &Geometry{Type: "Point", Coordinates: json.RawMessage(`[0,0]`)}
	if _, err := g.ToPolygonal(); err == nil {
		t.Error("expected error for Point geometry")
	}
}

func TestComputeBBox(t *testing.T) {
	g := &Geometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[-10,-5],[10,-5],[10,5],[-10,5],[-10,-5]]]`),
	}
	bbox, err := ComputeBBox(g)
	if err != nil {
		t.Fatalf("ComputeBBox failed: %v", err)
	}
	want := []float64{-10, -5, 10, 5}
	for i := range want {
		if bbox[i] != want[i] {
			t.Errorf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
}
