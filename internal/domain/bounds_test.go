package domain

import (
	"testing"

	"github.com/paulmach/orb/geo"
)

func moved(c Coordinates, bearing, meters float64) Coordinates {
	p := geo.PointAtBearingAndDistance(c.Point(), bearing, meters)
	return Coordinates{Lon: p.Lon(), Lat: p.Lat()}
}

func TestSearchBoundsCoversEdgeStations(t *testing.T) {
	south := Coordinates{Lat: 45.50, Lon: -73.57}
	north := moved(south, 0, 2000)
	stations := []Station{
		{ID: "a", Position: south},
		{ID: "b", Position: north},
	}

	tight, ok := BoundsOf(stations, 0)
	if !ok {
		t.Fatal("expected bounds for a non-empty station list")
	}
	nearNorth := moved(north, 0, 5)
	if tight.Contains(nearNorth) {
		t.Fatalf("unpadded bounds %s should not reach 5 m beyond the edge station", tight)
	}

	b, ok := SearchBounds(stations, 0, 50)
	if !ok {
		t.Fatal("expected bounds for a non-empty station list")
	}
	for _, s := range stations {
		if !b.Covers(s.Position, 50) {
			t.Errorf("bounds %s do not cover 50 m around station %s", b, s.ID)
		}
	}
	if !b.Contains(nearNorth) {
		t.Errorf("bounds %s should contain a point 5 m north of the edge station", b)
	}
	if b.Contains(moved(north, 0, 80)) {
		t.Errorf("bounds %s should not extend 80 m beyond the edge station", b)
	}
}

func TestSearchBoundsKeepsLargerPadding(t *testing.T) {
	stations := []Station{{ID: "a", Position: Coordinates{Lat: 45.5, Lon: -73.57}}}

	padded, _ := BoundsOf(stations, 0.01)
	got, _ := SearchBounds(stations, 0.01, 50)
	if got != padded {
		t.Errorf("got %s, want %s: a padding wider than the radius must be kept", got, padded)
	}

	if _, ok := SearchBounds(nil, 0.01, 50); ok {
		t.Error("expected ok=false for no stations")
	}
}

func TestCovers(t *testing.T) {
	c := Coordinates{Lat: 45.5, Lon: -73.57}
	box := BoundingBox{MinLat: 45.4, MinLon: -73.7, MaxLat: 45.6, MaxLon: -73.4}

	if !box.Covers(c, 50) {
		t.Errorf("%s should cover 50 m around %v", box, c)
	}
	if box.Covers(moved(Coordinates{Lat: 45.6, Lon: -73.57}, 180, 20), 50) {
		t.Error("a point 20 m inside the edge is not covered with a 50 m radius")
	}
	far := BoundingBox{MinLat: 40, MinLon: -80, MaxLat: 41, MaxLon: -79}
	if far.Covers(c, 0) {
		t.Errorf("%s should not cover %v", far, c)
	}
}
