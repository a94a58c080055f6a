package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// DefaultBoundsPadding is the margin, in degrees, added around the stations
// so that entities just outside the outermost stations are still fetched.
const DefaultBoundsPadding = 0.01

// Axis-aligned search region in degrees.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoundsOf returns the region covering every station position, padded by
// padding degrees on each side. ok is false when stations is empty.
func BoundsOf(stations []Station, padding float64) (_ BoundingBox, ok bool) {
	if len(stations) == 0 {
		return BoundingBox{}, false
	}

	mp := make(orb.MultiPoint, 0, len(stations))
	for _, s := range stations {
		mp = append(mp, s.Position.Point())
	}

	return clamp(mp.Bound().Pad(padding)), true
}

// SearchBounds is BoundsOf widened where needed so that the region also holds
// every point within radius meters of a station. A padding in degrees shrinks
// in meters toward the poles, and a zero padding leaves edge stations with no
// margin at all.
func SearchBounds(stations []Station, padding, radius float64) (_ BoundingBox, ok bool) {
	b, ok := BoundsOf(stations, padding)
	if !ok || radius <= 0 {
		return b, ok
	}

	bound := b.Bound()
	for _, s := range stations {
		bound = bound.Union(geo.NewBoundAroundPoint(s.Position.Point(), radius))
	}
	return clamp(bound), true
}

func clamp(b orb.Bound) BoundingBox {
	return BoundingBox{
		MinLat: math.Max(b.Min.Lat(), -90),
		MinLon: math.Max(b.Min.Lon(), -180),
		MaxLat: math.Min(b.Max.Lat(), 90),
		MaxLon: math.Min(b.Max.Lon(), 180),
	}
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinates) bool {
	return b.Bound().Contains(c.Point())
}

// Covers reports whether every point within radius meters of c lies inside
// the box.
func (b BoundingBox) Covers(c Coordinates, radius float64) bool {
	if !b.Contains(c) {
		return false
	}
	if radius <= 0 {
		return true
	}
	around := clamp(geo.NewBoundAroundPoint(c.Point(), radius))
	return around.MinLat >= b.MinLat && around.MinLon >= b.MinLon &&
		around.MaxLat <= b.MaxLat && around.MaxLon <= b.MaxLon
}

// Validate rejects inverted or out-of-range boxes.
func (b BoundingBox) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("bounding box is inverted: %s", b)
	}
	if !(Coordinates{Lat: b.MinLat, Lon: b.MinLon}).Valid() || !(Coordinates{Lat: b.MaxLat, Lon: b.MaxLon}).Valid() {
		return fmt.Errorf("bounding box is out of range: %s", b)
	}
	return nil
}

// String formats the box in Overpass order: south,west,north,east.
func (b BoundingBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 7, 64) }
	return f(b.MinLat) + "," + f(b.MinLon) + "," + f(b.MaxLat) + "," + f(b.MaxLon)
}
