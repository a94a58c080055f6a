package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Immutable geographic coordinates (longitude, latitude) in WGS84.
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as an orb point ([lon, lat]).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Great-circle distance to o, in meters.
func (c Coordinates) DistanceTo(o Coordinates) float64 {
	return geo.DistanceHaversine(c.Point(), o.Point())
}

// Valid reports whether the coordinates are finite and inside WGS84 ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
