package services

import (
	"context"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/ports"
	"strconv"

	"github.com/paulmach/orb/geo"
)

var montreal = domain.Coordinates{Lat: 45.50, Lon: -73.57}

// offset moves c by meters along bearing (degrees from north).
func offset(c domain.Coordinates, bearing, meters float64) domain.Coordinates {
	p := geo.PointAtBearingAndDistance(c.Point(), bearing, meters)
	return domain.Coordinates{Lon: p.Lon(), Lat: p.Lat()}
}

func station(id, name string, pos domain.Coordinates, capacity int) domain.Station {
	return domain.Station{
		ID:            id,
		LogicalID:     id,
		Name:          name,
		Position:      pos,
		Capacity:      capacity,
		CapacityKnown: true,
	}
}

func entity(id int64, pos domain.Coordinates, tags domain.Tags) domain.ExistingEntity {
	t := domain.Tags{domain.TagAmenity: domain.AmenityBicycleRental}
	for k, v := range tags {
		t[k] = v
	}
	return domain.ExistingEntity{ID: id, Version: 3, Position: pos, Tags: t}
}

func stationRecord(id string, pos domain.Coordinates, name string, capacity int) map[string]any {
	return map[string]any{
		"station_id": id,
		"name":       name,
		"lat":        pos.Lat,
		"lon":        pos.Lon,
		"capacity":   float64(capacity),
	}
}

type fakeSource struct {
	feed  *ports.RawFeed
	err   error
	calls int
}

func (f *fakeSource) FetchFeed(ctx context.Context) (*ports.RawFeed, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.feed, nil
}

type fakeFetcher struct {
	entities []domain.ExistingEntity
	err      error
	calls    int
	bounds   domain.BoundingBox
}

func (f *fakeFetcher) FetchEntities(ctx context.Context, bounds domain.BoundingBox, filter domain.CategoryFilter) ([]domain.ExistingEntity, error) {
	f.calls++
	f.bounds = bounds
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

func ids(stations []domain.Station) []string {
	out := make([]string, 0, len(stations))
	for _, s := range stations {
		out = append(out, s.ID)
	}
	return out
}

func entityIDs(entities []domain.ExistingEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, strconv.FormatInt(e.ID, 10))
	}
	return out
}
