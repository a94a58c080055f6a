package ports

import (
	"context"
	"gbfs2osm/internal/domain"
)

// Port: a read-only query against the geodata backend.
type EntityFetcher interface {
	// Return every point entity matching filter inside bounds. An error means
	// the result would be incomplete; implementations never return partial sets.
	FetchEntities(ctx context.Context, bounds domain.BoundingBox, filter domain.CategoryFilter) ([]domain.ExistingEntity, error)
}
