package ports

import (
	"context"
	"gbfs2osm/internal/domain"
)

// Contract for persisting a planned changeset.
type ChangesetWriter interface {
	WriteChangeset(ctx context.Context, cs *domain.Changeset) error
}
