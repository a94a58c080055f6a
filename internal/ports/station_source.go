package ports

import (
	"context"
	"gbfs2osm/internal/domain"
	"time"
)

// Loosely typed feed contents, as decoded from the wire. Station records
// are normalized and validated by the feed normalizer, not by the source.
type RawFeed struct {
	System      domain.SystemInfo
	Stations    []map[string]any
	LastUpdated time.Time
}

// Port: a boundary for retrieving a bikeshare system's station list.
type StationSource interface {
	// Fetch the system metadata and the raw station_information records.
	FetchFeed(ctx context.Context) (*RawFeed, error)
}
