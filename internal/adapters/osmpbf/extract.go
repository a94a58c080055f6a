package osmpbf

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"io"
	"os"
	"runtime"

	"github.com/qedus/osmpbf"
)

const backendName = "osm-extract"

// ExtractReader implements ports.EntityFetcher over a local .osm.pbf file,
// for offline runs or regions too large for Overpass.
//
// The extract must carry metadata (versions); extracts stripped of it
// cannot produce valid modify operations and are rejected.
type ExtractReader struct {
	Path string
	// Procs is the number of decoding goroutines; 0 uses GOMAXPROCS.
	Procs int
}

var _ ports.EntityFetcher = (*ExtractReader)(nil)

func NewExtractReader(path string) (*ExtractReader, error) {
	if path == "" {
		return nil, domain.NewInvalidConfigurationError("osm-extract", path, "path must not be empty")
	}
	return &ExtractReader{Path: path}, nil
}

// FetchEntities scans the extract for nodes matching filter inside bounds.
func (r *ExtractReader) FetchEntities(
	ctx context.Context,
	bounds domain.BoundingBox,
	filter domain.CategoryFilter,
) (_ []domain.ExistingEntity, err error) {
	defer obs.Time(ctx, "osmpbf.FetchEntities")(&err)

	f, err := os.Open(r.Path)
	if err != nil {
		return nil, domain.NewBackendUnavailableError(backendName, 0, "open extract", err)
	}
	defer f.Close()

	procs := r.Procs
	if procs <= 0 {
		procs = runtime.GOMAXPROCS(-1)
	}

	d := osmpbf.NewDecoder(f)
	if err := d.Start(procs); err != nil {
		return nil, domain.NewBackendUnavailableError(backendName, 0, "start decoder", err)
	}

	logger := logging.FromContext(ctx)
	logger.Info().Str("path", r.Path).Str("bbox", bounds.String()).Msg("scanning OSM extract")

	out := make([]domain.ExistingEntity, 0)
	var scanned int64
	for {
		v, err := d.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.NewBackendUnavailableError(backendName, 0, "decode extract", err)
		}

		scanned++
		if scanned%1_000_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		n, ok := v.(*osmpbf.Node)
		if !ok {
			continue
		}
		if !filter.Matches(n.Tags) {
			continue
		}
		pos := domain.Coordinates{Lat: n.Lat, Lon: n.Lon}
		if !bounds.Contains(pos) {
			continue
		}
		if n.Info.Version <= 0 {
			return nil, domain.NewBackendUnavailableError(backendName, 0,
				fmt.Sprintf("node %d has no version; the extract lacks metadata", n.ID), nil)
		}

		tags := make(domain.Tags, len(n.Tags))
		for k, v := range n.Tags {
			tags[k] = v
		}
		out = append(out, domain.ExistingEntity{
			ID:       n.ID,
			Version:  int(n.Info.Version),
			Position: pos,
			Tags:     tags,
		})
	}

	logger.Info().Int64("elements", scanned).Int("entities", len(out)).Msg("OSM extract scanned")
	return out, nil
}
