package main

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/adapters/cache"
	"gbfs2osm/internal/adapters/gbfs"
	"gbfs2osm/internal/adapters/osmpbf"
	"gbfs2osm/internal/adapters/overpass"
	"gbfs2osm/internal/config"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/ports"
	"gbfs2osm/internal/services"
	"io"
)

// reconcileRequest maps the validated configuration onto a pipeline request.
func reconcileRequest(cfg *config.Config) services.ReconcileRequest {
	req := services.DefaultReconcileRequest()

	req.Normalize = services.NormalizeOptions{
		UseShortNameAsID: cfg.UseShortName,
		Language:         cfg.Language,
	}
	req.Match.ThresholdMeters = cfg.MatchDistance
	req.Match.RefMaxDistanceMeters = cfg.RefMatchMaxDistance
	req.Policy = cfg.Policy
	req.Metadata = services.Metadata{
		Operator:         cfg.Operator,
		Network:          cfg.Network,
		OperatorWikidata: cfg.OperatorWikidata,
		NetworkWikidata:  cfg.NetworkWikidata,
	}
	req.PositionToleranceMeters = cfg.PositionTolerance
	req.BoundsPadding = cfg.BoundsPadding

	return req
}

// adapters holds the concrete ports for one process and the resources to
// release when it ends.
type adapters struct {
	Source  ports.StationSource
	Fetcher ports.EntityFetcher
	closers []io.Closer
}

func (a *adapters) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openAdapters builds the GBFS client and the entity fetcher: a local
// extract when one is configured, otherwise Overpass behind the response cache.
func openAdapters(ctx context.Context, cfg *config.Config) (*adapters, error) {
	source, err := gbfs.NewClient(gbfs.Config{
		FeedURL:   cfg.FeedURL,
		Language:  cfg.Language,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open adapters: %w", err)
	}

	out := &adapters{Source: source}

	if cfg.OSMExtract != "" {
		reader, err := osmpbf.NewExtractReader(cfg.OSMExtract)
		if err != nil {
			return nil, fmt.Errorf("open adapters: %w", err)
		}
		logging.FromContext(ctx).Info().Str("path", cfg.OSMExtract).Msg("reading existing nodes from extract")
		out.Fetcher = reader
		return out, nil
	}

	responses, closer, err := cache.Open(ctx, cache.Options{
		Backend:       cfg.CacheBackend,
		Dir:           cfg.CacheDir,
		DSN:           cfg.CacheDSN,
		TTL:           cfg.CacheTTL,
		MemoryEntries: cfg.CacheMemoryEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("open adapters: %w", err)
	}
	out.closers = append(out.closers, closer)

	fetcher, err := overpass.NewClient(overpass.Config{
		Endpoint:     cfg.OverpassURL,
		QueryTimeout: cfg.OverpassTimeout,
		UserAgent:    cfg.UserAgent,
		HTTPTimeout:  cfg.HTTPTimeout,
	}, responses)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("open adapters: %w", err)
	}
	out.Fetcher = fetcher

	return out, nil
}
