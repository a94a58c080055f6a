package services

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"strings"

	"golang.org/x/sync/errgroup"
)

type ReconcileRequest struct {
	Normalize NormalizeOptions
	Match     MatchOptions
	Policy    domain.OverwritePolicy
	// Metadata overrides values from system_information. SystemID is taken
	// from the feed when empty.
	Metadata                Metadata
	PositionToleranceMeters float64
	// BoundsPadding is the margin in degrees around the stations. It is
	// widened where it falls short of the match search radius.
	BoundsPadding float64
	Filter        domain.CategoryFilter
	// Bounds, when set, replaces the region derived from the stations and
	// lets the feed and the entities be fetched concurrently. It must cover
	// every station plus the search radius or the run is rejected.
	Bounds *domain.BoundingBox
}

// DefaultReconcileRequest returns a request with the documented defaults.
func DefaultReconcileRequest() ReconcileRequest {
	return ReconcileRequest{
		Match:                   DefaultMatchOptions(),
		PositionToleranceMeters: DefaultPositionToleranceMeters,
		BoundsPadding:           domain.DefaultBoundsPadding,
		Filter:                  domain.BicycleRentalFilter,
	}
}

// Validate checks the request before any network call.
func (r ReconcileRequest) Validate() error {
	if r.Match.ThresholdMeters <= 0 {
		return domain.NewInvalidConfigurationError("match-distance", r.Match.ThresholdMeters, "must be greater than zero")
	}
	if r.Match.RefMaxDistanceMeters < 0 {
		return domain.NewInvalidConfigurationError("ref-match-max-distance", r.Match.RefMaxDistanceMeters, "must not be negative")
	}
	if r.PositionToleranceMeters < 0 {
		return domain.NewInvalidConfigurationError("position-tolerance", r.PositionToleranceMeters, "must not be negative")
	}
	if r.BoundsPadding < 0 {
		return domain.NewInvalidConfigurationError("bounds-padding", r.BoundsPadding, "must not be negative")
	}
	if r.Filter.Key == "" || r.Filter.Value == "" {
		return domain.NewInvalidConfigurationError("filter", r.Filter.String(), "category filter needs a key and a value")
	}
	if r.Bounds != nil {
		if err := r.Bounds.Validate(); err != nil {
			return domain.NewInvalidConfigurationError("bounds", r.Bounds.String(), err.Error())
		}
	}
	return nil
}

// Everything a run produced, for writers and previews.
type ReconcileResult struct {
	Feed      *domain.Feed
	Metadata  Metadata
	Bounds    domain.BoundingBox
	Entities  int
	Match     *domain.MatchResult
	Changeset *domain.Changeset
}

// LoadFeed fetches and normalizes the station feed.
func LoadFeed(ctx context.Context, source ports.StationSource, opts NormalizeOptions) (_ *domain.Feed, err error) {
	defer obs.Time(ctx, "services.LoadFeed")(&err)

	raw, err := source.FetchFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed: fetch: %w", err)
	}

	stations, err := NormalizeStations(raw.Stations, opts)
	if err != nil {
		return nil, fmt.Errorf("load feed: normalize: %w", err)
	}

	return &domain.Feed{
		System:      raw.System,
		Stations:    stations,
		LastUpdated: raw.LastUpdated,
	}, nil
}

// ResolveMetadata completes the caller's constant tags from the feed's
// system information. network falls back to the system id; operator falls
// back to the feed's operator and is required.
func ResolveMetadata(ctx context.Context, overrides Metadata, sys domain.SystemInfo) (Metadata, error) {
	md := overrides
	if md.SystemID == "" {
		md.SystemID = strings.TrimSpace(sys.SystemID)
	}
	if md.Operator == "" {
		md.Operator = strings.TrimSpace(sys.Operator)
	}
	if md.Phone == "" {
		md.Phone = strings.TrimSpace(sys.PhoneNumber)
	}
	if md.Website == "" {
		md.Website = strings.TrimSpace(sys.URL)
	}

	if md.SystemID == "" {
		logging.FromContext(ctx).Warn().
			Msg("feed has no system_id; ref:gbfs values are written without a system prefix")
	}

	if md.Operator == "" {
		return Metadata{}, domain.NewInvalidConfigurationError("operator", "",
			"no operator configured and system_information has none")
	}
	if md.Network == "" {
		if md.SystemID == "" {
			return Metadata{}, domain.NewInvalidConfigurationError("network", "",
				"no network configured and system_information has no system_id")
		}
		md.Network = md.SystemID
		logging.FromContext(ctx).Warn().
			Str("network", md.Network).
			Msg("network not configured; defaulting to the feed's system_id")
	}

	return md, nil
}

// Reconcile runs the whole pipeline: feed, existing entities, match, plan.
//
// Any fetch failure aborts the run. Planning against an incomplete entity
// set would create duplicates of the stations whose entities were missed.
func Reconcile(
	ctx context.Context,
	req ReconcileRequest,
	source ports.StationSource,
	fetcher ports.EntityFetcher,
) (_ *ReconcileResult, err error) {
	defer obs.Time(ctx, "services.Reconcile")(&err)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	var (
		feed     *domain.Feed
		entities []domain.ExistingEntity
		bounds   domain.BoundingBox
	)

	if req.Bounds != nil {
		// The region is known up front, so both fetches are independent.
		bounds = *req.Bounds
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			f, err := LoadFeed(gctx, source, req.Normalize)
			feed = f
			return err
		})
		g.Go(func() error {
			es, err := fetchEntities(gctx, fetcher, bounds, req.Filter)
			entities = es
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		if err := checkCoverage(bounds, feed.Stations, req.Match.SearchRadiusMeters()); err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
	} else {
		feed, err = LoadFeed(ctx, source, req.Normalize)
		if err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		b, ok := domain.SearchBounds(feed.Stations, req.BoundsPadding, req.Match.SearchRadiusMeters())
		if ok {
			bounds = b
			entities, err = fetchEntities(ctx, fetcher, bounds, req.Filter)
			if err != nil {
				return nil, fmt.Errorf("reconcile: %w", err)
			}
		}
	}

	md, err := ResolveMetadata(ctx, req.Metadata, feed.System)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	matchOpts := req.Match
	if matchOpts.SystemID == "" {
		matchOpts.SystemID = md.SystemID
	}
	result, err := MatchStations(ctx, feed.Stations, entities, matchOpts)
	if err != nil {
		return nil, fmt.Errorf("reconcile: match: %w", err)
	}

	planner := NewMergePlanner(PlanOptions{
		Policy:                  req.Policy,
		Metadata:                md,
		PositionToleranceMeters: req.PositionToleranceMeters,
	})
	cs := planner.Plan(feed.Stations, result)

	logging.FromContext(ctx).Info().
		Int("stations", cs.Stats.Stations).
		Int("entities", len(entities)).
		Int("created", cs.Stats.Created).
		Int("modified", cs.Stats.Modified).
		Int("unchanged", cs.Stats.Unchanged).
		Int("matched_by_ref", cs.Stats.MatchedByRef).
		Int("unmatched_entities", cs.Stats.UnmatchedEntities).
		Msg("reconciliation planned")

	return &ReconcileResult{
		Feed:      feed,
		Metadata:  md,
		Bounds:    bounds,
		Entities:  len(entities),
		Match:     result,
		Changeset: cs,
	}, nil
}

// checkCoverage rejects a caller-supplied region that leaves a station, or part
// of its search radius, outside. Entities missed there would turn matched
// stations into duplicate creates.
func checkCoverage(bounds domain.BoundingBox, stations []domain.Station, radius float64) error {
	for _, s := range stations {
		if !bounds.Covers(s.Position, radius) {
			return domain.NewInvalidConfigurationError("bounds", bounds.String(),
				fmt.Sprintf("station %s at %.7f,%.7f is not covered with a %.0f m margin",
					s.ID, s.Position.Lat, s.Position.Lon, radius))
		}
	}
	return nil
}

// fetchEntities queries the backend and keeps only entities matching the
// filter inside the region, whatever the backend returned.
func fetchEntities(
	ctx context.Context,
	fetcher ports.EntityFetcher,
	bounds domain.BoundingBox,
	filter domain.CategoryFilter,
) ([]domain.ExistingEntity, error) {
	es, err := fetcher.FetchEntities(ctx, bounds, filter)
	if err != nil {
		var cfgErr *domain.InvalidConfigurationError
		if domain.IsBackendUnavailable(err) || errors.As(err, &cfgErr) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("fetch entities: %w", err)
		}
		return nil, fmt.Errorf("fetch entities: %w",
			domain.NewBackendUnavailableError("entities", 0, "", err))
	}

	out := make([]domain.ExistingEntity, 0, len(es))
	for _, e := range es {
		if filter.Matches(e.Tags) && bounds.Contains(e.Position) {
			out = append(out, e)
		}
	}
	return out, nil
}
