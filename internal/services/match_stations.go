package services

import (
	"cmp"
	"context"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"math"
	"slices"

	"github.com/paulmach/orb/geo"
)

// DefaultMatchDistanceMeters is the proximity threshold used when none is configured.
const DefaultMatchDistanceMeters = 50.0

// MatchOptions configures MatchStations.
type MatchOptions struct {
	// ThresholdMeters bounds proximity matches; pairs farther apart are never
	// candidates. Pairs exactly at the threshold are.
	ThresholdMeters float64
	// RefMaxDistanceMeters bounds reference matches; 0 means unbounded.
	RefMaxDistanceMeters float64
	// SystemID qualifies station ids in ref:gbfs values.
	SystemID string
}

func DefaultMatchOptions() MatchOptions {
	return MatchOptions{ThresholdMeters: DefaultMatchDistanceMeters}
}

// SearchRadiusMeters is the distance around each station within which
// existing entities must be fetched for matching to see every candidate.
func (o MatchOptions) SearchRadiusMeters() float64 {
	return math.Max(o.ThresholdMeters, o.RefMaxDistanceMeters)
}

type candidate struct {
	station    int
	entity     int
	meters     float64
	similarity int
}

// MatchStations pairs each station with at most one existing entity.
//
// Reference matches come first: an entity whose ref:gbfs names the station
// is bound to it regardless of the proximity threshold. The remaining
// stations and entities are then matched greedily, globally closest pair
// first, among pairs within ThresholdMeters. Greedy nearest-first is not a
// minimum-weight bipartite matching; it agrees with one whenever stations
// are farther apart than the threshold, which is the common case.
//
// Ties are broken by name similarity, then station id, then entity id, so
// the result only depends on the inputs.
func MatchStations(
	ctx context.Context,
	stations []domain.Station,
	entities []domain.ExistingEntity,
	opts MatchOptions,
) (*domain.MatchResult, error) {
	if opts.ThresholdMeters <= 0 {
		return nil, domain.NewInvalidConfigurationError("match-distance", opts.ThresholdMeters, "must be greater than zero")
	}
	if opts.RefMaxDistanceMeters < 0 {
		return nil, domain.NewInvalidConfigurationError("ref-match-max-distance", opts.RefMaxDistanceMeters, "must not be negative")
	}

	logger := logging.FromContext(ctx)

	// Work on id-ordered index views so iteration order never depends on
	// feed or backend ordering.
	sIdx := sortedIndexes(len(stations), func(a, b int) int { return cmp.Compare(stations[a].ID, stations[b].ID) })
	eIdx := sortedIndexes(len(entities), func(a, b int) int { return cmp.Compare(entities[a].ID, entities[b].ID) })

	stationTaken := make([]bool, len(stations))
	entityTaken := make([]bool, len(entities))
	pairs := make([]domain.Pairing, 0, min(len(stations), len(entities)))

	bind := func(si, ei int, meters float64, reason domain.MatchReason) {
		stationTaken[si] = true
		entityTaken[ei] = true
		e := entities[ei]
		pairs = append(pairs, domain.Pairing{
			Station:        stations[si],
			Entity:         &e,
			DistanceMeters: meters,
			Reason:         reason,
		})
	}

	// Pass 1: cross-reference identity.
	byRef := make(map[string][]int)
	for _, ei := range eIdx {
		for _, ref := range entities[ei].GBFSRefs() {
			byRef[ref] = append(byRef[ref], ei)
		}
	}

	for _, si := range sIdx {
		s := stations[si]

		best, bestMeters, found := -1, 0.0, 0
		for _, key := range refKeys(s, opts.SystemID) {
			for _, ei := range byRef[key] {
				if entityTaken[ei] {
					continue
				}
				d := s.Position.DistanceTo(entities[ei].Position)
				if opts.RefMaxDistanceMeters > 0 && d > opts.RefMaxDistanceMeters {
					logger.Warn().
						Str("station_id", s.ID).
						Int64("entity_id", entities[ei].ID).
						Float64("distance_m", d).
						Msg("ignoring ref:gbfs match beyond the reference distance limit")
					continue
				}
				found++
				if best < 0 || d < bestMeters || (d == bestMeters && entities[ei].ID < entities[best].ID) {
					best, bestMeters = ei, d
				}
			}
		}
		if best < 0 {
			continue
		}

		if found > 1 {
			logger.Warn().
				Str("station_id", s.ID).
				Int("entities", found).
				Int64("entity_id", entities[best].ID).
				Msg("several entities carry this station's ref:gbfs; using the closest. A cleanup should be performed to remove duplicates")
		}
		if bestMeters > opts.ThresholdMeters {
			logger.Warn().
				Str("station_id", s.ID).
				Int64("entity_id", entities[best].ID).
				Float64("distance_m", bestMeters).
				Msg("ref:gbfs match is farther than the match distance")
		}

		bind(si, best, bestMeters, domain.MatchByReference)
	}

	// Pass 2: collect proximity candidates. Entities are swept in latitude
	// order, so only the band around each station is measured.
	latOrder := slices.Clone(eIdx)
	slices.SortStableFunc(latOrder, func(a, b int) int {
		return cmp.Compare(entities[a].Position.Lat, entities[b].Position.Lat)
	})

	cands := make([]candidate, 0)
	perStation := make(map[int]int)

	for _, si := range sIdx {
		if stationTaken[si] {
			continue
		}
		s := stations[si]

		// Widen the geodesic box slightly so floating point noise never drops a
		// pair sitting exactly on the threshold.
		box := geo.NewBoundAroundPoint(s.Position.Point(), opts.ThresholdMeters).Pad(1e-6)

		start, _ := slices.BinarySearchFunc(latOrder, box.Min.Lat(), func(ei int, lat float64) int {
			return cmp.Compare(entities[ei].Position.Lat, lat)
		})

		for _, ei := range latOrder[start:] {
			e := entities[ei]
			if e.Position.Lat > box.Max.Lat() {
				break
			}
			if entityTaken[ei] || !box.Contains(e.Position.Point()) {
				continue
			}

			d := s.Position.DistanceTo(e.Position)
			if d > opts.ThresholdMeters {
				continue
			}

			cands = append(cands, candidate{
				station:    si,
				entity:     ei,
				meters:     d,
				similarity: NameSimilarity(s.Name, e.Tag(domain.TagName)),
			})
			perStation[si]++
		}
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.meters, b.meters); c != 0 {
			return c
		}
		if c := cmp.Compare(b.similarity, a.similarity); c != 0 {
			return c
		}
		if c := cmp.Compare(stations[a.station].ID, stations[b.station].ID); c != 0 {
			return c
		}
		return cmp.Compare(entities[a.entity].ID, entities[b.entity].ID)
	})

	// Pass 3: greedy binding, globally closest pair first.
	for _, c := range cands {
		if stationTaken[c.station] || entityTaken[c.entity] {
			continue
		}

		if n := perStation[c.station]; n > 1 {
			logger.Warn().
				Str("station_id", stations[c.station].ID).
				Str("station_name", stations[c.station].Name).
				Int("entities", n).
				Int64("entity_id", entities[c.entity].ID).
				Msg("several existing entities found near station; using the closest. A cleanup should be performed to remove duplicates")
		}

		bind(c.station, c.entity, c.meters, domain.MatchByProximity)
	}

	slices.SortFunc(pairs, func(a, b domain.Pairing) int { return cmp.Compare(a.Station.ID, b.Station.ID) })

	result := &domain.MatchResult{
		Pairs:             pairs,
		UnmatchedStations: make([]domain.Station, 0),
		UnmatchedEntities: make([]domain.ExistingEntity, 0),
	}
	for _, si := range sIdx {
		if !stationTaken[si] {
			result.UnmatchedStations = append(result.UnmatchedStations, stations[si])
		}
	}
	for _, ei := range eIdx {
		if !entityTaken[ei] {
			result.UnmatchedEntities = append(result.UnmatchedEntities, entities[ei])
		}
	}

	return result, nil
}

// refKeys lists the ref:gbfs values that identify s.
func refKeys(s domain.Station, systemID string) []string {
	keys := []string{RefValue(systemID, s.LogicalID)}
	if systemID != "" {
		keys = append(keys, s.LogicalID)
	}
	return keys
}

func sortedIndexes(n int, cmpFn func(a, b int) int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, cmpFn)
	return idx
}
