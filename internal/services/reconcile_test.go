package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"gbfs2osm/internal/ports"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFeed(records ...map[string]any) *ports.RawFeed {
	return &ports.RawFeed{
		System:   domain.SystemInfo{SystemID: "bixi", Operator: "PBSC", PhoneNumber: "+1 514 789 2494"},
		Stations: records,
	}
}

func TestReconcileEndToEnd(t *testing.T) {
	matched := offset(montreal, 90, 1500)
	source := &fakeSource{feed: rawFeed(
		stationRecord("new", montreal, "Nouvelle", 11),
		stationRecord("old", matched, "Ancienne", 15),
	)}
	fetcher := &fakeFetcher{entities: []domain.ExistingEntity{
		entity(50, offset(matched, 0, 5), domain.Tags{domain.TagCapacity: "10", "note": "x"}),
		entity(51, offset(matched, 0, 400), nil),
		{ID: 52, Version: 1, Position: montreal, Tags: domain.Tags{"amenity": "parking"}},
	}}

	req := DefaultReconcileRequest()
	req.Policy = domain.NewOverwritePolicy(domain.FieldCapacity)

	res, err := Reconcile(context.Background(), req, source, fetcher)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.True(t, fetcher.bounds.Contains(montreal))
	assert.True(t, fetcher.bounds.Contains(matched))

	assert.Equal(t, "bixi", res.Metadata.Network)
	assert.Equal(t, "PBSC", res.Metadata.Operator)
	assert.Equal(t, 2, res.Entities, "entities failing the category filter are dropped")

	cs := res.Changeset
	require.Len(t, cs.Operations, 2)
	assert.Equal(t, domain.OpCreate, cs.Operations[0].Kind)
	assert.Equal(t, "bixi:new", cs.Operations[0].Tags[domain.TagRefGBFS])
	assert.Equal(t, "+1 514 789 2494", cs.Operations[0].Tags[domain.TagOperatorPhone])

	mod := cs.Operations[1]
	assert.Equal(t, domain.OpModify, mod.Kind)
	assert.Equal(t, int64(50), mod.EntityID)
	assert.Equal(t, 3, mod.Version)
	assert.Equal(t, "15", mod.Tags[domain.TagCapacity])
	assert.Equal(t, "x", mod.Tags["note"])

	assert.Equal(t, 1, cs.Stats.UnmatchedEntities)
	assert.Equal(t, int64(51), cs.UnmatchedEntities[0].ID)
}

func TestReconcileExplicitBoundsFetchesBoth(t *testing.T) {
	source := &fakeSource{feed: rawFeed(stationRecord("a", montreal, "A", 3))}
	fetcher := &fakeFetcher{}

	bounds := domain.BoundingBox{MinLat: 45, MinLon: -74, MaxLat: 46, MaxLon: -73}
	req := DefaultReconcileRequest()
	req.Bounds = &bounds

	res, err := Reconcile(context.Background(), req, source, fetcher)
	require.NoError(t, err)
	assert.Equal(t, bounds, fetcher.bounds)
	assert.Equal(t, bounds, res.Bounds)
	assert.Len(t, res.Changeset.Creates(), 1)
}

func TestReconcileExplicitBoundsMustCoverStations(t *testing.T) {
	near := offset(montreal, 0, 5)

	tests := []struct {
		name   string
		bounds domain.BoundingBox
	}{
		{"station outside", domain.BoundingBox{MinLat: 40, MinLon: -80, MaxLat: 41, MaxLon: -79}},
		{"edge inside the match distance", domain.BoundingBox{
			MinLat: 45, MinLon: -74, MaxLat: offset(montreal, 0, 20).Lat, MaxLon: -73,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{feed: rawFeed(stationRecord("a", montreal, "A", 3))}
			fetcher := &fakeFetcher{entities: []domain.ExistingEntity{entity(7, near, nil)}}

			req := DefaultReconcileRequest()
			req.Bounds = &tt.bounds

			res, err := Reconcile(context.Background(), req, source, fetcher)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, domain.IsInvalidConfiguration(err))
		})
	}
}

func TestReconcileExplicitBoundsMatchesNearbyEntity(t *testing.T) {
	source := &fakeSource{feed: rawFeed(stationRecord("a", montreal, "A", 3))}
	fetcher := &fakeFetcher{entities: []domain.ExistingEntity{entity(7, offset(montreal, 0, 5), nil)}}

	bounds := domain.BoundingBox{MinLat: 45, MinLon: -74, MaxLat: 46, MaxLon: -73}
	req := DefaultReconcileRequest()
	req.Bounds = &bounds

	res, err := Reconcile(context.Background(), req, source, fetcher)
	require.NoError(t, err)
	assert.Empty(t, res.Changeset.Creates())
	require.Len(t, res.Changeset.Modifies(), 1)
	assert.Equal(t, int64(7), res.Changeset.Modifies()[0].EntityID)
}

func TestReconcileZeroPaddingKeepsEdgeEntities(t *testing.T) {
	north := offset(montreal, 0, 2000)

	for _, meters := range []float64{5, 45} {
		t.Run(fmt.Sprintf("%.0fm beyond the northern station", meters), func(t *testing.T) {
			source := &fakeSource{feed: rawFeed(
				stationRecord("a", montreal, "A", 3),
				stationRecord("b", north, "B", 3),
			)}
			fetcher := &fakeFetcher{entities: []domain.ExistingEntity{entity(9, offset(north, 0, meters), nil)}}

			req := DefaultReconcileRequest()
			req.BoundsPadding = 0

			res, err := Reconcile(context.Background(), req, source, fetcher)
			require.NoError(t, err)

			for _, c := range []domain.Coordinates{montreal, north} {
				assert.True(t, fetcher.bounds.Covers(c, req.Match.ThresholdMeters),
					"fetched region %s must hold the match distance around %v", fetcher.bounds, c)
			}
			assert.Equal(t, 1, res.Entities)

			cs := res.Changeset
			require.Len(t, cs.Creates(), 1)
			assert.Equal(t, "a", cs.Creates()[0].StationID)
			require.Len(t, cs.Modifies(), 1)
			assert.Equal(t, int64(9), cs.Modifies()[0].EntityID)
		})
	}
}

func TestReconcileBackendFailureAborts(t *testing.T) {
	source := &fakeSource{feed: rawFeed(stationRecord("a", montreal, "A", 3))}
	fetcher := &fakeFetcher{err: errors.New("connection reset")}

	res, err := Reconcile(context.Background(), DefaultReconcileRequest(), source, fetcher)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, domain.IsBackendUnavailable(err))
}

func TestReconcileMalformedFeedSkipsBackend(t *testing.T) {
	source := &fakeSource{feed: rawFeed(map[string]any{"station_id": "a", "lat": 45.0})}
	fetcher := &fakeFetcher{}

	_, err := Reconcile(context.Background(), DefaultReconcileRequest(), source, fetcher)
	require.Error(t, err)
	assert.True(t, domain.IsMalformedFeed(err))
	assert.Zero(t, fetcher.calls)
}

func TestReconcileInvalidRequestSkipsNetwork(t *testing.T) {
	source := &fakeSource{}
	fetcher := &fakeFetcher{}

	req := DefaultReconcileRequest()
	req.Match.ThresholdMeters = 0

	_, err := Reconcile(context.Background(), req, source, fetcher)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfiguration(err))
	assert.Zero(t, source.calls)
	assert.Zero(t, fetcher.calls)
}

func TestReconcileEmptyFeed(t *testing.T) {
	source := &fakeSource{feed: rawFeed()}
	fetcher := &fakeFetcher{}

	res, err := Reconcile(context.Background(), DefaultReconcileRequest(), source, fetcher)
	require.NoError(t, err)
	assert.Zero(t, fetcher.calls)
	assert.True(t, res.Changeset.Empty())
}

func TestResolveMetadata(t *testing.T) {
	md, err := ResolveMetadata(context.Background(), Metadata{Network: "BIXI"}, domain.SystemInfo{SystemID: "bixi", Operator: "PBSC", URL: "https://bixi.com"})
	require.NoError(t, err)
	assert.Equal(t, Metadata{SystemID: "bixi", Operator: "PBSC", Network: "BIXI", Website: "https://bixi.com"}, md)

	md, err = ResolveMetadata(context.Background(), Metadata{Operator: "Lyft"}, domain.SystemInfo{SystemID: "citibike", Operator: "Motivate"})
	require.NoError(t, err)
	assert.Equal(t, "Lyft", md.Operator)
	assert.Equal(t, "citibike", md.Network)

	_, err = ResolveMetadata(context.Background(), Metadata{}, domain.SystemInfo{SystemID: "x"})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfiguration(err))
}

func TestResolveMetadataWarnsWithoutSystemID(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf))

	md, err := ResolveMetadata(ctx, Metadata{Operator: "PBSC", Network: "BIXI"}, domain.SystemInfo{})
	require.NoError(t, err)
	assert.Empty(t, md.SystemID)
	assert.Contains(t, buf.String(), "without a system prefix")
	assert.Equal(t, "42", RefValue(md.SystemID, "42"))
}
