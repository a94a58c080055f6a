package api

import (
	"context"
	"encoding/json"
	"errors"
	"gbfs2osm/internal/api/dto"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/ports"
	"gbfs2osm/internal/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	feed *ports.RawFeed
	err  error
}

func (s stubSource) FetchFeed(context.Context) (*ports.RawFeed, error) {
	return s.feed, s.err
}

type stubFetcher struct {
	entities []domain.ExistingEntity
	err      error
}

func (s stubFetcher) FetchEntities(context.Context, domain.BoundingBox, domain.CategoryFilter) ([]domain.ExistingEntity, error) {
	return s.entities, s.err
}

func testFeed() *ports.RawFeed {
	return &ports.RawFeed{
		System: domain.SystemInfo{SystemID: "bixi", Operator: "PBSC"},
		Stations: []map[string]any{
			{"station_id": "1", "name": "Berri", "lat": 45.5, "lon": -73.57, "capacity": 15.0},
			{"station_id": "2", "name": "Atwater", "lat": 45.49, "lon": -73.58},
		},
	}
}

func testEntities() []domain.ExistingEntity {
	return []domain.ExistingEntity{{
		ID:       77,
		Version:  5,
		Position: domain.Coordinates{Lat: 45.50002, Lon: -73.57},
		Tags: domain.Tags{
			"amenity":  "bicycle_rental",
			"ref:gbfs": "bixi:1",
			"capacity": "10",
		},
	}}
}

func newTestRouter(src ports.StationSource, fetcher ports.EntityFetcher) http.Handler {
	return NewRouter(src, fetcher, services.DefaultReconcileRequest(), "test")
}

func TestHealth(t *testing.T) {
	h := newTestRouter(stubSource{}, stubFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "version": "test"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListStations(t *testing.T) {
	h := newTestRouter(stubSource{feed: testFeed()}, stubFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.ListStationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "bixi", res.System.SystemID)
	require.Len(t, res.Stations, 2)
	require.NotNil(t, res.Stations[0].Capacity)
	assert.Equal(t, 15, *res.Stations[0].Capacity)
	assert.Nil(t, res.Stations[1].Capacity)
}

func TestListStationsMalformedFeed(t *testing.T) {
	feed := testFeed()
	feed.Stations = append(feed.Stations, map[string]any{"station_id": "3"})
	h := newTestRouter(stubSource{feed: feed}, stubFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stations", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPlan(t *testing.T) {
	h := newTestRouter(stubSource{feed: testFeed()}, stubFetcher{entities: testEntities()})

	body := `{"overwrite": ["capacity"], "network": "BIXI"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "bixi", res.SystemID)
	assert.Equal(t, 1, res.Stats.Created)
	assert.Equal(t, 1, res.Stats.Modified)
	assert.Equal(t, 1, res.Stats.MatchedByRef)
	require.Len(t, res.Operations, 2)

	mod := res.Operations[0]
	assert.Equal(t, "modify", mod.Action)
	assert.Equal(t, int64(77), mod.EntityID)
	assert.Equal(t, 5, mod.Version)
	assert.Equal(t, "15", mod.Tags["capacity"])
	assert.Equal(t, "BIXI", mod.Tags["network"])

	create := res.Operations[1]
	assert.Equal(t, "create", create.Action)
	assert.Equal(t, int64(-1), create.EntityID)
}

func TestPlanEmptyBodyUsesDefaults(t *testing.T) {
	h := newTestRouter(stubSource{feed: testFeed()}, stubFetcher{entities: testEntities()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	for _, op := range res.Operations {
		if op.Action == "modify" {
			assert.Equal(t, "10", op.Tags["capacity"], "capacity is not overwritten by default")
		}
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher stubFetcher
		body    string
		status  int
	}{
		{"unknown field name", stubFetcher{}, `{"overwrite": ["colour"]}`, http.StatusBadRequest},
		{"bad threshold", stubFetcher{}, `{"match_distance": -5}`, http.StatusBadRequest},
		{"inverted bounds", stubFetcher{}, `{"bounds": {"min_lat": 46, "min_lon": -73, "max_lat": 45, "max_lon": -74}}`, http.StatusBadRequest},
		{"unknown json field", stubFetcher{}, `{"hub": "x"}`, http.StatusBadRequest},
		{"bounds miss the stations", stubFetcher{}, `{"bounds": {"min_lat": 40, "min_lon": -80, "max_lat": 41, "max_lon": -79}}`, http.StatusBadRequest},
		{"two objects", stubFetcher{}, `{} {}`, http.StatusBadRequest},
		{"backend down", stubFetcher{err: domain.NewBackendUnavailableError("overpass", 504, "timeout", nil)}, `{}`, http.StatusServiceUnavailable},
		{"untyped backend failure", stubFetcher{err: errors.New("boom")}, `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(stubSource{feed: testFeed()}, tt.fetcher)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	h := newTestRouter(stubSource{feed: testFeed()}, stubFetcher{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestRouter(stubSource{}, stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}
