package overpass

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/adapters/cache"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = domain.BoundingBox{MinLat: 45.4, MinLon: -73.7, MaxLat: 45.6, MaxLon: -73.5}

const twoNodes = `{"version": 0.6, "elements": [
	{"type": "node", "id": 11, "lat": 45.5, "lon": -73.57, "version": 4,
	 "tags": {"amenity": "bicycle_rental", "ref:gbfs": "bixi:1", "note": "x"}},
	{"type": "node", "id": 12, "lat": 45.51, "lon": -73.58, "version": 1,
	 "tags": {"amenity": "bicycle_rental"}},
	{"type": "way", "id": 99, "version": 2}
]}`

type overpassServer struct {
	*httptest.Server
	hits   atomic.Int32
	query  atomic.Value
	agent  atomic.Value
	status int
	body   string
}

func newOverpassServer(t *testing.T, status int, body string) *overpassServer {
	t.Helper()
	s := &overpassServer{status: status, body: body}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		require.NoError(t, r.ParseForm())
		s.query.Store(r.PostForm.Get("data"))
		s.agent.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(s.status)
		fmt.Fprint(w, s.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T, endpoint string, responses ports.ResponseCache) *Client {
	t.Helper()
	client, err := NewClient(Config{Endpoint: endpoint, QueryTimeout: 25 * time.Second, UserAgent: "gbfs2osm/test"}, responses)
	require.NoError(t, err)
	return client
}

func TestClientFetchEntities(t *testing.T) {
	srv := newOverpassServer(t, http.StatusOK, twoNodes)
	client := newTestClient(t, srv.URL, nil)

	entities, err := client.FetchEntities(context.Background(), testBounds, domain.BicycleRentalFilter)
	require.NoError(t, err)

	require.Len(t, entities, 2)
	assert.Equal(t, int64(11), entities[0].ID)
	assert.Equal(t, 4, entities[0].Version)
	assert.Equal(t, domain.Coordinates{Lat: 45.5, Lon: -73.57}, entities[0].Position)
	assert.Equal(t, "x", entities[0].Tag("note"))

	assert.Equal(t,
		`[out:json][timeout:25];node["amenity"="bicycle_rental"](45.4000000,-73.7000000,45.6000000,-73.5000000);out meta;`,
		srv.query.Load())
	assert.Equal(t, "gbfs2osm/test", srv.agent.Load())
}

func TestClientFetchEntitiesUsesCache(t *testing.T) {
	srv := newOverpassServer(t, http.StatusOK, twoNodes)
	responses := cache.NewMemoryResponseCache(4, 0, nil)
	client := newTestClient(t, srv.URL, responses)

	for range 3 {
		entities, err := client.FetchEntities(context.Background(), testBounds, domain.BicycleRentalFilter)
		require.NoError(t, err)
		assert.Len(t, entities, 2)
	}
	assert.Equal(t, int32(1), srv.hits.Load())

	other := testBounds
	other.MaxLat = 45.7
	_, err := client.FetchEntities(context.Background(), other, domain.BicycleRentalFilter)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestClientFetchEntitiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"too many requests", http.StatusTooManyRequests, "rate limited"},
		{"gateway timeout", http.StatusGatewayTimeout, ""},
		{"not json", http.StatusOK, "<html>busy</html>"},
		{"runtime error", http.StatusOK, `{"elements": [], "remark": "runtime error: Query timed out in \"query\" at line 1 after 26 seconds."}`},
		{"missing version", http.StatusOK, `{"elements": [{"type": "node", "id": 1, "lat": 1, "lon": 2}]}`},
		{"missing elements", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOverpassServer(t, tt.status, tt.body)
			responses := cache.NewMemoryResponseCache(4, 0, nil)
			client := newTestClient(t, srv.URL, responses)

			entities, err := client.FetchEntities(context.Background(), testBounds, domain.BicycleRentalFilter)
			require.Error(t, err)
			assert.Nil(t, entities)
			assert.True(t, domain.IsBackendUnavailable(err))

			_, ok, err := responses.Get(context.Background(), CacheKey(client.endpoint, Query(testBounds, domain.BicycleRentalFilter, 25*time.Second)))
			require.NoError(t, err)
			assert.False(t, ok, "failed responses are never cached")
		})
	}
}

func TestClientFetchEntitiesStatusCode(t *testing.T) {
	srv := newOverpassServer(t, http.StatusTooManyRequests, "slow down")
	client := newTestClient(t, srv.URL, nil)

	_, err := client.FetchEntities(context.Background(), testBounds, domain.BicycleRentalFilter)
	var be *domain.BackendUnavailableError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusTooManyRequests, be.StatusCode)
	assert.Equal(t, "overpass", be.Backend)
	assert.Equal(t, int32(1), srv.hits.Load(), "requests are not retried")
}

func TestClientFetchEntitiesRejectsInvertedBounds(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", nil)
	bad := domain.BoundingBox{MinLat: 46, MinLon: -73, MaxLat: 45, MaxLon: -74}

	_, err := client.FetchEntities(context.Background(), bad, domain.BicycleRentalFilter)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfiguration(err))
}

func TestQueryEscapesFilter(t *testing.T) {
	q := Query(testBounds, domain.CategoryFilter{Key: `a"b`, Value: `c\d`}, time.Minute)
	assert.Contains(t, q, `node["a\"b"="c\\d"]`)
	assert.Contains(t, q, `[timeout:60]`)
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "overpass"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfiguration(err))

	c, err := NewClient(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
}
