package services

import (
	"encoding/json"
	"errors"
	"gbfs2osm/internal/domain"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, doc string) []map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	var records []map[string]any
	require.NoError(t, dec.Decode(&records))
	return records
}

func TestNormalizeStations(t *testing.T) {
	records := decodeRecords(t, `[
		{"station_id": "a1", "name": "Berri / UQAM", "short_name": "6001", "lat": 45.515, "lon": -73.561, "capacity": 23},
		{"station_id": 42, "name": "Metro Mont-Royal", "lat": "45.524", "lon": "-73.581"},
		{"station_id": "c3", "name": [{"text": "Gare", "language": "fr"}, {"text": "Station", "language": "en"}], "lat": 45.5, "lon": -73.6, "capacity": 0}
	]`)

	stations, err := NormalizeStations(records, NormalizeOptions{Language: "en"})
	require.NoError(t, err)
	require.Len(t, stations, 3)

	assert.Equal(t, "a1", stations[0].ID)
	assert.Equal(t, "a1", stations[0].LogicalID)
	assert.Equal(t, "6001", stations[0].ShortName)
	assert.Equal(t, 23, stations[0].Capacity)
	assert.True(t, stations[0].CapacityKnown)

	assert.Equal(t, "42", stations[1].ID)
	assert.InDelta(t, 45.524, stations[1].Position.Lat, 1e-9)
	assert.False(t, stations[1].CapacityKnown)

	assert.Equal(t, "Station", stations[2].Name)
	assert.True(t, stations[2].CapacityKnown)
	assert.Zero(t, stations[2].Capacity)
}

func TestNormalizeStationsShortNameAsID(t *testing.T) {
	records := decodeRecords(t, `[{"station_id": "a1", "short_name": " 6001 ", "lat": 45.5, "lon": -73.5}]`)

	stations, err := NormalizeStations(records, NormalizeOptions{UseShortNameAsID: true})
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "a1", stations[0].ID)
	assert.Equal(t, "6001", stations[0].LogicalID)

	records = decodeRecords(t, `[{"station_id": "a1", "lat": 45.5, "lon": -73.5}]`)
	_, err = NormalizeStations(records, NormalizeOptions{UseShortNameAsID: true})
	require.Error(t, err)
	assert.True(t, domain.IsMalformedFeed(err))
}

func TestNormalizeStationsDuplicateShortName(t *testing.T) {
	records := decodeRecords(t, `[
		{"station_id": "1", "short_name": "X", "lat": 45.5, "lon": -73.5},
		{"station_id": "2", "short_name": "X", "lat": 45.6, "lon": -73.6}
	]`)

	_, err := NormalizeStations(records, NormalizeOptions{UseShortNameAsID: true})
	require.Error(t, err)
	assert.True(t, domain.IsMalformedFeed(err))

	var mf *domain.MalformedFeedError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, 1, mf.Index)
	assert.Equal(t, "2", mf.StationID)
	assert.Equal(t, "short_name", mf.Field)

	stations, err := NormalizeStations(records, NormalizeOptions{})
	require.NoError(t, err, "shared short names are fine while station_id is the ref")
	assert.Len(t, stations, 2)
}

func TestNormalizeStationsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"missing id", `[{"lat": 1, "lon": 2}]`, "station_id"},
		{"empty id", `[{"station_id": " ", "lat": 1, "lon": 2}]`, "station_id"},
		{"fractional id", `[{"station_id": 1.5, "lat": 1, "lon": 2}]`, "station_id"},
		{"missing lat", `[{"station_id": "a", "lon": 2}]`, "lat"},
		{"null lon", `[{"station_id": "a", "lat": 1, "lon": null}]`, "lon"},
		{"text lat", `[{"station_id": "a", "lat": "north", "lon": 2}]`, "lat"},
		{"lat out of range", `[{"station_id": "a", "lat": 91, "lon": 2}]`, "lat/lon"},
		{"negative capacity", `[{"station_id": "a", "lat": 1, "lon": 2, "capacity": -1}]`, "capacity"},
		{"fractional capacity", `[{"station_id": "a", "lat": 1, "lon": 2, "capacity": 2.5}]`, "capacity"},
		{"name object", `[{"station_id": "a", "lat": 1, "lon": 2, "name": {"x": 1}}]`, "name"},
		{"duplicate id", `[{"station_id": "a", "lat": 1, "lon": 2}, {"station_id": "a", "lat": 1, "lon": 2}]`, "station_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeStations(decodeRecords(t, tt.doc), NormalizeOptions{})
			require.Error(t, err)
			assert.True(t, domain.IsMalformedFeed(err))

			var mf *domain.MalformedFeedError
			require.True(t, errors.As(err, &mf))
			assert.Equal(t, tt.field, mf.Field)
			assert.Equal(t, "station_information", mf.Document)
		})
	}
}

func TestNormalizeStationsNullRecord(t *testing.T) {
	_, err := NormalizeStations([]map[string]any{nil}, NormalizeOptions{})
	require.Error(t, err)
	assert.True(t, domain.IsMalformedFeed(err))
}
