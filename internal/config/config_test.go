package config

import (
	"gbfs2osm/internal/domain"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	Defaults(v)
	v.Set(KeyUserAgent, "gbfs2osm/test")
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{
		KeyFeedURL:   "https://gbfs.velobixi.com/gbfs/2-2/gbfs.json",
		KeyOverwrite: []string{"capacity", "operator:wikidata"},
	}))
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.MatchDistance)
	assert.Equal(t, 1.0, cfg.PositionTolerance)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "leveldb", cfg.CacheBackend)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.Policy.Allows(domain.FieldCapacity))
	assert.True(t, cfg.Policy.Allows(domain.FieldOperatorWikidata))
	assert.False(t, cfg.Policy.Allows(domain.FieldName))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GBFS2OSM_GBFS_FEED_URL", "https://example.com/gbfs.json")
	t.Setenv("GBFS2OSM_MATCH_DISTANCE", "75")

	v := newViper(nil)
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/gbfs.json", cfg.FeedURL)
	assert.Equal(t, 75.0, cfg.MatchDistance)
}

func TestLoadRejectsInvalidOptions(t *testing.T) {
	base := map[string]any{KeyFeedURL: "https://example.com/gbfs.json"}

	tests := []struct {
		name   string
		extra  map[string]any
		option string
	}{
		{"missing feed", map[string]any{KeyFeedURL: ""}, KeyFeedURL},
		{"relative feed", map[string]any{KeyFeedURL: "gbfs.json"}, KeyFeedURL},
		{"unknown overwrite", map[string]any{KeyOverwrite: []string{"colour"}}, KeyOverwrite},
		{"bad wikidata", map[string]any{KeyOperatorWikidata: "386"}, KeyOperatorWikidata},
		{"zero distance", map[string]any{KeyMatchDistance: 0}, KeyMatchDistance},
		{"negative tolerance", map[string]any{KeyPositionTolerance: -1}, KeyPositionTolerance},
		{"unknown cache", map[string]any{KeyCacheBackend: "memcached"}, KeyCacheBackend},
		{"redis without dsn", map[string]any{KeyCacheBackend: "redis"}, KeyCacheDSN},
		{"format mismatch", map[string]any{KeyFormat: "osmchange", KeyOutputFile: "out.osm"}, KeyFormat},
		{"unknown format", map[string]any{KeyFormat: "geojson"}, KeyFormat},
		{"system without file", map[string]any{KeySystem: "bixi"}, KeySystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]any{}
			for k, v := range base {
				values[k] = v
			}
			for k, v := range tt.extra {
				values[k] = v
			}

			_, err := Load(newViper(values))
			require.Error(t, err)
			assert.True(t, domain.IsInvalidConfiguration(err))

			var ice *domain.InvalidConfigurationError
			require.ErrorAs(t, err, &ice)
			assert.Equal(t, tt.option, ice.Option)
		})
	}
}

func TestFormatMatchingExtension(t *testing.T) {
	cfg, err := Load(newViper(map[string]any{
		KeyFeedURL:    "https://example.com/gbfs.json",
		KeyFormat:     "osc",
		KeyOutputFile: "changes.osc",
	}))
	require.NoError(t, err)
	assert.Equal(t, "osmchange", cfg.Format)
	assert.NoError(t, cfg.RequireOutput())
}

const presets = `
systems:
  - name: bixi
    gbfs_feed_url: https://gbfs.velobixi.com/gbfs/2-2/gbfs.json
    operator: PBSC
    network: BIXI
    network_wikidata_id: Q386
    use_short_name_for_station_id: true
    overwrite: [capacity]
  - name: velib
    gbfs_feed_url: https://velib-metropole-opendata.smovengo.cloud/opendata/Velib_Metropole/gbfs.json
`

func TestLoadWithSystemPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systems.yaml")
	require.NoError(t, os.WriteFile(path, []byte(presets), 0o644))

	cfg, err := Load(newViper(map[string]any{
		KeySystem:      "BIXI",
		KeySystemsFile: path,
		KeyOperator:    "Lyft",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://gbfs.velobixi.com/gbfs/2-2/gbfs.json", cfg.FeedURL)
	assert.Equal(t, "Lyft", cfg.Operator, "explicit options override the preset")
	assert.Equal(t, "BIXI", cfg.Network)
	assert.Equal(t, "Q386", cfg.NetworkWikidata)
	assert.True(t, cfg.UseShortName)
	assert.True(t, cfg.Policy.Allows(domain.FieldCapacity))

	_, err = Load(newViper(map[string]any{KeySystem: "divvy", KeySystemsFile: path}))
	require.Error(t, err)
	assert.True(t, domain.IsInvalidConfiguration(err))
}

func TestParseSystemsRejectsInvalid(t *testing.T) {
	for _, doc := range []string{
		"systems: [{name: a}]",
		"systems: [{name: a, gbfs_feed_url: 'https://x/gbfs.json', network_wikidata_id: 'X1'}]",
		"systems: [{name: a, gbfs_feed_url: 'https://x/a'}, {name: A, gbfs_feed_url: 'https://x/b'}]",
		"systems: {",
	} {
		_, err := ParseSystems([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, domain.IsInvalidConfiguration(err), doc)
	}
}

func TestGet(t *testing.T) {
	t.Setenv("GBFS2OSM_TEST_GET", "value")
	assert.Equal(t, "value", Get("GBFS2OSM_TEST_GET", "fallback"))
	assert.Equal(t, "fallback", Get("GBFS2OSM_TEST_UNSET", "fallback"))
}
