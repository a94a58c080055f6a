package main

import (
	"fmt"
	"gbfs2osm/internal/config"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/logging"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

// UserAgent identifies the tool to GBFS and Overpass servers.
func (b buildInfo) UserAgent() string {
	return "gbfs2osm/" + b.Version
}

// Generator is written to the generator attribute of output files.
func (b buildInfo) Generator() string {
	return "gbfs2osm " + b.Version
}

// app carries state shared by the subcommands.
type app struct {
	v          *viper.Viper
	info       buildInfo
	configFile string
}

func newRootCmd(info buildInfo) *cobra.Command {
	a := &app{v: viper.New(), info: info}

	root := &cobra.Command{
		Use:   "gbfs2osm",
		Short: "Reconcile GBFS bikeshare stations with OpenStreetMap",
		Long: `gbfs2osm downloads a bikeshare system's GBFS station list, matches each
station to an existing amenity=bicycle_rental node and writes a changeset
file that creates the missing stations and updates the matched ones.

The changeset is never uploaded. Open it in JOSM to review and submit it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")

	flags.String(config.KeyFeedURL, "", "GBFS discovery (gbfs.json) or station_information URL")
	flags.StringP(config.KeyOutputFile, "o", "", "changeset file to write (.osm or .osc)")
	flags.String(config.KeyOperator, "", "operator tag value (default: operator from system_information)")
	flags.String(config.KeyNetwork, "", "network tag value (default: system_id)")
	flags.String(config.KeyOperatorWikidata, "", "operator:wikidata item id, e.g. Q386")
	flags.String(config.KeyNetworkWikidata, "", "network:wikidata item id")
	flags.Bool(config.KeyUseShortName, false, "use short_name instead of station_id in ref:gbfs")
	flags.StringSlice(config.KeyOverwrite, nil,
		"fields whose existing values are replaced by feed values: "+fieldList())
	flags.Float64(config.KeyMatchDistance, 0, "max distance in meters between a station and a matched node (default 50)")
	flags.Float64(config.KeyPositionTolerance, 0, "drift in meters below which positions count as equal (default 1)")
	flags.Float64(config.KeyRefMatchMax, 0, "max distance in meters for ref:gbfs matches, 0 for unbounded")
	flags.Float64(config.KeyBoundsPadding, 0, "margin in degrees around the stations when querying nodes (default 0.01)")
	flags.String(config.KeyLanguage, "", "preferred GBFS feed language (default en)")
	flags.String(config.KeyOverpassURL, "", "Overpass API interpreter URL")
	flags.Duration(config.KeyOverpassTimeout, 0, "server-side Overpass query timeout")
	flags.Duration(config.KeyHTTPTimeout, 0, "HTTP client timeout")
	flags.String(config.KeyUserAgent, "", "User-Agent sent with every request")
	flags.String(config.KeyCacheBackend, "", "response cache: leveldb, sqlite, postgres, redis or none")
	flags.String(config.KeyCacheDir, "", "cache directory for leveldb and sqlite")
	flags.String(config.KeyCacheDSN, "", "database or redis URL for the cache")
	flags.Duration(config.KeyCacheTTL, 0, "cache entry lifetime")
	flags.Int(config.KeyCacheMemory, 0, "entries kept in the in-process cache layer, 0 to disable")
	flags.String(config.KeyFormat, "", "output format: osm or osmchange (default from extension)")
	flags.String(config.KeyOSMExtract, "", "read existing nodes from a local .osm.pbf instead of Overpass")
	flags.String(config.KeySystem, "", "name of a preset in the systems file")
	flags.String(config.KeySystemsFile, "", "YAML file of system presets")
	flags.String(config.KeyLogLevel, "", "log level: trace, debug, info, warn, error")
	flags.String(config.KeyLogFormat, "", "log format: console, json or auto")

	// Defaults live in viper so that unset flags do not shadow env vars or
	// config file values.
	_ = a.v.BindPFlags(flags)
	config.BindEnv(a.v)
	config.Defaults(a.v)
	a.v.SetDefault(config.KeyUserAgent, info.UserAgent())

	root.AddCommand(a.newConvertCmd(), a.newServeCmd(), a.newVersionCmd())
	return root
}

// setup loads .env files and the optional config file, then configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config.LoadEnvFiles()

	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return domain.NewInvalidConfigurationError("config", a.configFile, err.Error())
		}
	}

	logger := logging.Configure(logging.Config{
		Level:  a.v.GetString(config.KeyLogLevel),
		Format: a.v.GetString(config.KeyLogFormat),
	})
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

	if a.configFile != "" {
		logger.Debug().Str("file", a.v.ConfigFileUsed()).Msg("config file loaded")
	}
	return nil
}

// loadConfig builds the validated configuration for a run.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func fieldList() string {
	fields := domain.OverwritableFields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
